package update

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultStagingDir is relative to the working directory.
const DefaultStagingDir = "tmp"

// ErrStagingFailed wraps failures creating or writing the staging area.
var ErrStagingFailed = fmt.Errorf("staging failed")

// Staging is the directory holding in-flight downloads for one cycle.
type Staging struct {
	Dir string
}

// NewStaging returns a staging area rooted at dir (DefaultStagingDir if empty).
func NewStaging(dir string) *Staging {
	if dir == "" {
		dir = DefaultStagingDir
	}
	return &Staging{Dir: dir}
}

// Ensure creates the directory if needed. Idempotent.
func (s *Staging) Ensure() error {
	//nolint:gosec // G301: staging holds a public executable
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrStagingFailed, s.Dir, err)
	}
	return nil
}

// Path returns the location of name inside the staging directory.
func (s *Staging) Path(name string) string {
	return filepath.Join(s.Dir, name)
}

// Purge deletes every entry in the directory and then the directory itself.
// Individual failures are ignored; the number of entries removed is returned.
func (s *Staging) Purge() int {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.Dir, e.Name())); err == nil {
			removed++
		}
	}
	_ = os.Remove(s.Dir)
	return removed
}
