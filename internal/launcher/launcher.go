// Package launcher starts the managed application once the update cycle is
// over and, by default, waits for it to exit.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultExecutable is resolved against the working directory.
const DefaultExecutable = "FFXIV-GameTime.exe"

// ExitCodeDetached is reported when the child was not waited for.
const ExitCodeDetached = -1

// Policy selects what Launch does after the child has started.
type Policy string

const (
	// PolicyWait blocks until the child exits, with no time limit.
	PolicyWait Policy = "wait"
	// PolicyDetach returns as soon as the child has started.
	PolicyDetach Policy = "detach"
)

// ParsePolicy maps a configuration value to a Policy. Empty means PolicyWait.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyWait:
		return PolicyWait, nil
	case PolicyDetach:
		return PolicyDetach, nil
	default:
		return "", fmt.Errorf("unknown wait policy %q (want %q or %q)", s, PolicyWait, PolicyDetach)
	}
}

// Error variables for launch failures.
var (
	ErrStartFailed = fmt.Errorf("start failed")
	ErrWaitFailed  = fmt.Errorf("wait failed")
)

// Launcher describes the child process to run.
type Launcher struct {
	// Path of the executable. Relative paths are resolved against Dir, or the
	// working directory when Dir is empty.
	Path string
	Args []string
	// Dir is the child's working directory. Empty inherits ours.
	Dir string
	// Env replaces the child's environment when non-nil.
	Env    []string
	Policy Policy

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// New returns a Launcher for path using PolicyWait and our standard streams.
func New(path string, args ...string) *Launcher {
	return &Launcher{
		Path:   path,
		Args:   args,
		Policy: PolicyWait,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Launch starts the child. Under PolicyWait it returns the child's exit code
// once it exits; a non-zero exit is not an error. Under PolicyDetach it
// returns ExitCodeDetached right after the start.
//
// ctx only guards the start. A running child is never killed because the
// caller gave up waiting.
func (l *Launcher) Launch(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	path, err := l.resolvePath()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	//nolint:gosec // G204: executable path comes from launcher configuration
	cmd := exec.Command(path, l.Args...)
	cmd.Dir = l.Dir
	cmd.Env = l.Env
	cmd.Stdin = l.Stdin
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrStartFailed, path, err)
	}

	if l.Policy == PolicyDetach {
		_ = cmd.Process.Release()
		return ExitCodeDetached, nil
	}

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		// The app ran; a signal death reports -1.
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 0, fmt.Errorf("%w: %s: %v", ErrWaitFailed, path, err)
	}
	return 0, nil
}

// resolvePath turns a relative Path into an absolute one so a bare file name
// runs the file next to us instead of something found on PATH.
func (l *Launcher) resolvePath() (string, error) {
	p := strings.TrimSpace(l.Path)
	if p == "" {
		return "", fmt.Errorf("no executable configured")
	}
	if filepath.IsAbs(p) {
		return p, nil
	}
	base := l.Dir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
		base = wd
	}
	abs, err := filepath.Abs(filepath.Join(base, p))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	return abs, nil
}
