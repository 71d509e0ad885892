package update

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	goupdate "github.com/inconshreveable/go-update"
)

// DefaultDownloadTimeout bounds a whole binary download.
const DefaultDownloadTimeout = 10 * time.Minute

// copyBufferSize is the chunk size used when streaming a download to disk.
const copyBufferSize = 32 << 10

// Error variables for applier-specific errors.
var (
	ErrDownloadFailed   = fmt.Errorf("download failed")
	ErrStagedUnreadable = fmt.Errorf("staged file unreadable")
	ErrSwapFailed       = fmt.Errorf("swap failed")
)

// ProgressFunc receives the bytes written so far and the expected total
// (-1 when the server did not send a length).
type ProgressFunc func(done, total int64)

// Applier downloads replacement binaries and swaps them into place.
type Applier struct {
	userAgent  string
	progress   ProgressFunc
	httpClient *http.Client
}

// ApplierOption configures an Applier.
type ApplierOption func(*Applier)

// WithApplierHTTPClient sets a custom HTTP client for downloads.
func WithApplierHTTPClient(client *http.Client) ApplierOption {
	return func(a *Applier) {
		a.httpClient = client
	}
}

// WithDownloadTimeout bounds each download. Zero disables the bound.
func WithDownloadTimeout(timeout time.Duration) ApplierOption {
	return func(a *Applier) {
		a.httpClient.Timeout = timeout
	}
}

// WithApplierUserAgent overrides the User-Agent header.
func WithApplierUserAgent(ua string) ApplierOption {
	return func(a *Applier) {
		a.userAgent = ua
	}
}

// WithProgress registers a download progress callback.
func WithProgress(fn ProgressFunc) ApplierOption {
	return func(a *Applier) {
		a.progress = fn
	}
}

// NewApplier creates an applier with the default user agent and timeout.
func NewApplier(opts ...ApplierOption) *Applier {
	a := &Applier{
		userAgent: DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultDownloadTimeout,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DownloadTo streams url into dest, replacing any previous file. Success
// means the body was read to the end and dest was closed cleanly; size and
// content are not checked.
func (a *Applier) DownloadTo(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/octet-stream")
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
	}

	//nolint:gosec // G304: destination is inside the staging directory we own
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrDownloadFailed, dest, err)
	}

	var w io.Writer = out
	if a.progress != nil {
		w = &progressWriter{w: out, total: resp.ContentLength, fn: a.progress}
	}

	bw := bufio.NewWriterSize(w, copyBufferSize)
	if _, err := io.CopyBuffer(bw, resp.Body, make([]byte, copyBufferSize)); err != nil {
		_ = out.Close()
		return fmt.Errorf("%w: read body: %v", ErrDownloadFailed, err)
	}
	if err := bw.Flush(); err != nil {
		_ = out.Close()
		return fmt.Errorf("%w: write %s: %v", ErrDownloadFailed, dest, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrDownloadFailed, dest, err)
	}
	return nil
}

// VerifyStaged checks that path is a regular file that can be opened for reading.
func VerifyStaged(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStagedUnreadable, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrStagedUnreadable, path)
	}
	//nolint:gosec // G304: path is inside the staging directory
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStagedUnreadable, err)
	}
	_ = f.Close()
	return nil
}

// ApplyStagedBinary replaces target with the staged file. The new bytes are
// written beside target and renamed over it, so target is either the old or
// the new binary, never a partial one. A missing target is installed fresh.
func (a *Applier) ApplyStagedBinary(staged, target string) error {
	//nolint:gosec // G304: staged path is inside the staging directory
	src, err := os.Open(staged)
	if err != nil {
		return fmt.Errorf("%w: open staged binary: %v", ErrSwapFailed, err)
	}
	defer func() { _ = src.Close() }()

	info, err := os.Stat(target)
	if errors.Is(err, fs.ErrNotExist) {
		if err := installFresh(src, target); err != nil {
			return fmt.Errorf("%w: %v", ErrSwapFailed, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: stat target: %v", ErrSwapFailed, err)
	}

	opts := goupdate.Options{
		TargetPath: target,
		TargetMode: info.Mode().Perm() | 0100,
	}
	if err := opts.CheckPermissions(); err != nil {
		return fmt.Errorf("%w: %v", ErrSwapFailed, err)
	}
	if err := goupdate.Apply(src, opts); err != nil {
		if rerr := goupdate.RollbackError(err); rerr != nil {
			return fmt.Errorf("%w: %v (restoring previous binary also failed: %v)", ErrSwapFailed, err, rerr)
		}
		return fmt.Errorf("%w: %v", ErrSwapFailed, err)
	}
	return nil
}

// installFresh writes src to a temp file in target's directory and renames it
// into place.
func installFresh(src io.Reader, target string) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.new")
	if err != nil {
		return fmt.Errorf("create temp binary: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp binary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp binary: %w", err)
	}
	//nolint:gosec // G302: binary needs to be executable
	if err := os.Chmod(tmpPath, 0755); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temp binary: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("install binary: %w", err)
	}
	return nil
}

type progressWriter struct {
	w     io.Writer
	done  int64
	total int64
	fn    ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.done += int64(n)
	p.fn(p.done, p.total)
	return n, err
}
