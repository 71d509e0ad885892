package update

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultVersionURL = "https://raw.githubusercontent.com/Jo44/ffxiv-gametime/main/distrib/ffxiv-gametime.version"
	DefaultBinaryURL  = "https://raw.githubusercontent.com/Jo44/ffxiv-gametime/main/distrib/FFXIV-GameTime.exe"
	DefaultTimeout    = 15 * time.Second

	// DefaultUserAgent is a desktop browser agent; the hosting endpoint may
	// reject the Go default.
	DefaultUserAgent = "Mozilla/4.0 (compatible; MSIE 6.0; Windows NT 5.1; .NET CLR 1.0.3705; .NET CLR 1.1.4322; .NET CLR 1.2.30703)"

	// VersionMarker precedes the version on the descriptor's first line.
	VersionMarker = "app.version="
)

// maxDescriptorSize caps how much of the descriptor is read.
const maxDescriptorSize = 64 << 10

// Error variables for specific error conditions.
var (
	ErrNetworkFailure = fmt.Errorf("network request failed")
)

// CheckResult is the outcome of comparing the remote descriptor with the
// installed version.
type CheckResult struct {
	Local       string
	Remote      string
	NeedsUpdate bool
	Direction   Direction
	CheckedAt   time.Time
}

// Checker fetches the remote version descriptor.
type Checker struct {
	url            string
	userAgent      string
	descriptorPath string
	httpClient     *http.Client
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithHTTPClient sets a custom HTTP client for the checker.
func WithHTTPClient(client *http.Client) CheckerOption {
	return func(c *Checker) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout. Zero disables it.
func WithTimeout(timeout time.Duration) CheckerOption {
	return func(c *Checker) {
		c.httpClient.Timeout = timeout
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) CheckerOption {
	return func(c *Checker) {
		c.userAgent = ua
	}
}

// WithDescriptorPath keeps a copy of the fetched descriptor at path,
// normally inside the staging directory.
func WithDescriptorPath(path string) CheckerOption {
	return func(c *Checker) {
		c.descriptorPath = path
	}
}

// NewChecker creates a checker for the descriptor at url.
func NewChecker(url string, opts ...CheckerOption) *Checker {
	c := &Checker{
		url:       url,
		userAgent: DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check fetches the remote version and compares it with local.
func (c *Checker) Check(ctx context.Context, local string) (*CheckResult, error) {
	remote, err := c.FetchRemoteVersion(ctx)
	if err != nil {
		return nil, err
	}
	return &CheckResult{
		Local:       local,
		Remote:      remote,
		NeedsUpdate: NeedsUpdate(remote, local),
		Direction:   Classify(local, remote),
		CheckedAt:   time.Now(),
	}, nil
}

// FetchRemoteVersion downloads the descriptor and returns the version on its
// first line, or "" when that line is blank or has no marker.
func (c *Checker) FetchRemoteVersion(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrNetworkFailure, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDescriptorSize))
	if err != nil {
		return "", fmt.Errorf("%w: read descriptor: %v", ErrNetworkFailure, err)
	}

	if c.descriptorPath != "" {
		//nolint:gosec // G306: descriptor is a public text file
		if err := os.WriteFile(c.descriptorPath, body, 0644); err != nil {
			return "", fmt.Errorf("%w: %v", ErrStagingFailed, err)
		}
	}

	return ParseDescriptor(bytes.NewReader(body))
}

// ParseDescriptor extracts the version from the first line of r.
func ParseDescriptor(r io.Reader) (string, error) {
	br := bufio.NewReader(r)
	line, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read descriptor: %w", err)
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	if strings.TrimSpace(line) == "" {
		return "", nil
	}
	idx := strings.Index(line, VersionMarker)
	if idx < 0 {
		return "", nil
	}
	return line[idx+len(VersionMarker):], nil
}

// NeedsUpdate reports whether remote differs from local. There is no
// ordering: any difference, including a lower remote version, is an update.
func NeedsUpdate(remote, local string) bool {
	return remote != local
}
