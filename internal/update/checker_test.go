package update

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewChecker(t *testing.T) {
	c := NewChecker("http://example.invalid/version")
	if c.url != "http://example.invalid/version" {
		t.Errorf("url = %q", c.url)
	}
	if c.userAgent != DefaultUserAgent {
		t.Errorf("userAgent = %q, want default", c.userAgent)
	}
	if c.httpClient == nil || c.httpClient.Timeout != DefaultTimeout {
		t.Error("httpClient should default to DefaultTimeout")
	}
}

func TestNewCheckerWithOptions(t *testing.T) {
	customClient := &http.Client{Timeout: 10 * time.Second}
	c := NewChecker("u", WithHTTPClient(customClient), WithUserAgent("ua"), WithTimeout(0))

	if c.httpClient != customClient {
		t.Error("custom HTTP client not applied")
	}
	if c.httpClient.Timeout != 0 {
		t.Error("WithTimeout(0) should disable the timeout")
	}
	if c.userAgent != "ua" {
		t.Errorf("userAgent = %q, want ua", c.userAgent)
	}
}

func TestFetchRemoteVersion(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"marker on first line", "app.version=2.3.1\n", "2.3.1"},
		{"no trailing newline", "app.version=2.3.1", "2.3.1"},
		{"crlf line ending", "app.version=1.1\r\nignored=true\r\n", "1.1"},
		{"only first line read", "# header\napp.version=9.9\n", ""},
		{"marker missing", "version: 2.0\n", ""},
		{"blank first line", "   \napp.version=2.0\n", ""},
		{"empty body", "", ""},
		{"marker mid-line", "prefix app.version=3.0", "3.0"},
		{"trailing space kept", "app.version=1.0 \n", "1.0 "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			got, err := NewChecker(server.URL).FetchRemoteVersion(context.Background())
			if err != nil {
				t.Fatalf("FetchRemoteVersion() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("FetchRemoteVersion() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFetchRemoteVersionSendsBrowserUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("app.version=1.0\n"))
	}))
	defer server.Close()

	if _, err := NewChecker(server.URL).FetchRemoteVersion(context.Background()); err != nil {
		t.Fatalf("FetchRemoteVersion() error: %v", err)
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", gotUA, DefaultUserAgent)
	}
}

func TestFetchRemoteVersionHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewChecker(server.URL).FetchRemoteVersion(context.Background())
	if !errors.Is(err, ErrNetworkFailure) {
		t.Fatalf("error = %v, want ErrNetworkFailure", err)
	}
}

func TestFetchRemoteVersionUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewChecker(url, WithTimeout(2*time.Second)).FetchRemoteVersion(context.Background())
	if !errors.Is(err, ErrNetworkFailure) {
		t.Fatalf("error = %v, want ErrNetworkFailure", err)
	}
}

func TestFetchRemoteVersionKeepsDescriptorCopy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("app.version=1.2\nnotes\n"))
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "ffxiv-gametime.version")
	got, err := NewChecker(server.URL, WithDescriptorPath(path)).FetchRemoteVersion(context.Background())
	if err != nil {
		t.Fatalf("FetchRemoteVersion() error: %v", err)
	}
	if got != "1.2" {
		t.Errorf("version = %q, want 1.2", got)
	}
	saved, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("descriptor copy missing: %v", err)
	}
	if string(saved) != "app.version=1.2\nnotes\n" {
		t.Errorf("descriptor copy = %q", saved)
	}
}

func TestCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("app.version=1.1\n"))
	}))
	defer server.Close()

	c := NewChecker(server.URL)

	res, err := c.Check(context.Background(), "1.0")
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if !res.NeedsUpdate || res.Remote != "1.1" || res.Local != "1.0" {
		t.Errorf("Check() = %+v, want update 1.0 -> 1.1", res)
	}
	if res.Direction != DirectionUpgrade {
		t.Errorf("Direction = %s, want upgrade", res.Direction)
	}

	res, err = c.Check(context.Background(), "1.1")
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if res.NeedsUpdate {
		t.Error("identical versions should not need an update")
	}
}

func TestNeedsUpdate(t *testing.T) {
	tests := []struct {
		remote, local string
		want          bool
	}{
		{"1.0", "1.0", false},
		{"1.0 ", "1.0", true},
		{"1.0", "1.0 ", true},
		{"1.1", "1.0", true},
		{"0.9", "1.0", true},
		{"V1.0", "v1.0", true},
		{"", "", false},
		{"", "1.0", true},
	}
	for _, tt := range tests {
		if got := NeedsUpdate(tt.remote, tt.local); got != tt.want {
			t.Errorf("NeedsUpdate(%q, %q) = %v, want %v", tt.remote, tt.local, got, tt.want)
		}
		if got := NeedsUpdate(tt.local, tt.remote); got != tt.want {
			t.Errorf("NeedsUpdate should be symmetric for (%q, %q)", tt.local, tt.remote)
		}
	}
}

func TestParseDescriptorReadsOnlyFirstLine(t *testing.T) {
	got, err := ParseDescriptor(strings.NewReader("app.version=5\napp.version=6\n"))
	if err != nil {
		t.Fatalf("ParseDescriptor() error: %v", err)
	}
	if got != "5" {
		t.Errorf("ParseDescriptor() = %q, want 5", got)
	}
}
