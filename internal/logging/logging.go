// Package logging provides the updater's process log.
// Every run truncates the log file in the per-user data directory and writes
// timestamped lines to it, optionally echoing them to a second writer (stderr).
// Until Init is called, messages go to stderr only.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// LogFileName is the name of the updater log file.
	LogFileName = "updater.log"
	// LogDirName is the directory under the user config dir holding the log.
	LogDirName = "ffxiv-gametime"
)

const logFlags = log.Ldate | log.Ltime | log.Lmicroseconds

var (
	mu      sync.RWMutex
	logger  = log.New(os.Stderr, "", logFlags)
	logFile *os.File
	logPath string

	// getLogPath is a function variable to allow overriding in tests.
	getLogPath = defaultGetLogPath
)

// Init opens (and truncates) the log file at path. An empty path selects the
// default location. When echo is non-nil every line is also written there.
// If the file cannot be opened, logging falls back to echo (or stderr) and
// the error is returned so the caller can report it.
func Init(path string, echo io.Writer) error {
	mu.Lock()
	defer mu.Unlock()

	closeLocked()

	fallback := echo
	if fallback == nil {
		fallback = os.Stderr
	}

	if path == "" {
		p, err := getLogPath()
		if err != nil {
			logger = log.New(fallback, "", logFlags)
			return fmt.Errorf("determine log path: %w", err)
		}
		path = p
	}

	//nolint:gosec // G301: User data directory needs standard permissions
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logger = log.New(fallback, "", logFlags)
		return fmt.Errorf("create log directory: %w", err)
	}

	//nolint:gosec // G304: Log path comes from launcher configuration
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		logger = log.New(fallback, "", logFlags)
		return fmt.Errorf("open log file: %w", err)
	}
	logFile = f
	logPath = path

	var out io.Writer = f
	if echo != nil {
		out = io.MultiWriter(f, echo)
	}
	logger = log.New(out, "", logFlags)
	logger.Printf("=== updater log started at %s ===", time.Now().Format(time.RFC3339))

	return nil
}

// Close closes the log file if open and routes further messages to stderr.
// Safe to call more than once.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	logger = log.New(os.Stderr, "", logFlags)
}

func closeLocked() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	logPath = ""
}

// SetPrefix tags every following line, typically with the update cycle id.
func SetPrefix(p string) {
	mu.Lock()
	defer mu.Unlock()
	if p != "" {
		p = "[" + p + "] "
	}
	logger.SetPrefix(p)
}

// Log writes a message in the manner of fmt.Print.
func Log(v ...any) {
	mu.RLock()
	defer mu.RUnlock()
	logger.Print(v...)
}

// Logf writes a formatted message in the manner of fmt.Printf.
func Logf(format string, v ...any) {
	mu.RLock()
	defer mu.RUnlock()
	logger.Printf(format, v...)
}

// Infof logs an informational message.
func Infof(format string, v ...any) { Logf("INFO  "+format, v...) }

// Warnf logs a recoverable problem.
func Warnf(format string, v ...any) { Logf("WARN  "+format, v...) }

// Errorf logs a failure.
func Errorf(format string, v ...any) { Logf("ERROR "+format, v...) }

// Path returns the path of the open log file, or "" when logging to stderr.
func Path() string {
	mu.RLock()
	defer mu.RUnlock()
	return logPath
}

func defaultGetLogPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("determine user config dir: %w", err)
	}
	return filepath.Join(dir, LogDirName, LogFileName), nil
}

// DefaultPath returns the default log file location.
func DefaultPath() (string, error) {
	return getLogPath()
}
