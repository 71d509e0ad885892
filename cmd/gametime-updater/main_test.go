package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gametime-updater/internal/config"
	"gametime-updater/internal/orchestrator"
	"gametime-updater/internal/settings"
)

// TestHelperProcess stands in for the launched application.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	os.Exit(0)
}

type cycleFixture struct {
	dir       string
	overrides map[string]any
	stdout    bytes.Buffer
	stderr    bytes.Buffer
	stages    bytes.Buffer
}

func newCycleFixture(t *testing.T, serverVersion, installedVersion string) *cycleFixture {
	t.Helper()
	dir := t.TempDir()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, "app.version=%s\n", serverVersion)
	}))
	t.Cleanup(server.Close)

	settingsPath := filepath.Join(dir, "data", settings.FileName)
	seed := settings.Defaults()
	if err := settings.NewStore(settingsPath, seed).Save(installedVersion); err != nil {
		t.Fatalf("seed settings: %v", err)
	}

	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("locate test binary: %v", err)
	}
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")

	return &cycleFixture{
		dir: dir,
		overrides: map[string]any{
			config.KeyVersionURL:   server.URL + "/ffxiv-gametime.version",
			config.KeyBinaryURL:    server.URL + "/FFXIV-GameTime.exe",
			config.KeyExecutable:   exe,
			config.KeyArgs:         []string{"-test.run=TestHelperProcess", "--"},
			config.KeyStagingDir:   filepath.Join(dir, "tmp"),
			config.KeySettingsPath: settingsPath,
			config.KeyHistoryPath:  filepath.Join(dir, "data", "history.db"),
			config.KeyLogPath:      filepath.Join(dir, "data", "updater.log"),
			config.KeyLogEcho:      false,
		},
	}
}

func (f *cycleFixture) run(t *testing.T, args ...string) int {
	t.Helper()
	return run(context.Background(), args, runEnv{
		stdout: &f.stdout,
		stderr: &f.stderr,
		newReporter: func(bool) orchestrator.Reporter {
			return newLineReporter(&f.stages)
		},
		configOpts: []config.Option{
			config.WithWorkingDir(f.dir),
			config.WithUserConfig(filepath.Join(f.dir, "absent.yaml")),
			config.WithOverrides(f.overrides),
		},
	})
}

func TestRunUpToDateLaunchesAndRecordsHistory(t *testing.T) {
	f := newCycleFixture(t, "1.1", "1.1")

	if code := f.run(t); code != 0 {
		t.Fatalf("exit code = %d, want 0\nstdout: %s\nstderr: %s", code, f.stdout.String(), f.stderr.String())
	}
	if !strings.Contains(f.stdout.String(), "Version 1.1 is up to date") {
		t.Errorf("summary missing up-to-date line:\n%s", f.stdout.String())
	}
	if !strings.Contains(f.stages.String(), "Checking for updates") {
		t.Errorf("stage output = %q", f.stages.String())
	}
	if _, err := os.Stat(filepath.Join(f.dir, "tmp")); !os.IsNotExist(err) {
		t.Error("staging directory should be removed after the cycle")
	}
	logData, err := os.ReadFile(filepath.Join(f.dir, "data", "updater.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(logData), "up to date") {
		t.Errorf("log does not mention the check result:\n%s", logData)
	}

	f.stdout.Reset()
	if code := f.run(t, "--history", "5"); code != 0 {
		t.Fatalf("--history exit code = %d, stderr: %s", code, f.stderr.String())
	}
	if !strings.Contains(f.stdout.String(), "up_to_date") {
		t.Errorf("history output missing the cycle:\n%s", f.stdout.String())
	}
}

func TestRunCheckFailureExitsWithoutLaunching(t *testing.T) {
	f := newCycleFixture(t, "1.1", "1.0")
	f.overrides[config.KeyVersionURL] = "http://127.0.0.1:1/unreachable"
	f.overrides[config.KeyHistoryEnabled] = false

	if code := f.run(t); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(f.stdout.String(), "Update failed") {
		t.Errorf("summary = %q", f.stdout.String())
	}
	if _, err := os.Stat(filepath.Join(f.dir, "data", "history.db")); !os.IsNotExist(err) {
		t.Error("history should not be written when disabled")
	}
}

func TestRunWithoutSettingsLocationStillLaunches(t *testing.T) {
	f := newCycleFixture(t, settings.DefaultVersion, settings.DefaultVersion)
	delete(f.overrides, config.KeySettingsPath)
	t.Setenv("HOME", "")
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("APPDATA", "")

	if code := f.run(t); code != 0 {
		t.Fatalf("exit code = %d, want 0\nstdout: %s\nstderr: %s", code, f.stdout.String(), f.stderr.String())
	}
	out := f.stdout.String()
	if !strings.Contains(out, "Version "+settings.DefaultVersion+" is up to date") {
		t.Errorf("summary missing up-to-date line:\n%s", out)
	}
	if !strings.Contains(out, "reset to defaults (could not be written)") {
		t.Errorf("summary should report the in-memory defaults:\n%s", out)
	}
}

func TestRunVersionFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--version"}, runEnv{stdout: &stdout, stderr: &stderr})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.HasPrefix(stdout.String(), "gametime-updater version "+Version) {
		t.Errorf("version output = %q", stdout.String())
	}
}

func TestRunUnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"--bogus"}, runEnv{stdout: &stdout, stderr: &stderr}); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
}

func TestRunMissingExplicitConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if code := run(context.Background(), []string{"--config", missing}, runEnv{stdout: &stdout, stderr: &stderr}); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "Error loading configuration") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestConfigOptionsOnlyForVisitedFlags(t *testing.T) {
	cfgFile := "x.yaml"
	noProgress := true
	flags := runtimeFlags{configFile: &cfgFile, noProgress: &noProgress}

	if opts := configOptions(flags, map[string]struct{}{}); len(opts) != 0 {
		t.Errorf("unvisited flags produced %d options", len(opts))
	}
	visited := map[string]struct{}{"config": {}, "no-progress": {}}
	if opts := configOptions(flags, visited); len(opts) != 2 {
		t.Errorf("visited flags produced %d options, want 2", len(opts))
	}
}

func TestTargetPath(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "FFXIV-GameTime.exe")
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	tests := []struct {
		name string
		app  config.AppConfig
		want string
	}{
		{"absolute", config.AppConfig{Executable: abs, Dir: "/elsewhere"}, abs},
		{"relative to working dir", config.AppConfig{Executable: "FFXIV-GameTime.exe"}, filepath.Join(wd, "FFXIV-GameTime.exe")},
		{"relative to app dir", config.AppConfig{Executable: "game.exe", Dir: filepath.Dir(abs)}, filepath.Join(filepath.Dir(abs), "game.exe")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := targetPath(&config.Config{App: tt.app}); got != tt.want {
				t.Errorf("targetPath() = %q, want %q", got, tt.want)
			}
		})
	}
}
