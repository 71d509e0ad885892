package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", FileName)
	j, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j, path
}

func entry(i int) Entry {
	start := time.Date(2025, 3, 1, 12, 0, i, 0, time.UTC)
	return Entry{
		CycleID:       fmt.Sprintf("cycle-%d", i),
		StartedAt:     start,
		FinishedAt:    start.Add(1500 * time.Millisecond),
		LocalVersion:  "1.0",
		RemoteVersion: "1.1",
		Outcome:       "updated",
		Updated:       true,
		Launched:      i%2 == 0,
		ExitCode:      i,
	}
}

func TestRecordAndRecentNewestFirst(t *testing.T) {
	j, _ := openTestJournal(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := j.Record(ctx, entry(i)); err != nil {
			t.Fatalf("Record(%d) error: %v", i, err)
		}
	}

	got, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d entries", len(got))
	}
	if got[0].CycleID != "cycle-3" || got[1].CycleID != "cycle-2" {
		t.Errorf("order = %s, %s; want cycle-3, cycle-2", got[0].CycleID, got[1].CycleID)
	}

	want := entry(3)
	if !got[0].StartedAt.Equal(want.StartedAt) || !got[0].FinishedAt.Equal(want.FinishedAt) {
		t.Errorf("times = %v..%v, want %v..%v", got[0].StartedAt, got[0].FinishedAt, want.StartedAt, want.FinishedAt)
	}
	if got[0].Duration() != 1500*time.Millisecond {
		t.Errorf("Duration() = %v", got[0].Duration())
	}
	if !got[0].Updated || got[0].Launched || got[0].ExitCode != 3 {
		t.Errorf("flags not round-tripped: %+v", got[0])
	}
	if !got[1].Launched {
		t.Error("cycle-2 should be recorded as launched")
	}
}

func TestRecentAll(t *testing.T) {
	j, _ := openTestJournal(t)
	ctx := context.Background()

	got, err := j.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent() on empty journal error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("empty journal returned %d entries", len(got))
	}

	for i := 1; i <= 4; i++ {
		if err := j.Record(ctx, entry(i)); err != nil {
			t.Fatalf("Record(%d) error: %v", i, err)
		}
	}
	got, err = j.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("Recent(0) returned %d entries, want 4", len(got))
	}
}

func TestRecordDuplicateCycleFails(t *testing.T) {
	j, _ := openTestJournal(t)
	ctx := context.Background()

	if err := j.Record(ctx, entry(1)); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if err := j.Record(ctx, entry(1)); err == nil {
		t.Fatal("recording the same cycle twice should fail")
	}
}

func TestJournalPersistsAcrossOpen(t *testing.T) {
	j, path := openTestJournal(t)
	ctx := context.Background()

	e := entry(7)
	e.Outcome = "update_failed"
	e.Error = "network failure: connection refused"
	if err := j.Record(ctx, e); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	got, err := reopened.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(got) != 1 || got[0].Outcome != "update_failed" || got[0].Error != e.Error {
		t.Errorf("Recent() = %+v", got)
	}
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"unix path", "/data/history.db", "file:///data/history.db?"},
		{"drive letter", "C:/Users/me/AppData/Roaming/ffxiv-gametime/history.db", "file:///C:/Users/me/AppData/Roaming/ffxiv-gametime/history.db?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := buildDSN(tt.path)
			if !strings.HasPrefix(dsn, tt.want) {
				t.Errorf("buildDSN(%q) = %q, want prefix %q", tt.path, dsn, tt.want)
			}
			if !strings.Contains(dsn, "busy_timeout") {
				t.Errorf("dsn missing busy timeout: %q", dsn)
			}
		})
	}
}

func TestOpenRelativePath(t *testing.T) {
	t.Chdir(t.TempDir())
	j, err := Open(context.Background(), filepath.Join("data", FileName))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer func() { _ = j.Close() }()
	if !filepath.IsAbs(j.Path()) {
		t.Errorf("Path() = %q, want an absolute path", j.Path())
	}
	if _, err := os.Stat(j.Path()); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}
