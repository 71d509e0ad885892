package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gametime-updater/internal/config"
	"gametime-updater/internal/history"
	"gametime-updater/internal/orchestrator"
)

// historyRecorder stores finished cycles in the journal.
type historyRecorder struct {
	journal *history.Journal
}

func (r historyRecorder) Record(ctx context.Context, res orchestrator.Result) error {
	return r.journal.Record(ctx, entryFromResult(res))
}

func entryFromResult(res orchestrator.Result) history.Entry {
	e := history.Entry{
		CycleID:       res.CycleID,
		StartedAt:     res.StartedAt,
		FinishedAt:    res.FinishedAt,
		LocalVersion:  res.LocalVersion,
		RemoteVersion: res.RemoteVersion,
		Outcome:       string(res.Outcome),
		Updated:       res.Updated,
		Launched:      res.Launched,
		ExitCode:      res.ExitCode,
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}
	return e
}

func historyPath(cfg *config.Config) (string, error) {
	if p := strings.TrimSpace(cfg.History.Path); p != "" {
		return p, nil
	}
	return history.DefaultPath()
}

// showHistory prints the last n cycles. It does not need history.enabled:
// listing an existing journal is always allowed.
func showHistory(ctx context.Context, cfg *config.Config, n int, w io.Writer) error {
	path, err := historyPath(cfg)
	if err != nil {
		return err
	}
	j, err := history.Open(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	entries, err := j.Recent(ctx, n)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	printHistory(w, entries)
	return nil
}
