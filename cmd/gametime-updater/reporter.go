package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gametime-updater/internal/orchestrator"

	"github.com/muesli/termenv"
)

// progressStep is the percentage between two download progress lines.
const progressStep = 25

// lineReporter prints one line per stage. It is used when the output is not
// an interactive terminal or the progress display is disabled.
type lineReporter struct {
	writer  io.Writer
	lastPct int
	stopped bool
}

func newLineReporter(w io.Writer) *lineReporter {
	if w == nil {
		w = io.Discard
	}
	return &lineReporter{writer: w, lastPct: -1}
}

func (r *lineReporter) Stage(stage orchestrator.Stage, detail string) {
	if r.stopped {
		return
	}
	if stage == orchestrator.StageDownloading {
		r.lastPct = -1
	}
	_, _ = fmt.Fprintln(r.writer, formatStageMessage(stage, detail))
}

func (r *lineReporter) Progress(done, total int64) {
	if r.stopped || total <= 0 {
		return
	}
	pct := int(done * 100 / total)
	step := pct - pct%progressStep
	if step <= r.lastPct {
		return
	}
	r.lastPct = step
	_, _ = fmt.Fprintf(r.writer, "  %3d%% (%s / %s)\n", step, formatBytes(done), formatBytes(total))
}

func (r *lineReporter) Stop() {
	r.stopped = true
}

func formatStageMessage(stage orchestrator.Stage, detail string) string {
	label := stageLabel(stage)
	detail = strings.TrimSpace(detail)
	if detail == "" || detail == label {
		return label + "..."
	}
	return fmt.Sprintf("%s... %s", label, detail)
}

// isInteractive reports whether f is a terminal that can render the
// progress display.
func isInteractive(f *os.File) bool {
	return termenv.NewOutput(f).Profile != termenv.Ascii
}

// newReporter picks the bubbletea display for an interactive terminal and
// line output otherwise.
func newReporter(progressEnabled bool, out *os.File) orchestrator.Reporter {
	if progressEnabled && isInteractive(out) {
		return NewProgressDisplay(out)
	}
	return newLineReporter(out)
}
