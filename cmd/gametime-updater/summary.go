package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	apperrors "gametime-updater/internal/errors"
	"gametime-updater/internal/history"
	"gametime-updater/internal/orchestrator"
	"gametime-updater/internal/settings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

// summaryWidth is where long error messages wrap.
const summaryWidth = 76

// printSummary prints the end-of-run summary for one cycle.
func printSummary(w io.Writer, res orchestrator.Result, load settings.LoadResult) {
	appStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(primaryColor)

	dimStyle := lipgloss.NewStyle().
		Foreground(dimColor)

	_, _ = fmt.Fprintln(w, appStyle.Render("FFXIV GameTime updater")+
		dimStyle.Render(fmt.Sprintf(" v%s • %s", Version, formatDuration(res.FinishedAt.Sub(res.StartedAt)))))

	if load.Fallback {
		note := "Settings were reset to defaults"
		if load.WriteErr != nil {
			note += " (could not be written)"
		}
		_, _ = fmt.Fprintln(w, lipgloss.NewStyle().Foreground(warnColor).Render(note))
	}

	_, _ = fmt.Fprintln(w, outcomeStyle(res.Outcome).Render(describeOutcome(res)))

	if res.Err != nil {
		msg := fmt.Sprintf("%s: %v", apperrors.CodeOf(res.Err), res.Err)
		_, _ = fmt.Fprintln(w, dimStyle.Render(indent(wordwrap.String(msg, summaryWidth-2), "  ")))
	}
}

func describeOutcome(res orchestrator.Result) string {
	switch res.Outcome {
	case orchestrator.OutcomeUpdated:
		s := fmt.Sprintf("Updated %s → %s", displayVersion(res.LocalVersion), displayVersion(res.RemoteVersion))
		return s + launchSuffix(res)
	case orchestrator.OutcomeUpToDate:
		return fmt.Sprintf("Version %s is up to date", displayVersion(res.LocalVersion)) + launchSuffix(res)
	case orchestrator.OutcomeDownloadAbandoned:
		return fmt.Sprintf("Update to %s abandoned, started the installed version", displayVersion(res.RemoteVersion)) + launchSuffix(res)
	case orchestrator.OutcomeLaunchFailed:
		return "Could not start FFXIV GameTime"
	case orchestrator.OutcomeUpdateFailed:
		return "Update failed, FFXIV GameTime was not started"
	default:
		return string(res.Outcome)
	}
}

func launchSuffix(res orchestrator.Result) string {
	switch {
	case !res.Launched:
		return ""
	case res.ExitCode < 0:
		return "; application started"
	default:
		return fmt.Sprintf("; application exited with code %d", res.ExitCode)
	}
}

func outcomeStyle(o orchestrator.Outcome) lipgloss.Style {
	switch o {
	case orchestrator.OutcomeUpdated, orchestrator.OutcomeUpToDate:
		return lipgloss.NewStyle().Foreground(successColor)
	case orchestrator.OutcomeDownloadAbandoned:
		return lipgloss.NewStyle().Foreground(warnColor)
	default:
		return lipgloss.NewStyle().Foreground(failureColor)
	}
}

// printHistory lists recorded cycles, newest first.
func printHistory(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "No update cycles recorded yet.")
		return
	}
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	_, _ = fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-19s  %-18s  %-9s  %-9s  %s", "STARTED", "OUTCOME", "FROM", "TO", "DURATION")))
	for _, e := range entries {
		line := fmt.Sprintf("%-19s  %-18s  %-9s  %-9s  %s",
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			e.Outcome,
			displayVersion(e.LocalVersion),
			displayVersion(e.RemoteVersion),
			formatDuration(e.Duration()),
		)
		_, _ = fmt.Fprintln(w, outcomeStyle(orchestrator.Outcome(e.Outcome)).Render(line))
		if e.Error != "" {
			_, _ = fmt.Fprintln(w, lipgloss.NewStyle().Foreground(dimColor).Render(indent(wordwrap.String(e.Error, summaryWidth-4), "    ")))
		}
	}
}

func displayVersion(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		if secs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	if mins == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, mins)
}
