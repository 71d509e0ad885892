package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"gametime-updater/internal/orchestrator"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Colors - a nice purple/magenta theme
var (
	primaryColor   = lipgloss.Color("#7D56F4")
	secondaryColor = lipgloss.Color("#FF79C6")
	dimColor       = lipgloss.Color("#6272A4")
	textColor      = lipgloss.Color("#F8F8F2")
	successColor   = lipgloss.Color("#50FA7B")
	failureColor   = lipgloss.Color("#FF5555")
	warnColor      = lipgloss.Color("#F1FA8C")
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	statusStyle = lipgloss.NewStyle().
			Foreground(textColor)

	countStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	containerStyle = lipgloss.NewStyle().
			Padding(1, 2)
)

const title = "FFXIV GameTime"

// progressModel is the bubbletea model for the update screen
type progressModel struct {
	spinner  spinner.Model
	progress progress.Model

	detail     string
	done       int64
	total      int64
	isProgress bool // true when showing the download bar instead of the spinner

	ready    bool
	finished bool

	// Channel to receive updates from the orchestrator goroutine
	updates chan progressUpdate
}

type progressUpdate struct {
	detail     string
	done       int64
	total      int64
	isProgress bool
	finished   bool
}

type updateMsg progressUpdate

func newProgressModel() *progressModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = spinnerStyle

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &progressModel{
		spinner:  s,
		progress: p,
		detail:   "Starting",
		updates:  make(chan progressUpdate, 16),
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.waitForUpdate(),
	)
}

func (m *progressModel) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		return updateMsg(<-m.updates)
	}
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		return m, nil

	case updateMsg:
		if msg.finished {
			m.finished = true
			return m, tea.Quit
		}
		if msg.isProgress {
			m.done = msg.done
			m.total = msg.total
		} else {
			m.detail = msg.detail
		}
		m.isProgress = msg.isProgress

		var cmds []tea.Cmd
		if m.isProgress && m.total > 0 {
			cmds = append(cmds, m.progress.SetPercent(float64(m.done)/float64(m.total)))
		}
		cmds = append(cmds, m.waitForUpdate())
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		updated, cmd := m.progress.Update(msg)
		m.progress = updated.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m *progressModel) View() string {
	if !m.ready || m.finished {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	if m.isProgress && m.total > 0 {
		b.WriteString(m.progress.View())
		b.WriteString("\n")
		b.WriteString(countStyle.Render(fmt.Sprintf("%s %s / %s", m.detail, formatBytes(m.done), formatBytes(m.total))))
	} else {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(statusStyle.Render(m.detail))
		if m.isProgress {
			b.WriteString(countStyle.Render(" " + formatBytes(m.done)))
		}
	}

	return containerStyle.Render(b.String())
}

// Send updates to the model
func (m *progressModel) sendUpdate(update progressUpdate) {
	select {
	case m.updates <- update:
	default:
		// Drop if channel is full
	}
}

// ProgressDisplay wraps the bubbletea program showing the update cycle.
type ProgressDisplay struct {
	program *tea.Program
	model   *progressModel
	out     io.Writer
	done    chan struct{}
	mu      sync.Mutex
	stopped bool
}

// NewProgressDisplay starts the display on w.
func NewProgressDisplay(w io.Writer) *ProgressDisplay {
	model := newProgressModel()

	// Inline mode, no input: the launched application needs the keyboard.
	program := tea.NewProgram(
		model,
		tea.WithOutput(w),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)

	d := &ProgressDisplay{
		program: program,
		model:   model,
		out:     w,
		done:    make(chan struct{}),
	}

	go func() {
		_, _ = program.Run()
		close(d.done)
	}()

	// Give the program a moment to start
	time.Sleep(10 * time.Millisecond)

	return d
}

// Stage implements orchestrator.Reporter.
func (d *ProgressDisplay) Stage(stage orchestrator.Stage, detail string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if strings.TrimSpace(detail) == "" {
		detail = stageLabel(stage)
	}
	d.model.sendUpdate(progressUpdate{detail: detail})
}

// Progress implements orchestrator.Reporter.
func (d *ProgressDisplay) Progress(done, total int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.model.sendUpdate(progressUpdate{done: done, total: total, isProgress: true})
}

// Stop ends the display and releases the terminal. Safe to call more than once.
func (d *ProgressDisplay) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	// The done signal must not be dropped, so block until the model takes it.
	select {
	case d.model.updates <- progressUpdate{finished: true}:
	case <-d.done:
	case <-time.After(500 * time.Millisecond):
	}

	select {
	case <-d.done:
	case <-time.After(500 * time.Millisecond):
		d.program.Kill()
	}

	_, _ = fmt.Fprint(d.out, "\r\033[K")
}

func stageLabel(stage orchestrator.Stage) string {
	switch stage {
	case orchestrator.StageInit:
		return "Initializing"
	case orchestrator.StageCheckingVersion:
		return "Checking for updates"
	case orchestrator.StageDownloading:
		return "Downloading"
	case orchestrator.StageSwapping:
		return "Installing"
	case orchestrator.StagePersistingVersion:
		return "Saving settings"
	case orchestrator.StageLaunching:
		return "Starting FFXIV GameTime"
	case orchestrator.StageCleanup:
		return "Cleaning up"
	default:
		return "Working"
	}
}

// formatBytes renders a byte count with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
