// Package orchestrator runs one update cycle: check the remote version,
// download and swap the binary when it changed, persist the new version,
// launch the application and clean up the staging area.
//
// A failed check, download or swap ends the cycle without launching. A
// staged file that cannot be read abandons the update and launches the
// installed binary. A failed settings write keeps the swapped binary and
// still launches.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	apperrors "gametime-updater/internal/errors"
	"gametime-updater/internal/logging"
	"gametime-updater/internal/update"

	"github.com/google/uuid"
)

// Stage is a step of the update cycle, reported to the progress display.
type Stage int

const (
	StageInit Stage = iota
	StageCheckingVersion
	StageDownloading
	StageSwapping
	StagePersistingVersion
	StageLaunching
	StageCleanup
)

func (s Stage) String() string {
	switch s {
	case StageInit:
		return "init"
	case StageCheckingVersion:
		return "checking-version"
	case StageDownloading:
		return "downloading"
	case StageSwapping:
		return "swapping"
	case StagePersistingVersion:
		return "persisting-version"
	case StageLaunching:
		return "launching"
	case StageCleanup:
		return "cleanup"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Outcome summarizes how a cycle ended.
type Outcome string

const (
	OutcomeUpToDate          Outcome = "up_to_date"
	OutcomeUpdated           Outcome = "updated"
	OutcomeDownloadAbandoned Outcome = "download_abandoned"
	OutcomeUpdateFailed      Outcome = "update_failed"
	OutcomeLaunchFailed      Outcome = "launch_failed"
)

// Reporter receives progress for display. Stop is called before the
// application starts so the child owns the terminal; it may be called more
// than once.
type Reporter interface {
	Stage(stage Stage, detail string)
	Progress(done, total int64)
	Stop()
}

// NopReporter discards every report.
type NopReporter struct{}

func (NopReporter) Stage(Stage, string)    {}
func (NopReporter) Progress(int64, int64) {}
func (NopReporter) Stop()                 {}

// VersionChecker fetches and compares the remote version.
type VersionChecker interface {
	Check(ctx context.Context, local string) (*update.CheckResult, error)
}

// BinaryApplier downloads and installs the replacement binary.
type BinaryApplier interface {
	DownloadTo(ctx context.Context, url, dest string) error
	ApplyStagedBinary(staged, target string) error
}

// SettingsStore is the part of the settings store the cycle needs.
type SettingsStore interface {
	AppVersion() string
	Save(newVersion string) error
}

// AppLauncher starts the managed application.
type AppLauncher interface {
	Launch(ctx context.Context) (int, error)
}

// Recorder persists finished cycles.
type Recorder interface {
	Record(ctx context.Context, res Result) error
}

// Result describes one finished cycle.
type Result struct {
	CycleID       string
	StartedAt     time.Time
	FinishedAt    time.Time
	LocalVersion  string
	RemoteVersion string
	Direction     update.Direction
	Outcome       Outcome
	Updated       bool
	Launched      bool
	ExitCode      int
	// Err is the most significant problem of the cycle, nil when clean. It
	// carries an internal/errors code.
	Err error
}

// ExitStatus is the updater's own exit status: 0 when the application was
// launched, 1 otherwise.
func (r Result) ExitStatus() int {
	if r.Launched {
		return 0
	}
	return 1
}

// Deps are the collaborators of a cycle.
type Deps struct {
	Checker  VersionChecker
	Applier  BinaryApplier
	Settings SettingsStore
	Launcher AppLauncher
	Staging  *update.Staging

	// BinaryURL is where the replacement executable is downloaded from.
	BinaryURL string
	// Target is the installed executable replaced by a swap.
	Target string
}

// Orchestrator sequences one update cycle.
type Orchestrator struct {
	deps     Deps
	reporter Reporter
	recorder Recorder
	now      func() time.Time
	newID    func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithReporter sets the progress reporter.
func WithReporter(r Reporter) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.reporter = r
		}
	}
}

// WithRecorder sets where finished cycles are recorded.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// New creates an orchestrator.
func New(deps Deps, opts ...Option) *Orchestrator {
	if deps.Staging == nil {
		deps.Staging = update.NewStaging("")
	}
	o := &Orchestrator{
		deps:     deps,
		reporter: NopReporter{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the cycle. It never panics on collaborator errors; the
// returned Result says what happened.
func (o *Orchestrator) Run(ctx context.Context) Result {
	res := Result{
		CycleID:      o.newID(),
		StartedAt:    o.now(),
		LocalVersion: o.deps.Settings.AppVersion(),
		Direction:    update.DirectionUnknown,
	}
	logging.SetPrefix(shortID(res.CycleID))
	defer logging.SetPrefix("")

	logging.Infof("update cycle %s started, installed version %q", res.CycleID, res.LocalVersion)

	o.update(ctx, &res)
	if res.Err == nil || !apperrors.CodeOf(res.Err).Fatal() {
		o.launch(ctx, &res)
	}
	o.reporter.Stop()
	o.cleanup()

	res.FinishedAt = o.now()
	logging.Infof("update cycle finished: %s in %s", res.Outcome, res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	o.record(ctx, res)
	return res
}

// update runs everything before the launch. A fatal error code left in
// res.Err stops the launch.
func (o *Orchestrator) update(ctx context.Context, res *Result) {
	o.reporter.Stage(StageInit, "Preparing staging area")
	if err := o.deps.Staging.Ensure(); err != nil {
		o.fail(res, apperrors.CodeStagingFailed, "prepare staging directory", err)
		return
	}

	o.reporter.Stage(StageCheckingVersion, "Checking for updates")
	check, err := o.deps.Checker.Check(ctx, res.LocalVersion)
	if err != nil {
		code := apperrors.CodeNetworkFailure
		if errors.Is(err, update.ErrStagingFailed) {
			code = apperrors.CodeStagingFailed
		}
		o.fail(res, code, "check remote version", err)
		return
	}
	res.RemoteVersion = check.Remote
	res.Direction = check.Direction

	if check.Remote == "" {
		logging.Warnf("remote version descriptor has no version marker; keeping installed version")
		res.Outcome = OutcomeUpToDate
		return
	}
	if !check.NeedsUpdate {
		logging.Infof("version %s is up to date", check.Local)
		res.Outcome = OutcomeUpToDate
		return
	}
	logging.Infof("update available: %q -> %q (%s)", check.Local, check.Remote, check.Direction)

	staged := o.deps.Staging.Path(filepath.Base(o.deps.Target))
	o.reporter.Stage(StageDownloading, "Downloading version "+check.Remote)
	if err := o.deps.Applier.DownloadTo(ctx, o.deps.BinaryURL, staged); err != nil {
		o.fail(res, apperrors.CodeNetworkFailure, "download update", err)
		return
	}
	if err := update.VerifyStaged(staged); err != nil {
		res.Outcome = OutcomeDownloadAbandoned
		res.Err = apperrors.New(apperrors.CodeDownloadAbandoned, "download failed", err)
		logging.Warnf("download failed: %v; launching installed version", err)
		return
	}

	o.reporter.Stage(StageSwapping, "Installing version "+check.Remote)
	if err := o.deps.Applier.ApplyStagedBinary(staged, o.deps.Target); err != nil {
		o.fail(res, apperrors.CodeSwapFailure, "install update", err)
		return
	}
	res.Updated = true
	res.Outcome = OutcomeUpdated
	logging.Infof("installed version %s to %s", check.Remote, o.deps.Target)

	o.reporter.Stage(StagePersistingVersion, "Saving settings")
	if err := o.deps.Settings.Save(check.Remote); err != nil {
		res.Err = err
		logging.Errorf("could not record version %s: %v", check.Remote, err)
	}
}

func (o *Orchestrator) launch(ctx context.Context, res *Result) {
	o.reporter.Stage(StageLaunching, "Starting application")
	o.reporter.Stop()

	logging.Infof("launching %s", o.deps.Target)
	code, err := o.deps.Launcher.Launch(ctx)
	if err != nil {
		res.Outcome = OutcomeLaunchFailed
		res.Err = apperrors.New(apperrors.CodeLaunchFailure, fmt.Sprintf("launch application: %v", err), err)
		logging.Errorf("%v", res.Err)
		return
	}
	res.Launched = true
	res.ExitCode = code
	if code < 0 {
		logging.Infof("application started, no exit code to report")
		return
	}
	logging.Infof("application exited with code %d", code)
}

func (o *Orchestrator) cleanup() {
	o.reporter.Stage(StageCleanup, "Cleaning up")
	n := o.deps.Staging.Purge()
	logging.Infof("staging directory %s removed (%d entries)", o.deps.Staging.Dir, n)
}

func (o *Orchestrator) record(ctx context.Context, res Result) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Record(ctx, res); err != nil {
		logging.Warnf("could not record update cycle: %v", err)
	}
}

func (o *Orchestrator) fail(res *Result, code apperrors.Code, action string, err error) {
	res.Outcome = OutcomeUpdateFailed
	res.Err = apperrors.New(code, fmt.Sprintf("%s: %v", action, err), err)
	logging.Errorf("%v; application will not be started", res.Err)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
