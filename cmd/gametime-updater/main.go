package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"gametime-updater/internal/config"
	apperrors "gametime-updater/internal/errors"
	"gametime-updater/internal/history"
	"gametime-updater/internal/launcher"
	"gametime-updater/internal/logging"
	"gametime-updater/internal/orchestrator"
	"gametime-updater/internal/settings"
	"gametime-updater/internal/update"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], runEnv{
		stdout: os.Stdout,
		stderr: os.Stderr,
		newReporter: func(progress bool) orchestrator.Reporter {
			return newReporter(progress, os.Stdout)
		},
	})
	stop()
	os.Exit(code)
}

// runEnv holds what run needs from the process, so tests can replace it.
type runEnv struct {
	stdout      io.Writer
	stderr      io.Writer
	newReporter func(progress bool) orchestrator.Reporter
	configOpts  []config.Option
}

type runtimeFlags struct {
	configFile *string
	noProgress *bool
	history    *int
	version    *bool
}

func run(ctx context.Context, args []string, env runEnv) int {
	fs := flag.NewFlagSet("gametime-updater", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	flags := runtimeFlags{
		configFile: fs.String("config", "", "Path to an updater.yaml to use instead of the discovered ones"),
		noProgress: fs.Bool("no-progress", false, "Print plain stage lines instead of the progress display"),
		history:    fs.Int("history", 0, "Print the last n update cycles and exit (0 prints all)"),
		version:    fs.Bool("version", false, "Print version information and exit"),
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *flags.version {
		printVersion(env.stdout)
		return 0
	}

	visited := map[string]struct{}{}
	fs.Visit(func(f *flag.Flag) {
		visited[f.Name] = struct{}{}
	})

	cfg, err := config.Load(append(env.configOpts, configOptions(flags, visited)...)...)
	if err != nil {
		_, _ = fmt.Fprintf(env.stderr, "Error loading configuration: %v\n", err)
		return 1
	}

	if _, ok := visited["history"]; ok {
		if err := showHistory(ctx, cfg, *flags.history, env.stdout); err != nil {
			_, _ = fmt.Fprintf(env.stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	return runCycle(ctx, cfg, env)
}

func configOptions(flags runtimeFlags, visited map[string]struct{}) []config.Option {
	var opts []config.Option
	if _, ok := visited["config"]; ok {
		opts = append(opts, config.WithConfigFile(*flags.configFile))
	}
	if _, ok := visited["no-progress"]; ok {
		opts = append(opts, config.WithOverrides(map[string]any{config.KeyProgress: !*flags.noProgress}))
	}
	return opts
}

func runCycle(ctx context.Context, cfg *config.Config, env runEnv) int {
	reporter := env.newReporter(cfg.UI.Progress)
	defer reporter.Stop()

	// The progress display owns the terminal, so log lines only go to the file.
	var echo io.Writer
	if _, interactive := reporter.(*ProgressDisplay); cfg.Log.Echo && !interactive {
		echo = env.stderr
	}
	if err := logging.Init(cfg.Log.Path, echo); err != nil {
		_, _ = fmt.Fprintf(env.stderr, "Warning: %v\n", err)
	}
	defer logging.Close()

	logging.Infof("gametime-updater %s", Version)
	for _, f := range cfg.Files {
		logging.Infof("configuration loaded from %s", f)
	}

	store, loadRes := loadSettings(cfg)

	policy, err := cfg.Policy()
	if err != nil {
		_, _ = fmt.Fprintf(env.stderr, "Error: %v\n", err)
		return 1
	}

	staging := update.NewStaging(cfg.Staging.Dir)
	target := targetPath(cfg)

	app := launcher.New(target, cfg.App.Args...)
	app.Dir = cfg.App.Dir
	app.Policy = policy

	deps := orchestrator.Deps{
		Checker: update.NewChecker(cfg.Update.VersionURL,
			update.WithTimeout(cfg.Update.CheckTimeout),
			update.WithUserAgent(cfg.Update.UserAgent),
			update.WithDescriptorPath(staging.Path(cfg.Staging.DescriptorFile)),
		),
		Applier: update.NewApplier(
			update.WithDownloadTimeout(cfg.Update.DownloadTimeout),
			update.WithApplierUserAgent(cfg.Update.UserAgent),
			update.WithProgress(reporter.Progress),
		),
		Settings:  store,
		Launcher:  app,
		Staging:   staging,
		BinaryURL: cfg.Update.BinaryURL,
		Target:    target,
	}

	opts := []orchestrator.Option{orchestrator.WithReporter(reporter)}
	if cfg.History.Enabled {
		if j := openJournal(ctx, cfg); j != nil {
			defer func() { _ = j.Close() }()
			opts = append(opts, orchestrator.WithRecorder(historyRecorder{journal: j}))
		}
	}

	res := orchestrator.New(deps, opts...).Run(ctx)
	printSummary(env.stdout, res, loadRes)
	if p := logging.Path(); p != "" && res.Err != nil {
		_, _ = fmt.Fprintf(env.stdout, "Details in %s\n", p)
	}
	return res.ExitStatus()
}

// loadSettings opens the settings file. When no location can be determined
// the cycle runs on in-memory defaults and the version save fails later.
func loadSettings(cfg *config.Config) (*settings.Store, settings.LoadResult) {
	path := strings.TrimSpace(cfg.Settings.Path)
	if path == "" {
		p, err := settings.DefaultPath()
		if err != nil {
			logging.Errorf("locate settings: %v; using defaults", err)
			return settings.NewStore("", settings.Defaults()), settings.LoadResult{
				Fallback: true,
				Reason:   err,
				WriteErr: apperrors.New(apperrors.CodeConfigWriteFailed, "no settings location", err),
			}
		}
		path = p
	}
	return settings.LoadOrDefault(path)
}

// openJournal opens the history journal. Failures are logged and disable
// recording for this run.
func openJournal(ctx context.Context, cfg *config.Config) *history.Journal {
	path, err := historyPath(cfg)
	if err != nil {
		logging.Warnf("history disabled: %v", err)
		return nil
	}
	j, err := history.Open(ctx, path)
	if err != nil {
		logging.Warnf("history disabled: %v", err)
		return nil
	}
	return j
}

// targetPath is the installed executable as an absolute path. A relative
// app.executable is taken from app.dir, or the working directory.
func targetPath(cfg *config.Config) string {
	exe := strings.TrimSpace(cfg.App.Executable)
	if filepath.IsAbs(exe) {
		return exe
	}
	if cfg.App.Dir != "" {
		exe = filepath.Join(cfg.App.Dir, exe)
	}
	abs, err := filepath.Abs(exe)
	if err != nil {
		return exe
	}
	return abs
}
