// Package config loads the updater's own configuration: where to look for
// updates, which executable to launch and where local state lives.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "gametime-updater/internal/errors"
	"gametime-updater/internal/launcher"
	"gametime-updater/internal/update"

	"github.com/spf13/viper"
)

const (
	KeyVersionURL      = "update.version-url"
	KeyBinaryURL       = "update.binary-url"
	KeyUserAgent       = "update.user-agent"
	KeyCheckTimeout    = "update.check-timeout"
	KeyDownloadTimeout = "update.download-timeout"

	KeyExecutable = "app.executable"
	KeyArgs       = "app.args"
	KeyAppDir     = "app.dir"
	KeyWaitPolicy = "app.wait-policy"

	KeyStagingDir     = "staging.dir"
	KeyDescriptorFile = "staging.descriptor-file"

	KeySettingsPath   = "settings.path"
	KeyHistoryEnabled = "history.enabled"
	KeyHistoryPath    = "history.path"
	KeyLogPath        = "log.path"
	KeyLogEcho        = "log.echo"
	KeyProgress       = "ui.progress"
)

const (
	// FileName is the configuration file looked up in the working directory
	// and in the user config directory.
	FileName = "updater.yaml"
	// DirName is the directory under the user config dir.
	DirName = "ffxiv-gametime"
	// DefaultDescriptorFile is the staged copy of the remote version descriptor.
	DefaultDescriptorFile = "ffxiv-gametime.version"

	envPrefix = "GTU"
)

// Config is the typed view of the merged configuration. Empty paths select
// the per-user default chosen by the owning package.
type Config struct {
	Update   UpdateConfig   `mapstructure:"update"`
	App      AppConfig      `mapstructure:"app"`
	Staging  StagingConfig  `mapstructure:"staging"`
	Settings SettingsConfig `mapstructure:"settings"`
	History  HistoryConfig  `mapstructure:"history"`
	Log      LogConfig      `mapstructure:"log"`
	UI       UIConfig       `mapstructure:"ui"`

	// Files lists the configuration files that were merged, lowest
	// precedence first.
	Files []string `mapstructure:"-"`
}

type UpdateConfig struct {
	VersionURL      string        `mapstructure:"version-url"`
	BinaryURL       string        `mapstructure:"binary-url"`
	UserAgent       string        `mapstructure:"user-agent"`
	CheckTimeout    time.Duration `mapstructure:"check-timeout"`
	DownloadTimeout time.Duration `mapstructure:"download-timeout"`
}

type AppConfig struct {
	Executable string   `mapstructure:"executable"`
	Args       []string `mapstructure:"args"`
	Dir        string   `mapstructure:"dir"`
	WaitPolicy string   `mapstructure:"wait-policy"`
}

type StagingConfig struct {
	Dir            string `mapstructure:"dir"`
	DescriptorFile string `mapstructure:"descriptor-file"`
}

type SettingsConfig struct {
	Path string `mapstructure:"path"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Path string `mapstructure:"path"`
	Echo bool   `mapstructure:"echo"`
}

type UIConfig struct {
	Progress bool `mapstructure:"progress"`
}

// Policy returns the parsed wait policy. Validate has already rejected
// unknown values, so the error is only possible on an unvalidated Config.
func (c *Config) Policy() (launcher.Policy, error) {
	return launcher.ParsePolicy(c.App.WaitPolicy)
}

type loadSettings struct {
	workingDir     string
	configFile     string
	userConfigPath string
	overrides      map[string]any
}

// Option configures Load behaviour. Useful for tests to override paths.
type Option func(*loadSettings)

// WithWorkingDir overrides the directory searched for updater.yaml.
func WithWorkingDir(dir string) Option {
	return func(cfg *loadSettings) {
		cfg.workingDir = dir
	}
}

// WithConfigFile loads exactly this file instead of the discovered ones.
// Unlike discovered files it must exist.
func WithConfigFile(path string) Option {
	return func(cfg *loadSettings) {
		cfg.configFile = path
	}
}

// WithUserConfig overrides the user config path.
func WithUserConfig(path string) Option {
	return func(cfg *loadSettings) {
		cfg.userConfigPath = path
	}
}

// WithOverrides injects values typically coming from CLI flags. They win
// over every other source.
func WithOverrides(overrides map[string]any) Option {
	return func(cfg *loadSettings) {
		if cfg.overrides == nil {
			cfg.overrides = map[string]any{}
		}
		for k, v := range overrides {
			cfg.overrides[k] = v
		}
	}
}

// Load builds the configuration using the precedence:
// defaults < user config < working directory config < environment < overrides.
// An explicit config file replaces both discovered files.
func Load(opts ...Option) (*Config, error) {
	settings := loadSettings{}
	for _, opt := range opts {
		opt(&settings)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	files, err := configFiles(&settings)
	if err != nil {
		return nil, configError(err)
	}
	var merged []string
	for _, f := range files {
		ok, err := mergeConfigFile(v, f.path, f.required)
		if err != nil {
			return nil, configError(err)
		}
		if ok {
			merged = append(merged, f.path)
		}
	}

	for k, val := range settings.overrides {
		v.Set(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configError(fmt.Errorf("decode configuration: %w", err))
	}
	cfg.Files = merged
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the update cycle cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if err := checkURL(c.Update.VersionURL); err != nil {
		problems = append(problems, fmt.Sprintf("%s: %v", KeyVersionURL, err))
	}
	if err := checkURL(c.Update.BinaryURL); err != nil {
		problems = append(problems, fmt.Sprintf("%s: %v", KeyBinaryURL, err))
	}
	if c.Update.CheckTimeout < 0 {
		problems = append(problems, fmt.Sprintf("%s must not be negative", KeyCheckTimeout))
	}
	if c.Update.DownloadTimeout < 0 {
		problems = append(problems, fmt.Sprintf("%s must not be negative", KeyDownloadTimeout))
	}
	if strings.TrimSpace(c.App.Executable) == "" {
		problems = append(problems, fmt.Sprintf("%s is empty", KeyExecutable))
	}
	if _, err := c.Policy(); err != nil {
		problems = append(problems, fmt.Sprintf("%s: %v", KeyWaitPolicy, err))
	}
	if strings.TrimSpace(c.Staging.Dir) == "" {
		problems = append(problems, fmt.Sprintf("%s is empty", KeyStagingDir))
	}
	if len(problems) == 0 {
		return nil
	}
	return apperrors.New(apperrors.CodeConfigurationError,
		"invalid configuration: "+strings.Join(problems, "; "), nil)
}

func checkURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q is not http or https", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("has no host")
	}
	return nil
}

func configError(err error) error {
	return apperrors.New(apperrors.CodeConfigurationError, err.Error(), err)
}

type configFile struct {
	path     string
	required bool
}

func configFiles(settings *loadSettings) ([]configFile, error) {
	if explicit := strings.TrimSpace(settings.configFile); explicit != "" {
		return []configFile{{path: explicit, required: true}}, nil
	}

	workingDir := strings.TrimSpace(settings.workingDir)
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determine working directory: %w", err)
		}
		workingDir = wd
	}

	userConfigPath := strings.TrimSpace(settings.userConfigPath)
	if userConfigPath == "" {
		path, err := defaultUserConfigPath()
		if err != nil {
			return nil, err
		}
		userConfigPath = path
	}

	return []configFile{
		{path: userConfigPath},
		{path: filepath.Join(workingDir, FileName)},
	}, nil
}

// mergeConfigFile merges path into v and reports whether anything was read.
func mergeConfigFile(v *viper.Viper, path string, required bool) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		if required {
			return false, fmt.Errorf("config file %s does not exist", path)
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("config path %s is a directory", path)
	}
	//nolint:gosec // G304: Config loader intentionally reads user and working-dir config files
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

func defaultUserConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("determine user config dir: %w", err)
	}
	return filepath.Join(dir, DirName, FileName), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyVersionURL, update.DefaultVersionURL)
	v.SetDefault(KeyBinaryURL, update.DefaultBinaryURL)
	v.SetDefault(KeyUserAgent, update.DefaultUserAgent)
	v.SetDefault(KeyCheckTimeout, update.DefaultTimeout)
	v.SetDefault(KeyDownloadTimeout, update.DefaultDownloadTimeout)

	v.SetDefault(KeyExecutable, launcher.DefaultExecutable)
	v.SetDefault(KeyArgs, []string{})
	v.SetDefault(KeyAppDir, "")
	v.SetDefault(KeyWaitPolicy, string(launcher.PolicyWait))

	v.SetDefault(KeyStagingDir, update.DefaultStagingDir)
	v.SetDefault(KeyDescriptorFile, DefaultDescriptorFile)

	v.SetDefault(KeySettingsPath, "")
	v.SetDefault(KeyHistoryEnabled, true)
	v.SetDefault(KeyHistoryPath, "")
	v.SetDefault(KeyLogPath, "")
	v.SetDefault(KeyLogEcho, true)
	v.SetDefault(KeyProgress, true)
}
