package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	apperrors "gametime-updater/internal/errors"
	"gametime-updater/internal/logging"
)

const (
	// DirName is the per-user directory holding the settings file.
	DirName = "ffxiv-gametime"
	// FileName is the settings file name.
	FileName = "settings.cfg"
)

// DefaultPath returns <UserConfigDir>/ffxiv-gametime/settings.cfg, which is
// %APPDATA%\ffxiv-gametime\settings.cfg on Windows.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("determine user config dir: %w", err)
	}
	return filepath.Join(dir, DirName, FileName), nil
}

// Load reads and validates the settings file at path.
// Validation failures match ErrInvalid and carry a *FieldError.
func Load(path string) (Settings, error) {
	//nolint:gosec // G304: settings path comes from launcher configuration
	f, err := os.Open(path)
	if err != nil {
		return Settings{}, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return Settings{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Settings{}, fmt.Errorf("settings path %s is a directory", path)
	}

	values, err := parse(f)
	if err != nil {
		return Settings{}, err
	}
	if err := validate(values); err != nil {
		return Settings{}, err
	}
	return decode(values)
}

// LoadResult describes how LoadOrDefault obtained its settings.
type LoadResult struct {
	// Fallback is true when defaults replaced a missing or invalid file.
	Fallback bool
	// Reason is why the file was rejected. Nil unless Fallback.
	Reason error
	// WriteErr is set when the default file could not be written.
	WriteErr error
}

// Store holds the current settings and persists them to a single file.
// It is not safe for concurrent use.
type Store struct {
	path    string
	current Settings
}

// LoadOrDefault loads the settings at path. When the file is absent,
// unreadable or invalid it writes a default file and continues with the
// defaults. It never fails: problems are logged and reported in LoadResult.
func LoadOrDefault(path string) (*Store, LoadResult) {
	logging.Infof("loading settings from %s", path)
	s, err := Load(path)
	if err == nil {
		logging.Infof("settings loaded (version %s)", s.AppVersion)
		return &Store{path: path, current: s}, LoadResult{}
	}

	reason := apperrors.New(apperrors.CodeConfigCorrupt, describeLoadFailure(path, err), err)
	logging.Warnf("%v; writing defaults", reason)

	st := &Store{path: path, current: Defaults()}
	res := LoadResult{Fallback: true, Reason: reason}
	if werr := st.write(st.current); werr != nil {
		res.WriteErr = apperrors.New(apperrors.CodeConfigWriteFailed, fmt.Sprintf("write default settings: %v", werr), werr)
		logging.Errorf("%v; continuing with in-memory defaults", res.WriteErr)
		return st, res
	}
	logging.Infof("default settings written to %s", path)
	return st, res
}

func describeLoadFailure(path string, err error) string {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Sprintf("settings file %s does not exist", path)
	case errors.Is(err, ErrInvalid):
		return fmt.Sprintf("settings file %s is invalid: %v", path, err)
	default:
		return fmt.Sprintf("settings file %s is unreadable: %v", path, err)
	}
}

// NewStore wraps already loaded settings. Mostly useful in tests.
func NewStore(path string, s Settings) *Store {
	return &Store{path: path, current: s}
}

// Path returns the settings file location.
func (st *Store) Path() string { return st.path }

// Snapshot returns a copy of the current settings.
func (st *Store) Snapshot() Settings { return st.current }

// Save rewrites the whole file with newVersion and every other field as
// currently held. In-memory state changes only when the write succeeds.
func (st *Store) Save(newVersion string) error {
	next := st.current
	next.AppVersion = newVersion
	if err := st.write(next); err != nil {
		return apperrors.New(apperrors.CodeConfigWriteFailed, fmt.Sprintf("save settings to %s: %v", st.path, err), err)
	}
	st.current = next
	logging.Infof("settings saved with version %s", newVersion)
	return nil
}

// write replaces the file atomically: temp file in the same directory, then rename.
func (st *Store) write(s Settings) error {
	dir := filepath.Dir(st.path)
	//nolint:gosec // G301: user data directory needs standard permissions
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if err := encode(tmp, s); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmpPath, st.path); err != nil {
		cleanup()
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// AppVersion returns the installed version tag, the baseline for update checks.
func (st *Store) AppVersion() string { return st.current.AppVersion }

func (st *Store) AppFocus() string             { return st.current.AppFocus }
func (st *Store) KeybindAntiAfkExec() string   { return st.current.KeybindAntiAfkExec }
func (st *Store) KeybindAntiAfkAction() string { return st.current.KeybindAntiAfkAction }
func (st *Store) KeybindMacroExec() string     { return st.current.KeybindMacroExec }
func (st *Store) KeybindMacroMousePos() string { return st.current.KeybindMacroMousePos }
func (st *Store) KeybindClose() string         { return st.current.KeybindClose }
func (st *Store) KeybindConfirm() string       { return st.current.KeybindConfirm }
func (st *Store) GearMod() bool                { return st.current.GearMod }
func (st *Store) GearFromX() int               { return st.current.GearFromX }
func (st *Store) GearFromY() int               { return st.current.GearFromY }
func (st *Store) GearOffsetX() int             { return st.current.GearOffsetX }
func (st *Store) GearOffsetY() int             { return st.current.GearOffsetY }
func (st *Store) CraftFavFile() string         { return st.current.CraftFavFile }
func (st *Store) SetUpFavFile() string         { return st.current.SetUpFavFile }
func (st *Store) FoodFavFile() string          { return st.current.FoodFavFile }
func (st *Store) RepairFavFile() string        { return st.current.RepairFavFile }
func (st *Store) MateriaFavFile() string       { return st.current.MateriaFavFile }
