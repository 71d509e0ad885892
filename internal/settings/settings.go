// Package settings owns the application settings file shared by the updater
// and the main application.
//
// The file is a flat list of key=value lines under a one-line comment header.
// A file is valid when app.version is non-empty and the four gear coordinates
// parse as integers; anything else may be blank or missing. Invalid or missing
// files are replaced by defaults, never surfaced as fatal errors.
package settings

import (
	"errors"
	"fmt"
)

// Keys as they appear in the settings file, in file order.
const (
	KeyAppVersion           = "app.version"
	KeyAppFocus             = "app.focus"
	KeyKeybindAntiAfkExec   = "keybind.antiafk.exec"
	KeyKeybindAntiAfkAction = "keybind.antiafk.action"
	KeyKeybindMacroExec     = "keybind.macro.exec"
	KeyKeybindMacroMousePos = "keybind.macro.mousepos"
	KeyKeybindClose         = "keybind.close"
	KeyKeybindConfirm       = "keybind.confirm"
	KeyGearMod              = "gear.mod"
	KeyGearFromX            = "gear.from.x"
	KeyGearFromY            = "gear.from.y"
	KeyGearOffsetX          = "gear.offset.x"
	KeyGearOffsetY          = "gear.offset.y"
	KeyCraftFavFile         = "craft.fav.file"
	KeySetUpFavFile         = "set.up.fav.file"
	KeyFoodFavFile          = "food.fav.file"
	KeyRepairFavFile        = "repair.fav.file"
	KeyMateriaFavFile       = "materia.fav.file"
)

// orderedKeys is the order keys are written in.
var orderedKeys = []string{
	KeyAppVersion,
	KeyAppFocus,
	KeyKeybindAntiAfkExec,
	KeyKeybindAntiAfkAction,
	KeyKeybindMacroExec,
	KeyKeybindMacroMousePos,
	KeyKeybindClose,
	KeyKeybindConfirm,
	KeyGearMod,
	KeyGearFromX,
	KeyGearFromY,
	KeyGearOffsetX,
	KeyGearOffsetY,
	KeyCraftFavFile,
	KeySetUpFavFile,
	KeyFoodFavFile,
	KeyRepairFavFile,
	KeyMateriaFavFile,
}

// integerKeys must be present and parse as integers for a file to be valid.
var integerKeys = []string{KeyGearFromX, KeyGearFromY, KeyGearOffsetX, KeyGearOffsetY}

// Header is the comment line written at the top of the file.
const Header = "### FFXIV GameTime - Fichier de configuration ###"

// DefaultVersion is the version recorded when no valid settings exist.
const DefaultVersion = "0.0"

// Settings is the typed content of the settings file.
type Settings struct {
	AppVersion           string `settings:"app.version"`
	AppFocus             string `settings:"app.focus"`
	KeybindAntiAfkExec   string `settings:"keybind.antiafk.exec"`
	KeybindAntiAfkAction string `settings:"keybind.antiafk.action"`
	KeybindMacroExec     string `settings:"keybind.macro.exec"`
	KeybindMacroMousePos string `settings:"keybind.macro.mousepos"`
	KeybindClose         string `settings:"keybind.close"`
	KeybindConfirm       string `settings:"keybind.confirm"`
	GearMod              bool   `settings:"gear.mod"`
	GearFromX            int    `settings:"gear.from.x"`
	GearFromY            int    `settings:"gear.from.y"`
	GearOffsetX          int    `settings:"gear.offset.x"`
	GearOffsetY          int    `settings:"gear.offset.y"`
	CraftFavFile         string `settings:"craft.fav.file"`
	SetUpFavFile         string `settings:"set.up.fav.file"`
	FoodFavFile          string `settings:"food.fav.file"`
	RepairFavFile        string `settings:"repair.fav.file"`
	MateriaFavFile       string `settings:"materia.fav.file"`
}

// Defaults returns the settings written when the file is missing or invalid.
func Defaults() Settings {
	return Settings{
		AppVersion:           DefaultVersion,
		AppFocus:             "Final Fantasy XIV",
		KeybindAntiAfkExec:   "F5",
		KeybindAntiAfkAction: "Espace",
		KeybindMacroExec:     "F6",
		KeybindMacroMousePos: "F7",
		KeybindClose:         "Echap",
		KeybindConfirm:       "Num 0",
		GearMod:              false,
		GearFromX:            1706,
		GearFromY:            897,
		GearOffsetX:          18,
		GearOffsetY:          6,
	}
}

// ErrInvalid is matched by every validation failure.
var ErrInvalid = errors.New("invalid settings")

// FieldProblem describes why a field failed validation.
type FieldProblem int

const (
	// FieldMissing means the key is absent or blank.
	FieldMissing FieldProblem = iota
	// FieldNotInteger means the value does not parse as an integer.
	FieldNotInteger
)

// FieldError reports the first field that failed validation.
type FieldError struct {
	Key     string
	Value   string
	Problem FieldProblem
}

func (e *FieldError) Error() string {
	switch e.Problem {
	case FieldNotInteger:
		return fmt.Sprintf("settings field %s: %q is not an integer", e.Key, e.Value)
	default:
		return fmt.Sprintf("settings field %s is missing", e.Key)
	}
}

// Is makes errors.Is(err, ErrInvalid) true for any FieldError.
func (e *FieldError) Is(target error) bool {
	return target == ErrInvalid
}
