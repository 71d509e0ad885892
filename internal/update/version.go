package update

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Direction describes how the remote version relates to the installed one.
// It is informational only; NeedsUpdate never consults it.
type Direction int

const (
	// DirectionSame means the strings are identical.
	DirectionSame Direction = iota
	// DirectionUpgrade means remote is a higher version.
	DirectionUpgrade
	// DirectionDowngrade means remote is a lower version.
	DirectionDowngrade
	// DirectionUnknown means the strings differ but cannot be ordered,
	// or they differ only in spelling ("1.0" vs "1.0.0").
	DirectionUnknown
)

// String returns the string representation of a Direction.
func (d Direction) String() string {
	switch d {
	case DirectionSame:
		return "same"
	case DirectionUpgrade:
		return "upgrade"
	case DirectionDowngrade:
		return "downgrade"
	default:
		return "unknown"
	}
}

// Classify orders local and remote when both parse as versions.
// Accepts loose forms such as "1.1" or "v2".
func Classify(local, remote string) Direction {
	if local == remote {
		return DirectionSame
	}
	lv, err := semver.NewVersion(strings.TrimSpace(local))
	if err != nil {
		return DirectionUnknown
	}
	rv, err := semver.NewVersion(strings.TrimSpace(remote))
	if err != nil {
		return DirectionUnknown
	}
	switch rv.Compare(lv) {
	case 1:
		return DirectionUpgrade
	case -1:
		return DirectionDowngrade
	default:
		return DirectionUnknown
	}
}
