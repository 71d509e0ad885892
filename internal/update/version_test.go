package update

import (
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		local, remote string
		want          Direction
	}{
		{"identical", "1.0", "1.0", DirectionSame},
		{"minor bump", "1.0", "1.1", DirectionUpgrade},
		{"major bump with v prefix", "v1.9", "v2.0", DirectionUpgrade},
		{"downgrade", "1.1", "1.0", DirectionDowngrade},
		{"patch downgrade", "2.3.1", "2.3.0", DirectionDowngrade},
		{"default version", "0.0", "1.1", DirectionUpgrade},
		{"same value different spelling", "1.0", "1.0.0", DirectionUnknown},
		{"unparseable remote", "1.0", "latest", DirectionUnknown},
		{"empty remote", "1.0", "", DirectionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.local, tt.remote); got != tt.want {
				t.Errorf("Classify(%q, %q) = %s, want %s", tt.local, tt.remote, got, tt.want)
			}
		})
	}
}

func TestDirectionString(t *testing.T) {
	tests := []struct {
		d    Direction
		want string
	}{
		{DirectionSame, "same"},
		{DirectionUpgrade, "upgrade"},
		{DirectionDowngrade, "downgrade"},
		{DirectionUnknown, "unknown"},
	}
	for _, tt := range tests {
		if got := tt.d.String(); got != tt.want {
			t.Errorf("Direction(%d).String() = %q, want %q", tt.d, got, tt.want)
		}
	}
}
