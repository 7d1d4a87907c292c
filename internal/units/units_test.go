package units

import (
	"testing"

	"github.com/banshee-data/integrity.report/internal/testutil"
)

func TestToFeet(t *testing.T) {
	tests := []struct {
		value float64
		unit  string
		want  float64
	}{
		{100, Feet, 100},
		{100, Metres, 328.084},
		{1, Kilometres, 3280.84},
		{1, Miles, 5280},
		{42, "furlongs", 42}, // unknown unit passes through
	}
	for _, tc := range tests {
		testutil.AssertInDelta(t, ToFeet(tc.value, tc.unit), tc.want, 1e-6)
	}
}

func TestIsValidDistance(t *testing.T) {
	for _, unit := range ValidDistanceUnits {
		if !IsValidDistance(unit) {
			t.Errorf("IsValidDistance(%q) = false, want true", unit)
		}
	}
	for _, unit := range []string{"", "FT", "meters", "furlongs"} {
		if IsValidDistance(unit) {
			t.Errorf("IsValidDistance(%q) = true, want false", unit)
		}
	}
}
