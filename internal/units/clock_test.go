package units

import (
	"testing"

	"github.com/banshee-data/integrity.report/internal/testutil"
)

func TestParseClockDecimal(t *testing.T) {
	got, err := ParseClock("3.5")
	testutil.AssertNoError(t, err)
	testutil.AssertInDelta(t, got, 3.5, 1e-9)

	got, err = ParseClock(" 12 ")
	testutil.AssertNoError(t, err)
	testutil.AssertInDelta(t, got, 12, 1e-9)
}

func TestParseClockHourMinute(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"3:30", 3.5},
		{"12:00", 12},
		{"1:15", 1.25},
		{"6:45", 6.75},
	}
	for _, tc := range tests {
		got, err := ParseClock(tc.in)
		testutil.AssertNoError(t, err)
		testutil.AssertInDelta(t, got, tc.want, 1e-9)
	}
}

func TestParseClockRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "0.5", "12.5", "13", "3:60", "3:-5", "noon", "3:xx"} {
		if _, err := ParseClock(in); err == nil {
			t.Errorf("ParseClock(%q): expected error", in)
		}
	}
}
