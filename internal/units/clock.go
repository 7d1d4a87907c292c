package units

import (
	"fmt"
	"strconv"
	"strings"
)

// Clock position bounds on the 12-hour dial used for circumferential
// defect location. 12:00 is top of pipe, 6:00 is bottom.
const (
	MinClock = 1.0
	MaxClock = 12.0
)

// ParseClock converts a vendor clock field to a decimal hour in [1,12].
// Accepted forms: decimal ("3.5") and hh:mm ("3:30"). Values outside
// the dial range are rejected.
func ParseClock(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty clock position")
	}

	var v float64
	if h, m, ok := strings.Cut(s, ":"); ok {
		hours, err := strconv.ParseFloat(h, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid clock position %q: %v", s, err)
		}
		minutes, err := strconv.ParseFloat(m, 64)
		if err != nil || minutes < 0 || minutes >= 60 {
			return 0, fmt.Errorf("invalid clock minutes in %q", s)
		}
		v = hours + minutes/60
	} else {
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid clock position %q: %v", s, err)
		}
		v = parsed
	}

	if v < MinClock || v > MaxClock {
		return 0, fmt.Errorf("clock position %g out of range [%g, %g]", v, MinClock, MaxClock)
	}
	return v, nil
}
