package ili

import (
	"fmt"
	"sort"
)

// Corrector maps a raw position in run A's coordinate frame to the
// equivalent position in run B's frame. It is a piecewise-linear
// function through the matched landmark coordinates, sorted by the
// run-A position; outside the reference span it extrapolates linearly
// with the slope of the nearest boundary segment, because real defects
// sit before the first weld and after the last one.
//
// A Corrector is immutable once built. Correct is a pure function.
type Corrector struct {
	xs []float64 // run-A positions, strictly increasing
	ys []float64 // run-B positions
}

// NewCorrector builds a corrector from matched landmark pairs. Pairs
// sharing the same run-A position are collapsed to the mean of their
// run-B positions. Fewer than two distinct reference points is a
// construction error.
func NewCorrector(pairs []MatchedPair) (*Corrector, error) {
	if len(pairs) < 2 {
		return nil, fmt.Errorf("corrector: %w (got %d)", ErrInsufficientReferencePoints, len(pairs))
	}

	sorted := make([]MatchedPair, len(pairs))
	copy(sorted, pairs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PositionA < sorted[j].PositionA })

	var xs, ys []float64
	for _, p := range sorted {
		if len(xs) > 0 && p.PositionA == xs[len(xs)-1] {
			// Duplicate run-A coordinate: average the targets.
			ys[len(ys)-1] = (ys[len(ys)-1] + p.PositionB) / 2
			continue
		}
		xs = append(xs, p.PositionA)
		ys = append(ys, p.PositionB)
	}
	if len(xs) < 2 {
		return nil, fmt.Errorf("corrector: %w (only %d distinct reference positions)",
			ErrInsufficientReferencePoints, len(xs))
	}

	return &Corrector{xs: xs, ys: ys}, nil
}

// Correct maps a run-A position into run B's coordinate frame.
func (c *Corrector) Correct(pos float64) float64 {
	n := len(c.xs)
	switch {
	case pos <= c.xs[0]:
		return c.ys[0] + c.slope(0)*(pos-c.xs[0])
	case pos >= c.xs[n-1]:
		return c.ys[n-1] + c.slope(n-2)*(pos-c.xs[n-1])
	}

	// First segment whose right endpoint is at or beyond pos.
	k := sort.SearchFloat64s(c.xs, pos)
	if c.xs[k] == pos {
		return c.ys[k]
	}
	return c.ys[k-1] + c.slope(k-1)*(pos-c.xs[k-1])
}

// IsExtrapolated reports whether pos falls outside the span of matched
// reference points, meaning Correct extrapolated rather than
// interpolated.
func (c *Corrector) IsExtrapolated(pos float64) bool {
	return pos < c.xs[0] || pos > c.xs[len(c.xs)-1]
}

// Span returns the run-A coordinate range covered by the reference
// points.
func (c *Corrector) Span() (lo, hi float64) {
	return c.xs[0], c.xs[len(c.xs)-1]
}

// slope returns the gradient of segment k (between xs[k] and xs[k+1]).
// NewCorrector guarantees xs are strictly increasing, so the divisor is
// never zero.
func (c *Corrector) slope(k int) float64 {
	return (c.ys[k+1] - c.ys[k]) / (c.xs[k+1] - c.xs[k])
}

// ApplyCorrection returns a copy of defects with corrected positions
// set. Input defects are not mutated; the corrected position of each
// returned defect is written exactly once. A defect already carrying a
// corrected position is a contract violation.
func ApplyCorrection(defects []Defect, c *Corrector) ([]Defect, error) {
	out := make([]Defect, len(defects))
	for i, d := range defects {
		if d.Corrected {
			return nil, fmt.Errorf("apply correction: defect %s: %w", d.ID, ErrCorrectionAlreadyApplied)
		}
		d.CorrectedPosition = c.Correct(d.Position)
		d.Corrected = true
		d.Extrapolated = c.IsExtrapolated(d.Position)
		out[i] = d
	}
	return out, nil
}
