package ili

import (
	"fmt"
	"math"
)

// Similarity decay constants. Sigmas control how fast each component
// falls off; epsilon keeps the relative dimension difference defined
// when both values are zero.
const (
	// DefaultDistanceSigma is the distance decay scale in canonical
	// distance units.
	DefaultDistanceSigma = 5.0
	// DefaultClockSigma is the circular clock decay scale in hours.
	DefaultClockSigma = 1.0

	dimensionEpsilon = 1e-6
	clockHours       = 12.0
)

// Scorer computes a bounded [0,1] multi-criteria similarity between a
// corrected run-A defect and a run-B defect. It is built once per
// matching run and is safe for concurrent use.
type Scorer struct {
	weights       SimilarityWeights
	distanceSigma float64
	clockSigma    float64
}

// NewScorer validates the weights and returns a Scorer. Sigma values
// that are zero or negative fall back to their defaults.
func NewScorer(weights SimilarityWeights, distanceSigma, clockSigma float64) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("scorer: %w", err)
	}
	if distanceSigma <= 0 {
		distanceSigma = DefaultDistanceSigma
	}
	if clockSigma <= 0 {
		clockSigma = DefaultClockSigma
	}
	return &Scorer{weights: weights, distanceSigma: distanceSigma, clockSigma: clockSigma}, nil
}

// Score computes the weighted similarity between defect a (run A, must
// carry its corrected position) and defect b (run B, scored at its raw
// position since run B is the reference frame). Scoring an uncorrected
// run-A defect is a contract violation, not a degraded result.
func (s *Scorer) Score(a, b Defect) (float64, SimilarityBreakdown, error) {
	if !a.Corrected {
		return 0, SimilarityBreakdown{}, fmt.Errorf("score %s vs %s: %w", a.ID, b.ID, ErrUncorrectedDefect)
	}

	parts := SimilarityBreakdown{
		Distance: distanceSimilarity(a.CorrectedPosition, b.Position, s.distanceSigma),
		Clock:    clockSimilarity(a.Clock, b.Clock, s.clockSigma),
		Kind:     kindSimilarity(a.Kind, b.Kind),
		Depth:    dimensionSimilarity(a.DepthPct, b.DepthPct),
		Length:   dimensionSimilarity(a.Length, b.Length),
		Width:    dimensionSimilarity(a.Width, b.Width),
	}

	overall := s.weights.Distance*parts.Distance +
		s.weights.Clock*parts.Clock +
		s.weights.Kind*parts.Kind +
		s.weights.Depth*parts.Depth +
		s.weights.Length*parts.Length +
		s.weights.Width*parts.Width
	return overall, parts, nil
}

// distanceSimilarity decays exponentially with the position gap. Never
// negative; identical positions score 1.
func distanceSimilarity(pos1, pos2, sigma float64) float64 {
	return math.Exp(-math.Abs(pos1-pos2) / sigma)
}

// clockSimilarity measures circumferential agreement on a 12-hour dial.
// The dial wraps: 11 o'clock and 1 o'clock are 2 hours apart, not 10.
func clockSimilarity(c1, c2, sigma float64) float64 {
	direct := math.Abs(c1 - c2)
	circular := math.Min(direct, clockHours-direct)
	return math.Exp(-circular / sigma)
}

// kindSimilarity is categorical: identical kinds score 1, anything else
// scores 0. There is no meaningful gradient between, say, a dent and a
// crack.
func kindSimilarity(k1, k2 DefectKind) float64 {
	if k1 == k2 {
		return 1.0
	}
	return 0.0
}

// dimensionSimilarity normalises the absolute difference by the
// combined magnitude, so a 2-unit change on a 5-unit defect is
// penalised more than the same change on a 50-unit defect.
func dimensionSimilarity(v1, v2 float64) float64 {
	return math.Exp(-math.Abs(v1-v2) / (v1 + v2 + dimensionEpsilon))
}
