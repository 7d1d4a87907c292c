package ili

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// DefaultDriftFraction bounds odometer drift as a fraction of distance
// travelled. Survey odometers drift up to roughly 10% between runs.
const DefaultDriftFraction = 0.10

// alignInf stands in for infinity in the cumulative cost matrix.
const alignInf = math.MaxFloat64 / 4

// Aligner matches two ordered landmark sequences using dynamic time
// warping constrained by a drift bound. A candidate pair (i,j) is only
// reachable when |A[i]-B[j]| is within DriftFraction of the distance
// travelled; everything else is forbidden.
type Aligner struct {
	DriftFraction float64
}

// NewAligner returns an Aligner with the given drift fraction. Zero or
// negative values fall back to DefaultDriftFraction.
func NewAligner(driftFraction float64) *Aligner {
	if driftFraction <= 0 {
		driftFraction = DefaultDriftFraction
	}
	return &Aligner{DriftFraction: driftFraction}
}

// Align aligns the landmark sequences of two runs and computes the
// alignment quality metrics. Landmarks must be ordered by position.
//
// Alignment may legitimately fail on bad data: if no path through the
// cost matrix satisfies the drift constraint, the result carries
// MatchRate 0 and a warning rather than an error. Only empty input is
// an error.
func (a *Aligner) Align(landmarksA, landmarksB []Landmark) (*AlignmentResult, error) {
	if len(landmarksA) == 0 || len(landmarksB) == 0 {
		return nil, fmt.Errorf("align: %w (run A has %d landmarks, run B has %d)",
			ErrEmptySequence, len(landmarksA), len(landmarksB))
	}

	seqA := make([]float64, len(landmarksA))
	for i, lm := range landmarksA {
		seqA[i] = lm.Position
	}
	seqB := make([]float64, len(landmarksB))
	for j, lm := range landmarksB {
		seqB[j] = lm.Position
	}

	res := &AlignmentResult{
		RunA: runIDOf(landmarksA),
		RunB: runIDOf(landmarksB),
	}

	pairs, ok := a.warpPath(seqA, seqB)
	if !ok {
		res.Warnings = append(res.Warnings,
			"no feasible alignment path under the drift constraint; sequences may be from different segments or drift exceeds the bound")
		return res, nil
	}

	res.Pairs = pairs
	res.MatchRate = matchRate(len(pairs), len(seqA), len(seqB))
	res.RMSE = a.residualRMSE(pairs)
	if len(pairs) < 2 {
		res.Warnings = append(res.Warnings,
			"fewer than 2 matched pairs; coordinate correction cannot be built and RMSE reflects raw position differences")
	}
	return res, nil
}

// withinDrift reports whether the pair (posA, posB) satisfies the drift
// constraint |posA-posB|/posA <= DriftFraction. Drift is proportional to
// distance travelled, so the bound is relative, not absolute. The start
// of the line (posA == 0) uses the larger of the two readings as the
// denominator so the very first weld can still pair up.
func (a *Aligner) withinDrift(posA, posB float64) bool {
	diff := math.Abs(posA - posB)
	ref := posA
	if ref == 0 {
		ref = math.Max(posA, posB)
	}
	if ref == 0 {
		return true // both at the launcher
	}
	return diff/ref <= a.DriftFraction
}

// warpPath fills the (n+1)x(m+1) cumulative cost matrix and backtracks
// the optimal path. The false return means no cell sequence from (1,1)
// to (n,m) satisfies the drift constraint.
//
// cost[0][0] = 0 and the rest of row 0 / column 0 stay at infinity, so
// the path is forced to open with an aligned pair; leading insertions
// are not physical for this domain (both surveys start at the same
// launcher).
func (a *Aligner) warpPath(seqA, seqB []float64) ([]MatchedPair, bool) {
	n, m := len(seqA), len(seqB)

	cost := make([][]float64, n+1)
	for i := range cost {
		cost[i] = make([]float64, m+1)
		for j := range cost[i] {
			cost[i][j] = alignInf
		}
	}
	cost[0][0] = 0

	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if !a.withinDrift(seqA[i-1], seqB[j-1]) {
				continue
			}
			prev := math.Min(cost[i-1][j-1], math.Min(cost[i-1][j], cost[i][j-1]))
			if prev >= alignInf {
				continue
			}
			cost[i][j] = math.Abs(seqA[i-1]-seqB[j-1]) + prev
		}
	}

	if cost[n][m] >= alignInf {
		return nil, false
	}

	// Backtrack from (n,m). Diagonal steps are the matched pairs; on a
	// tie the diagonal wins because a true correspondence beats a skip.
	var rev []MatchedPair
	i, j := n, m
	for i > 0 && j > 0 {
		diag, up, left := cost[i-1][j-1], cost[i-1][j], cost[i][j-1]
		switch {
		case diag <= up && diag <= left:
			rev = append(rev, MatchedPair{
				IndexA:    i - 1,
				IndexB:    j - 1,
				PositionA: seqA[i-1],
				PositionB: seqB[j-1],
			})
			i, j = i-1, j-1
		case up <= left:
			i--
		default:
			j--
		}
	}

	// Reverse into forward order.
	pairs := make([]MatchedPair, len(rev))
	for k := range rev {
		pairs[k] = rev[len(rev)-1-k]
	}
	return pairs, true
}

// residualRMSE measures post-alignment residual error: each matched
// run-A position is mapped through the correction function built from
// the pairs, then compared against its run-B counterpart. With fewer
// than 2 pairs no corrector exists and the raw differences are used.
func (a *Aligner) residualRMSE(pairs []MatchedPair) float64 {
	if len(pairs) == 0 {
		return 0
	}

	sq := make([]float64, len(pairs))
	corrector, err := NewCorrector(pairs)
	for k, p := range pairs {
		d := p.PositionA - p.PositionB
		if err == nil {
			d = corrector.Correct(p.PositionA) - p.PositionB
		}
		sq[k] = d * d
	}
	return math.Sqrt(stat.Mean(sq, nil))
}

func matchRate(matched, n, m int) float64 {
	longest := n
	if m > longest {
		longest = m
	}
	if longest == 0 {
		return 0
	}
	rate := 100 * float64(matched) / float64(longest)
	return math.Min(rate, 100)
}

func runIDOf(landmarks []Landmark) string {
	if len(landmarks) == 0 {
		return ""
	}
	return landmarks[0].RunID
}
