package ili

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Validator thresholds and diagnosis windows. Distances are in the
// canonical linear unit.
const (
	// DefaultMinMatchRate is the minimum acceptable landmark match rate
	// as a fraction.
	DefaultMinMatchRate = 0.95
	// DefaultMaxRMSE is the maximum acceptable post-correction residual.
	DefaultMaxRMSE = 10.0
	// DefaultIsolatedGap is the neighbour gap beyond which an unmatched
	// landmark is diagnosed as isolated.
	DefaultIsolatedGap = 100.0
	// DefaultNearMatchedWindow is how close an unmatched landmark must
	// sit to a matched one to be diagnosed as "near but not selected".
	DefaultNearMatchedWindow = 20.0
)

// ValidatorConfig holds alignment quality thresholds.
type ValidatorConfig struct {
	MinMatchRate      float64 // Fraction, 0..1
	MaxRMSE           float64
	IsolatedGap       float64
	NearMatchedWindow float64
}

// DefaultValidatorConfig returns the production thresholds.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MinMatchRate:      DefaultMinMatchRate,
		MaxRMSE:           DefaultMaxRMSE,
		IsolatedGap:       DefaultIsolatedGap,
		NearMatchedWindow: DefaultNearMatchedWindow,
	}
}

// UnmatchedLandmark is a landmark the aligner left out, with a
// heuristic diagnosis of why.
type UnmatchedLandmark struct {
	Index    int          `json:"index"`
	Position float64      `json:"position"`
	Kind     LandmarkKind `json:"kind"`
	Reason   string       `json:"reason"`
}

// AlignmentDiagnostics summarises residual errors and unmatched-point
// categories for one alignment.
type AlignmentDiagnostics struct {
	AlignedPairs   int     `json:"aligned_pairs"`
	MeanResidual   float64 `json:"mean_residual"`
	MaxResidual    float64 `json:"max_residual"`
	StdResidual    float64 `json:"std_residual"`
	BoundaryPoints int     `json:"boundary_points"`
	IsolatedPoints int     `json:"isolated_points"`
	NearMatched    int     `json:"near_matched"`
	Undiagnosed    int     `json:"undiagnosed"`
}

// ValidationReport is the read-only quality assessment of an
// AlignmentResult. It gates whether downstream correction and matching
// should be trusted; it never mutates the alignment itself.
type ValidationReport struct {
	IsValid         bool                 `json:"is_valid"`
	MatchRate       float64              `json:"match_rate"` // Percent
	MatchRatePassed bool                 `json:"match_rate_passed"`
	RMSE            float64              `json:"rmse"`
	RMSEPassed      bool                 `json:"rmse_passed"`
	UnmatchedA      []UnmatchedLandmark  `json:"unmatched_a,omitempty"`
	UnmatchedB      []UnmatchedLandmark  `json:"unmatched_b,omitempty"`
	Warnings        []string             `json:"warnings,omitempty"`
	Diagnostics     AlignmentDiagnostics `json:"diagnostics"`
}

// ValidateAlignment checks an alignment against the configured
// thresholds and diagnoses every landmark that failed to align.
func ValidateAlignment(res *AlignmentResult, landmarksA, landmarksB []Landmark, cfg ValidatorConfig) *ValidationReport {
	report := &ValidationReport{
		MatchRate:       res.MatchRate,
		MatchRatePassed: res.MatchRate >= cfg.MinMatchRate*100,
		RMSE:            res.RMSE,
		RMSEPassed:      res.RMSE <= cfg.MaxRMSE,
	}
	report.IsValid = report.MatchRatePassed && report.RMSEPassed

	if !report.MatchRatePassed {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("match rate %.1f%% is below threshold %.1f%%", res.MatchRate, cfg.MinMatchRate*100))
	}
	if !report.RMSEPassed {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("RMSE %.2f exceeds threshold %.2f", res.RMSE, cfg.MaxRMSE))
	}
	report.Warnings = append(report.Warnings, res.Warnings...)

	report.UnmatchedA = findUnmatched(landmarksA, res.Pairs, sideA, cfg)
	report.UnmatchedB = findUnmatched(landmarksB, res.Pairs, sideB, cfg)
	if n := len(report.UnmatchedA); n > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%d landmarks unmatched in run A", n))
	}
	if n := len(report.UnmatchedB); n > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%d landmarks unmatched in run B", n))
	}

	report.Diagnostics = diagnose(res.Pairs, report.UnmatchedA, report.UnmatchedB)
	return report
}

type alignSide int

const (
	sideA alignSide = iota
	sideB
)

func pairIndex(p MatchedPair, side alignSide) int {
	if side == sideA {
		return p.IndexA
	}
	return p.IndexB
}

func findUnmatched(landmarks []Landmark, pairs []MatchedPair, side alignSide, cfg ValidatorConfig) []UnmatchedLandmark {
	matched := make(map[int]bool, len(pairs))
	for _, p := range pairs {
		matched[pairIndex(p, side)] = true
	}

	var out []UnmatchedLandmark
	for idx, lm := range landmarks {
		if matched[idx] {
			continue
		}
		out = append(out, UnmatchedLandmark{
			Index:    idx,
			Position: lm.Position,
			Kind:     lm.Kind,
			Reason:   diagnoseUnmatched(idx, landmarks, pairs, side, cfg),
		})
	}
	return out
}

// diagnoseUnmatched picks a reason for a landmark the path skipped.
// Position heuristics only; the reasons feed operator review, not any
// downstream computation.
func diagnoseUnmatched(idx int, landmarks []Landmark, pairs []MatchedPair, side alignSide, cfg ValidatorConfig) string {
	if len(pairs) == 0 {
		return "no alignment pairs found"
	}
	if idx == 0 {
		return "point at start of run, outside the alignment window"
	}
	if idx == len(landmarks)-1 {
		return "point at end of run, outside the alignment window"
	}

	gapBefore := landmarks[idx].Position - landmarks[idx-1].Position
	gapAfter := landmarks[idx+1].Position - landmarks[idx].Position
	if gapBefore > cfg.IsolatedGap || gapAfter > cfg.IsolatedGap {
		return fmt.Sprintf("isolated point (gaps: %.1f before, %.1f after)", gapBefore, gapAfter)
	}

	nearest := math.Inf(1)
	for _, p := range pairs {
		mIdx := pairIndex(p, side)
		if mIdx >= 0 && mIdx < len(landmarks) {
			d := math.Abs(landmarks[idx].Position - landmarks[mIdx].Position)
			nearest = math.Min(nearest, d)
		}
	}
	if nearest < cfg.NearMatchedWindow {
		return fmt.Sprintf("close to a matched point (%.1f away) but not selected", nearest)
	}

	return "could not be aligned, possible data quality issue"
}

func diagnose(pairs []MatchedPair, unmatchedA, unmatchedB []UnmatchedLandmark) AlignmentDiagnostics {
	d := AlignmentDiagnostics{AlignedPairs: len(pairs)}

	if len(pairs) > 0 {
		residuals := make([]float64, len(pairs))
		for i, p := range pairs {
			residuals[i] = math.Abs(p.PositionA - p.PositionB)
			d.MaxResidual = math.Max(d.MaxResidual, residuals[i])
		}
		d.MeanResidual = stat.Mean(residuals, nil)
		if len(residuals) > 1 {
			d.StdResidual = stat.StdDev(residuals, nil)
		}
	}

	for _, u := range append(append([]UnmatchedLandmark{}, unmatchedA...), unmatchedB...) {
		switch {
		case strings.Contains(u.Reason, "start of run"), strings.Contains(u.Reason, "end of run"):
			d.BoundaryPoints++
		case strings.Contains(u.Reason, "isolated"):
			d.IsolatedPoints++
		case strings.Contains(u.Reason, "not selected"):
			d.NearMatched++
		default:
			d.Undiagnosed++
		}
	}
	return d
}
