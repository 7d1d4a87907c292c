// Package ili implements the core reconciliation pipeline for in-line
// inspection (ILI) survey pairs: drift-bounded DTW alignment of landmark
// sequences, piecewise-linear coordinate correction, alignment quality
// validation, multi-criteria defect similarity scoring, and optimal
// one-to-one defect matching with unmatched classification.
//
// Every stage is a pure function of its inputs. Nothing in this package
// holds cross-call state, so a single Reconciler may be shared freely
// across goroutines processing independent run pairs.
package ili

import "fmt"

// LandmarkKind identifies the physical feature used as an alignment
// reference.
type LandmarkKind string

const (
	LandmarkWeld  LandmarkKind = "weld"
	LandmarkValve LandmarkKind = "valve"
	LandmarkTee   LandmarkKind = "tee"
	LandmarkOther LandmarkKind = "other"
)

// DefectKind identifies the type of a detected anomaly.
type DefectKind string

const (
	DefectExternalCorrosion DefectKind = "external_corrosion"
	DefectInternalCorrosion DefectKind = "internal_corrosion"
	DefectDent              DefectKind = "dent"
	DefectCrack             DefectKind = "crack"
	DefectOther             DefectKind = "other"
)

// Landmark is a physically identifiable pipeline feature (weld, valve,
// tee) used as an alignment reference. Landmarks are immutable once
// ingested and ordered by Position within a run.
type Landmark struct {
	ID       string       `json:"id"`
	RunID    string       `json:"run_id"`
	Position float64      `json:"position"` // Odometer reading, canonical distance units
	Kind     LandmarkKind `json:"kind"`
}

// Defect is a detected anomaly with position, orientation and shape
// attributes. CorrectedPosition is written exactly once, by
// ApplyCorrection; Corrected reports whether that write has happened.
type Defect struct {
	ID                string     `json:"id"`
	RunID             string     `json:"run_id"`
	Position          float64    `json:"position"`
	CorrectedPosition float64    `json:"corrected_position,omitempty"`
	Corrected         bool       `json:"corrected"`
	Extrapolated      bool       `json:"extrapolated,omitempty"` // Correction fell outside the reference span
	Clock             float64    `json:"clock"`                  // Circumferential position, 1..12
	DepthPct          float64    `json:"depth_pct"`              // Percent of wall thickness, 0..100
	Length            float64    `json:"length"`
	Width             float64    `json:"width"`
	Kind              DefectKind `json:"kind"`
}

// MatchedPair is one diagonal step of the DTW path: landmark index
// IndexA in run A aligned to landmark index IndexB in run B.
type MatchedPair struct {
	IndexA    int     `json:"index_a"`
	IndexB    int     `json:"index_b"`
	PositionA float64 `json:"position_a"`
	PositionB float64 `json:"position_b"`
}

// AlignmentResult is the immutable output of one Align call.
type AlignmentResult struct {
	RunA      string        `json:"run_a"`
	RunB      string        `json:"run_b"`
	Pairs     []MatchedPair `json:"pairs"`
	MatchRate float64       `json:"match_rate"` // Percent, 0..100: 100·|pairs|/max(n,m)
	RMSE      float64       `json:"rmse"`       // Post-correction residual over matched pairs
	Warnings  []string      `json:"warnings,omitempty"`
}

// Confidence discretises a similarity score for human consumption.
// It is always derived from the score, never assigned independently.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"   // similarity >= high breakpoint
	ConfidenceMedium Confidence = "MEDIUM" // similarity >= medium breakpoint
	ConfidenceLow    Confidence = "LOW"
)

// SimilarityWeights are the six non-negative component weights of the
// similarity score. They must sum to 1.0; a configuration value, never
// mutated at runtime.
type SimilarityWeights struct {
	Distance float64 `json:"distance"`
	Clock    float64 `json:"clock"`
	Kind     float64 `json:"kind"`
	Depth    float64 `json:"depth"`
	Length   float64 `json:"length"`
	Width    float64 `json:"width"`
}

// DefaultSimilarityWeights returns the production default weighting.
func DefaultSimilarityWeights() SimilarityWeights {
	return SimilarityWeights{
		Distance: 0.35,
		Clock:    0.20,
		Kind:     0.15,
		Depth:    0.15,
		Length:   0.075,
		Width:    0.075,
	}
}

// Sum returns the total of all six weights.
func (w SimilarityWeights) Sum() float64 {
	return w.Distance + w.Clock + w.Kind + w.Depth + w.Length + w.Width
}

// Validate checks that the weights are non-negative and sum to 1.0
// within a small tolerance.
func (w SimilarityWeights) Validate() error {
	for name, v := range map[string]float64{
		"distance": w.Distance,
		"clock":    w.Clock,
		"kind":     w.Kind,
		"depth":    w.Depth,
		"length":   w.Length,
		"width":    w.Width,
	} {
		if v < 0 {
			return fmt.Errorf("%w: %s weight is negative (%g)", ErrInvalidWeights, name, v)
		}
	}
	if s := w.Sum(); s < 1.0-weightSumTolerance || s > 1.0+weightSumTolerance {
		return fmt.Errorf("%w: weights sum to %g, want 1.0", ErrInvalidWeights, s)
	}
	return nil
}

const weightSumTolerance = 1e-6

// SimilarityBreakdown carries the six component similarities that were
// combined into a match's overall score.
type SimilarityBreakdown struct {
	Distance float64 `json:"distance"`
	Clock    float64 `json:"clock"`
	Kind     float64 `json:"kind"`
	Depth    float64 `json:"depth"`
	Length   float64 `json:"length"`
	Width    float64 `json:"width"`
}

// Match is one surviving assignment edge between a run-A defect and a
// run-B defect. At most one Match exists per defect on either side.
type Match struct {
	ID         string              `json:"id"`
	DefectA    string              `json:"defect_a"`
	DefectB    string              `json:"defect_b"`
	Similarity float64             `json:"similarity"`
	Confidence Confidence          `json:"confidence"`
	Components SimilarityBreakdown `json:"components"`
}

// UnmatchedReason classifies a defect not covered by any Match.
type UnmatchedReason string

const (
	// UnmatchedNew marks a defect present only in the later run.
	UnmatchedNew UnmatchedReason = "new"
	// UnmatchedRepairedOrRemoved marks a defect present only in the
	// earlier run.
	UnmatchedRepairedOrRemoved UnmatchedReason = "repaired_or_removed"
)

// UnmatchedDefect is a defect left outside the match set, with its
// classification.
type UnmatchedDefect struct {
	DefectID string          `json:"defect_id"`
	RunID    string          `json:"run_id"`
	Reason   UnmatchedReason `json:"reason"`
}

// GroupKind tags a merge/split candidate group.
type GroupKind string

const (
	GroupMergeCandidate GroupKind = "merge_candidate" // several run-A defects around one run-B defect
	GroupSplitCandidate GroupKind = "split_candidate" // several run-B defects around one run-A defect
)

// DefectGroup is a best-effort merge/split candidate: several same-side
// unmatched defects clustered around a single counterpart on the other
// side. This is a heuristic post-pass, not part of the assignment
// optimality guarantee, and is always lower confidence than a Match.
type DefectGroup struct {
	Kind    GroupKind `json:"kind"`
	Anchor  string    `json:"anchor"` // Defect ID on the single side
	Members []string  `json:"members"`
}

// MatchStats summarises one matching run.
type MatchStats struct {
	TotalA           int `json:"total_a"`
	TotalB           int `json:"total_b"`
	Matched          int `json:"matched"`
	New              int `json:"new"`
	RepairedRemoved  int `json:"repaired_or_removed"`
	HighConfidence   int `json:"high_confidence"`
	MediumConfidence int `json:"medium_confidence"`
	LowConfidence    int `json:"low_confidence"`
}

// MatchSet is the complete, immutable output of one Match call.
type MatchSet struct {
	RunA      string            `json:"run_a"`
	RunB      string            `json:"run_b"`
	Matches   []Match           `json:"matches"`
	Unmatched []UnmatchedDefect `json:"unmatched"`
	Groups    []DefectGroup     `json:"groups,omitempty"`
	Stats     MatchStats        `json:"stats"`
}
