package ili

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/integrity.report/internal/monitoring"
	"github.com/banshee-data/integrity.report/internal/timeutil"
)

// RunPair carries the fully materialised inputs for one run pair. Run A
// is the earlier survey, run B the later one.
type RunPair struct {
	RunA, RunB         string
	LandmarksA         []Landmark
	LandmarksB         []Landmark
	DefectsA           []Defect
	DefectsB           []Defect
	InspectionGapYears float64 // Time between the two surveys
}

// ReconcileResult is the complete derived artifact for one run pair. It
// is recomputed as a whole whenever reconciliation is re-run; there are
// no partial updates.
type ReconcileResult struct {
	RunA, RunB string

	Alignment  *AlignmentResult  `json:"alignment"`
	Validation *ValidationReport `json:"validation"`
	// CorrectedA is DefectsA re-expressed in run B's coordinate frame.
	// Nil when the corrector could not be built.
	CorrectedA    []Defect       `json:"corrected_a,omitempty"`
	Matches       *MatchSet      `json:"matches,omitempty"`
	Growth        []GrowthRecord `json:"growth,omitempty"`
	GrowthSummary GrowthSummary  `json:"growth_summary"`

	Warnings      []string      `json:"warnings,omitempty"`
	AlignDuration time.Duration `json:"align_duration_ns"`
	MatchDuration time.Duration `json:"match_duration_ns"`
}

// Reconciler runs the full pipeline for run pairs: align, validate,
// correct, match, merge/split detection, growth analysis. It holds no
// per-pair state and may be shared across goroutines.
type Reconciler struct {
	cfg   Config
	clock timeutil.Clock
}

// NewReconciler builds a Reconciler. The configuration's similarity
// weights are validated up front so a bad configuration fails at
// construction, not mid-pipeline.
func NewReconciler(cfg Config) (*Reconciler, error) {
	if _, err := NewScorer(cfg.Weights, cfg.DistanceSigma, cfg.ClockSigma); err != nil {
		return nil, fmt.Errorf("reconciler: %w", err)
	}
	return &Reconciler{cfg: cfg, clock: timeutil.RealClock{}}, nil
}

// WithClock replaces the wall clock used for stage timing. Tests use a
// fake clock; production code should not call this.
func (r *Reconciler) WithClock(clock timeutil.Clock) *Reconciler {
	r.clock = clock
	return r
}

// Reconcile processes one run pair end to end.
//
// Degraded alignment quality is not an error: the result carries the
// validation report and warnings, and matching still runs whenever a
// corrector could be built, so the caller can inspect low-quality
// matches before deciding to discard them. Construction and contract
// errors abort with the run pair and stage named.
func (r *Reconciler) Reconcile(pair RunPair) (*ReconcileResult, error) {
	res := &ReconcileResult{RunA: pair.RunA, RunB: pair.RunB}

	alignStart := r.clock.Now()
	aligner := NewAligner(r.cfg.DriftFraction)
	alignment, err := aligner.Align(pair.LandmarksA, pair.LandmarksB)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s/%s: align: %w", pair.RunA, pair.RunB, err)
	}
	alignment.RunA, alignment.RunB = pair.RunA, pair.RunB
	res.Alignment = alignment
	res.AlignDuration = r.clock.Since(alignStart)

	res.Validation = ValidateAlignment(alignment, pair.LandmarksA, pair.LandmarksB, r.cfg.validatorConfig())
	if !res.Validation.IsValid {
		res.Warnings = append(res.Warnings,
			"alignment quality below thresholds; downstream matches need manual review")
		monitoring.Logf("reconcile %s/%s: alignment below thresholds (match_rate=%.1f%% rmse=%.2f)",
			pair.RunA, pair.RunB, alignment.MatchRate, alignment.RMSE)
	}

	corrector, err := NewCorrector(alignment.Pairs)
	if err != nil {
		// Too few reference pairs is degraded data, not a pipeline
		// error: report what we have and stop before matching.
		res.Warnings = append(res.Warnings,
			"coordinate corrector unavailable: "+err.Error())
		return res, nil
	}

	res.CorrectedA, err = ApplyCorrection(pair.DefectsA, corrector)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s/%s: correct: %w", pair.RunA, pair.RunB, err)
	}

	matchStart := r.clock.Now()
	scorer, err := NewScorer(r.cfg.Weights, r.cfg.DistanceSigma, r.cfg.ClockSigma)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s/%s: scorer: %w", pair.RunA, pair.RunB, err)
	}
	matcher := NewMatcher(scorer, r.cfg.matcherConfig())
	res.Matches, err = matcher.Match(res.CorrectedA, pair.DefectsB)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s/%s: match: %w", pair.RunA, pair.RunB, err)
	}
	res.MatchDuration = r.clock.Since(matchStart)

	if pair.InspectionGapYears > 0 {
		byIDA := defectsByID(res.CorrectedA)
		byIDB := defectsByID(pair.DefectsB)
		for _, m := range res.Matches.Matches {
			rec, err := GrowthForMatch(m, byIDA[m.DefectA], byIDB[m.DefectB],
				pair.InspectionGapYears, r.cfg.RapidGrowthThreshold)
			if err != nil {
				return nil, fmt.Errorf("reconcile %s/%s: growth: %w", pair.RunA, pair.RunB, err)
			}
			res.Growth = append(res.Growth, rec)
		}
		res.GrowthSummary = SummarizeGrowth(res.Growth)
	} else if len(res.Matches.Matches) > 0 {
		res.Warnings = append(res.Warnings,
			"inspection gap unknown; growth rates not computed")
	}

	return res, nil
}

// ReconcileMany fans independent run pairs out over a bounded worker
// pool. A single pair's alignment or assignment is not decomposable,
// but separate pipeline segments are, and the two CPU-bound stages
// dominate. Results keep input order. The context cancels remaining
// pairs between, not within, pipeline stages.
func (r *Reconciler) ReconcileMany(ctx context.Context, pairs []RunPair, workers int) ([]*ReconcileResult, error) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(pairs) {
		workers = len(pairs)
	}

	type job struct {
		idx  int
		pair RunPair
	}

	jobs := make(chan job)
	results := make([]*ReconcileResult, len(pairs))
	errs := make([]error, len(pairs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					errs[j.idx] = ctx.Err()
					continue
				}
				results[j.idx], errs[j.idx] = r.Reconcile(j.pair)
			}
		}()
	}

	for i, p := range pairs {
		jobs <- job{idx: i, pair: p}
	}
	close(jobs)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return results, fmt.Errorf("reconcile pair %d (%s/%s): %w", i, pairs[i].RunA, pairs[i].RunB, err)
		}
	}
	return results, nil
}

func defectsByID(defects []Defect) map[string]Defect {
	m := make(map[string]Defect, len(defects))
	for _, d := range defects {
		m[d.ID] = d
	}
	return m
}
