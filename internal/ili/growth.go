package ili

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// DefaultRapidGrowthThreshold flags depth growth above this rate, in
// percentage points of wall thickness per year.
const DefaultRapidGrowthThreshold = 5.0

// GrowthRecord is the per-match growth history consumed by the external
// depth predictor and the compliance scorer. Rates are absolute change
// per year: percentage points for depth, length/width units for the
// dimensions.
type GrowthRecord struct {
	MatchID      string  `json:"match_id"`
	DefectA      string  `json:"defect_a"`
	DefectB      string  `json:"defect_b"`
	IntervalYrs  float64 `json:"interval_years"`
	DepthRate    float64 `json:"depth_rate"`
	LengthRate   float64 `json:"length_rate"`
	WidthRate    float64 `json:"width_rate"`
	RapidGrowth  bool    `json:"rapid_growth"`
	DepthPctFrom float64 `json:"depth_pct_from"`
	DepthPctTo   float64 `json:"depth_pct_to"`
}

// GrowthSummary aggregates depth growth across one run pair.
type GrowthSummary struct {
	Count         int     `json:"count"`
	MeanDepthRate float64 `json:"mean_depth_rate"`
	MaxDepthRate  float64 `json:"max_depth_rate"`
	StdDepthRate  float64 `json:"std_depth_rate"`
	RapidCount    int     `json:"rapid_count"`
}

// GrowthForMatch computes growth rates for one matched defect pair over
// the inspection interval. A non-positive interval is a construction
// error.
func GrowthForMatch(m Match, a, b Defect, intervalYears, rapidThreshold float64) (GrowthRecord, error) {
	if intervalYears <= 0 {
		return GrowthRecord{}, fmt.Errorf("growth for %s: interval must be positive, got %g years", m.ID, intervalYears)
	}
	if rapidThreshold <= 0 {
		rapidThreshold = DefaultRapidGrowthThreshold
	}

	rec := GrowthRecord{
		MatchID:      m.ID,
		DefectA:      a.ID,
		DefectB:      b.ID,
		IntervalYrs:  intervalYears,
		DepthRate:    (b.DepthPct - a.DepthPct) / intervalYears,
		LengthRate:   (b.Length - a.Length) / intervalYears,
		WidthRate:    (b.Width - a.Width) / intervalYears,
		DepthPctFrom: a.DepthPct,
		DepthPctTo:   b.DepthPct,
	}
	rec.RapidGrowth = rec.DepthRate > rapidThreshold
	return rec, nil
}

// SummarizeGrowth aggregates a run pair's growth records.
func SummarizeGrowth(records []GrowthRecord) GrowthSummary {
	s := GrowthSummary{Count: len(records)}
	if len(records) == 0 {
		return s
	}

	rates := make([]float64, len(records))
	s.MaxDepthRate = records[0].DepthRate
	for i, r := range records {
		rates[i] = r.DepthRate
		if r.DepthRate > s.MaxDepthRate {
			s.MaxDepthRate = r.DepthRate
		}
		if r.RapidGrowth {
			s.RapidCount++
		}
	}
	s.MeanDepthRate = stat.Mean(rates, nil)
	if len(rates) > 1 {
		s.StdDepthRate = stat.StdDev(rates, nil)
	}
	return s
}
