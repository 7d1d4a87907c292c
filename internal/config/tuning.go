package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/integrity.report/internal/ili"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for reconciliation
// tuning parameters. The schema matches the /api/params endpoint so the
// same JSON can be used for both startup configuration and runtime
// updates. Fields left nil fall back to their compiled-in defaults.
type TuningConfig struct {
	// Aligner params
	DriftFraction *float64 `json:"drift_fraction,omitempty"`

	// Validator params
	MinMatchRate      *float64 `json:"min_match_rate,omitempty"` // fraction 0..1
	MaxRMSE           *float64 `json:"max_rmse,omitempty"`
	IsolatedGap       *float64 `json:"isolated_gap,omitempty"`
	NearMatchedWindow *float64 `json:"near_matched_window,omitempty"`

	// Similarity params
	DistanceSigma *float64 `json:"distance_sigma,omitempty"`
	ClockSigma    *float64 `json:"clock_sigma,omitempty"`
	WeightDist    *float64 `json:"weight_distance,omitempty"`
	WeightClock   *float64 `json:"weight_clock,omitempty"`
	WeightKind    *float64 `json:"weight_kind,omitempty"`
	WeightDepth   *float64 `json:"weight_depth,omitempty"`
	WeightLength  *float64 `json:"weight_length,omitempty"`
	WeightWidth   *float64 `json:"weight_width,omitempty"`

	// Matcher params
	ConfidenceFloor  *float64 `json:"confidence_floor,omitempty"`
	HighConfidence   *float64 `json:"high_confidence,omitempty"`
	MediumConfidence *float64 `json:"medium_confidence,omitempty"`

	// Merge/split detection params
	MergeSplitPositionWindow *float64 `json:"merge_split_position_window,omitempty"`
	MergeSplitClockWindow    *float64 `json:"merge_split_clock_window,omitempty"`
	MergeSplitMinGroupSize   *int     `json:"merge_split_min_group_size,omitempty"`

	// Growth params
	RapidGrowthThreshold *float64 `json:"rapid_growth_threshold,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under
// the max file size. Fields omitted from the JSON file retain their
// default values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg TuningConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", cleanPath, err)
	}
	return &cfg, nil
}

// Apply overlays the tuning file onto a pipeline configuration,
// starting from base. nil fields keep the base value.
func (t *TuningConfig) Apply(base ili.Config) ili.Config {
	out := base

	setFloat(&out.DriftFraction, t.DriftFraction)
	setFloat(&out.MinMatchRate, t.MinMatchRate)
	setFloat(&out.MaxRMSE, t.MaxRMSE)
	setFloat(&out.IsolatedGap, t.IsolatedGap)
	setFloat(&out.NearMatchedWindow, t.NearMatchedWindow)
	setFloat(&out.DistanceSigma, t.DistanceSigma)
	setFloat(&out.ClockSigma, t.ClockSigma)
	setFloat(&out.Weights.Distance, t.WeightDist)
	setFloat(&out.Weights.Clock, t.WeightClock)
	setFloat(&out.Weights.Kind, t.WeightKind)
	setFloat(&out.Weights.Depth, t.WeightDepth)
	setFloat(&out.Weights.Length, t.WeightLength)
	setFloat(&out.Weights.Width, t.WeightWidth)
	setFloat(&out.ConfidenceFloor, t.ConfidenceFloor)
	setFloat(&out.HighConfidence, t.HighConfidence)
	setFloat(&out.MediumConfidence, t.MediumConfidence)
	setFloat(&out.MergeSplit.PositionWindow, t.MergeSplitPositionWindow)
	setFloat(&out.MergeSplit.ClockWindow, t.MergeSplitClockWindow)
	if t.MergeSplitMinGroupSize != nil {
		out.MergeSplit.MinGroupSize = *t.MergeSplitMinGroupSize
	}
	setFloat(&out.RapidGrowthThreshold, t.RapidGrowthThreshold)

	return out
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
