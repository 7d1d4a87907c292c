package ili

// Config aggregates every tunable of the reconciliation pipeline. It is
// a plain value: copy it, adjust fields, pass it to NewReconciler.
// Nothing mutates it at runtime.
type Config struct {
	// Aligner
	DriftFraction float64

	// Validator
	MinMatchRate      float64 // Fraction, 0..1
	MaxRMSE           float64
	IsolatedGap       float64
	NearMatchedWindow float64

	// Scorer
	DistanceSigma float64
	ClockSigma    float64
	Weights       SimilarityWeights

	// Matcher
	ConfidenceFloor  float64
	HighConfidence   float64
	MediumConfidence float64
	MergeSplit       MergeSplitConfig

	// Growth
	RapidGrowthThreshold float64
}

// DefaultConfig returns the production pipeline configuration.
func DefaultConfig() Config {
	return Config{
		DriftFraction:        DefaultDriftFraction,
		MinMatchRate:         DefaultMinMatchRate,
		MaxRMSE:              DefaultMaxRMSE,
		IsolatedGap:          DefaultIsolatedGap,
		NearMatchedWindow:    DefaultNearMatchedWindow,
		DistanceSigma:        DefaultDistanceSigma,
		ClockSigma:           DefaultClockSigma,
		Weights:              DefaultSimilarityWeights(),
		ConfidenceFloor:      DefaultConfidenceFloor,
		HighConfidence:       DefaultHighConfidence,
		MediumConfidence:     DefaultMediumConfidence,
		MergeSplit:           DefaultMergeSplitConfig(),
		RapidGrowthThreshold: DefaultRapidGrowthThreshold,
	}
}

func (c Config) validatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MinMatchRate:      c.MinMatchRate,
		MaxRMSE:           c.MaxRMSE,
		IsolatedGap:       c.IsolatedGap,
		NearMatchedWindow: c.NearMatchedWindow,
	}
}

func (c Config) matcherConfig() MatcherConfig {
	return MatcherConfig{
		ConfidenceFloor:  c.ConfidenceFloor,
		HighConfidence:   c.HighConfidence,
		MediumConfidence: c.MediumConfidence,
		MergeSplit:       c.MergeSplit,
	}
}
