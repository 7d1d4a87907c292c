package ili

import "errors"

// Construction and contract-violation errors. These abort processing of
// the current run pair; degraded alignment or match quality is never an
// error, it is reported in result warnings instead.
var (
	// ErrEmptySequence is returned when a landmark sequence passed to
	// the aligner has no points.
	ErrEmptySequence = errors.New("empty landmark sequence")

	// ErrInsufficientReferencePoints is returned when fewer than two
	// matched pairs are supplied to build a coordinate corrector.
	ErrInsufficientReferencePoints = errors.New("need at least 2 matched reference points")

	// ErrInvalidWeights is returned when similarity weights are
	// negative or do not sum to 1.0.
	ErrInvalidWeights = errors.New("invalid similarity weights")

	// ErrUncorrectedDefect is returned when a run-A defect reaches the
	// scorer without its corrected position set. Scoring raw positions
	// across coordinate frames is a contract violation.
	ErrUncorrectedDefect = errors.New("defect position has not been corrected")

	// ErrCorrectionAlreadyApplied is returned when ApplyCorrection is
	// asked to overwrite a corrected position. The corrected position
	// is written exactly once per defect.
	ErrCorrectionAlreadyApplied = errors.New("corrected position already set")
)
