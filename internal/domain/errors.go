package domain

import "errors"

// Fatal input errors abort the whole run.
var (
	ErrNoSondeData        = errors.New("no sonde data for requested parameters")
	ErrUnsupportedUnits   = errors.New("unsupported ozone units")
	ErrUnsupportedDataset = errors.New("unsupported dataset")
	ErrComputation        = errors.New("computation error")
)

// Per-pair errors skip one colocated pair.
var (
	ErrTooManyMissingValues = errors.New("too many missing values in sonde report")
	ErrInsufficientLevels   = errors.New("fewer than two usable levels")
	ErrNonMonotonic         = errors.New("pressure is not monotonic")
	ErrInterpolation        = errors.New("interpolation failed")
	ErrNumericDomain        = errors.New("value outside numeric domain")
	ErrShapeMismatch        = errors.New("profile shape mismatch")
)

// ErrOutlier marks a pair excluded by the surface percent-difference threshold.
var ErrOutlier = errors.New("surface difference outlier")

// FailureClass groups errors by how the pipeline reacts to them.
type FailureClass int

const (
	FailureFatal FailureClass = iota
	FailurePerPair
	FailureRejected
)

func (c FailureClass) String() string {
	switch c {
	case FailurePerPair:
		return "per_pair"
	case FailureRejected:
		return "rejected"
	default:
		return "fatal"
	}
}

// Classify maps an error to its failure class. Unknown errors are fatal.
func Classify(err error) FailureClass {
	switch {
	case errors.Is(err, ErrOutlier):
		return FailureRejected
	case errors.Is(err, ErrTooManyMissingValues),
		errors.Is(err, ErrInsufficientLevels),
		errors.Is(err, ErrNonMonotonic),
		errors.Is(err, ErrInterpolation),
		errors.Is(err, ErrNumericDomain),
		errors.Is(err, ErrShapeMismatch):
		return FailurePerPair
	default:
		return FailureFatal
	}
}
