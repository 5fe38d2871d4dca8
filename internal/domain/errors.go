package domain

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// Sentinel errors for classification.
var (
	ErrSampleUnavailable    = errors.New("sample unavailable")
	ErrUnreachableCovariate = errors.New("unreachable covariate")
	ErrEmptyGeometry        = errors.New("reach geometry has no vertices")
	ErrUnsupportedTree      = errors.New("unsupported decision tree variant")
)

// SampleUnavailableError reports a required covariate with no data at the
// sampled point.
type SampleUnavailableError struct {
	Covariate Covariate
	Point     orb.Point
}

func (e *SampleUnavailableError) Error() string {
	return fmt.Sprintf("%s: no data for %s at (%g, %g)", ErrSampleUnavailable, e.Covariate, e.Point.X(), e.Point.Y())
}

func (e *SampleUnavailableError) Is(target error) bool { return target == ErrSampleUnavailable }

// UnreachableCovariateError reports a covariate the decision path needs
// but that was never supplied.
type UnreachableCovariateError struct {
	Covariate Covariate
}

func (e *UnreachableCovariateError) Error() string {
	return fmt.Sprintf("%s: no source configured for %s", ErrUnreachableCovariate, e.Covariate)
}

func (e *UnreachableCovariateError) Is(target error) bool { return target == ErrUnreachableCovariate }
