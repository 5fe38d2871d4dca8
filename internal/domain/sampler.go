package domain

import (
	"context"
	"errors"

	"github.com/paulmach/orb"
)

// RasterHandle identifies a raster layer to a RasterSampler.
type RasterHandle string

// RasterSampler returns the value of a raster at a point. ok is false when
// the raster has no data there. Implementations must be deterministic and
// safe for concurrent use.
type RasterSampler interface {
	ValueAt(ctx context.Context, pt orb.Point, raster RasterHandle) (value float64, ok bool, err error)
}

// SamplerSession is a per-reach view of a sampler holding resources that
// must be released when the reach is done.
type SamplerSession interface {
	RasterSampler
	Close() error
}

// SessionSampler is implemented by samplers that want a session per reach.
type SessionSampler interface {
	RasterSampler
	OpenSession(ctx context.Context, index int) (SamplerSession, error)
}

// CovariateSources maps each covariate to the raster that provides it.
type CovariateSources map[Covariate]RasterHandle

// Require checks that every covariate in need has a source. All missing
// covariates are reported.
func (s CovariateSources) Require(need []Covariate) error {
	var errs []error
	for _, c := range need {
		if h, ok := s[c]; !ok || h == "" {
			errs = append(errs, &UnreachableCovariateError{Covariate: c})
		}
	}
	return errors.Join(errs...)
}
