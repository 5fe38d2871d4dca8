package domain

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Covariate names an environmental raster layer sampled at a reach's
// representative point.
type Covariate string

const (
	CovariateMarchPrecip   Covariate = "march_precip"
	CovariateElevation     Covariate = "elevation"
	CovariateJanTemp       Covariate = "jan_temp"
	CovariateAprilTemp     Covariate = "april_temp"
	CovariateMinWinterTemp Covariate = "min_winter_temp"

	// CovariateSnowDepth is recognized in layer manifests but no supported
	// decision tree consults it.
	CovariateSnowDepth Covariate = "snow_depth"
)

var covariates = []Covariate{
	CovariateMarchPrecip,
	CovariateElevation,
	CovariateJanTemp,
	CovariateAprilTemp,
	CovariateMinWinterTemp,
	CovariateSnowDepth,
}

// ParseCovariate converts a manifest key into a Covariate.
func ParseCovariate(s string) (Covariate, error) {
	for _, c := range covariates {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown covariate %q", s)
}

func (c Covariate) String() string { return string(c) }

// Sample is a raster value taken for one covariate at one point.
// NoData is set when the raster has no valid value there.
type Sample struct {
	Covariate Covariate
	Point     orb.Point
	Value     float64
	NoData    bool
}

// Bundle holds the samples available for one point. A covariate missing
// from Samples was never supplied, which differs from a no-data sample.
type Bundle struct {
	Point   orb.Point
	Samples map[Covariate]Sample
}

// NewBundle builds a Bundle from plain values keyed by covariate.
func NewBundle(pt orb.Point, values map[Covariate]float64) Bundle {
	b := Bundle{Point: pt, Samples: make(map[Covariate]Sample, len(values))}
	for c, v := range values {
		b.Samples[c] = Sample{Covariate: c, Point: pt, Value: v}
	}
	return b
}

// WithNoData returns a copy of b with c marked as no data.
func (b Bundle) WithNoData(c Covariate) Bundle {
	out := Bundle{Point: b.Point, Samples: make(map[Covariate]Sample, len(b.Samples)+1)}
	for k, v := range b.Samples {
		out.Samples[k] = v
	}
	out.Samples[c] = Sample{Covariate: c, Point: b.Point, NoData: true}
	return out
}
