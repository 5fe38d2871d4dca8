// Package domain models hydrologic regime classification of stream reaches.
//
// # Reaches
//
// A reach is one polyline of a stream network. Every covariate for a reach
// is sampled at its representative point, the first vertex of the polyline.
// Reaches keep the index of their source feature so that output writers can
// correlate features with the input network.
//
// # Covariates
//
// Covariates are raster layers, identified by manifest keys:
//
//	march_precip     March precipitation, mm
//	elevation        elevation, m
//	jan_temp         mean January temperature, degC
//	april_temp       mean April temperature, degC
//	min_winter_temp  minimum winter temperature, degC
//	snow_depth       snow depth (accepted, never consulted)
//
// A sample with no data is distinct from a covariate that was never
// configured. The first fails a reach with [SampleUnavailableError]; the
// second is a configuration error, [UnreachableCovariateError], detected
// before any reach is processed.
//
// # Decision tree
//
// The standard tree (see [StandardTree]):
//
//	march_precip >= 261.7
//	  elevation < 618           Rainfall | Rain-Snow
//	march_precip < 185.6
//	  jan_temp >= -5
//	    april_temp < 6.26       Groundwater | Snow-Rain
//	  else
//	    min_winter_temp < -7.7  Ultra-Snowmelt | Snowmelt
//	otherwise                   Snow and Rain
//
// Boundary values fall on the side of the written operator: 261.7 takes the
// rainfall branch and 185.6 yields Snow and Rain. Samples are pulled lazily
// along the branch taken, so a reach with high March precipitation never
// samples the temperature layers.
//
// The historical six-covariate variant that split Groundwater from Snow-Rain
// on snow depth was never completed and [LookupTree] rejects it.
package domain
