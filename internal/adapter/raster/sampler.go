package raster

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/Riverscapes/hydrologic-regimes-tool/internal/domain"
)

// GridSampler samples grids held in memory. It is read-only after
// construction and safe for concurrent use.
type GridSampler struct {
	grids map[domain.RasterHandle]*Grid
}

// NewGridSampler creates a sampler over grids.
func NewGridSampler(grids map[domain.RasterHandle]*Grid) *GridSampler {
	return &GridSampler{grids: grids}
}

// OpenGridSampler loads the grid behind every source.
func OpenGridSampler(sources domain.CovariateSources) (*GridSampler, error) {
	grids := make(map[domain.RasterHandle]*Grid, len(sources))
	for c, h := range sources {
		if _, ok := grids[h]; ok {
			continue
		}
		g, err := LoadGrid(string(h))
		if err != nil {
			return nil, fmt.Errorf("load %s layer: %w", c, err)
		}
		grids[h] = g
	}
	return NewGridSampler(grids), nil
}

func (s *GridSampler) ValueAt(_ context.Context, pt orb.Point, raster domain.RasterHandle) (float64, bool, error) {
	g, ok := s.grids[raster]
	if !ok {
		return 0, false, fmt.Errorf("unknown raster %q", raster)
	}
	v, ok := g.ValueAt(pt)
	return v, ok, nil
}
