package pipeline_test

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/Riverscapes/hydrologic-regimes-tool/internal/domain"
)

const (
	precipRaster    domain.RasterHandle = "march_precip.asc"
	elevationRaster domain.RasterHandle = "elevation.asc"
	janRaster       domain.RasterHandle = "jan_temp.asc"
	aprilRaster     domain.RasterHandle = "april_temp.asc"
	winterRaster    domain.RasterHandle = "min_winter_temp.asc"
)

func testSources() domain.CovariateSources {
	return domain.CovariateSources{
		domain.CovariateMarchPrecip:   precipRaster,
		domain.CovariateElevation:     elevationRaster,
		domain.CovariateJanTemp:       janRaster,
		domain.CovariateAprilTemp:     aprilRaster,
		domain.CovariateMinWinterTemp: winterRaster,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSampler reads March precipitation from a point's X and elevation from
// its Y. Temperatures are fixed. A negative X has no precipitation data.
type fakeSampler struct {
	mu      sync.Mutex
	calls   map[domain.RasterHandle]int
	jan     float64
	april   float64
	winter  float64
	delayFn func(pt orb.Point) time.Duration
}

func newFakeSampler() *fakeSampler {
	return &fakeSampler{calls: make(map[domain.RasterHandle]int), jan: -3, april: 5, winter: -10}
}

func (f *fakeSampler) ValueAt(_ context.Context, pt orb.Point, h domain.RasterHandle) (float64, bool, error) {
	f.mu.Lock()
	f.calls[h]++
	f.mu.Unlock()

	if f.delayFn != nil {
		time.Sleep(f.delayFn(pt))
	}

	switch h {
	case precipRaster:
		if pt.X() < 0 {
			return 0, false, nil
		}
		return pt.X(), true, nil
	case elevationRaster:
		return pt.Y(), true, nil
	case janRaster:
		return f.jan, true, nil
	case aprilRaster:
		return f.april, true, nil
	case winterRaster:
		return f.winter, true, nil
	}
	return 0, false, nil
}

func (f *fakeSampler) count(h domain.RasterHandle) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[h]
}

func (f *fakeSampler) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type sliceNetwork []orb.LineString

func (n sliceNetwork) Count() int                           { return len(n) }
func (n sliceNetwork) Geometries() iter.Seq[orb.LineString] { return slices.Values(n) }

// rainfallNetwork returns n reaches whose first vertex is (300, i), so reach
// i is Rainfall when i < 618 and Rain-Snow otherwise.
func rainfallNetwork(n int) sliceNetwork {
	out := make(sliceNetwork, n)
	for i := range out {
		out[i] = orb.LineString{{300, float64(i)}, {301, float64(i) + 1}}
	}
	return out
}
