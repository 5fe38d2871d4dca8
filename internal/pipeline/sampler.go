package pipeline

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"

	"github.com/Riverscapes/hydrologic-regimes-tool/internal/domain"
	"github.com/Riverscapes/hydrologic-regimes-tool/internal/observability"
)

// InstrumentedSampler records metrics for every sample and opens a session
// per reach that logs the reach's samples at debug level when closed.
type InstrumentedSampler struct {
	inner      domain.RasterSampler
	covariates map[domain.RasterHandle]domain.Covariate
	metrics    *observability.Metrics
	logger     *slog.Logger
	clock      clockwork.Clock
}

// NewInstrumentedSampler wraps inner. sources is used only to label metrics
// by covariate.
func NewInstrumentedSampler(inner domain.RasterSampler, sources domain.CovariateSources, metrics *observability.Metrics, logger *slog.Logger) *InstrumentedSampler {
	covariates := make(map[domain.RasterHandle]domain.Covariate, len(sources))
	for c, h := range sources {
		covariates[h] = c
	}
	return &InstrumentedSampler{
		inner:      inner,
		covariates: covariates,
		metrics:    metrics,
		logger:     logger,
		clock:      clockwork.NewRealClock(),
	}
}

func (s *InstrumentedSampler) ValueAt(ctx context.Context, pt orb.Point, raster domain.RasterHandle) (float64, bool, error) {
	return s.sample(ctx, s.inner, pt, raster)
}

// OpenSession starts a per-reach session. If the wrapped sampler also keeps
// per-reach sessions, one is opened and closed along with it.
func (s *InstrumentedSampler) OpenSession(ctx context.Context, index int) (domain.SamplerSession, error) {
	sess := &reachSession{parent: s, index: index, inner: s.inner}
	if ss, ok := s.inner.(domain.SessionSampler); ok {
		innerSess, err := ss.OpenSession(ctx, index)
		if err != nil {
			return nil, err
		}
		sess.inner = innerSess
		sess.closer = innerSess
	}
	return sess, nil
}

func (s *InstrumentedSampler) covariate(h domain.RasterHandle) string {
	if c, ok := s.covariates[h]; ok {
		return c.String()
	}
	return "unknown"
}

func (s *InstrumentedSampler) sample(ctx context.Context, inner domain.RasterSampler, pt orb.Point, raster domain.RasterHandle) (float64, bool, error) {
	label := s.covariate(raster)
	start := s.clock.Now()
	v, ok, err := inner.ValueAt(ctx, pt, raster)
	s.metrics.SampleDuration.WithLabelValues(label).Observe(s.clock.Since(start).Seconds())

	switch {
	case err != nil:
		s.metrics.SampleRequests.WithLabelValues(label, "error").Inc()
	case !ok:
		s.metrics.SampleRequests.WithLabelValues(label, "nodata").Inc()
	default:
		s.metrics.SampleRequests.WithLabelValues(label, "value").Inc()
	}
	return v, ok, err
}

type reachSession struct {
	parent *InstrumentedSampler
	inner  domain.RasterSampler
	closer interface{ Close() error }
	index  int
	attrs  []any
}

func (r *reachSession) ValueAt(ctx context.Context, pt orb.Point, raster domain.RasterHandle) (float64, bool, error) {
	v, ok, err := r.parent.sample(ctx, r.inner, pt, raster)
	label := r.parent.covariate(raster)
	switch {
	case err != nil:
		r.attrs = append(r.attrs, slog.String(label, "error"))
	case !ok:
		r.attrs = append(r.attrs, slog.String(label, "nodata"))
	default:
		r.attrs = append(r.attrs, slog.Float64(label, v))
	}
	return v, ok, err
}

func (r *reachSession) Close() error {
	r.parent.logger.Debug("reach sampled", "index", r.index, slog.Group("samples", r.attrs...))
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
