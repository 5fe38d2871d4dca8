package pipeline

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/Riverscapes/hydrologic-regimes-tool/internal/domain"
)

// ReachBuilder classifies a single reach geometry.
type ReachBuilder interface {
	Build(ctx context.Context, index int, geometry orb.LineString) (domain.Reach, error)
}

// Builder implements ReachBuilder by sampling covariates at the reach's
// representative point as the decision tree asks for them.
type Builder struct {
	tree    *domain.Tree
	sources domain.CovariateSources
	sampler domain.RasterSampler
}

// NewBuilder checks that sources cover every covariate the tree can consult
// and returns a Builder. A missing source is a configuration error.
func NewBuilder(tree *domain.Tree, sources domain.CovariateSources, sampler domain.RasterSampler) (*Builder, error) {
	if err := sources.Require(tree.Covariates()); err != nil {
		return nil, fmt.Errorf("covariate sources for tree %q: %w", tree.Name(), err)
	}
	return &Builder{tree: tree, sources: sources, sampler: sampler}, nil
}

// Build returns a classified reach. Errors from the tree, including
// *domain.SampleUnavailableError, are returned unchanged.
func (b *Builder) Build(ctx context.Context, index int, geometry orb.LineString) (reach domain.Reach, err error) {
	pt, err := domain.RepresentativePoint(geometry)
	if err != nil {
		return domain.Reach{}, fmt.Errorf("reach %d: %w", index, err)
	}

	sampler := b.sampler
	if ss, ok := b.sampler.(domain.SessionSampler); ok {
		session, serr := ss.OpenSession(ctx, index)
		if serr != nil {
			return domain.Reach{}, fmt.Errorf("reach %d: open sampler session: %w", index, serr)
		}
		defer func() {
			if cerr := session.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("reach %d: close sampler session: %w", index, cerr)
			}
		}()
		sampler = session
	}

	// The tree may test a covariate at more than one node; each raster is
	// sampled at most once per reach.
	taken := make(map[domain.Covariate]domain.Sample, 3)
	fetch := func(ctx context.Context, c domain.Covariate) (domain.Sample, error) {
		if s, ok := taken[c]; ok {
			return s, nil
		}
		v, ok, serr := sampler.ValueAt(ctx, pt, b.sources[c])
		if serr != nil {
			return domain.Sample{}, fmt.Errorf("reach %d: sample %s: %w", index, c, serr)
		}
		s := domain.Sample{Covariate: c, Point: pt, Value: v, NoData: !ok}
		taken[c] = s
		return s, nil
	}

	regime, err := b.tree.Evaluate(ctx, fetch)
	if err != nil {
		return domain.Reach{}, err
	}
	return domain.NewReach(index, geometry, regime)
}
