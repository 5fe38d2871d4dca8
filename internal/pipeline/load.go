package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Riverscapes/hydrologic-regimes-tool/internal/domain"
)

// Loader writes a classified network to a destination.
type Loader interface {
	Load(ctx context.Context, out domain.ClassifiedNetwork) error
}

// NamedLoader pairs a Loader with a name used in logs and errors.
type NamedLoader struct {
	Name   string
	Loader Loader
}

// Deliver hands the result to each loader in order and stops at the first
// failure.
func Deliver(ctx context.Context, result *Result, srs domain.SpatialReference, logger *slog.Logger, loaders ...NamedLoader) error {
	out := domain.ClassifiedNetwork{
		RunID:            result.RunID,
		Reaches:          result.Collection,
		SpatialReference: srs,
	}
	for _, l := range loaders {
		if err := l.Loader.Load(ctx, out); err != nil {
			return fmt.Errorf("write %s output: %w", l.Name, err)
		}
		logger.Info("output written", "format", l.Name, "reaches", out.Reaches.Len(), "run_id", out.RunID)
	}
	return nil
}
