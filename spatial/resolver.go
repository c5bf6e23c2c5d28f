// Package spatial resolves a tap on the map to at most one record.
//
// Sources are queried in a fixed priority order and the first source that returns
// anything wins, even if a lower-priority source has a closer candidate. The local
// overlay is checked synchronously before the remote feature layer; a failed remote
// identify counts as a miss.
package spatial

import (
	"context"

	"attraction-map/models"

	"go.uber.org/zap"
)

type Resolver struct {
	sources []Source
	logger  *zap.Logger
}

// NewResolver queries sources in the order given.
func NewResolver(logger *zap.Logger, sources ...Source) *Resolver {
	return &Resolver{sources: sources, logger: logger}
}

func (r *Resolver) Resolve(ctx context.Context, pt models.ScreenPoint, tolerance float64) models.HitTestResult {
	if tolerance < 0 {
		tolerance = 0
	}
	for _, src := range r.sources {
		records, err := src.HitTest(ctx, pt, tolerance)
		if err != nil {
			r.logger.Warn("hit test failed, treating as miss",
				zap.Stringer("source", src.Kind()),
				zap.Float64("x", pt.X),
				zap.Float64("y", pt.Y),
				zap.Error(err))
			continue
		}
		if len(records) == 0 {
			continue
		}
		rec := records[0]
		r.logger.Debug("hit resolved",
			zap.Stringer("source", src.Kind()),
			zap.String("record_id", rec.ID),
			zap.Int("candidates", len(records)))
		return models.HitTestResult{Source: src.Kind(), Record: &rec}
	}
	return models.HitTestResult{Source: models.SourceNone}
}
