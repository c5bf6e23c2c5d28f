package spatial

import (
	"context"
	"math"
	"sort"

	"attraction-map/models"
)

// Source is one spatial layer that can be hit tested. The set of implementations is
// closed: OverlaySource and FeatureLayerSource.
type Source interface {
	Kind() models.HitSource
	// HitTest returns candidates within radius pixels of pt, best match first.
	HitTest(ctx context.Context, pt models.ScreenPoint, radius float64) ([]models.Record, error)
	sealed()
}

// RecordLister is the read side of the local overlay.
type RecordLister interface {
	All() []models.Record
}

// Identifier runs the remote feature layer's identify operation around a world point.
type Identifier interface {
	Identify(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]models.Record, error)
}

// OverlaySource hit tests the session's custom records on the client.
type OverlaySource struct {
	records RecordLister
	view    Projector
}

func NewOverlaySource(records RecordLister, view Projector) *OverlaySource {
	return &OverlaySource{records: records, view: view}
}

func (s *OverlaySource) Kind() models.HitSource { return models.SourceOverlay }

func (s *OverlaySource) sealed() {}

func (s *OverlaySource) HitTest(_ context.Context, pt models.ScreenPoint, radius float64) ([]models.Record, error) {
	type candidate struct {
		rec  models.Record
		dist float64
	}
	var hits []candidate
	for _, rec := range s.records.All() {
		d := screenDistance(pt, s.view.ToScreen(rec.Latitude, rec.Longitude))
		if d <= radius {
			hits = append(hits, candidate{rec: rec, dist: d})
		}
	}
	// stable: equal distances keep insertion order
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	out := make([]models.Record, len(hits))
	for i, h := range hits {
		out[i] = h.rec
	}
	return out, nil
}

// FeatureLayerSource asks the record service which feature lies under the tap.
// Results keep the order the service returns them in (nearest first).
type FeatureLayerSource struct {
	identifier Identifier
	view       Projector
	limit      int
}

func NewFeatureLayerSource(identifier Identifier, view Projector, limit int) *FeatureLayerSource {
	if limit <= 0 {
		limit = 1
	}
	return &FeatureLayerSource{identifier: identifier, view: view, limit: limit}
}

func (s *FeatureLayerSource) Kind() models.HitSource { return models.SourceRemoteFeatureLayer }

func (s *FeatureLayerSource) sealed() {}

func (s *FeatureLayerSource) HitTest(ctx context.Context, pt models.ScreenPoint, radius float64) ([]models.Record, error) {
	lat, lon := s.view.ToLocation(pt)
	// zoomed far out a few pixels cover more ground than the service will search
	meters := math.Min(radius*s.view.GroundResolution(), models.MaxIdentifyRadius)
	records, err := s.identifier.Identify(ctx, lat, lon, meters, s.limit)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].ID = models.FeatureRecordID(records[i].ID)
	}
	return records, nil
}
