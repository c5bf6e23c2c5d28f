package spatial

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"attraction-map/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordSlice []models.Record

func (s recordSlice) All() []models.Record { return append([]models.Record(nil), s...) }

type fakeIdentifier struct {
	calls   atomic.Int32
	records []models.Record
	err     error
	radius  float64
}

func (f *fakeIdentifier) Identify(_ context.Context, _, _, radiusMeters float64, _ int) ([]models.Record, error) {
	f.calls.Add(1)
	f.radius = radiusMeters
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Record(nil), f.records...), nil
}

func testViewport() *Viewport {
	return NewViewport(43.0761, -89.4010, 15000, 1080, 1920)
}

func TestViewportRoundTrip(t *testing.T) {
	v := testViewport()

	center := v.ToScreen(43.0761, -89.4010)
	assert.InDelta(t, 540, center.X, 1e-6)
	assert.InDelta(t, 960, center.Y, 1e-6)

	for _, pt := range []models.ScreenPoint{{X: 0, Y: 0}, {X: 1080, Y: 1920}, {X: 200.5, Y: 1333}} {
		lat, lon := v.ToLocation(pt)
		back := v.ToScreen(lat, lon)
		assert.InDelta(t, pt.X, back.X, 1e-6)
		assert.InDelta(t, pt.Y, back.Y, 1e-6)
	}

	// north is up, east is right
	lat, lon := v.ToLocation(models.ScreenPoint{X: 1080, Y: 0})
	assert.Greater(t, lat, 43.0761)
	assert.Greater(t, lon, -89.4010)
}

func TestViewportGroundResolution(t *testing.T) {
	v := testViewport()
	// 15000 * 0.0254 / 96 * cos(43.0761°)
	assert.InDelta(t, 2.898, v.GroundResolution(), 0.01)

	v.SetViewpoint(0, 0, 0)
	_, _, scale := v.Center()
	assert.Equal(t, 15000.0, scale)
}

func TestOverlayHitTestNearestThenInsertionOrder(t *testing.T) {
	v := testViewport()
	lat, lon := v.ToLocation(models.ScreenPoint{X: 545, Y: 960})
	farLat, farLon := v.ToLocation(models.ScreenPoint{X: 549, Y: 960})

	store := recordSlice{
		{ID: "custom_far", Latitude: farLat, Longitude: farLon},
		{ID: "custom_a", Latitude: lat, Longitude: lon},
		{ID: "custom_b", Latitude: lat, Longitude: lon},
		{ID: "custom_outside", Latitude: 43.2, Longitude: -89.2},
	}
	src := NewOverlaySource(store, v)

	got, err := src.HitTest(context.Background(), models.ScreenPoint{X: 540, Y: 960}, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "custom_a", got[0].ID)
	assert.Equal(t, "custom_b", got[1].ID)
	assert.Equal(t, "custom_far", got[2].ID)
}

func TestResolveOverlayTakesPrecedence(t *testing.T) {
	v := testViewport()
	overlay := recordSlice{{ID: "custom_1", Name: "Mine", Latitude: 43.0761, Longitude: -89.4010}}
	remote := &fakeIdentifier{records: []models.Record{{ID: "42", Name: "Capitol", Latitude: 43.0761, Longitude: -89.4010}}}

	r := NewResolver(zap.NewNop(), NewOverlaySource(overlay, v), NewFeatureLayerSource(remote, v, 1))

	for _, tol := range []float64{0, 1, 5, 10, 50, 500} {
		res := r.Resolve(context.Background(), models.ScreenPoint{X: 540, Y: 960}, tol)
		require.True(t, res.Found(), "tolerance %v", tol)
		assert.Equal(t, models.SourceOverlay, res.Source)
		assert.Equal(t, "custom_1", res.Record.ID)
	}
	assert.Zero(t, remote.calls.Load())
}

func TestResolveFallsBackToFeatureLayer(t *testing.T) {
	v := testViewport()
	remote := &fakeIdentifier{records: []models.Record{
		{ID: "42", Name: "Capitol"},
		{ID: "43", Name: "Museum"},
	}}
	r := NewResolver(zap.NewNop(), NewOverlaySource(recordSlice{}, v), NewFeatureLayerSource(remote, v, 2))

	res := r.Resolve(context.Background(), models.ScreenPoint{X: 100, Y: 100}, 10)
	require.True(t, res.Found())
	assert.Equal(t, models.SourceRemoteFeatureLayer, res.Source)
	assert.Equal(t, "osm_42", res.Record.ID)
	assert.InDelta(t, 10*v.GroundResolution(), remote.radius, 1e-9)
}

func TestFeatureLayerRadiusCappedAtServiceMax(t *testing.T) {
	v := NewViewport(43.0761, -89.4010, 5e7, 1080, 1920)
	require.Greater(t, 10*v.GroundResolution(), float64(models.MaxIdentifyRadius))
	remote := &fakeIdentifier{records: []models.Record{{ID: "42", Name: "Capitol"}}}
	src := NewFeatureLayerSource(remote, v, 1)

	records, err := src.HitTest(context.Background(), models.ScreenPoint{X: 540, Y: 960}, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, float64(models.MaxIdentifyRadius), remote.radius)
}

func TestResolveRemoteFailureIsSilentMiss(t *testing.T) {
	v := testViewport()
	remote := &fakeIdentifier{err: errors.New("connection reset")}
	r := NewResolver(zap.NewNop(), NewOverlaySource(recordSlice{}, v), NewFeatureLayerSource(remote, v, 1))

	res := r.Resolve(context.Background(), models.ScreenPoint{X: 10, Y: 10}, 10)
	assert.False(t, res.Found())
	assert.Equal(t, models.SourceNone, res.Source)
	assert.Nil(t, res.Record)
	assert.EqualValues(t, 1, remote.calls.Load())
}

func TestResolveNoSources(t *testing.T) {
	res := NewResolver(zap.NewNop()).Resolve(context.Background(), models.ScreenPoint{}, -3)
	assert.Equal(t, models.SourceNone, res.Source)
}
