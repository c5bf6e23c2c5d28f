package spatial

import (
	"math"
	"sync"

	"attraction-map/models"
)

const (
	earthRadius = 6378137.0
	// meters per pixel at scale 1:1, assuming a 96 dpi display
	metersPerPixelAtUnitScale = 0.0254 / 96
	maxMercatorLat            = 85.05112878
)

// Projector converts between screen pixels and WGS84 coordinates.
type Projector interface {
	ToLocation(pt models.ScreenPoint) (lat, lon float64)
	ToScreen(lat, lon float64) models.ScreenPoint
	// GroundResolution is meters on the ground per screen pixel at the view center.
	GroundResolution() float64
}

// Viewport is a Web Mercator map view centered on a point at a given scale denominator.
type Viewport struct {
	mu        sync.RWMutex
	centerLat float64
	centerLon float64
	scale     float64
	width     float64
	height    float64
}

func NewViewport(centerLat, centerLon, scale float64, width, height int) *Viewport {
	v := &Viewport{width: float64(width), height: float64(height)}
	v.SetViewpoint(centerLat, centerLon, scale)
	return v
}

// SetViewpoint recenters the view. A non-positive scale keeps the current one.
func (v *Viewport) SetViewpoint(lat, lon, scale float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.centerLat = clampLat(lat)
	v.centerLon = lon
	if scale > 0 {
		v.scale = scale
	}
}

func (v *Viewport) Center() (lat, lon, scale float64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.centerLat, v.centerLon, v.scale
}

func (v *Viewport) ToLocation(pt models.ScreenPoint) (float64, float64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	res := v.scale * metersPerPixelAtUnitScale
	cx, cy := mercator(v.centerLat, v.centerLon)
	x := cx + (pt.X-v.width/2)*res
	y := cy + (v.height/2-pt.Y)*res
	return inverseMercator(x, y)
}

func (v *Viewport) ToScreen(lat, lon float64) models.ScreenPoint {
	v.mu.RLock()
	defer v.mu.RUnlock()
	res := v.scale * metersPerPixelAtUnitScale
	cx, cy := mercator(v.centerLat, v.centerLon)
	x, y := mercator(clampLat(lat), lon)
	return models.ScreenPoint{
		X: v.width/2 + (x-cx)/res,
		Y: v.height/2 - (y-cy)/res,
	}
}

func (v *Viewport) GroundResolution() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.scale * metersPerPixelAtUnitScale * math.Cos(v.centerLat*math.Pi/180)
}

func mercator(lat, lon float64) (x, y float64) {
	x = earthRadius * lon * math.Pi / 180
	y = earthRadius * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	return x, y
}

func inverseMercator(x, y float64) (lat, lon float64) {
	lon = x / earthRadius * 180 / math.Pi
	lat = (2*math.Atan(math.Exp(y/earthRadius)) - math.Pi/2) * 180 / math.Pi
	return lat, lon
}

func clampLat(lat float64) float64 {
	return math.Max(-maxMercatorLat, math.Min(maxMercatorLat, lat))
}

func screenDistance(a, b models.ScreenPoint) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
