package handlers

import (
	"context"
	"net/http"
	"strconv"

	"attraction-map/middleware"
	"attraction-map/models"
	"attraction-map/utils/errors"
)

type FeatureService interface {
	Identify(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]models.Record, error)
}

type FeatureHandler struct {
	featureService FeatureService
}

func NewFeatureHandler(featureService FeatureService) *FeatureHandler {
	return &FeatureHandler{featureService: featureService}
}

// Identify serves GET /features/identify?lat=&lon=&radius=[&limit=]. radius is in meters.
func (h *FeatureHandler) Identify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		middleware.WriteError(w, errors.ErrInvalidInput)
		return
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil || lon < -180 || lon > 180 {
		middleware.WriteError(w, errors.ErrInvalidInput)
		return
	}
	radius, err := strconv.ParseFloat(q.Get("radius"), 64)
	if err != nil || radius <= 0 || radius > models.MaxIdentifyRadius {
		middleware.WriteError(w, errors.ErrInvalidInput)
		return
	}
	limit := 0
	if s := q.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit < 0 {
			middleware.WriteError(w, errors.ErrInvalidInput)
			return
		}
	}

	features, err := h.featureService.Identify(r.Context(), lat, lon, radius, limit)
	if err != nil {
		middleware.WriteError(w, errors.Wrap(err, "FEATURE_LAYER_UNAVAILABLE", "Feature layer unavailable", http.StatusServiceUnavailable))
		return
	}
	if features == nil {
		features = []models.Record{}
	}
	middleware.WriteJSON(w, http.StatusOK, features)
}
