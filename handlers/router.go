package handlers

import (
	"net/http"

	"attraction-map/metrics"
	"attraction-map/middleware"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Records        RecordService
	Reviews        ReviewService
	Features       FeatureService
	AllowedOrigins []string
	Logger         *zap.Logger
	// Health reports whether the backing stores are reachable. Nil means always healthy.
	Health func(r *http.Request) error
}

func NewRouter(cfg RouterConfig) *mux.Router {
	recordHandler := NewRecordHandler(cfg.Records)
	reviewHandler := NewReviewHandler(cfg.Reviews)
	featureHandler := NewFeatureHandler(cfg.Features)

	r := mux.NewRouter()
	r.Use(middleware.RecoveryMiddleware(cfg.Logger))
	r.Use(middleware.LoggingMiddleware(cfg.Logger))
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	// Record routes
	recordRouter := r.PathPrefix("/records").Subrouter()
	recordRouter.HandleFunc("", recordHandler.ListRecords).Methods("GET", "OPTIONS")
	recordRouter.HandleFunc("", recordHandler.CreateRecord).Methods("POST", "OPTIONS")
	recordRouter.HandleFunc("/{id}", recordHandler.GetRecord).Methods("GET", "OPTIONS")
	recordRouter.HandleFunc("/{id}/reviews", reviewHandler.ListReviews).Methods("GET", "OPTIONS")
	recordRouter.HandleFunc("/{id}/reviews", reviewHandler.AddReview).Methods("POST", "OPTIONS")

	// Feature layer
	r.HandleFunc("/features/identify", featureHandler.Identify).Methods("GET", "OPTIONS")

	r.Handle("/metrics", metrics.Handler()).Methods("GET")
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(req); err != nil {
				middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	return r
}
