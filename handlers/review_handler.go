package handlers

import (
	"context"
	"net/http"

	"attraction-map/middleware"
	"attraction-map/models"

	"github.com/gorilla/mux"
)

type ReviewService interface {
	List(ctx context.Context, recordID string) ([]models.Review, error)
	Add(ctx context.Context, recordID string, input models.ReviewInput) (models.Review, error)
}

type ReviewHandler struct {
	reviewService ReviewService
}

func NewReviewHandler(reviewService ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.reviewService.List(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if reviews == nil {
		reviews = []models.Review{}
	}
	middleware.WriteJSON(w, http.StatusOK, reviews)
}

func (h *ReviewHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	var input models.ReviewInput
	if err := decodeBody(w, r, &input); err != nil {
		middleware.WriteError(w, err)
		return
	}
	review, err := h.reviewService.Add(r.Context(), mux.Vars(r)["id"], input)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, review)
}
