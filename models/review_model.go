package models

import (
	"fmt"
	"strings"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Review is a user review of a record. Reviews are append-only.
type Review struct {
	ReviewID string `json:"review_id"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
	RecordID string `json:"record_id,omitempty"`
}

// ReviewInput is the body of a review submission.
type ReviewInput struct {
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
	UserID  string `json:"user_id" validate:"max=128"`
}

// AverageRating returns the mean rating, or 0 for no reviews.
func AverageRating(reviews []Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(reviews))
}

// Stars renders a rating as filled and empty stars, clamped to the valid range.
func Stars(rating int) string {
	if rating < MinRating {
		rating = MinRating
	}
	if rating > MaxRating {
		rating = MaxRating
	}
	return strings.Repeat("★", rating) + strings.Repeat("☆", MaxRating-rating)
}

// RatingSummary is the one-line summary shown above the review list.
func RatingSummary(reviews []Review) string {
	if len(reviews) == 0 {
		return "No reviews yet"
	}
	return fmt.Sprintf("Average Rating: %.1f stars (%d reviews)", AverageRating(reviews), len(reviews))
}
