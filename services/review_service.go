package services

import (
	"context"
	"net/http"
	"time"

	"attraction-map/models"
	apierrors "attraction-map/utils/errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type ReviewService struct {
	records  *RecordService
	repo     ReviewRepository
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

func NewReviewService(records *RecordService, repo ReviewRepository, logger *zap.Logger) *ReviewService {
	return &ReviewService{
		records:  records,
		repo:     repo,
		validate: validator.New(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// List returns the reviews of an existing record, oldest first.
func (s *ReviewService) List(ctx context.Context, recordID string) ([]models.Review, error) {
	if _, err := s.records.Get(ctx, recordID); err != nil {
		return nil, err
	}
	reviews, err := s.repo.ListByRecord(ctx, recordID)
	if err != nil {
		return nil, apierrors.Wrap(err, "DB_ERROR", "failed to list reviews", http.StatusInternalServerError)
	}
	if reviews == nil {
		reviews = []models.Review{}
	}
	return reviews, nil
}

// Add appends a review to an existing record and returns it with its assigned id.
func (s *ReviewService) Add(ctx context.Context, recordID string, input models.ReviewInput) (models.Review, error) {
	if err := s.validate.Struct(input); err != nil {
		return models.Review{}, apierrors.NewAPIError("INVALID_REVIEW", "Rating must be an integer between 1 and 5", http.StatusBadRequest, err.Error())
	}
	if _, err := s.records.Get(ctx, recordID); err != nil {
		return models.Review{}, err
	}

	stored := StoredReview{
		ReviewID:  uuid.New().String(),
		RecordID:  recordID,
		Rating:    input.Rating,
		Comment:   input.Comment,
		UserID:    input.UserID,
		CreatedAt: s.now(),
		Seq:       primitive.NewObjectID(),
	}
	if err := s.repo.Insert(ctx, stored); err != nil {
		return models.Review{}, apierrors.Wrap(err, "DB_ERROR", "failed to store review", http.StatusInternalServerError)
	}
	s.logger.Info("review added",
		zap.String("record_id", recordID),
		zap.String("review_id", stored.ReviewID),
		zap.Int("rating", stored.Rating))
	return stored.Review(), nil
}
