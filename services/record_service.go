package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"attraction-map/metrics"
	"attraction-map/models"
	apierrors "attraction-map/utils/errors"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const recordCacheTTL = 24 * time.Hour

type RecordService struct {
	repo        RecordRepository
	redisClient *redis.Client
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewRecordService caches single-record reads in Redis when redisClient is non-nil.
func NewRecordService(repo RecordRepository, redisClient *redis.Client, logger *zap.Logger) *RecordService {
	return &RecordService{
		repo:        repo,
		redisClient: redisClient,
		validate:    validator.New(),
		logger:      logger,
	}
}

// Get returns the record from Redis or the repository.
func (s *RecordService) Get(ctx context.Context, id string) (models.Record, error) {
	if id == "" {
		return models.Record{}, apierrors.ErrInvalidInput
	}
	if rec, ok := s.cached(ctx, id); ok {
		return rec, nil
	}

	rec, err := s.repo.Get(ctx, id)
	if errors.Is(err, errMissing) {
		return models.Record{}, apierrors.ErrNotFound
	}
	if err != nil {
		return models.Record{}, apierrors.Wrap(err, "DB_ERROR", "failed to load record", http.StatusInternalServerError)
	}
	s.cache(ctx, rec)
	return rec, nil
}

// Create stores a new record. An id that already exists is a conflict.
func (s *RecordService) Create(ctx context.Context, rec models.Record) error {
	if err := s.validate.Struct(rec); err != nil {
		return apierrors.NewAPIError("INVALID_RECORD", "Invalid record", http.StatusBadRequest, err.Error())
	}
	err := s.repo.Insert(ctx, rec)
	if errors.Is(err, errDuplicate) {
		s.logger.Info("duplicate record insert", zap.String("record_id", rec.ID))
		return apierrors.ErrConflict
	}
	if err != nil {
		return apierrors.Wrap(err, "DB_ERROR", "failed to create record", http.StatusInternalServerError)
	}
	s.logger.Info("record created", zap.String("record_id", rec.ID), zap.String("name", rec.Name))
	s.cache(ctx, rec)
	return nil
}

func (s *RecordService) List(ctx context.Context) ([]models.Record, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, apierrors.Wrap(err, "DB_ERROR", "failed to list records", http.StatusInternalServerError)
	}
	return records, nil
}

func (s *RecordService) cached(ctx context.Context, id string) (models.Record, bool) {
	if s.redisClient == nil {
		return models.Record{}, false
	}
	raw, err := s.redisClient.Get(ctx, "record:"+id).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("redis get failed", zap.String("record_id", id), zap.Error(err))
		}
		metrics.RecordCacheTotal.WithLabelValues("miss").Inc()
		return models.Record{}, false
	}
	var rec models.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.logger.Warn("failed to unmarshal cached record", zap.String("record_id", id), zap.Error(err))
		metrics.RecordCacheTotal.WithLabelValues("miss").Inc()
		return models.Record{}, false
	}
	metrics.RecordCacheTotal.WithLabelValues("hit").Inc()
	return rec, true
}

func (s *RecordService) cache(ctx context.Context, rec models.Record) {
	if s.redisClient == nil {
		return
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := s.redisClient.Set(ctx, "record:"+rec.ID, payload, recordCacheTTL).Err(); err != nil {
		s.logger.Warn("redis set failed", zap.String("record_id", rec.ID), zap.Error(err))
	}
}
