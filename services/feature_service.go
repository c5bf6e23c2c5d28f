package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"attraction-map/models"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	featureGeoKey   = "features:geo"
	featureKeyBase  = "feature:"
	maxIdentifyHits = 50
)

// FeatureService is the remote feature layer: a read-only set of places, kept in
// MongoDB and indexed in Redis GEO for identify queries.
type FeatureService struct {
	collection  *mongo.Collection
	redisClient *redis.Client
	logger      *zap.Logger
}

func NewFeatureService(collection *mongo.Collection, redisClient *redis.Client, logger *zap.Logger) *FeatureService {
	return &FeatureService{collection: collection, redisClient: redisClient, logger: logger}
}

// Identify returns features within radiusMeters of (lat, lon), nearest first, at most
// limit of them. Ids are the feature source's own ids, without any prefix.
func (s *FeatureService) Identify(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]models.Record, error) {
	if limit <= 0 || limit > maxIdentifyHits {
		limit = maxIdentifyHits
	}
	geoResults, err := s.redisClient.GeoRadius(ctx, featureGeoKey, lon, lat, &redis.GeoRadiusQuery{
		Radius:   radiusMeters,
		Unit:     "m",
		WithDist: true,
		Sort:     "ASC",
		Count:    limit,
	}).Result()
	if err != nil {
		s.logger.Error("redis georadius failed", zap.Error(err))
		return nil, err
	}

	results := make([]models.Record, 0, len(geoResults))
	for _, geoResult := range geoResults {
		raw, err := s.redisClient.HGet(ctx, featureKeyBase+geoResult.Name, "data").Result()
		if err != nil {
			s.logger.Warn("feature data missing", zap.String("feature_id", geoResult.Name), zap.Error(err))
			continue
		}
		var rec models.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			s.logger.Warn("failed to unmarshal feature", zap.String("feature_id", geoResult.Name), zap.Error(err))
			continue
		}
		results = append(results, rec)
	}

	s.logger.Debug("identify",
		zap.Float64("lat", lat),
		zap.Float64("lon", lon),
		zap.Float64("radius_m", radiusMeters),
		zap.Int("hits", len(results)))
	return results, nil
}

// Seed loads seedFile into MongoDB when the feature collection is empty, then rebuilds
// the Redis index from MongoDB.
func (s *FeatureService) Seed(ctx context.Context, seedFile string) error {
	count, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("count features: %w", err)
	}
	if count == 0 {
		s.logger.Info("no features in MongoDB, seeding", zap.String("file", seedFile))
		if err := s.seedMongo(ctx, seedFile); err != nil {
			return err
		}
	}
	return s.seedRedis(ctx)
}

func (s *FeatureService) seedMongo(ctx context.Context, seedFile string) error {
	file, err := os.Open(seedFile)
	if err != nil {
		return fmt.Errorf("open feature file: %w", err)
	}
	defer file.Close()

	features, err := DecodeFeatures(file, s.logger)
	if err != nil {
		return err
	}
	if len(features) == 0 {
		s.logger.Warn("feature file is empty", zap.String("file", seedFile))
		return nil
	}

	docs := make([]any, 0, len(features))
	for _, f := range features {
		docs = append(docs, toDocument(f))
	}
	result, err := s.collection.InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("insert features: %w", err)
	}
	s.logger.Info("seeded features into MongoDB", zap.Int("count", len(result.InsertedIDs)))
	return nil
}

func (s *FeatureService) seedRedis(ctx context.Context) error {
	// Only the feature keys are cleared; the record cache shares this database.
	if err := s.redisClient.Del(ctx, featureGeoKey).Err(); err != nil {
		return fmt.Errorf("clear feature index: %w", err)
	}

	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("load features: %w", err)
	}
	defer cursor.Close(ctx)

	seeded := 0
	for cursor.Next(ctx) {
		var doc recordDocument
		if err := cursor.Decode(&doc); err != nil {
			s.logger.Warn("skipping undecodable feature", zap.Error(err))
			continue
		}
		rec, ok := doc.record()
		if !ok {
			s.logger.Warn("skipping feature without location", zap.String("feature_id", doc.ID))
			continue
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			continue
		}

		_, err = s.redisClient.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, featureKeyBase+rec.ID, "data", payload)
			pipe.GeoAdd(ctx, featureGeoKey, &redis.GeoLocation{
				Name:      rec.ID,
				Longitude: rec.Longitude,
				Latitude:  rec.Latitude,
			})
			return nil
		})
		if err != nil {
			s.logger.Warn("failed to index feature", zap.String("feature_id", rec.ID), zap.Error(err))
			continue
		}
		seeded++
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("iterate features: %w", err)
	}
	s.logger.Info("seeded features into Redis", zap.Int("count", seeded))
	return nil
}

// featureID accepts the source id as a JSON number or string.
type featureID string

func (f *featureID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = featureID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("feature id must be a string or number: %w", err)
	}
	*f = featureID(n.String())
	return nil
}

// seedFeature is one entry of the feature seed file.
type seedFeature struct {
	ID           featureID `json:"osm_id2"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	ExternalLink string    `json:"external_link"`
	Latitude     float64   `json:"lat"`
	Longitude    float64   `json:"lon"`
}

// DecodeFeatures reads a JSON array of features, dropping entries without an id,
// without a name, or with coordinates out of range.
func DecodeFeatures(r io.Reader, logger *zap.Logger) ([]models.Record, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode feature file: %w", err)
	}

	validate := validator.New()
	features := make([]models.Record, 0, len(raw))
	for i, entry := range raw {
		var f seedFeature
		if err := json.Unmarshal(entry, &f); err != nil {
			logger.Warn("skipping malformed feature", zap.Int("index", i), zap.Error(err))
			continue
		}
		rec := models.Record{
			ID:           strings.TrimPrefix(string(f.ID), models.FeatureIDPrefix),
			Name:         strings.TrimSpace(f.Name),
			Description:  f.Description,
			Category:     f.Category,
			ExternalLink: f.ExternalLink,
			Latitude:     f.Latitude,
			Longitude:    f.Longitude,
		}
		if err := validate.Struct(rec); err != nil {
			logger.Warn("skipping invalid feature", zap.Int("index", i), zap.String("feature_id", rec.ID), zap.Error(err))
			continue
		}
		features = append(features, rec)
	}
	return features, nil
}
