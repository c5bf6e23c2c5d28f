package services

import (
	"context"
	"errors"
	"time"

	"attraction-map/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var (
	errDuplicate = errors.New("duplicate key")
	errMissing   = errors.New("no such document")
)

type RecordRepository interface {
	Get(ctx context.Context, id string) (models.Record, error)
	Insert(ctx context.Context, rec models.Record) error
	List(ctx context.Context) ([]models.Record, error)
}

type ReviewRepository interface {
	ListByRecord(ctx context.Context, recordID string) ([]models.Review, error)
	Insert(ctx context.Context, rv StoredReview) error
}

// StoredReview is a review as persisted; the API only exposes models.Review.
type StoredReview struct {
	ReviewID  string    `bson:"_id"`
	RecordID  string    `bson:"record_id"`
	Rating    int       `bson:"rating"`
	Comment   string    `bson:"comment"`
	UserID    string    `bson:"user_id"`
	CreatedAt time.Time `bson:"created_at"`
	// Seq breaks created_at ties in insertion order; the random _id cannot.
	Seq primitive.ObjectID `bson:"seq"`
}

// reviewSort lists reviews oldest first. _id only orders documents written without seq.
var reviewSort = bson.D{{Key: "created_at", Value: 1}, {Key: "seq", Value: 1}, {Key: "_id", Value: 1}}

func (s StoredReview) Review() models.Review {
	return models.Review{ReviewID: s.ReviewID, Rating: s.Rating, Comment: s.Comment, RecordID: s.RecordID}
}

type recordDocument struct {
	ID           string          `bson:"_id"`
	Name         string          `bson:"name"`
	Description  string          `bson:"description"`
	Category     string          `bson:"category"`
	ExternalLink string          `bson:"external_link"`
	Location     models.GeoPoint `bson:"location"`
	CreatedAt    time.Time       `bson:"created_at"`
}

func toDocument(rec models.Record) recordDocument {
	return recordDocument{
		ID:           rec.ID,
		Name:         rec.Name,
		Description:  rec.Description,
		Category:     rec.Category,
		ExternalLink: rec.ExternalLink,
		Location:     rec.Location(),
		CreatedAt:    time.Now().UTC(),
	}
}

func (d recordDocument) record() (models.Record, bool) {
	if len(d.Location.Coordinates) != 2 {
		return models.Record{}, false
	}
	return models.Record{
		ID:           d.ID,
		Name:         d.Name,
		Description:  d.Description,
		Category:     d.Category,
		ExternalLink: d.ExternalLink,
		Longitude:    d.Location.Coordinates[0],
		Latitude:     d.Location.Coordinates[1],
	}, true
}

type MongoRecordRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewMongoRecordRepository ensures the geo and ordering indexes on collection.
func NewMongoRecordRepository(ctx context.Context, collection *mongo.Collection, logger *zap.Logger) *MongoRecordRepository {
	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	})
	if err != nil {
		logger.Warn("failed to create record indexes", zap.Error(err))
	}
	return &MongoRecordRepository{collection: collection, logger: logger}
}

func (r *MongoRecordRepository) Get(ctx context.Context, id string) (models.Record, error) {
	var doc recordDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": bson.M{"$eq": id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Record{}, errMissing
	}
	if err != nil {
		return models.Record{}, err
	}
	rec, ok := doc.record()
	if !ok {
		return models.Record{}, errMissing
	}
	return rec, nil
}

func (r *MongoRecordRepository) Insert(ctx context.Context, rec models.Record) error {
	_, err := r.collection.InsertOne(ctx, toDocument(rec))
	if mongo.IsDuplicateKeyError(err) {
		return errDuplicate
	}
	return err
}

func (r *MongoRecordRepository) List(ctx context.Context) ([]models.Record, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := []models.Record{}
	for cursor.Next(ctx) {
		var doc recordDocument
		if err := cursor.Decode(&doc); err != nil {
			r.logger.Warn("skipping undecodable record", zap.Error(err))
			continue
		}
		rec, ok := doc.record()
		if !ok {
			r.logger.Warn("skipping record without location", zap.String("record_id", doc.ID))
			continue
		}
		records = append(records, rec)
	}
	return records, cursor.Err()
}

type MongoReviewRepository struct {
	collection *mongo.Collection
}

func NewMongoReviewRepository(ctx context.Context, collection *mongo.Collection, logger *zap.Logger) *MongoReviewRepository {
	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "record_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "seq", Value: 1}},
	}
	if _, err := collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		logger.Warn("failed to create review index", zap.Error(err))
	}
	return &MongoReviewRepository{collection: collection}
}

// ListByRecord returns reviews oldest first.
func (r *MongoReviewRepository) ListByRecord(ctx context.Context, recordID string) ([]models.Review, error) {
	opts := options.Find().SetSort(reviewSort)
	cursor, err := r.collection.Find(ctx, bson.M{"record_id": recordID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stored []StoredReview
	if err := cursor.All(ctx, &stored); err != nil {
		return nil, err
	}
	reviews := make([]models.Review, 0, len(stored))
	for _, s := range stored {
		reviews = append(reviews, s.Review())
	}
	return reviews, nil
}

func (r *MongoReviewRepository) Insert(ctx context.Context, rv StoredReview) error {
	_, err := r.collection.InsertOne(ctx, rv)
	return err
}
