package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainprediction "sprinter/internal/domain/prediction"
)

type PredictionRepository struct {
	col *mongo.Collection
}

func NewPredictionRepository(ctx context.Context, db *mongo.Database) (*PredictionRepository, error) {
	col := db.Collection("predictions")
	idx := mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}}}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, err
	}
	return &PredictionRepository{col: col}, nil
}

func (r *PredictionRepository) Save(ctx context.Context, record *domainprediction.Record) error {
	if record == nil || record.UserID == "" {
		return domainprediction.ErrUserRequired
	}
	_, err := r.col.InsertOne(ctx, newPredictionDocument(record))
	return err
}

func (r *PredictionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domainprediction.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.col.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	var docs []predictionDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainprediction.Record, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	return out, nil
}

type predictionDocument struct {
	ID        string                  `bson:"_id"`
	UserID    string                  `bson:"user_id"`
	UserEmail string                  `bson:"user_email"`
	Input     domainprediction.Input  `bson:"input"`
	Output    domainprediction.Output `bson:"output"`
	Timestamp time.Time               `bson:"timestamp"`
}

func newPredictionDocument(rec *domainprediction.Record) predictionDocument {
	out := rec.Output
	out.Timestamp = out.Timestamp.UTC()
	return predictionDocument{
		ID:        rec.ID,
		UserID:    rec.UserID,
		UserEmail: rec.UserEmail,
		Input:     rec.Input,
		Output:    out,
		Timestamp: rec.Timestamp.UTC(),
	}
}

func (d predictionDocument) toDomain() *domainprediction.Record {
	out := d.Output
	out.Timestamp = out.Timestamp.UTC()
	return &domainprediction.Record{
		ID:        d.ID,
		UserID:    d.UserID,
		UserEmail: d.UserEmail,
		Input:     d.Input,
		Output:    out,
		Timestamp: d.Timestamp.UTC(),
	}
}

var _ domainprediction.Repository = (*PredictionRepository)(nil)
