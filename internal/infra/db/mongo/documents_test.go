package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"sprinter/internal/app/middleware"
	domainprediction "sprinter/internal/domain/prediction"
	domainuser "sprinter/internal/domain/user"
)

func TestUserDocumentRoundTripsThroughBSON(t *testing.T) {
	created := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	user := &domainuser.User{ID: "u1", Name: "Ann", Email: " Ann@Example.com", PasswordHash: "$2a$hash", CreatedAt: created}

	raw, err := bson.Marshal(newUserDocument(user))
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	assert.Equal(t, "ann@example.com", m["email"])
	assert.Equal(t, "$2a$hash", m["password"])

	var doc userDocument
	require.NoError(t, bson.Unmarshal(raw, &doc))
	got := doc.toDomain()
	assert.Equal(t, domainuser.ID("u1"), got.ID)
	assert.Equal(t, created, got.CreatedAt)
}

func TestUserDocumentReadsExistingUsers(t *testing.T) {
	oid := primitive.NewObjectID()
	created := time.Date(2025, 11, 20, 8, 30, 0, 0, time.UTC)
	raw, err := bson.Marshal(bson.D{
		{Key: "_id", Value: oid},
		{Key: "name", Value: "Ann"},
		{Key: "email", Value: "ann@example.com"},
		{Key: "password", Value: "$2b$12$abc"},
		{Key: "created_at", Value: created},
	})
	require.NoError(t, err)

	var doc userDocument
	require.NoError(t, bson.Unmarshal(raw, &doc))
	got := doc.toDomain()
	assert.Equal(t, domainuser.ID(oid.Hex()), got.ID)
	assert.Equal(t, "$2b$12$abc", got.PasswordHash)
	assert.Equal(t, "ann@example.com", got.Email)
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestIDFilterMatchesObjectIDs(t *testing.T) {
	oid := primitive.NewObjectID()
	assert.Equal(t, bson.M{"_id": bson.M{"$in": bson.A{oid.Hex(), oid}}}, idFilter(domainuser.ID(oid.Hex())))
	assert.Equal(t, bson.M{"_id": "0b9c2f7e-uuid"}, idFilter("0b9c2f7e-uuid"))
}

func TestPredictionDocumentKeepsHistoryShape(t *testing.T) {
	ts := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	rec := &domainprediction.Record{
		ID:        "p1",
		UserID:    "u1",
		UserEmail: "ann@example.com",
		Input:     domainprediction.Input{TodayTime: 12.4, WeatherType: "Sunny", TrackType: "Outdoor", TargetDate: "2026-06-01"},
		Output:    domainprediction.Output{AdjustedTime: 12.3, Verdict: domainprediction.VerdictTopThree, Timestamp: ts},
		Timestamp: ts,
	}

	raw, err := bson.Marshal(newPredictionDocument(rec))
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	input, ok := m["input"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, "Sunny", input["weather_type"])
	output, ok := m["output"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, string(domainprediction.VerdictTopThree), output["verdict"])

	var doc predictionDocument
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, rec, doc.toDomain())
}

func TestStaleReservationFilter(t *testing.T) {
	now := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	f := staleReservationFilter("prediction.create:u1:k", now)
	assert.Equal(t, "prediction.create:u1:k", f["_id"])
	assert.Equal(t, true, f["pending"])
	assert.Equal(t, bson.M{"$lt": now.Add(-middleware.ReservationTimeout)}, f["occurred_at"])
}

func TestIdempotencyDocumentCarriesPendingFlag(t *testing.T) {
	raw, err := bson.Marshal(idempotencyDocument{Key: "k", Pending: true, OccurredAt: time.Unix(0, 0).UTC()})
	require.NoError(t, err)
	var doc idempotencyDocument
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.True(t, doc.toRecord().Pending)
}
