package prediction

import (
	"context"
	"errors"
	"strings"
	"time"
)

// TargetDateLayout accepts month and day with or without zero padding.
const TargetDateLayout = "2006-1-2"

var (
	ErrInvalidTargetDate = errors.New("prediction: target_date must be formatted as YYYY-MM-DD")
	ErrInvalidTodayTime  = errors.New("prediction: today_time must be a finite number")
	ErrUserRequired      = errors.New("prediction: user is required")
	ErrNotFound          = errors.New("prediction: not found")
)

// Input is the athlete data submitted for a single prediction.
type Input struct {
	TodayTime   float64 `json:"today_time" bson:"today_time"`
	WeatherType string  `json:"weather_type" bson:"weather_type"`
	TrackType   string  `json:"track_type" bson:"track_type"`
	TargetDate  string  `json:"target_date" bson:"target_date"`
}

type Output struct {
	AdjustedTime float64   `json:"adjusted_time" bson:"adjusted_time"`
	Benchmark    float64   `json:"benchmark" bson:"benchmark"`
	Gap          float64   `json:"gap" bson:"gap"`
	Probability  float64   `json:"probability" bson:"probability"`
	Verdict      Verdict   `json:"verdict" bson:"verdict"`
	HorizonDays  int       `json:"horizon_days" bson:"horizon_days"`
	Timestamp    time.Time `json:"timestamp" bson:"timestamp"`
}

// Record is one persisted prediction in a user's history.
type Record struct {
	ID        string
	UserID    string
	UserEmail string
	Input     Input
	Output    Output
	Timestamp time.Time
}

type Repository interface {
	Save(ctx context.Context, record *Record) error
	// ListByUser returns the newest records first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*Record, error)
}

// Estimator turns an input into the model's raw time prediction.
type Estimator interface {
	Estimate(ctx context.Context, input Input) (float64, error)
}

type NewRecordParams struct {
	ID        string
	UserID    string
	UserEmail string
	Input     Input
	Output    Output
	Now       time.Time
}

func NewRecord(params NewRecordParams) (*Record, error) {
	userID := strings.TrimSpace(params.UserID)
	if userID == "" {
		return nil, ErrUserRequired
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	return &Record{
		ID:        params.ID,
		UserID:    userID,
		UserEmail: params.UserEmail,
		Input:     params.Input,
		Output:    params.Output,
		Timestamp: now.UTC(),
	}, nil
}

// ParseTargetDate reads a calendar date as midnight in loc.
func ParseTargetDate(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(TargetDateLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, ErrInvalidTargetDate
	}
	return t, nil
}
