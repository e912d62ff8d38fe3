package dto

import (
	"time"

	domainprediction "sprinter/internal/domain/prediction"
)

type PredictResponse struct {
	AdjustedTime float64   `json:"adjusted_time"`
	Benchmark    float64   `json:"benchmark"`
	Gap          float64   `json:"gap"`
	Probability  float64   `json:"probability"`
	Verdict      string    `json:"verdict"`
	HorizonDays  int       `json:"horizon_days"`
	Timestamp    time.Time `json:"timestamp"`
}

type PredictInput struct {
	TodayTime   float64 `json:"today_time"`
	WeatherType string  `json:"weather_type"`
	TrackType   string  `json:"track_type"`
	TargetDate  string  `json:"target_date"`
}

// PredictionHistory is one entry of a user's prediction history.
type PredictionHistory struct {
	ID        string          `json:"_id"`
	UserID    string          `json:"user_id"`
	UserEmail string          `json:"user_email"`
	Input     PredictInput    `json:"input"`
	Output    PredictResponse `json:"output"`
	Timestamp time.Time       `json:"timestamp"`
}

func MapPredictResponse(out domainprediction.Output) PredictResponse {
	return PredictResponse{
		AdjustedTime: out.AdjustedTime,
		Benchmark:    out.Benchmark,
		Gap:          out.Gap,
		Probability:  out.Probability,
		Verdict:      string(out.Verdict),
		HorizonDays:  out.HorizonDays,
		Timestamp:    out.Timestamp,
	}
}

func MapPredictionHistory(rec *domainprediction.Record) PredictionHistory {
	if rec == nil {
		return PredictionHistory{}
	}
	return PredictionHistory{
		ID:        rec.ID,
		UserID:    rec.UserID,
		UserEmail: rec.UserEmail,
		Input: PredictInput{
			TodayTime:   rec.Input.TodayTime,
			WeatherType: rec.Input.WeatherType,
			TrackType:   rec.Input.TrackType,
			TargetDate:  rec.Input.TargetDate,
		},
		Output:    MapPredictResponse(rec.Output),
		Timestamp: rec.Timestamp,
	}
}

func MapPredictionHistories(recs []*domainprediction.Record) []PredictionHistory {
	out := make([]PredictionHistory, 0, len(recs))
	for _, rec := range recs {
		out = append(out, MapPredictionHistory(rec))
	}
	return out
}
