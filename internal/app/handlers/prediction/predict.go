package prediction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"sprinter/internal/app/commands"
	"sprinter/internal/app/dto"
	"sprinter/internal/app/middleware"
	"sprinter/internal/app/outbox"
	domainprediction "sprinter/internal/domain/prediction"
)

const predictKey = "prediction.create"

type PredictCommand struct {
	UserID          string `validate:"required"`
	UserEmail       string
	TodayTime       float64
	WeatherType     string
	TrackType       string
	TargetDate      string `validate:"required"`
	IdempotencyKeyV string `validate:"omitempty,max=200"`
}

func (c PredictCommand) Key() string { return predictKey }

// IdempotencyKey scopes the client supplied key to the caller.
func (c PredictCommand) IdempotencyKey() string {
	if c.IdempotencyKeyV == "" {
		return ""
	}
	return predictKey + ":" + c.UserID + ":" + c.IdempotencyKeyV
}

func (c PredictCommand) ResultPrototype() any { return &dto.PredictResponse{} }

func (c PredictCommand) input() domainprediction.Input {
	return domainprediction.Input{
		TodayTime:   c.TodayTime,
		WeatherType: c.WeatherType,
		TrackType:   c.TrackType,
		TargetDate:  c.TargetDate,
	}
}

type PredictHandler struct {
	Estimator   domainprediction.Estimator
	Predictions domainprediction.Repository
	Outbox      outbox.Outbox
	Encoder     outbox.EventEncoder
	Benchmark   float64
	// Location is the zone target dates are read in; nil means time.Local.
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
}

var ErrEstimatorRequired = errors.New("prediction: estimator required")

func (h *PredictHandler) Handle(ctx context.Context, cmd PredictCommand) (*dto.PredictResponse, error) {
	if h.Estimator == nil {
		return nil, ErrEstimatorRequired
	}
	if h.Predictions == nil {
		return nil, errors.New("prediction: repository required")
	}
	if math.IsNaN(cmd.TodayTime) || math.IsInf(cmd.TodayTime, 0) {
		return nil, domainprediction.ErrInvalidTodayTime
	}
	target, err := domainprediction.ParseTargetDate(cmd.TargetDate, h.Location)
	if err != nil {
		return nil, err
	}

	input := cmd.input()
	predicted, err := h.Estimator.Estimate(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("estimate: %w", err)
	}
	now := h.now()
	out := domainprediction.Evaluate(domainprediction.EvaluateParams{
		Input:         input,
		PredictedTime: predicted,
		Target:        target,
		Now:           now,
		Benchmark:     h.Benchmark,
	})

	record, err := domainprediction.NewRecord(domainprediction.NewRecordParams{
		ID:        uuid.NewString(),
		UserID:    cmd.UserID,
		UserEmail: cmd.UserEmail,
		Input:     input,
		Output:    out,
		Now:       now,
	})
	if err != nil {
		return nil, err
	}
	if err := h.Predictions.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("save history: %w", err)
	}

	ev := domainprediction.Created{
		RecordID:    record.ID,
		UserID:      record.UserID,
		Verdict:     out.Verdict,
		Probability: out.Probability,
		HorizonDays: out.HorizonDays,
		At:          record.Timestamp,
	}
	// The record is already stored; the event is best effort.
	if err := outbox.Record(ctx, h.Outbox, h.Encoder, ev); err != nil && h.Logger != nil {
		h.Logger.Warn("prediction event not recorded", "record_id", record.ID, "error", err)
	}

	if h.Logger != nil {
		h.Logger.Info("prediction created",
			"user_id", record.UserID,
			"record_id", record.ID,
			"horizon_days", out.HorizonDays,
			"probability", out.Probability,
		)
	}
	resp := dto.MapPredictResponse(out)
	return &resp, nil
}

func (h *PredictHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

var _ commands.Handler[PredictCommand, *dto.PredictResponse] = (*PredictHandler)(nil)
var _ middleware.IdempotentCommand = PredictCommand{}
