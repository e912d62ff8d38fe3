package prediction

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"sprinter/internal/app/dto"
	"sprinter/internal/app/middleware"
	"sprinter/internal/app/queries"
	domainprediction "sprinter/internal/domain/prediction"
)

const listHistoryKey = "prediction.history.list"

// DefaultHistoryLimit caps a history listing when no limit is configured.
const DefaultHistoryLimit = 1000

type ListHistoryQuery struct {
	RequesterID string `validate:"required"`
	UserID      string `validate:"required"`
	Limit       int    `validate:"gte=0"`
}

func (q ListHistoryQuery) Key() string { return listHistoryKey }

type ListHistoryHandler struct {
	Predictions domainprediction.Repository
	Limit       int
	Logger      *slog.Logger
}

func (h *ListHistoryHandler) Handle(ctx context.Context, q ListHistoryQuery) ([]dto.PredictionHistory, error) {
	if h.Predictions == nil {
		return nil, errors.New("prediction: repository required")
	}
	userID := strings.TrimSpace(q.UserID)
	if userID == "" {
		return nil, domainprediction.ErrUserRequired
	}
	limit := h.limit(q.Limit)
	recs, err := h.Predictions.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Debug("history listed", "user_id", userID, "count", len(recs))
	}
	return dto.MapPredictionHistories(recs), nil
}

func (h *ListHistoryHandler) limit(requested int) int {
	ceiling := h.Limit
	if ceiling <= 0 {
		ceiling = DefaultHistoryLimit
	}
	if requested <= 0 || requested > ceiling {
		return ceiling
	}
	return requested
}

// OwnerOnly lets callers read nothing but their own history.
func OwnerOnly() middleware.Authorizer {
	return middleware.AuthorizerFunc(func(_ context.Context, message any) error {
		q, ok := message.(ListHistoryQuery)
		if !ok {
			return nil
		}
		if q.RequesterID == "" || q.RequesterID != q.UserID {
			return middleware.ErrForbidden
		}
		return nil
	})
}

var _ queries.Handler[ListHistoryQuery, []dto.PredictionHistory] = (*ListHistoryHandler)(nil)
