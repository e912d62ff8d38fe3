package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"sprinter/internal/app/commands"
	"sprinter/internal/app/dto"
	predictionapp "sprinter/internal/app/handlers/prediction"
	"sprinter/internal/app/middleware"
	"sprinter/internal/app/queries"
	domainprediction "sprinter/internal/domain/prediction"
)

type PredictionHTTP interface {
	Predict(c *gin.Context)
	History(c *gin.Context)
	UserHistory(c *gin.Context)
}

type PredictionHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type predictRequest struct {
	TodayTime   *float64 `json:"today_time" binding:"required"`
	WeatherType *string  `json:"weather_type" binding:"required"`
	TrackType   *string  `json:"track_type" binding:"required"`
	TargetDate  string   `json:"target_date" binding:"required"`
}

func (h PredictionHandler) Predict(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	if h.Commands == nil {
		abortDetail(c, http.StatusServiceUnavailable, "Predictions unavailable")
		return
	}
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortDetail(c, http.StatusUnprocessableEntity, "Invalid request body: "+err.Error())
		return
	}
	cmd := predictionapp.PredictCommand{
		UserID:          p.ID,
		UserEmail:       p.Email,
		TodayTime:       *req.TodayTime,
		WeatherType:     *req.WeatherType,
		TrackType:       *req.TrackType,
		TargetDate:      req.TargetDate,
		IdempotencyKeyV: strings.TrimSpace(c.GetHeader("Idempotency-Key")),
	}
	result, err := commands.Dispatch[predictionapp.PredictCommand, *dto.PredictResponse](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.respondPredictError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h PredictionHandler) History(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	h.listHistory(c, p, p.ID)
}

func (h PredictionHandler) UserHistory(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	h.listHistory(c, p, c.Param("user_id"))
}

func (h PredictionHandler) listHistory(c *gin.Context, p principal, userID string) {
	if h.Queries == nil {
		abortDetail(c, http.StatusServiceUnavailable, "History unavailable")
		return
	}
	query := predictionapp.ListHistoryQuery{RequesterID: p.ID, UserID: userID}
	result, err := queries.Ask[predictionapp.ListHistoryQuery, []dto.PredictionHistory](c.Request.Context(), h.Queries, query)
	if err != nil {
		switch {
		case errors.Is(err, middleware.ErrForbidden):
			abortDetail(c, http.StatusForbidden, "Not authorized to access this user's history")
		case errors.Is(err, middleware.ErrInvalidInput):
			abortDetail(c, http.StatusUnprocessableEntity, err.Error())
		default:
			if h.Logger != nil {
				h.Logger.Error("history query failed", "error", err, "user_id", p.ID)
			}
			abortDetail(c, http.StatusInternalServerError, "Failed to load prediction history")
		}
		return
	}
	if result == nil {
		result = []dto.PredictionHistory{}
	}
	c.JSON(http.StatusOK, result)
}

func (h PredictionHandler) respondPredictError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domainprediction.ErrInvalidTargetDate):
		abortDetail(c, http.StatusBadRequest, "Invalid target_date, expected YYYY-MM-DD")
	case errors.Is(err, domainprediction.ErrInvalidTodayTime):
		abortDetail(c, http.StatusBadRequest, "today_time must be a finite number")
	case errors.Is(err, middleware.ErrInvalidInput):
		abortDetail(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, middleware.ErrRequestInProgress):
		abortDetail(c, http.StatusConflict, "A request with this Idempotency-Key is still in progress")
	default:
		if h.Logger != nil {
			h.Logger.Error("prediction failed", "error", err)
		}
		abortDetail(c, http.StatusInternalServerError, "Prediction failed: "+err.Error())
	}
}

var _ PredictionHTTP = PredictionHandler{}
