// Package app assembles the auth service and the command and query buses
// from storage and model dependencies.
package app

import (
	"errors"
	"log/slog"
	"time"

	"sprinter/internal/app/commands"
	"sprinter/internal/app/dto"
	predictionapp "sprinter/internal/app/handlers/prediction"
	"sprinter/internal/app/middleware"
	"sprinter/internal/app/outbox"
	"sprinter/internal/app/queries"
	authsvc "sprinter/internal/app/services/auth"
	domainprediction "sprinter/internal/domain/prediction"
	domainuser "sprinter/internal/domain/user"
)

type Dependencies struct {
	Users       domainuser.Repository
	Predictions domainprediction.Repository
	Idempotency middleware.IdempotencyStore
	Outbox      outbox.Outbox
	Estimator   domainprediction.Estimator
	Passwords   authsvc.PasswordHasher
	Tokens      authsvc.TokenIssuer

	Benchmark    float64
	HistoryLimit int
	// Location is the zone target dates are read in; nil means time.Local.
	Location *time.Location
	Observer middleware.Observer
	Logger   *slog.Logger
	Now      func() time.Time
}

type Application struct {
	Auth     *authsvc.Service
	Commands commands.Bus
	Queries  queries.Bus
}

var ErrMissingDependency = errors.New("app: missing dependency")

func New(deps Dependencies) (*Application, error) {
	switch {
	case deps.Users == nil, deps.Predictions == nil, deps.Estimator == nil,
		deps.Passwords == nil, deps.Tokens == nil, deps.Outbox == nil, deps.Idempotency == nil:
		return nil, ErrMissingDependency
	}
	encoder := outbox.JSONEventEncoder{}
	validator := middleware.NewStructValidator()

	authService := &authsvc.Service{
		Users:     deps.Users,
		Passwords: deps.Passwords,
		Tokens:    deps.Tokens,
		Outbox:    deps.Outbox,
		Encoder:   encoder,
		Logger:    deps.Logger,
		Now:       deps.Now,
	}

	commandBus := commands.NewInMemoryBus()
	commands.Register[predictionapp.PredictCommand, *dto.PredictResponse](commandBus, &predictionapp.PredictHandler{
		Estimator:   deps.Estimator,
		Predictions: deps.Predictions,
		Outbox:      deps.Outbox,
		Encoder:     encoder,
		Benchmark:   deps.Benchmark,
		Location:    deps.Location,
		Now:         deps.Now,
		Logger:      deps.Logger,
	})

	queryBus := queries.NewInMemoryBus()
	queries.Register[predictionapp.ListHistoryQuery, []dto.PredictionHistory](queryBus, &predictionapp.ListHistoryHandler{
		Predictions: deps.Predictions,
		Limit:       deps.HistoryLimit,
		Logger:      deps.Logger,
	})

	return &Application{
		Auth: authService,
		Commands: middleware.ChainCommands(
			commandBus,
			middleware.CommandInstrumentation(deps.Observer),
			middleware.Validation(validator),
			middleware.Idempotency(deps.Idempotency),
			middleware.OutboxFlush(deps.Outbox),
		),
		Queries: middleware.ChainQueries(
			queryBus,
			middleware.QueryInstrumentation(deps.Observer),
			middleware.QueryValidation(validator),
			middleware.QueryAuthorization(predictionapp.OwnerOnly()),
		),
	}, nil
}
