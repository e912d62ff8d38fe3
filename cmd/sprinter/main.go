package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"sprinter/internal/app"
	"sprinter/internal/app/middleware"
	appoutbox "sprinter/internal/app/outbox"
	domainprediction "sprinter/internal/domain/prediction"
	domainuser "sprinter/internal/domain/user"
	"sprinter/internal/infra/broker/kafka"
	"sprinter/internal/infra/config"
	mongostore "sprinter/internal/infra/db/mongo"
	grpcserver "sprinter/internal/infra/grpc"
	ginserver "sprinter/internal/infra/http/gin"
	"sprinter/internal/infra/metrics"
	"sprinter/internal/infra/model"
	"sprinter/internal/infra/obs"
	relay "sprinter/internal/infra/outbox"
	"sprinter/internal/infra/security"
	"sprinter/internal/infra/storage/memory"
	"sprinter/internal/infra/storage/s3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger("prod", "info").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)
	if cfg.UsesDefaultSecret() {
		logger.Warn("SECRET_KEY not set, tokens are signed with the development key")
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("sprinter stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("sprinter stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	stores, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.close()

	source, err := artifactSource(cfg, logger)
	if err != nil {
		return err
	}
	pipeline, err := model.Load(ctx, source, model.Paths{
		Model:    cfg.ModelPath,
		Features: cfg.FeaturesPath,
		Scaler:   cfg.ScalerPath,
	})
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	m := metrics.New()
	m.SetModel(pipeline.Trees(), len(pipeline.Columns()))
	logger.Info("model loaded", "trees", pipeline.Trees(), "features", len(pipeline.Columns()), "source", cfg.ArtifactSource)

	tokens, err := security.NewJWTIssuer(cfg.SecretKey, cfg.Algorithm, cfg.AccessTokenTTL)
	if err != nil {
		return err
	}
	application, err := app.New(app.Dependencies{
		Users:        stores.users,
		Predictions:  stores.predictions,
		Idempotency:  stores.idempotency,
		Outbox:       stores.outbox,
		Estimator:    pipeline,
		Passwords:    security.BcryptHasher{},
		Tokens:       tokens,
		Benchmark:    cfg.BenchmarkTime,
		HistoryLimit: cfg.HistoryLimit,
		Observer:     m,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	health := obs.HealthHandlers{Ready: stores.ready}
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, health, ginserver.Handlers{
		Auth:         ginserver.AuthHandler{Service: application.Auth, Logger: logger},
		Prediction:   ginserver.PredictionHandler{Commands: application.Commands, Queries: application.Queries, Logger: logger},
		Authenticate: ginserver.AuthMiddleware{Resolver: application.Auth, Logger: logger}.Require(),
		AuthLimiter:  ginserver.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow),
		Metrics:      m,
	})

	var wg sync.WaitGroup
	if cfg.RelayEnabled() {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, "sprinter")
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer producer.Close()
		worker := &relay.Worker{
			Store:       stores.relay,
			Producer:    relay.NewBreakerProducer(producer, relay.DefaultBreakerConfig(), logger),
			Interval:    cfg.OutboxPollInterval,
			TopicPrefix: cfg.KafkaTopicPrefix,
			Backoff:     cfg.RetryBackoff,
			Logger:      logger,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("outbox relay starting", "brokers", cfg.KafkaBrokers)
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox relay stopped", "error", err)
			}
		}()
	}

	if cfg.GRPCHealthAddr != "" {
		hs := grpcserver.NewHealthServer(stores.ready, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := hs.ListenAndServe(ctx, cfg.GRPCHealthAddr); err != nil {
				logger.Error("grpc health server failed", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode)
	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	wg.Wait()
	return nil
}

type storage struct {
	users       domainuser.Repository
	predictions domainprediction.Repository
	idempotency middleware.IdempotencyStore
	outbox      appoutbox.Outbox
	relay       relay.Store
	ready       func(ctx context.Context) error
	close       func()
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	if cfg.StorageMode == config.StorageMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		box := memory.NewOutbox()
		return storage{
			users:       memory.NewUserRepository(),
			predictions: memory.NewPredictionRepository(),
			idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
			outbox:      box,
			relay:       box,
			ready:       func(context.Context) error { return nil },
			close:       func() {},
		}, nil
	}

	client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return storage{}, fmt.Errorf("connect mongo: %w", err)
	}
	closeClient := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			logger.Error("mongo disconnect failed", "error", err)
		}
	}
	users, err := mongostore.NewUserRepository(ctx, client.DB)
	if err != nil {
		closeClient()
		return storage{}, err
	}
	predictions, err := mongostore.NewPredictionRepository(ctx, client.DB)
	if err != nil {
		closeClient()
		return storage{}, err
	}
	idem, err := mongostore.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
	if err != nil {
		closeClient()
		return storage{}, err
	}
	box, err := relay.NewMongoStore(ctx, client.DB)
	if err != nil {
		closeClient()
		return storage{}, err
	}
	logger.Info("connected to MongoDB", "database", cfg.MongoDB)
	return storage{
		users:       users,
		predictions: predictions,
		idempotency: idem,
		outbox:      box,
		relay:       box,
		ready:       client.Ping,
		close:       closeClient,
	}, nil
}

func artifactSource(cfg config.Config, logger *slog.Logger) (model.Source, error) {
	if cfg.ArtifactSource != config.ArtifactsS3 {
		return model.FileSource{}, nil
	}
	src, err := s3.NewArtifactSource(s3.Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		UseSSL:    cfg.S3UseSSL,
	}, logger)
	if err != nil {
		return nil, err
	}
	return src, nil
}
