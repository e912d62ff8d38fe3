package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"

	ArtifactsFile = "file"
	ArtifactsS3   = "s3"

	DefaultSecretKey = "default_local_secret_key"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env         string
	LogLevel    string
	HTTPAddr    string
	StorageMode string
	MongoURI    string
	MongoDB     string

	SecretKey      string
	Algorithm      string
	AccessTokenTTL time.Duration

	ModelPath      string
	FeaturesPath   string
	ScalerPath     string
	ArtifactSource string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3UseSSL       bool

	BenchmarkTime float64
	HistoryLimit  int

	KafkaBrokers       []string
	KafkaTopicPrefix   string
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration
	IdempotencyTTL     time.Duration

	AuthRateLimit  int
	AuthRateWindow time.Duration
	GRPCHealthAddr string
}

// Load reads an optional .env file and then parses the process environment.
// Variables already set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv parses configuration from the current environment.
func FromEnv() (Config, error) {
	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		StorageMode:      strings.ToLower(getEnv("STORAGE_MODE", StorageMongo)),
		MongoURI:         os.Getenv("MONGODB_URL"),
		MongoDB:          os.Getenv("DATABASE_NAME"),
		SecretKey:        getEnv("SECRET_KEY", DefaultSecretKey),
		Algorithm:        strings.ToUpper(getEnv("ALGORITHM", "HS256")),
		ModelPath:        getEnv("MODEL_PATH", "random_forest_model.json"),
		FeaturesPath:     getEnv("FEATURES_PATH", "feature_columns.json"),
		ScalerPath:       getEnv("SCALER_PATH", "sp_scaler.json"),
		ArtifactSource:   strings.ToLower(getEnv("ARTIFACT_SOURCE", ArtifactsFile)),
		S3Endpoint:       getEnv("S3_ENDPOINT", "http://localhost:9000"),
		S3AccessKey:      getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:      getEnv("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:         getEnv("S3_BUCKET", "sprinter-models"),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
		GRPCHealthAddr:   getEnv("GRPC_HEALTH_ADDR", ""),
	}
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.HTTPAddr = ":" + port
	}
	for _, raw := range strings.Split(getEnv("KAFKA_BROKERS", ""), ",") {
		if b := strings.TrimSpace(raw); b != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
		}
	}

	var err error
	if cfg.AccessTokenTTL, err = parseMinutesEnv("ACCESS_TOKEN_EXPIRE_MINUTES", 10080); err != nil {
		return Config{}, err
	}
	if cfg.BenchmarkTime, err = parseFloatEnv("BENCHMARK_TIME", 13.0); err != nil {
		return Config{}, err
	}
	if cfg.HistoryLimit, err = parseIntEnv("HISTORY_LIMIT", 1000); err != nil {
		return Config{}, err
	}
	if cfg.AuthRateLimit, err = parseIntEnv("AUTH_RATE_LIMIT", 10); err != nil {
		return Config{}, err
	}
	if cfg.AuthRateWindow, err = parseDurationEnv("AUTH_RATE_WINDOW", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMP_TTL", 168*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.S3UseSSL, err = parseBoolEnv("S3_USE_SSL", false); err != nil {
		return Config{}, err
	}
	for _, raw := range strings.Split(getEnv("RETRY_BACKOFF", "1s,5s,30s"), ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// UsesDefaultSecret reports whether tokens are signed with the built-in development key.
func (c Config) UsesDefaultSecret() bool {
	return c.SecretKey == DefaultSecretKey
}

// RelayEnabled reports whether outbox events are shipped to Kafka.
func (c Config) RelayEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func (c Config) validate() error {
	switch c.StorageMode {
	case StorageMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGODB_URL is required")
		}
		if c.MongoDB == "" {
			return fmt.Errorf("DATABASE_NAME is required")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("invalid STORAGE_MODE %q", c.StorageMode)
	}
	switch c.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported ALGORITHM %q", c.Algorithm)
	}
	switch c.ArtifactSource {
	case ArtifactsFile, ArtifactsS3:
	default:
		return fmt.Errorf("invalid ARTIFACT_SOURCE %q", c.ArtifactSource)
	}
	if c.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be positive")
	}
	if c.AuthRateLimit < 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT must not be negative")
	}
	if c.AuthRateLimit > 0 && c.AuthRateWindow <= 0 {
		return fmt.Errorf("AUTH_RATE_WINDOW must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseMinutesEnv(key string, def int) (time.Duration, error) {
	n, err := parseIntEnv(key, def)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Minute, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return n, nil
}

func parseFloatEnv(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s number: %w", key, err)
	}
	return f, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
