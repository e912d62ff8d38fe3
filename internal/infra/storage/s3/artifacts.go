package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrObjectNotFound = errors.New("s3: object not found")

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// ArtifactSource reads model artifacts from an S3-compatible bucket.
type ArtifactSource struct {
	bucket string
	client *minio.Client
	logger *slog.Logger
}

func NewArtifactSource(cfg Config, logger *slog.Logger) (*ArtifactSource, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	client, err := minio.New(parseEndpoint(endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	return &ArtifactSource{bucket: bucket, client: client, logger: logger}, nil
}

// Open fetches the object at key. The stat call surfaces a missing object here
// rather than on the first read.
func (s *ArtifactSource) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	key = objectKey(key)
	if key == "" {
		return nil, errors.New("s3: object key is required")
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("s3: get object %s: %w", key, err)
	}
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, s.bucket, key)
		}
		return nil, fmt.Errorf("s3: stat object %s: %w", key, err)
	}
	if s.logger != nil {
		s.logger.Info("artifact fetched", "bucket", s.bucket, "key", key, "size", info.Size)
	}
	return obj, nil
}

func objectKey(key string) string {
	return strings.Trim(strings.TrimSpace(key), "/")
}

func parseEndpoint(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}
