package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yungbote/agentwriter-backend/internal/platform/envutil"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
)

// Store keeps exported artifacts (persisted drafts) in an S3-compatible bucket.
type Store interface {
	Put(ctx context.Context, key string, contentType string, data []byte) error
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
}

func ConfigFromEnv() Config {
	return Config{
		Endpoint:  strings.TrimSpace(envutil.String("MINIO_ENDPOINT", "")),
		AccessKey: strings.TrimSpace(envutil.String("MINIO_ACCESS_KEY", "")),
		SecretKey: strings.TrimSpace(envutil.String("MINIO_SECRET_KEY", "")),
		Bucket:    strings.TrimSpace(envutil.String("MINIO_BUCKET", "agentwriter-exports")),
		Region:    strings.TrimSpace(envutil.String("MINIO_REGION", "")),
	}
}

func (c Config) Enabled() bool { return c.Endpoint != "" }

// endpoint splits MINIO_ENDPOINT into host and TLS flag.
func (c Config) endpoint() (string, bool, error) {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid MINIO_ENDPOINT %q: %w", c.Endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false, fmt.Errorf("invalid MINIO_ENDPOINT scheme %q: must be http or https", u.Scheme)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid MINIO_ENDPOINT %q: missing hostname", c.Endpoint)
	}
	return u.Host, u.Scheme == "https", nil
}

type MinioStore struct {
	log    *logger.Logger
	client *minio.Client
	bucket string
	region string
}

func NewMinioStore(log *logger.Logger, cfg Config) (*MinioStore, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("MINIO_BUCKET is required")
	}
	host, secure, err := cfg.endpoint()
	if err != nil {
		return nil, err
	}
	mc, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client for %s: %w", host, err)
	}
	return &MinioStore{
		log:    log.With("service", "ObjectStore", "bucket", cfg.Bucket),
		client: mc,
		bucket: cfg.Bucket,
		region: cfg.Region,
	}, nil
}

// EnsureBucket creates the export bucket when it does not exist yet.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if ok {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	s.log.Info("Created export bucket")
	return nil
}

func (s *MinioStore) Put(ctx context.Context, key string, contentType string, data []byte) error {
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	s.log.Debug("Stored object", "key", key, "size", info.Size, "etag", info.ETag)
	return nil
}

// DraftKey is the export path of one persisted content version.
func DraftKey(contentID string, version int) string {
	return fmt.Sprintf("contents/%s/v%d.md", contentID, version)
}
