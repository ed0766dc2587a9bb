package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
	"github.com/yungbote/agentwriter-backend/internal/platform/objectstore"
)

type exportStore interface {
	objectstore.Store
	EnsureBucket(ctx context.Context) error
}

var newExportStore = func(log *logger.Logger, cfg objectstore.Config) (exportStore, error) {
	return objectstore.NewMinioStore(log, cfg)
}

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidConfig StorageProviderBootstrapErrorCode = "invalid_config"
	StorageProviderBootstrapErrorConnectFailed StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code     StorageProviderBootstrapErrorCode
	Endpoint string
	Bucket   string
	Cause    error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "object storage bootstrap failed"
	}
	return fmt.Sprintf(
		"object storage bootstrap failed (code=%s endpoint=%q bucket=%q): %v",
		e.Code,
		e.Endpoint,
		e.Bucket,
		e.Cause,
	)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveExportStore returns the draft export store, or nil when
// MINIO_ENDPOINT is unset. Exports are best-effort, so only a broken
// configuration is an error; an unreachable bucket is logged and retried
// on every Put.
func resolveExportStore(ctx context.Context, log *logger.Logger, cfg objectstore.Config) (objectstore.Store, error) {
	if !cfg.Enabled() {
		log.Info("MINIO_ENDPOINT not set; draft export disabled")
		return nil, nil
	}
	store, err := newExportStore(log, cfg)
	if err != nil {
		bootstrapErr := &StorageProviderBootstrapError{
			Code:     StorageProviderBootstrapErrorInvalidConfig,
			Endpoint: cfg.Endpoint,
			Bucket:   cfg.Bucket,
			Cause:    err,
		}
		log.Error("Object storage provider bootstrap failed", "error_code", bootstrapErr.Code, "error", bootstrapErr)
		return nil, bootstrapErr
	}

	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.EnsureBucket(ensureCtx); err != nil {
		log.Warn("Export bucket not ready; exports will keep retrying",
			"error_code", StorageProviderBootstrapErrorConnectFailed,
			"endpoint", cfg.Endpoint,
			"bucket", cfg.Bucket,
			"error", err,
		)
	}
	return store, nil
}

func storageProviderBootstrapErrorCode(err error) StorageProviderBootstrapErrorCode {
	var bootstrapErr *StorageProviderBootstrapError
	if errors.As(err, &bootstrapErr) && bootstrapErr.Code != "" {
		return bootstrapErr.Code
	}
	return StorageProviderBootstrapErrorConnectFailed
}
