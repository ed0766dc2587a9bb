package app

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
	"github.com/yungbote/agentwriter-backend/internal/platform/objectstore"
)

type fakeExportStore struct {
	ensureErr error
	ensured   int
}

func (f *fakeExportStore) Put(context.Context, string, string, []byte) error { return nil }

func (f *fakeExportStore) EnsureBucket(context.Context) error {
	f.ensured++
	return f.ensureErr
}

func withExportFactory(t *testing.T, f func(*logger.Logger, objectstore.Config) (exportStore, error)) {
	t.Helper()
	prev := newExportStore
	newExportStore = f
	t.Cleanup(func() { newExportStore = prev })
}

func TestResolveExportStoreDisabled(t *testing.T) {
	store, err := resolveExportStore(context.Background(), logger.NewNop(), objectstore.Config{})
	if err != nil || store != nil {
		t.Fatalf("expected nil store, got %v %v", store, err)
	}
}

func TestResolveExportStoreInvalidConfig(t *testing.T) {
	boom := errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required")
	withExportFactory(t, func(*logger.Logger, objectstore.Config) (exportStore, error) { return nil, boom })

	_, err := resolveExportStore(context.Background(), logger.NewNop(), objectstore.Config{Endpoint: "http://minio:9000", Bucket: "exports"})
	if storageProviderBootstrapErrorCode(err) != StorageProviderBootstrapErrorInvalidConfig || !errors.Is(err, boom) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestResolveExportStoreToleratesUnreachableBucket(t *testing.T) {
	fake := &fakeExportStore{ensureErr: errors.New("connection refused")}
	withExportFactory(t, func(*logger.Logger, objectstore.Config) (exportStore, error) { return fake, nil })

	store, err := resolveExportStore(context.Background(), logger.NewNop(), objectstore.Config{Endpoint: "http://minio:9000", Bucket: "exports"})
	if err != nil || store == nil {
		t.Fatalf("expected a usable store, got %v %v", store, err)
	}
	if fake.ensured != 1 {
		t.Fatalf("expected one EnsureBucket call, got %d", fake.ensured)
	}
}
