package objectstore

import (
	"testing"

	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
)

func TestNewMinioStoreValidatesConfig(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid https", Config{Endpoint: "https://minio.example.com:9000", AccessKey: "a", SecretKey: "s", Bucket: "b"}, false},
		{"valid http", Config{Endpoint: "http://localhost:9000", AccessKey: "a", SecretKey: "s", Bucket: "b"}, false},
		{"missing scheme", Config{Endpoint: "minio.example.com:9000", AccessKey: "a", SecretKey: "s", Bucket: "b"}, true},
		{"missing keys", Config{Endpoint: "https://minio.example.com", Bucket: "b"}, true},
		{"missing bucket", Config{Endpoint: "https://minio.example.com", AccessKey: "a", SecretKey: "s"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewMinioStore(logger.NewNop(), tc.cfg)
			if (err != nil) != tc.wantErr {
				t.Fatalf("wantErr=%v got %v", tc.wantErr, err)
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("MINIO_ENDPOINT", "https://minio.example.com:9000")
	t.Setenv("MINIO_BUCKET", "")
	cfg := ConfigFromEnv()
	if !cfg.Enabled() || cfg.Bucket != "agentwriter-exports" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestDraftKey(t *testing.T) {
	if got := DraftKey("c1", 3); got != "contents/c1/v3.md" {
		t.Fatalf("DraftKey: %s", got)
	}
}
