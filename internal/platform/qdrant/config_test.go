package qdrant

import (
	"errors"
	"testing"
)

func TestConfigFromEnvDisabledWithoutURL(t *testing.T) {
	t.Setenv("QDRANT_URL", "")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.Enabled() {
		t.Fatalf("expected disabled config, got %+v", cfg)
	}
}

func TestConfigFromEnvValid(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("QDRANT_COLLECTION", "brand_chunks")
	t.Setenv("QDRANT_VECTOR_DIM", "3072")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.Collection != "brand_chunks" || cfg.VectorDim != 3072 || cfg.NamespacePrefix != "aw" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestConfigFromEnvInvalid(t *testing.T) {
	cases := []struct {
		url, dim string
		code     ConfigErrorCode
	}{
		{"qdrant:6333", "3", ConfigErrorInvalidURL},
		{"http://qdrant:6333", "0", ConfigErrorInvalidVectorDim},
	}
	for _, tc := range cases {
		t.Setenv("QDRANT_URL", tc.url)
		t.Setenv("QDRANT_VECTOR_DIM", tc.dim)
		_, err := ConfigFromEnv()
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) || cfgErr.Code != tc.code {
			t.Fatalf("url=%s dim=%s: expected %s, got %v", tc.url, tc.dim, tc.code, err)
		}
	}
}
