package qdrant

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/yungbote/agentwriter-backend/internal/platform/envutil"
)

type Config struct {
	URL             string
	APIKey          string
	Collection      string
	NamespacePrefix string
	VectorDim       int
}

type ConfigErrorCode string

const (
	ConfigErrorMissingURL        ConfigErrorCode = "missing_url"
	ConfigErrorInvalidURL        ConfigErrorCode = "invalid_url"
	ConfigErrorMissingCollection ConfigErrorCode = "missing_collection"
	ConfigErrorInvalidVectorDim  ConfigErrorCode = "invalid_vector_dim"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	switch e.Code {
	case ConfigErrorMissingURL:
		return "QDRANT_URL is required"
	case ConfigErrorInvalidURL:
		return fmt.Sprintf("invalid QDRANT_URL=%q; expected absolute URL like http://qdrant:6333", e.Value)
	case ConfigErrorMissingCollection:
		return "QDRANT_COLLECTION is required"
	case ConfigErrorInvalidVectorDim:
		return fmt.Sprintf("invalid QDRANT_VECTOR_DIM=%q; expected positive integer", e.Value)
	default:
		return "invalid qdrant config"
	}
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// ConfigFromEnv reads the QDRANT_* variables. An unset QDRANT_URL yields a
// zero Config, which callers treat as "retrieval disabled".
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		URL:             strings.TrimSpace(envutil.String("QDRANT_URL", "")),
		APIKey:          strings.TrimSpace(envutil.String("QDRANT_API_KEY", "")),
		Collection:      strings.TrimSpace(envutil.String("QDRANT_COLLECTION", "agentwriter")),
		NamespacePrefix: strings.TrimSpace(envutil.String("QDRANT_NAMESPACE_PREFIX", "aw")),
		VectorDim:       envutil.Int("QDRANT_VECTOR_DIM", 1536),
	}
	if cfg.URL == "" {
		return Config{}, nil
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Enabled() bool { return c.URL != "" }

func (c Config) Validate() error {
	if c.URL == "" {
		return &ConfigError{Code: ConfigErrorMissingURL}
	}
	parsed, err := url.Parse(c.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return &ConfigError{Code: ConfigErrorInvalidURL, Value: c.URL, Cause: err}
	}
	if strings.TrimSpace(c.Collection) == "" {
		return &ConfigError{Code: ConfigErrorMissingCollection}
	}
	if c.VectorDim <= 0 {
		return &ConfigError{Code: ConfigErrorInvalidVectorDim, Value: strconv.Itoa(c.VectorDim)}
	}
	return nil
}
