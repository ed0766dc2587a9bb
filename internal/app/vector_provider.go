package app

import (
	"errors"
	"fmt"

	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
	"github.com/yungbote/agentwriter-backend/internal/platform/qdrant"
)

var (
	qdrantConfigFromEnv = qdrant.ConfigFromEnv
	newQdrantStore      = qdrant.NewStore
)

type VectorProviderBootstrapErrorCode string

const (
	VectorProviderBootstrapErrorMissingQdrantURL    VectorProviderBootstrapErrorCode = "missing_qdrant_url"
	VectorProviderBootstrapErrorInvalidQdrantURL    VectorProviderBootstrapErrorCode = "invalid_qdrant_url"
	VectorProviderBootstrapErrorMissingQdrantColl   VectorProviderBootstrapErrorCode = "missing_qdrant_collection"
	VectorProviderBootstrapErrorInvalidQdrantVector VectorProviderBootstrapErrorCode = "invalid_qdrant_vector_dim"
	VectorProviderBootstrapErrorProviderInitFailed  VectorProviderBootstrapErrorCode = "provider_init_failed"
)

type VectorProviderBootstrapError struct {
	Code  VectorProviderBootstrapErrorCode
	URL   string
	Cause error
}

func (e *VectorProviderBootstrapError) Error() string {
	if e == nil {
		return "vector provider bootstrap failed"
	}
	return fmt.Sprintf("vector provider bootstrap failed (code=%s url=%q): %v", e.Code, e.URL, e.Cause)
}

func (e *VectorProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveVectorStore returns the brand retrieval store. An unset QDRANT_URL
// disables retrieval: stages run without brand context and brand documents
// cannot be embedded.
func resolveVectorStore(log *logger.Logger) (qdrant.Store, error) {
	cfg, err := qdrantConfigFromEnv()
	if err != nil {
		classified := classifyVectorProviderBootstrapError(cfg.URL, err)
		log.Error("Vector store provider bootstrap failed", "error_code", vectorProviderBootstrapErrorCode(classified), "error", classified)
		return nil, classified
	}
	if !cfg.Enabled() {
		log.Warn("QDRANT_URL not set; brand retrieval disabled")
		return nil, nil
	}
	store, err := newQdrantStore(log, cfg, nil)
	if err != nil {
		classified := classifyVectorProviderBootstrapError(cfg.URL, err)
		log.Error("Vector store provider bootstrap failed",
			"qdrant_url", cfg.URL,
			"qdrant_collection", cfg.Collection,
			"error_code", vectorProviderBootstrapErrorCode(classified),
			"error", classified,
		)
		return nil, classified
	}
	return store, nil
}

func classifyVectorProviderBootstrapError(url string, err error) error {
	var cfgErr *qdrant.ConfigError
	if errors.As(err, &cfgErr) {
		code := VectorProviderBootstrapErrorProviderInitFailed
		switch cfgErr.Code {
		case qdrant.ConfigErrorMissingURL:
			code = VectorProviderBootstrapErrorMissingQdrantURL
		case qdrant.ConfigErrorInvalidURL:
			code = VectorProviderBootstrapErrorInvalidQdrantURL
		case qdrant.ConfigErrorMissingCollection:
			code = VectorProviderBootstrapErrorMissingQdrantColl
		case qdrant.ConfigErrorInvalidVectorDim:
			code = VectorProviderBootstrapErrorInvalidQdrantVector
		}
		return &VectorProviderBootstrapError{Code: code, URL: url, Cause: err}
	}
	return &VectorProviderBootstrapError{Code: VectorProviderBootstrapErrorProviderInitFailed, URL: url, Cause: err}
}

func vectorProviderBootstrapErrorCode(err error) VectorProviderBootstrapErrorCode {
	var bootstrapErr *VectorProviderBootstrapError
	if errors.As(err, &bootstrapErr) && bootstrapErr.Code != "" {
		return bootstrapErr.Code
	}
	return VectorProviderBootstrapErrorProviderInitFailed
}
