package app

import (
	"errors"
	"net/http"
	"testing"

	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
	"github.com/yungbote/agentwriter-backend/internal/platform/qdrant"
)

func withQdrantFactories(t *testing.T, fromEnv func() (qdrant.Config, error), newStore func(*logger.Logger, qdrant.Config, *http.Client) (qdrant.Store, error)) {
	t.Helper()
	prevEnv, prevStore := qdrantConfigFromEnv, newQdrantStore
	qdrantConfigFromEnv, newQdrantStore = fromEnv, newStore
	t.Cleanup(func() { qdrantConfigFromEnv, newQdrantStore = prevEnv, prevStore })
}

func TestResolveVectorStoreDisabledWithoutURL(t *testing.T) {
	withQdrantFactories(t,
		func() (qdrant.Config, error) { return qdrant.Config{}, nil },
		func(*logger.Logger, qdrant.Config, *http.Client) (qdrant.Store, error) {
			t.Fatalf("store must not be built when retrieval is disabled")
			return nil, nil
		},
	)
	store, err := resolveVectorStore(logger.NewNop())
	if err != nil || store != nil {
		t.Fatalf("expected disabled store, got %v %v", store, err)
	}
}

func TestResolveVectorStoreClassifiesConfigErrors(t *testing.T) {
	cases := []struct {
		cfgErr *qdrant.ConfigError
		want   VectorProviderBootstrapErrorCode
	}{
		{&qdrant.ConfigError{Code: qdrant.ConfigErrorInvalidURL, Value: "qdrant:6333"}, VectorProviderBootstrapErrorInvalidQdrantURL},
		{&qdrant.ConfigError{Code: qdrant.ConfigErrorMissingCollection}, VectorProviderBootstrapErrorMissingQdrantColl},
		{&qdrant.ConfigError{Code: qdrant.ConfigErrorInvalidVectorDim, Value: "0"}, VectorProviderBootstrapErrorInvalidQdrantVector},
	}
	for _, tc := range cases {
		cfgErr := tc.cfgErr
		withQdrantFactories(t,
			func() (qdrant.Config, error) { return qdrant.Config{}, cfgErr },
			newQdrantStore,
		)
		_, err := resolveVectorStore(logger.NewNop())
		var bootstrapErr *VectorProviderBootstrapError
		if !errors.As(err, &bootstrapErr) {
			t.Fatalf("expected bootstrap error, got %v", err)
		}
		if bootstrapErr.Code != tc.want {
			t.Fatalf("code: got=%s want=%s", bootstrapErr.Code, tc.want)
		}
		if !errors.Is(err, cfgErr) {
			t.Fatalf("bootstrap error must wrap the config error")
		}
	}
}

func TestResolveVectorStoreInitFailure(t *testing.T) {
	boom := errors.New("boom")
	withQdrantFactories(t,
		func() (qdrant.Config, error) {
			return qdrant.Config{URL: "http://qdrant:6333", Collection: "aw", VectorDim: 1536}, nil
		},
		func(*logger.Logger, qdrant.Config, *http.Client) (qdrant.Store, error) { return nil, boom },
	)
	_, err := resolveVectorStore(logger.NewNop())
	if vectorProviderBootstrapErrorCode(err) != VectorProviderBootstrapErrorProviderInitFailed || !errors.Is(err, boom) {
		t.Fatalf("unexpected error: %v", err)
	}
}
