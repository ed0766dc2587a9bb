package billing

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/agentwriter-backend/internal/pkg/httpx"
	"github.com/yungbote/agentwriter-backend/internal/platform/ctxutil"
	"github.com/yungbote/agentwriter-backend/internal/platform/envutil"
)

const (
	EventLLM       = "LLM"
	EventWebSearch = "WEB_SEARCH"
)

// Event is one usage record for the metering API.
type Event struct {
	Event              string         `json:"event"`
	ExternalCustomerID string         `json:"externalCustomerId"`
	Metadata           map[string]any `json:"metadata"`
	Timestamp          time.Time      `json:"timestamp"`
	IdempotencyKey     string         `json:"idempotencyKey,omitempty"`
}

type Client interface {
	Ingest(ctx context.Context, events []Event) error
}

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		URL:     strings.TrimSpace(envutil.String("BILLING_INGEST_URL", "")),
		APIKey:  strings.TrimSpace(envutil.String("BILLING_API_KEY", "")),
		Timeout: envutil.Duration("BILLING_TIMEOUT", 10*time.Second),
	}
}

func (c Config) Enabled() bool { return c.URL != "" }

type client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config, hc *http.Client) (Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("missing BILLING_INGEST_URL")
	}
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &client{cfg: cfg, http: hc}, nil
}

func (c *client) Ingest(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	headers := map[string]string{}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}
	return httpx.DoJSON(ctxutil.Default(ctx), c.http, "billing ingest", http.MethodPost, c.cfg.URL, headers,
		map[string]any{"events": events}, nil)
}
