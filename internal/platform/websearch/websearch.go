package websearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/agentwriter-backend/internal/pkg/httpx"
	"github.com/yungbote/agentwriter-backend/internal/platform/ctxutil"
	"github.com/yungbote/agentwriter-backend/internal/platform/envutil"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
)

// MethodSearch is the metered method name reported to billing.
const MethodSearch = "search"

var ErrNoResults = errors.New("websearch: no results")

type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type Client interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		URL:     strings.TrimSpace(envutil.String("WEB_SEARCH_URL", "")),
		APIKey:  strings.TrimSpace(envutil.String("WEB_SEARCH_API_KEY", "")),
		Timeout: envutil.Duration("WEB_SEARCH_TIMEOUT", 30*time.Second),
	}
}

type client struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client
}

func NewClient(log *logger.Logger, cfg Config, hc *http.Client) (Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("missing WEB_SEARCH_URL")
	}
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &client{log: log.With("service", "WebSearchClient"), cfg: cfg, http: hc}, nil
}

type searchRequest struct {
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

// Search returns non-empty results only; an empty result set is ErrNoResults.
func (c *client) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("websearch: empty query")
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	var resp searchResponse
	headers := map[string]string{}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}
	start := time.Now()
	err := httpx.DoJSON(ctxutil.Default(ctx), c.http, "websearch", http.MethodPost, c.cfg.URL, headers,
		searchRequest{Query: query, MaxResults: maxResults}, &resp)
	if err != nil {
		c.log.Warn("web search failed", "error", err, "duration", time.Since(start))
		return nil, err
	}
	out := make([]Result, 0, len(resp.Results))
	for _, r := range resp.Results {
		if strings.TrimSpace(r.Content) == "" && strings.TrimSpace(r.Title) == "" {
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, ErrNoResults
	}
	return out, nil
}

// Retryable reports whether a search error may succeed on another attempt.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, ErrNoResults) {
		return false
	}
	var se *httpx.StatusError
	if errors.As(err, &se) {
		return httpx.IsRetryableHTTPStatus(se.StatusCode)
	}
	return !errors.Is(err, context.Canceled)
}
