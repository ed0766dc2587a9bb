package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
)

func newTestClient(t *testing.T, h http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(logger.NewNop(), Config{URL: srv.URL + "/search", APIKey: "k"}, srv.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestSearchDropsEmptyResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Fatalf("missing auth header")
		}
		var req searchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Query != "oauth pkce" || req.MaxResults != 3 {
			t.Fatalf("unexpected request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(searchResponse{Results: []Result{
			{Title: "RFC 7636", URL: "https://datatracker.ietf.org/doc/html/rfc7636", Content: "PKCE"},
			{},
		}})
	})
	res, err := c.Search(context.Background(), "oauth pkce", 3)
	if err != nil || len(res) != 1 {
		t.Fatalf("Search: %v %v", res, err)
	}
}

func TestSearchEmptyIsDegenerate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(searchResponse{})
	})
	_, err := c.Search(context.Background(), "nothing", 3)
	if !errors.Is(err, ErrNoResults) || Retryable(err) {
		t.Fatalf("expected non-retryable ErrNoResults, got %v", err)
	}
}

func TestSearchServerErrorRetryable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.Search(context.Background(), "oauth", 3)
	if !Retryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}
