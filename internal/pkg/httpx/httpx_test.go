package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDoJSONDecodesAndClassifiesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/busy" {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("slow down"))
			return
		}
		if r.Header.Get("X-Api-Key") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	if err := DoJSON(context.Background(), srv.Client(), "billing", http.MethodPost, srv.URL+"/ok", map[string]string{"X-Api-Key": "k"}, map[string]any{"a": 1}, &out); err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if !out.OK {
		t.Fatalf("expected decoded ok=true")
	}

	err := DoJSON(context.Background(), srv.Client(), "billing", http.MethodGet, srv.URL+"/busy", nil, nil, nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusTooManyRequests || se.Body != "slow down" {
		t.Fatalf("unexpected status error: %+v", se)
	}
	if !IsRetryableError(err) {
		t.Fatalf("429 should be retryable")
	}

	err = DoJSON(context.Background(), srv.Client(), "billing", http.MethodGet, srv.URL+"/ok", nil, nil, nil)
	if IsRetryableError(err) {
		t.Fatalf("401 should not be retryable: %v", err)
	}
}
