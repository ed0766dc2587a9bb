package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIngestPostsEventBatch(t *testing.T) {
	var got struct {
		Events []Event `json:"events"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Fatalf("missing auth header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c, err := NewClient(Config{URL: srv.URL, APIKey: "secret"}, srv.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	err = c.Ingest(context.Background(), []Event{{
		Event:              EventLLM,
		ExternalCustomerID: "user-1",
		Metadata:           map[string]any{"inputTokens": 10, "outputTokens": 20, "effort": "low"},
	}})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(got.Events) != 1 || got.Events[0].Event != EventLLM || got.Events[0].ExternalCustomerID != "user-1" {
		t.Fatalf("unexpected body %+v", got)
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient(Config{}, nil); err == nil {
		t.Fatalf("expected error without URL")
	}
}
