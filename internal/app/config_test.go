package app

import (
	"testing"
	"time"

	"github.com/yungbote/agentwriter-backend/internal/jobs/monitor"
)

func TestApplyPipelineFile(t *testing.T) {
	cfg := Config{Monitor: monitor.Config{Interval: monitor.DefaultInterval, Timeout: monitor.DefaultTimeout}}
	raw := []byte(`
queues:
  content.writing:
    concurrency: 8
    rate_limit: {max: 20, per: 1s}
    max_attempts: 5
    backoff: [10s, 1m]
    timeout: 15m
  chunks.save:
    concurrency: 1
monitor:
  interval: 1m
`)
	if err := applyPipelineFile(&cfg, raw); err != nil {
		t.Fatalf("applyPipelineFile: %v", err)
	}
	w, ok := cfg.QueueOverrides["content.writing"]
	if !ok {
		t.Fatalf("expected content.writing override, got %v", cfg.QueueOverrides)
	}
	if w.Concurrency != 8 || w.MaxAttempts != 5 || w.Timeout != 15*time.Minute {
		t.Fatalf("unexpected content.writing override: %+v", w)
	}
	if w.RateLimit.Max != 20 || w.RateLimit.Per != time.Second {
		t.Fatalf("unexpected rate limit: %+v", w.RateLimit)
	}
	if len(w.Backoff) != 2 || w.Backoff[1] != time.Minute {
		t.Fatalf("unexpected backoff: %v", w.Backoff)
	}
	if c := cfg.QueueOverrides["chunks.save"]; c.Concurrency != 1 || c.Timeout != 0 {
		t.Fatalf("unset fields must stay zero so registration defaults win: %+v", c)
	}
	if cfg.Monitor.Interval != time.Minute || cfg.Monitor.Timeout != monitor.DefaultTimeout {
		t.Fatalf("unexpected monitor config: %+v", cfg.Monitor)
	}
}

func TestApplyPipelineFileRejectsBadDurations(t *testing.T) {
	cases := []string{
		"queues:\n  content.writing:\n    timeout: soon\n",
		"queues:\n  content.writing:\n    backoff: [5s, -1s]\n",
		"monitor:\n  interval: every minute\n",
		"queues: [not, a, map]\n",
	}
	for _, raw := range cases {
		cfg := Config{}
		if err := applyPipelineFile(&cfg, []byte(raw)); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" https://a.example.com, ,https://b.example.com ")
	if len(got) != 2 || got[0] != "https://a.example.com" || got[1] != "https://b.example.com" {
		t.Fatalf("splitList: %v", got)
	}
	if splitList("") != nil {
		t.Fatalf("empty list must be nil")
	}
}
