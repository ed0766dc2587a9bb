package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/agentwriter-backend/internal/data/repos"
	"github.com/yungbote/agentwriter-backend/internal/data/repos/testutil"
	jobstate "github.com/yungbote/agentwriter-backend/internal/domain/jobs"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
)

type countingNotifier struct{ n int }

func (c *countingNotifier) Notify(dbctx.Context, string) error {
	c.n++
	return nil
}

func TestOptionsDefaultsAndBackoff(t *testing.T) {
	o := Options{Name: "content.writing"}.WithDefaults()
	if o.MaxAttempts != 3 || o.Timeout != 10*time.Minute || o.Concurrency != 1 {
		t.Fatalf("unexpected defaults %+v", o)
	}
	if o.BackoffFor(1) != 5*time.Second || o.BackoffFor(2) != 30*time.Second || o.BackoffFor(9) != 2*time.Minute {
		t.Fatalf("unexpected backoff table %v", o.Backoff)
	}
}

func TestQueueAddDedupesAndDelays(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	r := repos.New(db, log)
	n := &countingNotifier{}
	q := New(Options{Name: "content.researching", MaxAttempts: 5}, r.JobRun, n, log)

	owner := uuid.New()
	entity := uuid.New()
	payload := map[string]any{"content_id": entity.String(), "run": 1}

	first, err := q.Add(ctx, AddRequest{OwnerUserID: owner, EntityType: "content", EntityID: entity, Key: "content.researching:" + entity.String() + ":1", Payload: payload})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if first.MaxAttempts != 5 || first.State != jobstate.StateWaiting || first.Queue != "content.researching" {
		t.Fatalf("unexpected row %+v", first)
	}
	var decoded map[string]any
	if err := json.Unmarshal(first.Payload, &decoded); err != nil || decoded["content_id"] != entity.String() {
		t.Fatalf("payload not stored as JSON: %s (%v)", first.Payload, err)
	}

	dup, err := q.Add(ctx, AddRequest{OwnerUserID: owner, EntityType: "content", EntityID: entity, Key: "content.researching:" + entity.String() + ":1", Payload: payload})
	if err != nil {
		t.Fatalf("Add dup: %v", err)
	}
	if dup.ID != first.ID {
		t.Fatalf("expected duplicate key to return existing job")
	}

	delayed, err := q.AddDelayed(ctx, AddRequest{OwnerUserID: owner, Payload: payload}, time.Hour)
	if err != nil {
		t.Fatalf("AddDelayed: %v", err)
	}
	if time.Until(delayed.RunAfter) < 50*time.Minute {
		t.Fatalf("expected run_after about an hour out, got %v", delayed.RunAfter)
	}

	bulk, err := q.AddBulk(ctx, []AddRequest{{OwnerUserID: owner, Payload: payload}, {OwnerUserID: owner, Payload: payload}})
	if err != nil || len(bulk) != 2 {
		t.Fatalf("AddBulk: %v %v", bulk, err)
	}

	counts, err := q.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Waiting != 4 || counts.Active != 0 {
		t.Fatalf("unexpected counts %+v", counts)
	}
	if n.n != 4 {
		t.Fatalf("expected one notify per add call, got %d", n.n)
	}
}

func TestLocalLimiter(t *testing.T) {
	if NewLocalLimiter(RateLimit{}) != nil {
		t.Fatalf("zero rate limit must be unlimited")
	}
	l := NewLocalLimiter(RateLimit{Max: 5, Per: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	for i := 0; i < 5; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("burst wait %d: %v", i, err)
		}
	}
	if err := l.Wait(ctx); err == nil {
		t.Fatalf("sixth start inside the window should not fit in 100ms")
	}
}

func TestChannelName(t *testing.T) {
	if got := ChannelName("content.grammar"); got != "job_run_content_grammar" {
		t.Fatalf("ChannelName: %s", got)
	}
}
