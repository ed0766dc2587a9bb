package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/agentwriter-backend/internal/data/repos"
	"github.com/yungbote/agentwriter-backend/internal/data/repos/testutil"
	jobstate "github.com/yungbote/agentwriter-backend/internal/domain/jobs"
	"github.com/yungbote/agentwriter-backend/internal/jobs/queue"
	"github.com/yungbote/agentwriter-backend/internal/jobs/runtime"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
)

type funcHandler struct {
	name string
	fn   func(*runtime.Context) error
}

func (h funcHandler) Queue() string                 { return h.name }
func (h funcHandler) Run(jc *runtime.Context) error { return h.fn(jc) }

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveJob(_, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func setup(t *testing.T, opts queue.Options, fn func(*runtime.Context) error) (*Worker, *queue.Queue, repos.JobRunRepo, *recordingObserver) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	r := repos.New(db, log)
	q := queue.New(opts, r.JobRun, nil, log)
	obs := &recordingObserver{}
	w := New(Config{
		Queue:    q,
		Handler:  funcHandler{name: opts.Name, fn: fn},
		Repo:     r.JobRun,
		Observer: obs,
		Log:      log,
	})
	return w, q, r.JobRun, obs
}

func TestWorkerCompletesAndStoresResult(t *testing.T) {
	ctx := context.Background()
	w, q, repo, obs := setup(t, queue.Options{Name: "t.ok"}, func(jc *runtime.Context) error {
		var p struct {
			N int `json:"n"`
		}
		if err := jc.Decode(&p); err != nil {
			return err
		}
		jc.SetResult(map[string]int{"doubled": p.N * 2})
		return nil
	})
	job, err := q.Add(ctx, queue.AddRequest{OwnerUserID: uuid.New(), Payload: map[string]int{"n": 21}})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	ran, err := w.ProcessNext(ctx)
	if err != nil || !ran {
		t.Fatalf("ProcessNext: ran=%v err=%v", ran, err)
	}
	got, _ := repo.GetByID(dbctx.Context{Ctx: ctx}, job.ID)
	if got.State != jobstate.StateCompleted || string(got.Result) != `{"doubled":42}` {
		t.Fatalf("unexpected job %+v result=%s", got, got.Result)
	}
	if obs.outcomes[0] != OutcomeCompleted {
		t.Fatalf("observer outcomes %v", obs.outcomes)
	}
	ran, err = w.ProcessNext(ctx)
	if err != nil || ran {
		t.Fatalf("empty queue: ran=%v err=%v", ran, err)
	}
}

func TestWorkerRetriesThenFailsOnFinalAttempt(t *testing.T) {
	ctx := context.Background()
	calls := 0
	w, q, repo, obs := setup(t, queue.Options{Name: "t.flaky", MaxAttempts: 2, Backoff: []time.Duration{-time.Second}}, func(jc *runtime.Context) error {
		calls++
		return errors.New("provider unavailable")
	})
	job, _ := q.Add(ctx, queue.AddRequest{OwnerUserID: uuid.New(), Payload: map[string]any{}})

	if ran, err := w.ProcessNext(ctx); err != nil || !ran {
		t.Fatalf("attempt 1: ran=%v err=%v", ran, err)
	}
	got, _ := repo.GetByID(dbctx.Context{Ctx: ctx}, job.ID)
	if got.State != jobstate.StateWaiting || got.Attempts != 1 || got.Error != "provider unavailable" {
		t.Fatalf("after attempt 1: %+v", got)
	}

	if ran, err := w.ProcessNext(ctx); err != nil || !ran {
		t.Fatalf("attempt 2: ran=%v err=%v", ran, err)
	}
	got, _ = repo.GetByID(dbctx.Context{Ctx: ctx}, job.ID)
	if got.State != jobstate.StateFailed || got.Attempts != 2 || got.FinishedAt == nil {
		t.Fatalf("after attempt 2: %+v", got)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if obs.outcomes[0] != OutcomeRetried || obs.outcomes[1] != OutcomeFailed {
		t.Fatalf("observer outcomes %v", obs.outcomes)
	}
}

func TestWorkerPermanentErrorSkipsRetries(t *testing.T) {
	ctx := context.Background()
	w, q, repo, _ := setup(t, queue.Options{Name: "t.permanent", MaxAttempts: 5}, func(jc *runtime.Context) error {
		return runtime.Permanent(errors.New("generated text was empty"))
	})
	job, _ := q.Add(ctx, queue.AddRequest{OwnerUserID: uuid.New(), Payload: map[string]any{}})
	if _, err := w.ProcessNext(ctx); err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}
	got, _ := repo.GetByID(dbctx.Context{Ctx: ctx}, job.ID)
	if got.State != jobstate.StateFailed || got.Attempts != 1 {
		t.Fatalf("expected immediate failure, got %+v", got)
	}
}

func TestWorkerRecoversPanics(t *testing.T) {
	ctx := context.Background()
	w, q, repo, _ := setup(t, queue.Options{Name: "t.panic", Backoff: []time.Duration{time.Hour}}, func(jc *runtime.Context) error {
		panic("nil map")
	})
	job, _ := q.Add(ctx, queue.AddRequest{OwnerUserID: uuid.New(), Payload: map[string]any{}})
	if _, err := w.ProcessNext(ctx); err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}
	got, _ := repo.GetByID(dbctx.Context{Ctx: ctx}, job.ID)
	if got.State != jobstate.StateWaiting || time.Until(got.RunAfter) < 50*time.Minute {
		t.Fatalf("expected retry with backoff after panic, got %+v", got)
	}
}

func TestWorkerTimeoutCancelsHandler(t *testing.T) {
	ctx := context.Background()
	w, q, repo, _ := setup(t, queue.Options{Name: "t.slow", Timeout: 50 * time.Millisecond, MaxAttempts: 1}, func(jc *runtime.Context) error {
		<-jc.Ctx.Done()
		return jc.Ctx.Err()
	})
	job, _ := q.Add(ctx, queue.AddRequest{OwnerUserID: uuid.New(), Payload: map[string]any{}})
	if _, err := w.ProcessNext(ctx); err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}
	got, _ := repo.GetByID(dbctx.Context{Ctx: ctx}, job.ID)
	if got.State != jobstate.StateFailed {
		t.Fatalf("expected timed out final attempt to fail, got %+v", got)
	}
}

func TestWorkerStartCloseDrains(t *testing.T) {
	ctx := context.Background()
	done := make(chan struct{}, 3)
	w, q, _, _ := setup(t, queue.Options{Name: "t.pool", Concurrency: 2, PollInterval: 10 * time.Millisecond}, func(jc *runtime.Context) error {
		done <- struct{}{}
		return nil
	})
	for i := 0; i < 3; i++ {
		if _, err := q.Add(ctx, queue.AddRequest{OwnerUserID: uuid.New(), Payload: map[string]int{"i": i}}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	w.Start(ctx)
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for job %d", i)
		}
	}
	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := w.Close(closeCtx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	counts, err := q.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Completed != 3 {
		t.Fatalf("expected 3 completed, got %+v", counts)
	}
}

func TestWorkerCallsOnFailedOnlyWhenHandlerDidNotFailEntity(t *testing.T) {
	ctx := context.Background()
	markFirst := true
	w, q, _, _ := setup(t, queue.Options{Name: "t.hook", MaxAttempts: 1}, func(jc *runtime.Context) error {
		if markFirst {
			markFirst = false
			jc.MarkEntityFailed()
		}
		return errors.New("decode payload: unexpected end of JSON input")
	})
	var hooked []uuid.UUID
	w.onFailed = func(_ context.Context, job *jobstate.JobRun) { hooked = append(hooked, job.ID) }

	first, _ := q.Add(ctx, queue.AddRequest{OwnerUserID: uuid.New(), Payload: map[string]int{"i": 1}})
	if _, err := w.ProcessNext(ctx); err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}
	if len(hooked) != 0 {
		t.Fatalf("hook ran for job %s although the handler failed its entity", first.ID)
	}

	second, _ := q.Add(ctx, queue.AddRequest{OwnerUserID: uuid.New(), Payload: map[string]int{"i": 2}})
	if _, err := w.ProcessNext(ctx); err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}
	if len(hooked) != 1 || hooked[0] != second.ID {
		t.Fatalf("expected hook for %s, got %v", second.ID, hooked)
	}
}
