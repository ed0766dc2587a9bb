package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/agentwriter-backend/internal/data/repos"
	types "github.com/yungbote/agentwriter-backend/internal/domain"
	"github.com/yungbote/agentwriter-backend/internal/jobs/queue"
	"github.com/yungbote/agentwriter-backend/internal/jobs/runtime"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
)

const (
	OutcomeCompleted = "completed"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
	OutcomeLost      = "lost"
)

// FailedFunc is called once a job ends failed and its handler did not mark
// the job's entity failed itself.
type FailedFunc func(ctx context.Context, job *types.JobRun)

// Observer receives one call per finished delivery.
type Observer interface {
	ObserveJob(queue, outcome string, dur time.Duration)
}

type Config struct {
	Queue    *queue.Queue
	Handler  runtime.Handler
	Repo     repos.JobRunRepo
	Limiter  queue.Limiter
	Wake     <-chan struct{}
	Enqueuer runtime.Enqueuer
	Observer Observer
	OnFailed FailedFunc
	Log      *logger.Logger
}

// Worker is the consumer pool of one queue.
type Worker struct {
	q        *queue.Queue
	opts     queue.Options
	handler  runtime.Handler
	repo     repos.JobRunRepo
	limiter  queue.Limiter
	wake     <-chan struct{}
	enq      runtime.Enqueuer
	observer Observer
	onFailed FailedFunc
	log      *logger.Logger
	tracer   trace.Tracer

	mu         sync.Mutex
	started    bool
	stopLoops  context.CancelFunc
	abandonRun context.CancelFunc
	wg         sync.WaitGroup
}

func New(cfg Config) *Worker {
	opts := cfg.Queue.Options()
	return &Worker{
		q:        cfg.Queue,
		opts:     opts,
		handler:  cfg.Handler,
		repo:     cfg.Repo,
		limiter:  cfg.Limiter,
		wake:     cfg.Wake,
		enq:      cfg.Enqueuer,
		observer: cfg.Observer,
		onFailed: cfg.OnFailed,
		log:      cfg.Log.With("component", "StageWorker", "queue", opts.Name),
		tracer:   otel.Tracer("github.com/yungbote/agentwriter-backend/jobs"),
	}
}

func (w *Worker) Queue() string { return w.opts.Name }

// Start launches Concurrency claim loops. Jobs run on a context derived from
// ctx that outlives Close's stop signal until Close gives up waiting.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true

	runCtx, abandon := context.WithCancel(ctx)
	loopCtx, stop := context.WithCancel(runCtx)
	w.abandonRun = abandon
	w.stopLoops = stop

	w.log.Info("Starting stage worker pool", "concurrency", w.opts.Concurrency)
	for i := 0; i < w.opts.Concurrency; i++ {
		w.wg.Add(1)
		go w.runLoop(loopCtx, runCtx, i+1)
	}
}

// Close stops claiming and waits for in-flight jobs. If ctx expires first the
// remaining jobs are cancelled; they go back to waiting for redelivery.
func (w *Worker) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	stop, abandon := w.stopLoops, w.abandonRun
	w.mu.Unlock()

	stop()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		abandon()
		return nil
	case <-ctx.Done():
		abandon()
		<-done
		return fmt.Errorf("worker %s: abandoned in-flight jobs: %w", w.opts.Name, ctx.Err())
	}
}

func (w *Worker) runLoop(loopCtx, runCtx context.Context, slot int) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		if loopCtx.Err() != nil {
			w.log.Debug("Worker loop stopped", "slot", slot)
			return
		}
		if w.limiter != nil {
			if err := w.limiter.Wait(loopCtx); err != nil {
				if loopCtx.Err() == nil {
					w.log.Warn("rate limiter wait failed", "slot", slot, "error", err)
				}
				continue
			}
		}
		ran, err := w.processNext(loopCtx, runCtx)
		if err != nil {
			w.log.Warn("claim failed", "slot", slot, "error", err)
		}
		if ran {
			continue
		}
		select {
		case <-loopCtx.Done():
		case <-ticker.C:
		case <-w.wake:
		}
	}
}

// ProcessNext claims and runs at most one job synchronously. It reports
// whether a job was run.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	return w.processNext(ctx, ctx)
}

func (w *Worker) processNext(claimCtx, runCtx context.Context) (bool, error) {
	job, err := w.repo.ClaimNext(dbctx.Context{Ctx: claimCtx}, w.opts.Name)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	w.execute(runCtx, job)
	return true, nil
}

func (w *Worker) execute(ctx context.Context, job *types.JobRun) {
	start := time.Now()
	ctx, span := w.tracer.Start(ctx, "job."+w.opts.Name, trace.WithAttributes(
		attribute.String("job.id", job.ID.String()),
		attribute.String("job.queue", job.Queue),
		attribute.Int("job.attempt", job.Attempts),
	))
	defer span.End()

	jobCtx, cancel := context.WithTimeout(ctx, w.opts.Timeout)
	defer cancel()

	hbDone := make(chan struct{})
	go w.heartbeat(jobCtx, job, hbDone)

	jc := runtime.NewContext(jobCtx, job, w.log, w.enq)
	runErr := w.run(jc)
	cancel()
	<-hbDone

	// Bookkeeping must land even when the job context was cancelled.
	dbc := dbctx.Context{Ctx: context.WithoutCancel(ctx)}
	outcome := OutcomeCompleted
	var ok bool
	var err error
	switch {
	case runErr == nil:
		var result []byte
		if r := jc.Result(); r != nil {
			result, _ = json.Marshal(r)
		}
		ok, err = w.repo.Complete(dbc, job.ID, job.Attempts, result)
	case runtime.IsPermanent(runErr) || job.FinalAttempt():
		outcome = OutcomeFailed
		ok, err = w.repo.Fail(dbc, job.ID, job.Attempts, runErr.Error())
	default:
		outcome = OutcomeRetried
		delay := w.opts.BackoffFor(job.Attempts)
		if ctx.Err() != nil {
			delay = 0
		}
		ok, err = w.repo.Retry(dbc, job.ID, job.Attempts, runErr.Error(), time.Now().Add(delay))
	}
	if err != nil {
		w.log.Error("job bookkeeping failed", "job_id", job.ID, "outcome", outcome, "error", err)
	} else if !ok {
		// The monitor force-failed it or another delivery owns it now.
		outcome = OutcomeLost
		w.log.Warn("job no longer owned by this delivery", "job_id", job.ID, "attempt", job.Attempts)
	} else if outcome == OutcomeFailed && w.onFailed != nil && !jc.EntityFailed() {
		w.onFailed(dbc.Ctx, job)
	}

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		w.log.Warn("job run failed",
			"job_id", job.ID,
			"attempt", job.Attempts,
			"max_attempts", job.MaxAttempts,
			"outcome", outcome,
			"error", runErr,
		)
	}
	span.SetAttributes(attribute.String("job.outcome", outcome))
	if w.observer != nil {
		w.observer.ObserveJob(w.opts.Name, outcome, time.Since(start))
	}
}

func (w *Worker) run(jc *runtime.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Job handler panic", "job_id", jc.Job.ID, "panic", r)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return w.handler.Run(jc)
}

func (w *Worker) heartbeat(ctx context.Context, job *types.JobRun, done chan<- struct{}) {
	defer close(done)
	every := w.opts.Timeout / 4
	if every > 30*time.Second {
		every = 30 * time.Second
	}
	if every <= 0 {
		every = time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := w.repo.Heartbeat(dbctx.Context{Ctx: ctx}, job.ID, job.Attempts); err != nil && ctx.Err() == nil {
				w.log.Warn("heartbeat failed", "job_id", job.ID, "error", err)
			}
		}
	}
}
