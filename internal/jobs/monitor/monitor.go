package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/agentwriter-backend/internal/data/repos"
	types "github.com/yungbote/agentwriter-backend/internal/domain"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
)

const (
	DefaultInterval = 5 * time.Minute
	DefaultTimeout  = 10 * time.Minute

	KindActive  = "active_timeout"
	KindWaiting = "waiting_expired"
)

type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	Queues   []string
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// StalledFunc is called once for every job the monitor force-fails or removes.
type StalledFunc func(ctx context.Context, job *types.JobRun)

// Counter receives per-queue reclaim counts; the prometheus metrics implement it.
type Counter interface {
	ObserveStuck(queue, kind string, n int)
}

type SweepResult struct {
	Failed  int
	Removed int
}

// Handle owns one running monitor. Stop ends exactly this monitor's ticker.
type Handle struct {
	cfg       Config
	repo      repos.JobRunRepo
	log       *logger.Logger
	onStalled StalledFunc
	counter   Counter
	now       func() time.Time

	sweepMu  sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

type Option func(*Handle)

func WithCounter(c Counter) Option {
	return func(h *Handle) { h.counter = c }
}

func withClock(now func() time.Time) Option {
	return func(h *Handle) { h.now = now }
}

// Start sweeps every cfg.Interval until ctx is done or Stop is called.
func Start(ctx context.Context, cfg Config, repo repos.JobRunRepo, baseLog *logger.Logger, onStalled StalledFunc, opts ...Option) *Handle {
	h := newHandle(cfg, repo, baseLog, onStalled, opts...)
	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	go h.loop(runCtx)
	h.log.Info("Stuck-job monitor started",
		"interval", h.cfg.Interval,
		"timeout", h.cfg.Timeout,
		"queues", len(h.cfg.Queues),
	)
	return h
}

func newHandle(cfg Config, repo repos.JobRunRepo, baseLog *logger.Logger, onStalled StalledFunc, opts ...Option) *Handle {
	h := &Handle{
		cfg:       cfg.withDefaults(),
		repo:      repo,
		log:       baseLog.With("component", "StuckJobMonitor"),
		onStalled: onStalled,
		now:       func() time.Time { return time.Now().UTC() },
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Stop cancels the ticker and waits for an in-progress sweep to return.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		if h.cancel != nil {
			h.cancel()
			<-h.done
		}
		h.log.Info("Stuck-job monitor stopped")
	})
}

func (h *Handle) loop(ctx context.Context) {
	defer close(h.done)
	t := time.NewTicker(h.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := h.SweepNow(ctx); err != nil && ctx.Err() == nil {
				h.log.Warn("stuck-job sweep failed", "error", err)
			}
		}
	}
}

// SweepNow runs one sweep over every configured queue. A failing queue does
// not stop the others; the first error is returned.
func (h *Handle) SweepNow(ctx context.Context) (SweepResult, error) {
	h.sweepMu.Lock()
	defer h.sweepMu.Unlock()

	var total SweepResult
	var firstErr error
	for _, q := range h.cfg.Queues {
		res, err := h.sweepQueue(ctx, q)
		total.Failed += res.Failed
		total.Removed += res.Removed
		if err != nil {
			h.log.Warn("stuck-job sweep of queue failed", "queue", q, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("sweep %s: %w", q, err)
			}
		}
	}
	return total, firstErr
}

func (h *Handle) sweepQueue(ctx context.Context, queueName string) (SweepResult, error) {
	var res SweepResult
	dbc := dbctx.Context{Ctx: ctx}
	now := h.now()

	stuck, err := h.repo.ListActiveStartedBefore(dbc, queueName, now.Add(-h.cfg.Timeout))
	if err != nil {
		return res, err
	}
	reason := fmt.Sprintf("job timed out after %s", h.cfg.Timeout)
	for _, job := range stuck {
		ok, err := h.repo.Fail(dbc, job.ID, job.Attempts, reason)
		if err != nil {
			return res, err
		}
		if !ok {
			// Finished between the list and the update.
			continue
		}
		res.Failed++
		h.log.Warn("force-failed stuck job",
			"job_id", job.ID,
			"queue", queueName,
			"attempt", job.Attempts,
			"entity_type", job.EntityType,
			"entity_id", job.EntityID,
			"started_at", job.StartedAt,
		)
		if h.onStalled != nil {
			h.onStalled(ctx, job)
		}
	}

	expired, err := h.repo.ListWaitingBefore(dbc, queueName, now.Add(-2*h.cfg.Timeout))
	if err != nil {
		return res, err
	}
	for _, job := range expired {
		ok, err := h.repo.DeleteWaiting(dbc, job.ID, job.Attempts)
		if err != nil {
			return res, err
		}
		if !ok {
			// Claimed between the list and the delete.
			continue
		}
		res.Removed++
		h.log.Warn("removed expired waiting job",
			"job_id", job.ID,
			"queue", queueName,
			"attempt", job.Attempts,
			"entity_type", job.EntityType,
			"entity_id", job.EntityID,
			"run_after", job.RunAfter,
		)
		if h.onStalled != nil {
			h.onStalled(ctx, job)
		}
	}

	if h.counter != nil {
		h.counter.ObserveStuck(queueName, KindActive, res.Failed)
		h.counter.ObserveStuck(queueName, KindWaiting, res.Removed)
	}
	return res, nil
}
