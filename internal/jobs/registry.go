package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/agentwriter-backend/internal/data/repos"
	types "github.com/yungbote/agentwriter-backend/internal/domain"
	"github.com/yungbote/agentwriter-backend/internal/jobs/queue"
	"github.com/yungbote/agentwriter-backend/internal/jobs/runtime"
	"github.com/yungbote/agentwriter-backend/internal/jobs/worker"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
)

type LimiterFactory func(opts queue.Options) queue.Limiter

type Option func(*Registry)

// WithLimiterFactory replaces the per-queue limiter constructor (process-local
// x/time/rate by default).
func WithLimiterFactory(f LimiterFactory) Option {
	return func(r *Registry) { r.limiterFor = f }
}

func WithNotifier(n queue.Notifier) Option {
	return func(r *Registry) { r.notifier = n }
}

func WithListener(l *queue.Listener) Option {
	return func(r *Registry) { r.listener = l }
}

func WithObserver(o worker.Observer) Option {
	return func(r *Registry) { r.observer = o }
}

// WithOverrides applies per-queue tuning on top of the options each queue is
// registered with.
func WithOverrides(over map[string]queue.Options) Option {
	return func(r *Registry) { r.overrides = over }
}

/*
Registry is the pipeline's queue/worker table. It is built once at process
start and handed to everything that enqueues or supervises jobs:
  - Declare/Register add a named queue (and, for Register, its consumer pool)
  - Enqueue/EnqueueTx route producer calls by queue name
  - Start/Close run and drain every registered worker
*/
type Registry struct {
	repo       repos.JobRunRepo
	log        *logger.Logger
	limiterFor LimiterFactory
	notifier   queue.Notifier
	listener   *queue.Listener
	observer   worker.Observer
	onFailed   worker.FailedFunc
	overrides  map[string]queue.Options

	mu           sync.RWMutex
	queues       map[string]*queue.Queue
	workers      map[string]*worker.Worker
	started      bool
	stopListener context.CancelFunc
}

func NewRegistry(repo repos.JobRunRepo, baseLog *logger.Logger, opts ...Option) *Registry {
	r := &Registry{
		repo: repo,
		log:  baseLog.With("component", "PipelineRegistry"),
		limiterFor: func(o queue.Options) queue.Limiter {
			return queue.NewLocalLimiter(o.RateLimit)
		},
		queues:  map[string]*queue.Queue{},
		workers: map[string]*worker.Worker{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Declare registers a producer-only queue. Declaring an existing name returns
// the queue already registered.
func (r *Registry) Declare(opts queue.Options) (*queue.Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.declareLocked(opts)
}

func (r *Registry) declareLocked(opts queue.Options) (*queue.Queue, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("queue name is empty")
	}
	if q, ok := r.queues[opts.Name]; ok {
		return q, nil
	}
	if over, ok := r.overrides[opts.Name]; ok {
		opts = opts.Merge(over)
	}
	q := queue.New(opts, r.repo, r.notifier, r.log)
	r.queues[opts.Name] = q
	return q, nil
}

// Register declares the handler's queue and attaches its consumer pool.
func (r *Registry) Register(opts queue.Options, h runtime.Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	if opts.Name == "" {
		opts.Name = h.Queue()
	}
	if opts.Name != h.Queue() {
		return fmt.Errorf("handler queue %q does not match options %q", h.Queue(), opts.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return fmt.Errorf("register %s: registry already started", opts.Name)
	}
	if _, exists := r.workers[opts.Name]; exists {
		return fmt.Errorf("handler already registered for queue=%s", opts.Name)
	}
	q, err := r.declareLocked(opts)
	if err != nil {
		return err
	}
	cfg := worker.Config{
		Queue:    q,
		Handler:  h,
		Repo:     r.repo,
		Enqueuer: r,
		Observer: r.observer,
		OnFailed: r.onFailed,
		Log:      r.log,
	}
	if r.limiterFor != nil {
		cfg.Limiter = r.limiterFor(q.Options())
	}
	if r.listener != nil {
		cfg.Wake = r.listener.Wake(q.Name())
	}
	r.workers[opts.Name] = worker.New(cfg)
	return nil
}

// OnJobFailed sets the hook every worker registered afterwards calls when a
// job ends failed without its handler failing the entity.
func (r *Registry) OnJobFailed(fn worker.FailedFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFailed = fn
}

func (r *Registry) Queue(name string) (*queue.Queue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.queues[name]
	return q, ok
}

// Queues lists every declared queue name, sorted.
func (r *Registry) Queues() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.queues))
	for name := range r.queues {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Worker(name string) (*worker.Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[name]
	return w, ok
}

func (r *Registry) Enqueue(ctx context.Context, queueName string, req queue.AddRequest) (*types.JobRun, error) {
	q, ok := r.Queue(queueName)
	if !ok {
		return nil, fmt.Errorf("unknown queue %q", queueName)
	}
	return q.Add(ctx, req)
}

// EnqueueTx adds jobs inside dbc.Tx when set.
func (r *Registry) EnqueueTx(dbc dbctx.Context, queueName string, reqs ...queue.AddRequest) ([]*types.JobRun, error) {
	q, ok := r.Queue(queueName)
	if !ok {
		return nil, fmt.Errorf("unknown queue %q", queueName)
	}
	return q.AddTx(dbc, reqs...)
}

func (r *Registry) EnqueueBulk(ctx context.Context, queueName string, reqs []queue.AddRequest) ([]*types.JobRun, error) {
	q, ok := r.Queue(queueName)
	if !ok {
		return nil, fmt.Errorf("unknown queue %q", queueName)
	}
	return q.AddBulk(ctx, reqs)
}

// Start launches every registered worker and, when configured, the LISTEN
// connection that wakes idle workers.
func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	if r.listener != nil {
		lctx, cancel := context.WithCancel(ctx)
		r.stopListener = cancel
		go r.listener.Run(lctx)
	}
	for _, name := range r.sortedWorkerNamesLocked() {
		r.workers[name].Start(ctx)
	}
	r.log.Info("Pipeline registry started", "workers", len(r.workers), "queues", len(r.queues))
}

// Close closes every worker concurrently and waits for all of them.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	workers := make([]*worker.Worker, 0, len(r.workers))
	for _, name := range r.sortedWorkerNamesLocked() {
		workers = append(workers, r.workers[name])
	}
	stopListener := r.stopListener
	r.stopListener = nil
	r.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		g.Go(func() error { return w.Close(gctx) })
	}
	err := g.Wait()
	if stopListener != nil {
		stopListener()
	}
	if err != nil {
		r.log.Warn("Pipeline registry closed with abandoned jobs", "error", err)
		return err
	}
	r.log.Info("Pipeline registry closed")
	return nil
}

// Counts returns job state counts for every declared queue.
func (r *Registry) Counts(ctx context.Context) (map[string]queue.Counts, error) {
	out := map[string]queue.Counts{}
	for _, name := range r.Queues() {
		q, _ := r.Queue(name)
		c, err := q.Counts(ctx)
		if err != nil {
			return nil, fmt.Errorf("counts %s: %w", name, err)
		}
		out[name] = c
	}
	return out, nil
}

func (r *Registry) sortedWorkerNamesLocked() []string {
	names := make([]string, 0, len(r.workers))
	for name := range r.workers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
