package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/agentwriter-backend/internal/pkg/httpx"
	"github.com/yungbote/agentwriter-backend/internal/platform/billing"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
	"github.com/yungbote/agentwriter-backend/internal/platform/openai"
)

const (
	BillingOutcomeSent    = "sent"
	BillingOutcomeDropped = "dropped"
	BillingOutcomeFailed  = "failed"
)

var ErrBillingClosed = errors.New("billing notifier closed")

// BillingCounter observes the outcome of every usage event.
type BillingCounter interface {
	ObserveBilling(event string, outcome string, n int)
}

// BillingNotifier meters provider usage. Recording never blocks and never
// fails the caller: a full buffer, a disabled client or an ingest error is
// logged and counted only.
type BillingNotifier interface {
	RecordLLM(ctx context.Context, userID uuid.UUID, usage openai.Usage)
	RecordWebSearch(ctx context.Context, userID uuid.UUID, method string)
	Close(ctx context.Context) error
}

type BillingConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	MaxRetries    int
	RetryBase     time.Duration
}

func (c BillingConfig) withDefaults() BillingConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = 1024
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	return c
}

type billingNotifier struct {
	client  billing.Client
	counter BillingCounter
	cfg     BillingConfig
	log     *logger.Logger

	events chan billing.Event
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// NewBillingNotifier starts the dispatcher. A nil client yields a notifier
// that counts every event as dropped.
func NewBillingNotifier(client billing.Client, counter BillingCounter, cfg BillingConfig, baseLog *logger.Logger) BillingNotifier {
	cfg = cfg.withDefaults()
	n := &billingNotifier{
		client:  client,
		counter: counter,
		cfg:     cfg,
		log:     baseLog.With("service", "BillingNotifier"),
		events:  make(chan billing.Event, cfg.BufferSize),
		done:    make(chan struct{}),
	}
	go n.dispatch()
	return n
}

func (n *billingNotifier) RecordLLM(ctx context.Context, userID uuid.UUID, usage openai.Usage) {
	meta := map[string]any{
		"model":        usage.Model,
		"inputTokens":  usage.InputTokens,
		"outputTokens": usage.OutputTokens,
	}
	if usage.Effort != "" {
		meta["effort"] = usage.Effort
	}
	n.record(billing.Event{Event: billing.EventLLM, ExternalCustomerID: userID.String(), Metadata: meta})
}

func (n *billingNotifier) RecordWebSearch(ctx context.Context, userID uuid.UUID, method string) {
	n.record(billing.Event{
		Event:              billing.EventWebSearch,
		ExternalCustomerID: userID.String(),
		Metadata:           map[string]any{"method": method},
	})
}

func (n *billingNotifier) record(ev billing.Event) {
	if ev.ExternalCustomerID == uuid.Nil.String() {
		n.observe(ev.Event, BillingOutcomeDropped, 1)
		return
	}
	if n.client == nil {
		n.observe(ev.Event, BillingOutcomeDropped, 1)
		return
	}
	ev.Timestamp = time.Now().UTC()
	ev.IdempotencyKey = uuid.NewString()

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.observe(ev.Event, BillingOutcomeDropped, 1)
		return
	}
	select {
	case n.events <- ev:
	default:
		n.log.Warn("billing buffer full, dropping event", "event", ev.Event, "external_customer_id", ev.ExternalCustomerID)
		n.observe(ev.Event, BillingOutcomeDropped, 1)
	}
}

func (n *billingNotifier) dispatch() {
	defer close(n.done)
	ticker := time.NewTicker(n.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]billing.Event, 0, n.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		n.send(batch)
		batch = make([]billing.Event, 0, n.cfg.BatchSize)
	}
	for {
		select {
		case ev, ok := <-n.events:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= n.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (n *billingNotifier) send(batch []billing.Event) {
	var err error
	for attempt := 0; attempt <= n.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(httpx.JitterSleep(n.cfg.RetryBase * time.Duration(1<<(attempt-1))))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err = n.client.Ingest(ctx, batch)
		cancel()
		if err == nil {
			n.observeBatch(batch, BillingOutcomeSent)
			return
		}
		if !httpx.IsRetryableError(err) {
			break
		}
	}
	n.log.Warn("billing ingest failed", "events", len(batch), "error", err)
	n.observeBatch(batch, BillingOutcomeFailed)
}

func (n *billingNotifier) observeBatch(batch []billing.Event, outcome string) {
	per := map[string]int{}
	for _, ev := range batch {
		per[ev.Event]++
	}
	for event, count := range per {
		n.observe(event, outcome, count)
	}
}

func (n *billingNotifier) observe(event, outcome string, count int) {
	if n.counter != nil {
		n.counter.ObserveBilling(event, outcome, count)
	}
}

// Close stops accepting events and waits for the buffer to drain or ctx to end.
func (n *billingNotifier) Close(ctx context.Context) error {
	n.once.Do(func() {
		n.mu.Lock()
		n.closed = true
		close(n.events)
		n.mu.Unlock()
	})
	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
