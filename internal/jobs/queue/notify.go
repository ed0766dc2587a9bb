package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"gorm.io/gorm"

	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
)

// ChannelName is the Postgres NOTIFY channel for a queue.
func ChannelName(queueName string) string {
	return "job_run_" + strings.NewReplacer(".", "_", "-", "_", ":", "_").Replace(queueName)
}

type pgNotifier struct {
	db *gorm.DB
}

// NewPGNotifier issues pg_notify on the caller's transaction (delivered at
// commit) or on db when no transaction is bound.
func NewPGNotifier(db *gorm.DB) Notifier { return &pgNotifier{db: db} }

func (n *pgNotifier) Notify(dbc dbctx.Context, queueName string) error {
	return dbc.Conn(n.db).Exec("SELECT pg_notify(?, '')", ChannelName(queueName)).Error
}

// Listener holds one dedicated pgx connection LISTENing on every queue channel
// and turns notifications into non-blocking wakeups.
type Listener struct {
	dsn string
	log *logger.Logger

	mu    sync.Mutex
	wakes map[string]chan struct{}
}

func NewListener(dsn string, baseLog *logger.Logger) *Listener {
	return &Listener{
		dsn:   dsn,
		log:   baseLog.With("component", "QueueListener"),
		wakes: map[string]chan struct{}{},
	}
}

// Wake returns the wakeup channel for a queue. Must be called before Run.
func (l *Listener) Wake(queueName string) <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := ChannelName(queueName)
	w, ok := l.wakes[ch]
	if !ok {
		w = make(chan struct{}, 1)
		l.wakes[ch] = w
	}
	return w
}

// Run listens until ctx is done, reconnecting after connection loss.
func (l *Listener) Run(ctx context.Context) {
	backoff := time.Second
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		l.log.Warn("queue listener disconnected", "error", err, "retry_in", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	l.mu.Lock()
	channels := make([]string, 0, len(l.wakes))
	for ch := range l.wakes {
		channels = append(channels, ch)
	}
	l.mu.Unlock()

	for _, ch := range channels {
		if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ch}.Sanitize()); err != nil {
			return fmt.Errorf("listen %s: %w", ch, err)
		}
	}
	l.log.Info("queue listener connected", "channels", len(channels))

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		l.mu.Lock()
		w := l.wakes[n.Channel]
		l.mu.Unlock()
		if w == nil {
			continue
		}
		select {
		case w <- struct{}{}:
		default:
		}
	}
}
