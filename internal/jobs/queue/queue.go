package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/agentwriter-backend/internal/data/repos"
	types "github.com/yungbote/agentwriter-backend/internal/domain"
	jobstate "github.com/yungbote/agentwriter-backend/internal/domain/jobs"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentwriter-backend/internal/pkg/pointers"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
)

type AddRequest struct {
	OwnerUserID uuid.UUID
	EntityType  string
	EntityID    uuid.UUID
	// Key deduplicates: a second add with the same key on the same queue
	// returns the existing job.
	Key     string
	Payload any
	Delay   time.Duration
}

type Counts struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Notifier wakes idle consumers of a queue after an insert.
type Notifier interface {
	Notify(dbc dbctx.Context, queueName string) error
}

// Queue is the producer side of one named queue.
type Queue struct {
	opts     Options
	repo     repos.JobRunRepo
	notifier Notifier
	log      *logger.Logger
}

func New(opts Options, repo repos.JobRunRepo, notifier Notifier, baseLog *logger.Logger) *Queue {
	opts = opts.WithDefaults()
	return &Queue{
		opts:     opts,
		repo:     repo,
		notifier: notifier,
		log:      baseLog.With("component", "Queue", "queue", opts.Name),
	}
}

func (q *Queue) Name() string { return q.opts.Name }

func (q *Queue) Options() Options { return q.opts }

func (q *Queue) Add(ctx context.Context, req AddRequest) (*types.JobRun, error) {
	out, err := q.AddTx(dbctx.Context{Ctx: ctx}, req)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (q *Queue) AddDelayed(ctx context.Context, req AddRequest, delay time.Duration) (*types.JobRun, error) {
	req.Delay = delay
	return q.Add(ctx, req)
}

// AddBulk inserts every request in one statement.
func (q *Queue) AddBulk(ctx context.Context, reqs []AddRequest) ([]*types.JobRun, error) {
	return q.AddTx(dbctx.Context{Ctx: ctx}, reqs...)
}

// AddTx enqueues inside the caller's transaction when dbc.Tx is set, so the
// jobs become visible together with the rows that reference them.
func (q *Queue) AddTx(dbc dbctx.Context, reqs ...AddRequest) ([]*types.JobRun, error) {
	if len(reqs) == 0 {
		return []*types.JobRun{}, nil
	}
	now := time.Now().UTC()
	rows := make([]*types.JobRun, 0, len(reqs))
	for _, req := range reqs {
		raw, err := json.Marshal(req.Payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode payload: %w", q.opts.Name, err)
		}
		row := &types.JobRun{
			ID:          uuid.New(),
			Queue:       q.opts.Name,
			OwnerUserID: req.OwnerUserID,
			EntityType:  req.EntityType,
			State:       jobstate.StateWaiting,
			MaxAttempts: q.opts.MaxAttempts,
			Payload:     datatypes.JSON(raw),
			RunAfter:    now.Add(req.Delay),
		}
		if req.EntityID != uuid.Nil {
			row.EntityID = pointers.Ptr(req.EntityID)
		}
		if k := strings.TrimSpace(req.Key); k != "" {
			row.JobKey = pointers.String(k)
		}
		rows = append(rows, row)
	}
	out, err := q.repo.Create(dbc, rows)
	if err != nil {
		return nil, fmt.Errorf("%s: enqueue: %w", q.opts.Name, err)
	}
	if q.notifier != nil {
		if err := q.notifier.Notify(dbc, q.opts.Name); err != nil {
			q.log.Warn("queue notify failed", "error", err)
		}
	}
	return out, nil
}

func (q *Queue) Counts(ctx context.Context) (Counts, error) {
	m, err := q.repo.CountByState(dbctx.Context{Ctx: ctx}, q.opts.Name)
	if err != nil {
		return Counts{}, err
	}
	return Counts{
		Waiting:   m[jobstate.StateWaiting],
		Active:    m[jobstate.StateActive],
		Completed: m[jobstate.StateCompleted],
		Failed:    m[jobstate.StateFailed],
	}, nil
}
