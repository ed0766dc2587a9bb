package runtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	types "github.com/yungbote/agentwriter-backend/internal/domain"
	"github.com/yungbote/agentwriter-backend/internal/jobs/queue"
	"github.com/yungbote/agentwriter-backend/internal/platform/ctxutil"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
)

// Handler consumes one named queue.
type Handler interface {
	Queue() string
	Run(ctx *Context) error
}

// Enqueuer adds jobs to a named queue; the job Registry implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName string, req queue.AddRequest) (*types.JobRun, error)
}

/*
Context is the execution handle for one delivery of one job.
Handlers never touch job_run directly: the worker owns completion, retry and
failure, and reads the handler's returned error and Result.
*/
type Context struct {
	Ctx      context.Context
	Job      *types.JobRun
	Log      *logger.Logger
	Enqueuer Enqueuer

	result       any
	entityFailed bool
}

func NewContext(ctx context.Context, job *types.JobRun, log *logger.Logger, enq Enqueuer) *Context {
	c := &Context{
		Ctx:      ctx,
		Job:      job,
		Enqueuer: enq,
	}
	if job != nil {
		c.Ctx = ctxutil.WithTraceData(ctx, &ctxutil.TraceData{RequestID: job.ID.String()})
		log = log.With("job_id", job.ID, "queue", job.Queue, "attempt", job.Attempts)
	}
	c.Log = log
	return c
}

// Decode unmarshals the job payload into v. A malformed payload never becomes
// valid on retry, so the error is permanent.
func (c *Context) Decode(v any) error {
	if c.Job == nil || len(c.Job.Payload) == 0 {
		return Permanent(fmt.Errorf("empty payload"))
	}
	if err := json.Unmarshal(c.Job.Payload, v); err != nil {
		return Permanent(fmt.Errorf("decode payload: %w", err))
	}
	return nil
}

func (c *Context) Attempt() int {
	if c.Job == nil {
		return 0
	}
	return c.Job.Attempts
}

// FinalAttempt reports whether a retryable error on this delivery will still
// fail the job.
func (c *Context) FinalAttempt() bool {
	return c.Job != nil && c.Job.FinalAttempt()
}

func (c *Context) OwnerUserID() uuid.UUID {
	if c.Job == nil {
		return uuid.Nil
	}
	return c.Job.OwnerUserID
}

func (c *Context) Enqueue(queueName string, req queue.AddRequest) (*types.JobRun, error) {
	if c.Enqueuer == nil {
		return nil, fmt.Errorf("no enqueuer bound for %s", queueName)
	}
	return c.Enqueuer.Enqueue(c.Ctx, queueName, req)
}

// SetResult records a value persisted on job_run.result when the job completes.
func (c *Context) SetResult(v any) { c.result = v }

func (c *Context) Result() any { return c.result }

// MarkEntityFailed records that the handler already moved the job's entity to
// its failed status, so the worker's failure hook leaves it alone.
func (c *Context) MarkEntityFailed() { c.entityFailed = true }

func (c *Context) EntityFailed() bool { return c.entityFailed }
