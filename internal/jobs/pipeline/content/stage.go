package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	types "github.com/yungbote/agentwriter-backend/internal/domain"
	domain "github.com/yungbote/agentwriter-backend/internal/domain/content"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/contract"
	"github.com/yungbote/agentwriter-backend/internal/jobs/queue"
	"github.com/yungbote/agentwriter-backend/internal/jobs/runtime"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
	"github.com/yungbote/agentwriter-backend/internal/platform/openai"
	"github.com/yungbote/agentwriter-backend/internal/platform/websearch"
	"github.com/yungbote/agentwriter-backend/internal/services"
)

// payload is implemented by every content payload through the embedded
// PlanningPayload.
type payload interface {
	Validate() error
	Planning() contract.PlanningPayload
}

// stage carries what every content stage does around its own work: decode,
// guard against superseded or late deliveries, track status, meter usage,
// hand off to the next queue and fail the content when retrying is pointless.
type stage struct {
	deps   Deps
	queue  string
	status domain.Status
	log    *logger.Logger
}

func newStage(deps Deps, queueName string, status domain.Status) stage {
	return stage{
		deps:   deps,
		queue:  queueName,
		status: status,
		log:    deps.Log.With("component", "StageWorker", "queue", queueName),
	}
}

// run decodes into p and calls work unless the delivery is stale. A skipped
// delivery completes the job without side effects.
func (s stage) run(jc *runtime.Context, p payload, work func(c *types.Content) error) error {
	if err := jc.Decode(p); err != nil {
		s.log.Warn("payload decode failed", "job_id", jc.Job.ID, "error", err)
		return err
	}
	head := p.Planning()
	log := s.log.With("content_id", head.ContentID, "agent_id", head.AgentID, "run", head.Run, "job_id", jc.Job.ID, "attempt", jc.Attempt())

	c, skip, err := s.guard(jc.Ctx, head, log)
	if err != nil {
		s.fail(jc, head, log, err)
		return err
	}
	if skip {
		return nil
	}
	if err := p.Validate(); err != nil {
		err = runtime.Permanent(err)
		s.fail(jc, head, log, err)
		return err
	}

	ref := services.EntityRef{Kind: services.KindContent, ID: c.ID, OwnerID: c.UserID, Run: head.Run}
	if err := s.deps.Tracker.SetStatus(jc.Ctx, ref, string(s.status), ""); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			log.Info("content moved on, skipping", "status", c.Status)
			return nil
		}
		s.fail(jc, head, log, err)
		return err
	}

	if err := runtime.Recover(func() error { return work(c) }); err != nil {
		s.fail(jc, head, log, err)
		return err
	}
	return nil
}

func (s stage) guard(ctx context.Context, head contract.PlanningPayload, log *logger.Logger) (*types.Content, bool, error) {
	if head.ContentID == uuid.Nil {
		return nil, false, runtime.Permanent(fmt.Errorf("%w: content_id is required", contract.ErrInvalidPayload))
	}
	c, err := s.deps.Repos.Content.GetByID(dbctx.Context{Ctx: ctx}, head.ContentID)
	if err != nil {
		return nil, false, fmt.Errorf("load content: %w", err)
	}
	switch {
	case c == nil:
		log.Info("content no longer exists, skipping")
		return nil, true, nil
	case c.Run != head.Run:
		log.Info("run superseded, skipping", "current_run", c.Run)
		return nil, true, nil
	case c.Status.IsTerminal():
		log.Info("content already finished, skipping", "status", c.Status)
		return nil, true, nil
	case c.Status.Rank() > s.status.Rank():
		log.Info("late duplicate delivery, skipping", "status", c.Status)
		return nil, true, nil
	}
	return c, false, nil
}

// fail logs the error and, once no retry can help, marks the content failed
// with a category-level message.
func (s stage) fail(jc *runtime.Context, head contract.PlanningPayload, log *logger.Logger, err error) {
	permanent := runtime.IsPermanent(err)
	log.Error("stage failed", "stage", s.status, "permanent", permanent, "final_attempt", jc.FinalAttempt(), "error", err)
	if !permanent && !jc.FinalAttempt() {
		return
	}
	if head.ContentID == uuid.Nil || head.Run == 0 {
		return
	}
	ref := services.EntityRef{Kind: services.KindContent, ID: head.ContentID, OwnerID: head.UserID, Run: head.Run}
	msg := failureMessage(s.status)
	// The job's own context may be the one that expired.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(jc.Ctx), failWriteTimeout)
	defer cancel()
	ferr := s.deps.Tracker.SetStatus(ctx, ref, string(domain.StatusFailed), msg)
	if ferr != nil && !errors.Is(ferr, domain.ErrInvalidTransition) {
		log.Error("mark content failed", "error", ferr)
		return
	}
	jc.MarkEntityFailed()
}

func (s stage) next(jc *runtime.Context, queueName string, head contract.PlanningPayload, p any) error {
	_, err := jc.Enqueue(queueName, queue.AddRequest{
		OwnerUserID: head.UserID,
		EntityType:  contract.EntityContent,
		EntityID:    head.ContentID,
		Key:         contract.JobKey(queueName, head.ContentID, head.Run),
		Payload:     p,
	})
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", queueName, err)
	}
	jc.SetResult(map[string]any{"next": queueName, "content_id": head.ContentID})
	return nil
}

func (s stage) meterLLM(ctx context.Context, userID uuid.UUID, usage openai.Usage) {
	if s.deps.Billing != nil && usage.InputTokens+usage.OutputTokens > 0 {
		s.deps.Billing.RecordLLM(ctx, userID, usage)
	}
}

func (s stage) meterSearch(ctx context.Context, userID uuid.UUID) {
	if s.deps.Billing != nil {
		s.deps.Billing.RecordWebSearch(ctx, userID, websearch.MethodSearch)
	}
}

func failureMessage(status domain.Status) string {
	switch status {
	case domain.StatusPlanning:
		return "content planning failed"
	case domain.StatusResearching:
		return "content research failed"
	case domain.StatusWriting:
		return "content writing failed"
	case domain.StatusEditing, domain.StatusGrammarChecking:
		return "content editing failed"
	case domain.StatusAnalyzing:
		return "content finalization failed"
	}
	return "content generation failed"
}
