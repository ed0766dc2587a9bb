package ideas

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/agentwriter-backend/internal/domain"
	domain "github.com/yungbote/agentwriter-backend/internal/domain/content"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/contract"
	"github.com/yungbote/agentwriter-backend/internal/jobs/queue"
	"github.com/yungbote/agentwriter-backend/internal/jobs/runtime"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
	"github.com/yungbote/agentwriter-backend/internal/platform/openai"
	"github.com/yungbote/agentwriter-backend/internal/services"
)

const (
	failWriteTimeout = 10 * time.Second
	failureMessage   = "idea generation failed"
)

type payload interface {
	Validate() error
	Plan() contract.IdeaPlanPayload
}

// stage tracks one idea stage on the agent's idea_status, guarded by the
// idea run that issued the job.
type stage struct {
	deps   Deps
	queue  string
	status string
	log    *logger.Logger
}

func newStage(deps Deps, queueName, status string) stage {
	return stage{
		deps:   deps,
		queue:  queueName,
		status: status,
		log:    deps.Log.With("component", "IdeaStageWorker", "queue", queueName),
	}
}

func (s stage) ref(head contract.IdeaPlanPayload) services.EntityRef {
	return services.EntityRef{Kind: services.KindAgentIdeas, ID: head.AgentID, OwnerID: head.UserID, Run: head.Run}
}

func (s stage) run(jc *runtime.Context, p payload, work func(a *types.Agent) error) error {
	if err := jc.Decode(p); err != nil {
		s.log.Warn("payload decode failed", "job_id", jc.Job.ID, "error", err)
		return err
	}
	head := p.Plan()
	log := s.log.With("agent_id", head.AgentID, "run", head.Run, "job_id", jc.Job.ID, "attempt", jc.Attempt())

	a, skip, err := s.guard(jc.Ctx, head, log)
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
	if err := s.deps.Tracker.SetStatus(jc.Ctx, s.ref(head), s.status, ""); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			log.Info("idea run moved on, skipping", "status", a.IdeaStatus)
			return nil
		}
		s.fail(jc, head, log, err)
		return err
	}
	if err := runtime.Recover(func() error { return work(a) }); err != nil {
		s.fail(jc, head, log, err)
		return err
	}
	return nil
}

func (s stage) guard(ctx context.Context, head contract.IdeaPlanPayload, log *logger.Logger) (*types.Agent, bool, error) {
	if head.AgentID == uuid.Nil {
		return nil, false, runtime.Permanent(fmt.Errorf("%w: agent_id is required", contract.ErrInvalidPayload))
	}
	a, err := s.deps.Repos.Agent.GetByID(dbctx.Context{Ctx: ctx}, head.AgentID)
	if err != nil {
		return nil, false, fmt.Errorf("load agent: %w", err)
	}
	m := domain.IdeaRunMachine
	switch {
	case a == nil:
		log.Info("agent no longer exists, skipping")
		return nil, true, nil
	case a.IdeaRun != head.Run:
		log.Info("idea run superseded, skipping", "current_run", a.IdeaRun)
		return nil, true, nil
	case m.IsTerminal(a.IdeaStatus):
		log.Info("idea run already finished, skipping", "status", a.IdeaStatus)
		return nil, true, nil
	case m.Rank(a.IdeaStatus) > m.Rank(s.status):
		log.Info("late duplicate delivery, skipping", "status", a.IdeaStatus)
		return nil, true, nil
	}
	return a, false, nil
}

func (s stage) fail(jc *runtime.Context, head contract.IdeaPlanPayload, log *logger.Logger, err error) {
	permanent := runtime.IsPermanent(err)
	log.Error("idea stage failed", "stage", s.status, "permanent", permanent, "final_attempt", jc.FinalAttempt(), "error", err)
	if !permanent && !jc.FinalAttempt() {
		return
	}
	if head.AgentID == uuid.Nil || head.Run == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(jc.Ctx), failWriteTimeout)
	defer cancel()
	ferr := s.deps.Tracker.SetStatus(ctx, s.ref(head), domain.IdeaRunFailed, failureMessage)
	if ferr != nil && !errors.Is(ferr, domain.ErrInvalidTransition) {
		log.Error("mark idea run failed", "error", ferr)
		return
	}
	jc.MarkEntityFailed()
}

func (s stage) next(jc *runtime.Context, queueName string, head contract.IdeaPlanPayload, p any) error {
	_, err := jc.Enqueue(queueName, queue.AddRequest{
		OwnerUserID: head.UserID,
		EntityType:  contract.EntityAgent,
		EntityID:    head.AgentID,
		Key:         contract.JobKey(queueName, head.AgentID, head.Run),
		Payload:     p,
	})
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", queueName, err)
	}
	jc.SetResult(map[string]any{"next": queueName, "agent_id": head.AgentID, "run": head.Run})
	return nil
}

func (s stage) meterLLM(ctx context.Context, userID uuid.UUID, usage openai.Usage) {
	if s.deps.Billing != nil && usage.InputTokens+usage.OutputTokens > 0 {
		s.deps.Billing.RecordLLM(ctx, userID, usage)
	}
}
