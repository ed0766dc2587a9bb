package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/agentwriter-backend/internal/data/repos"
	types "github.com/yungbote/agentwriter-backend/internal/domain"
	"github.com/yungbote/agentwriter-backend/internal/domain/content"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/contract"
	"github.com/yungbote/agentwriter-backend/internal/jobs/queue"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
)

// JobEnqueuer adds jobs inside the caller's transaction; the job registry
// implements it.
type JobEnqueuer interface {
	EnqueueTx(dbc dbctx.Context, queueName string, reqs ...queue.AddRequest) ([]*types.JobRun, error)
}

type CreateContentRequest struct {
	Description string         `json:"description"`
	Layout      content.Layout `json:"layout"`
}

type ContentService interface {
	Create(ctx context.Context, userID, agentID uuid.UUID, req CreateContentRequest) (*types.Content, error)
	Regenerate(ctx context.Context, userID, contentID uuid.UUID) (*types.Content, error)
	Approve(ctx context.Context, userID, contentID uuid.UUID) (*types.Content, error)
	SaveEdit(ctx context.Context, userID, contentID uuid.UUID, body string) (*types.ContentVersion, error)
	Get(ctx context.Context, userID, contentID uuid.UUID) (*types.Content, error)
	Versions(ctx context.Context, userID, contentID uuid.UUID) ([]*types.ContentVersion, error)
}

type contentService struct {
	db      *gorm.DB
	repos   *repos.Repos
	tracker StatusTracker
	jobs    JobEnqueuer
	log     *logger.Logger
}

func NewContentService(db *gorm.DB, r *repos.Repos, tracker StatusTracker, jobs JobEnqueuer, baseLog *logger.Logger) ContentService {
	return &contentService{
		db:      db,
		repos:   r,
		tracker: tracker,
		jobs:    jobs,
		log:     baseLog.With("service", "ContentService"),
	}
}

func (s *contentService) Create(ctx context.Context, userID, agentID uuid.UUID, req CreateContentRequest) (*types.Content, error) {
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		return nil, invalidf("description is required")
	}
	if !req.Layout.Valid() {
		return nil, invalidf("unknown layout %q", req.Layout)
	}
	agent, err := ownedAgent(ctx, s.repos, userID, agentID)
	if err != nil {
		return nil, err
	}
	persona := contract.PersonaFromAgent(agent)
	if strings.TrimSpace(persona.Purpose) == "" {
		return nil, invalidf("agent %s has no purpose", agent.ID)
	}

	row := &types.Content{
		ID:          uuid.New(),
		AgentID:     agent.ID,
		UserID:      userID,
		Description: req.Description,
		Layout:      req.Layout,
		Status:      content.StatusPending,
		Meta:        datatypes.JSON([]byte("{}")),
		Stats:       datatypes.JSON([]byte("{}")),
		Run:         1,
	}
	err = s.tracker.Commit(ctx, ContentRef(row), string(content.StatusPending), "", func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if _, err := s.repos.Content.Create(dbc, []*types.Content{row}); err != nil {
			return fmt.Errorf("create content: %w", err)
		}
		return s.enqueuePlanning(dbc, row, agent, userID)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("content generation requested", "content_id", row.ID, "agent_id", agent.ID, "layout", row.Layout)
	return row, nil
}

// Regenerate restarts a finished content on a new run. Jobs of the previous
// run see the bumped run and skip.
func (s *contentService) Regenerate(ctx context.Context, userID, contentID uuid.UUID) (*types.Content, error) {
	row, err := s.owned(ctx, userID, contentID)
	if err != nil {
		return nil, err
	}
	if !content.ContentMachine.CanRetrigger(string(row.Status)) {
		return nil, fmt.Errorf("content %s is %s: %w", row.ID, row.Status, content.ErrInvalidTransition)
	}
	agent, err := ownedAgent(ctx, s.repos, userID, row.AgentID)
	if err != nil {
		return nil, err
	}

	ref := EntityRef{Kind: KindContent, ID: row.ID, OwnerID: row.UserID}
	err = s.tracker.Commit(ctx, ref, string(content.StatusPending), "", func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		run, ok, err := s.repos.Content.Retrigger(dbc, row.ID, content.ContentMachine.Terminals(), string(content.StatusPending))
		if err != nil {
			return fmt.Errorf("retrigger content: %w", err)
		}
		if !ok {
			return fmt.Errorf("content %s is no longer finished: %w", row.ID, content.ErrInvalidTransition)
		}
		row.Run = run
		row.Status = content.StatusPending
		row.ErrorMessage = ""
		return s.enqueuePlanning(dbc, row, agent, userID)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("content regeneration requested", "content_id", row.ID, "run", row.Run)
	return row, nil
}

func (s *contentService) Approve(ctx context.Context, userID, contentID uuid.UUID) (*types.Content, error) {
	row, err := s.owned(ctx, userID, contentID)
	if err != nil {
		return nil, err
	}
	if err := content.ContentMachine.Check(string(row.Status), string(content.StatusApproved)); err != nil {
		return nil, err
	}
	if err := s.tracker.SetStatus(ctx, ContentRef(row), string(content.StatusApproved), ""); err != nil {
		return nil, err
	}
	row.Status = content.StatusApproved
	return row, nil
}

// SaveEdit stores a user's edit of a finished body as the next version.
func (s *contentService) SaveEdit(ctx context.Context, userID, contentID uuid.UUID, body string) (*types.ContentVersion, error) {
	if strings.TrimSpace(body) == "" {
		return nil, invalidf("body is required")
	}
	var version *types.ContentVersion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		row, err := s.repos.Content.GetByID(dbc, contentID)
		if err != nil {
			return err
		}
		if row == nil {
			return fmt.Errorf("content %s: %w", contentID, ErrNotFound)
		}
		if row.UserID != userID {
			return fmt.Errorf("content %s: %w", contentID, ErrForbidden)
		}
		if row.Status != content.StatusDraft && row.Status != content.StatusApproved {
			return fmt.Errorf("content %s is %s: %w", row.ID, row.Status, content.ErrInvalidTransition)
		}
		if row.Body == body {
			return nil
		}
		version, err = RecordVersion(dbc, s.repos, row, VersionInput{Title: row.Title, Body: body, UserID: userID})
		if err != nil {
			return err
		}
		return s.repos.Content.UpdateFields(dbc, row.ID, map[string]interface{}{"body": body})
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

func (s *contentService) Get(ctx context.Context, userID, contentID uuid.UUID) (*types.Content, error) {
	return s.owned(ctx, userID, contentID)
}

func (s *contentService) Versions(ctx context.Context, userID, contentID uuid.UUID) ([]*types.ContentVersion, error) {
	if _, err := s.owned(ctx, userID, contentID); err != nil {
		return nil, err
	}
	return s.repos.ContentVersion.ListByContent(dbctx.Context{Ctx: ctx}, contentID)
}

func (s *contentService) owned(ctx context.Context, userID, contentID uuid.UUID) (*types.Content, error) {
	row, err := s.repos.Content.GetByID(dbctx.Context{Ctx: ctx}, contentID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("content %s: %w", contentID, ErrNotFound)
	}
	if row.UserID != userID {
		return nil, fmt.Errorf("content %s: %w", contentID, ErrForbidden)
	}
	return row, nil
}

func (s *contentService) enqueuePlanning(dbc dbctx.Context, row *types.Content, agent *types.Agent, editor uuid.UUID) error {
	return enqueuePlanning(dbc, s.jobs, row, agent, editor)
}

func enqueuePlanning(dbc dbctx.Context, jobs JobEnqueuer, row *types.Content, agent *types.Agent, editor uuid.UUID) error {
	payload := contract.PlanningPayload{
		AgentID:   row.AgentID,
		ContentID: row.ID,
		UserID:    row.UserID,
		Run:       row.Run,
		Persona:   contract.PersonaFromAgent(agent),
		ContentRequest: contract.ContentRequest{
			Description: row.Description,
			Layout:      row.Layout,
		},
	}
	if editor != uuid.Nil {
		e := editor
		payload.EditorUserID = &e
	}
	_, err := jobs.EnqueueTx(dbc, contract.QueueContentPlanning, queue.AddRequest{
		OwnerUserID: row.UserID,
		EntityType:  contract.EntityContent,
		EntityID:    row.ID,
		Key:         contract.JobKey(contract.QueueContentPlanning, row.ID, row.Run),
		Payload:     payload,
	})
	if err != nil {
		return fmt.Errorf("enqueue planning: %w", err)
	}
	return nil
}

func ownedAgent(ctx context.Context, r *repos.Repos, userID, agentID uuid.UUID) (*types.Agent, error) {
	agent, err := r.Agent.GetByID(dbctx.Context{Ctx: ctx}, agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, fmt.Errorf("agent %s: %w", agentID, ErrNotFound)
	}
	if agent.UserID != userID {
		return nil, fmt.Errorf("agent %s: %w", agentID, ErrForbidden)
	}
	return agent, nil
}
