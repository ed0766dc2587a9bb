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
	"github.com/yungbote/agentwriter-backend/internal/pkg/bulk"
	"github.com/yungbote/agentwriter-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
)

const (
	DefaultIdeaCount = 5
	MaxIdeaCount     = 20
	MaxBulkSelection = 200

	bulkConcurrency = 4
)

// BulkResult reports a partial-success bulk mutation. Skipped lists the
// selected ids that were not in an eligible status and were left untouched.
type BulkResult struct {
	TotalSelected   int            `json:"total_selected"`
	ApprovableCount int            `json:"approvable_count"`
	ApprovedCount   int            `json:"approved_count"`
	Skipped         []string       `json:"skipped"`
	Failed          []bulk.Failure `json:"failed"`
	ContentIDs      []uuid.UUID    `json:"content_ids,omitempty"`
}

type IdeaService interface {
	Generate(ctx context.Context, userID, agentID uuid.UUID, count int, topic string) (int, error)
	BulkApprove(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (BulkResult, error)
	BulkReject(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (BulkResult, error)
}

type ideaService struct {
	db      *gorm.DB
	repos   *repos.Repos
	tracker StatusTracker
	jobs    JobEnqueuer
	log     *logger.Logger
}

func NewIdeaService(db *gorm.DB, r *repos.Repos, tracker StatusTracker, jobs JobEnqueuer, baseLog *logger.Logger) IdeaService {
	return &ideaService{
		db:      db,
		repos:   r,
		tracker: tracker,
		jobs:    jobs,
		log:     baseLog.With("service", "IdeaService"),
	}
}

// Generate starts an idea run for the agent and returns its run number. Only
// one run per agent is live at a time.
func (s *ideaService) Generate(ctx context.Context, userID, agentID uuid.UUID, count int, topic string) (int, error) {
	if count == 0 {
		count = DefaultIdeaCount
	}
	if count < 1 || count > MaxIdeaCount {
		return 0, invalidf("count must be between 1 and %d", MaxIdeaCount)
	}
	agent, err := ownedAgent(ctx, s.repos, userID, agentID)
	if err != nil {
		return 0, err
	}
	persona := contract.PersonaFromAgent(agent)
	if strings.TrimSpace(persona.Purpose) == "" {
		return 0, invalidf("agent %s has no purpose", agent.ID)
	}

	from := append([]string{""}, content.IdeaRunMachine.Terminals()...)
	var run int
	ref := EntityRef{Kind: KindAgentIdeas, ID: agent.ID, OwnerID: agent.UserID}
	err = s.tracker.Commit(ctx, ref, content.IdeaRunPlanning, "", func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		var ok bool
		var err error
		run, ok, err = s.repos.Agent.RetriggerIdeas(dbc, agent.ID, from, content.IdeaRunPlanning)
		if err != nil {
			return fmt.Errorf("start idea run: %w", err)
		}
		if !ok {
			return fmt.Errorf("agent %s already has an idea run in progress: %w", agent.ID, content.ErrInvalidTransition)
		}
		_, err = s.jobs.EnqueueTx(dbc, contract.QueueIdeasPlan, queue.AddRequest{
			OwnerUserID: userID,
			EntityType:  contract.EntityAgent,
			EntityID:    agent.ID,
			Key:         contract.JobKey(contract.QueueIdeasPlan, agent.ID, run),
			Payload: contract.IdeaPlanPayload{
				AgentID: agent.ID,
				UserID:  userID,
				Run:     run,
				Count:   count,
				Topic:   strings.TrimSpace(topic),
				Persona: persona,
			},
		})
		if err != nil {
			return fmt.Errorf("enqueue idea planning: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("idea generation requested", "agent_id", agent.ID, "run", run, "count", count)
	return run, nil
}

// BulkApprove approves every pending idea in ids and starts a content run for
// each. Ownership of every id is checked before anything is written.
func (s *ideaService) BulkApprove(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (BulkResult, error) {
	return s.bulkDecide(ctx, userID, ids, content.IdeaApproved)
}

func (s *ideaService) BulkReject(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (BulkResult, error) {
	return s.bulkDecide(ctx, userID, ids, content.IdeaRejected)
}

func (s *ideaService) bulkDecide(ctx context.Context, userID uuid.UUID, ids []uuid.UUID, to content.IdeaStatus) (BulkResult, error) {
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return BulkResult{}, invalidf("no ideas selected")
	}
	if len(ids) > MaxBulkSelection {
		return BulkResult{}, invalidf("at most %d ideas per request", MaxBulkSelection)
	}

	dbc := dbctx.Context{Ctx: ctx}
	agentIDs, err := s.repos.Agent.ListIDsByUser(dbc, userID)
	if err != nil {
		return BulkResult{}, err
	}
	owned := make(map[uuid.UUID]bool, len(agentIDs))
	for _, id := range agentIDs {
		owned[id] = true
	}
	rows, err := s.repos.Idea.GetByIDs(dbc, ids)
	if err != nil {
		return BulkResult{}, err
	}
	byID := make(map[uuid.UUID]*types.Idea, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	for _, id := range ids {
		row := byID[id]
		// Unknown ids are refused the same way as foreign ones.
		if row == nil || !owned[row.AgentID] {
			return BulkResult{}, fmt.Errorf("idea %s: %w", id, ErrForbidden)
		}
	}

	res := BulkResult{TotalSelected: len(ids), Skipped: []string{}, Failed: []bulk.Failure{}}
	eligible := make([]*types.Idea, 0, len(ids))
	for _, id := range ids {
		row := byID[id]
		if row.Status == content.IdeaPending {
			eligible = append(eligible, row)
			continue
		}
		res.Skipped = append(res.Skipped, id.String())
	}
	res.ApprovableCount = len(eligible)

	agents := map[uuid.UUID]*types.Agent{}
	if to == content.IdeaApproved {
		for _, row := range eligible {
			if _, ok := agents[row.AgentID]; ok {
				continue
			}
			a, err := s.repos.Agent.GetByID(dbc, row.AgentID)
			if err != nil {
				return BulkResult{}, err
			}
			agents[row.AgentID] = a
		}
	}

	out := bulk.Run(ctx, bulkConcurrency, eligible,
		func(i *types.Idea) string { return i.ID.String() },
		func(ctx context.Context, i *types.Idea) (uuid.UUID, error) {
			if to == content.IdeaApproved {
				return s.approveOne(ctx, userID, i, agents[i.AgentID])
			}
			return uuid.Nil, s.tracker.SetStatus(ctx, EntityRef{Kind: KindIdea, ID: i.ID, OwnerID: userID}, string(to), "")
		})
	res.ApprovedCount = out.SucceededCount()
	if to == content.IdeaApproved {
		res.ContentIDs = out.Succeeded
	}
	text := "rejection failed"
	if to == content.IdeaApproved {
		text = "approval failed"
	}
	for _, f := range out.Failed {
		s.log.Warn("bulk idea decision failed", "idea_id", f.ID, "status", to, "error", f.Err)
		if f.Error != bulk.CanceledText {
			f.Error = text
		}
		res.Failed = append(res.Failed, f)
	}
	if len(out.Failed) > 0 {
		s.log.Warn("bulk idea decision partially failed", "status", to, "selected", res.TotalSelected, "failed", len(out.Failed))
	}
	return res, nil
}

// approveOne flips one idea to approved and creates its content with a queued
// planning job, all in one transaction.
func (s *ideaService) approveOne(ctx context.Context, userID uuid.UUID, idea *types.Idea, agent *types.Agent) (uuid.UUID, error) {
	if agent == nil {
		return uuid.Nil, fmt.Errorf("agent %s: %w", idea.AgentID, ErrNotFound)
	}
	layout := idea.Layout
	if !layout.Valid() {
		layout = content.LayoutArticle
	}
	description := strings.TrimSpace(idea.Title)
	if d := strings.TrimSpace(idea.Description); d != "" {
		description += "\n\n" + d
	}
	row := &types.Content{
		ID:          uuid.New(),
		AgentID:     idea.AgentID,
		UserID:      userID,
		Description: description,
		Layout:      layout,
		Status:      content.StatusPending,
		Meta:        datatypes.JSON([]byte("{}")),
		Stats:       datatypes.JSON([]byte("{}")),
		Run:         1,
	}
	ref := EntityRef{Kind: KindIdea, ID: idea.ID, OwnerID: userID}
	err := s.tracker.Commit(ctx, ref, string(content.IdeaApproved), "", func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		// Claim the idea first so a concurrent approval cannot create a second content.
		claimed, err := s.repos.Idea.UpdateStatus(dbc, repos.StatusWrite{
			ID:   idea.ID,
			From: []string{string(content.IdeaPending)},
			To:   string(content.IdeaApproved),
		})
		if err != nil {
			return err
		}
		if !claimed {
			return fmt.Errorf("idea %s was already decided: %w", idea.ID, ErrConflict)
		}
		if _, err := s.repos.Content.Create(dbc, []*types.Content{row}); err != nil {
			return fmt.Errorf("create content: %w", err)
		}
		if err := s.repos.Idea.SetContentID(dbc, idea.ID, row.ID); err != nil {
			return fmt.Errorf("link idea: %w", err)
		}
		return enqueuePlanning(dbc, s.jobs, row, agent, userID)
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.tracker.Announce(ctx, ContentRef(row), string(content.StatusPending), "")
	return row.ID, nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
