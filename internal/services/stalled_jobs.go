package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	types "github.com/yungbote/agentwriter-backend/internal/domain"
	"github.com/yungbote/agentwriter-backend/internal/domain/content"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/contract"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
)

const (
	contentTimedOutMessage = "content generation timed out"
	ideasTimedOutMessage   = "idea generation timed out"
	contentFailedMessage   = "content generation failed"
	ideasFailedMessage     = "idea generation failed"
	brandFailedMessage     = "brand document processing failed"
)

// stalledPayload holds the generation markers every pipeline payload carries.
type stalledPayload struct {
	Run          int    `json:"run"`
	DocumentHash string `json:"document_hash"`
}

type entityMessages struct {
	content string
	ideas   string
	brand   string
}

// FailStalledEntity returns the monitor callback that marks the entity behind
// a force-failed or expired job as failed. The write is narrowed to the job's
// own run or document hash, so a job from a superseded generation changes nothing.
func FailStalledEntity(tracker StatusTracker, baseLog *logger.Logger) func(ctx context.Context, job *types.JobRun) {
	return failJobEntity(tracker, baseLog.With("component", "StalledJobHandler"), entityMessages{
		content: contentTimedOutMessage,
		ideas:   ideasTimedOutMessage,
		brand:   brandFailedMessage,
	})
}

// FailJobEntity returns the worker hook for jobs that ended failed without
// their stage marking the entity, such as an undecodable payload or a
// database error on the final attempt.
func FailJobEntity(tracker StatusTracker, baseLog *logger.Logger) func(ctx context.Context, job *types.JobRun) {
	return failJobEntity(tracker, baseLog.With("component", "FailedJobHandler"), entityMessages{
		content: contentFailedMessage,
		ideas:   ideasFailedMessage,
		brand:   brandFailedMessage,
	})
}

func failJobEntity(tracker StatusTracker, log *logger.Logger, msgs entityMessages) func(ctx context.Context, job *types.JobRun) {
	return func(ctx context.Context, job *types.JobRun) {
		if job == nil || job.EntityID == nil {
			return
		}
		var p stalledPayload
		if len(job.Payload) > 0 {
			if err := json.Unmarshal(job.Payload, &p); err != nil {
				log.Warn("job payload unreadable", "job_id", job.ID, "queue", job.Queue, "error", err)
				return
			}
		}

		ref := EntityRef{ID: *job.EntityID, OwnerID: job.OwnerUserID}
		var status, message string
		switch {
		case job.EntityType == contract.EntityContent:
			ref.Kind, ref.Run = KindContent, p.Run
			status, message = string(content.StatusFailed), msgs.content
		case job.Queue == contract.QueueChunksSave:
			ref.Kind, ref.Hash = KindBrand, p.DocumentHash
			status, message = content.BrandFailed, msgs.brand
		case strings.HasPrefix(job.Queue, "ideas."):
			ref.Kind, ref.Run = KindAgentIdeas, p.Run
			status, message = content.IdeaRunFailed, msgs.ideas
		default:
			log.Warn("job has no tracked entity", "job_id", job.ID, "queue", job.Queue, "entity_type", job.EntityType)
			return
		}
		// Without a run or hash the write could fail a newer generation.
		if ref.Run == 0 && ref.Hash == "" {
			log.Warn("job carries no generation marker", "job_id", job.ID, "queue", job.Queue)
			return
		}

		err := tracker.SetStatus(ctx, ref, status, message)
		switch {
		case err == nil:
			log.Info("entity failed after job failure", "job_id", job.ID, "queue", job.Queue, "entity_id", ref.ID, "kind", ref.Kind)
		case errors.Is(err, content.ErrInvalidTransition):
			log.Debug("job entity already moved on", "job_id", job.ID, "entity_id", ref.ID)
		default:
			log.Error("failed to mark job entity", "job_id", job.ID, "entity_id", ref.ID, "error", err)
		}
	}
}
