package domain

import (
	"github.com/yungbote/agentwriter-backend/internal/domain/content"
	"github.com/yungbote/agentwriter-backend/internal/domain/jobs"
)

type (
	Content         = content.Content
	ContentVersion  = content.ContentVersion
	ContentStatus   = content.Status
	Layout          = content.Layout
	Idea            = content.Idea
	IdeaStatus      = content.IdeaStatus
	Agent           = content.Agent
	BrandChunkBatch = content.BrandChunkBatch
)

type JobRun = jobs.JobRun

// Models lists every persisted row type in migration order.
func Models() []any {
	return []any{
		&Agent{},
		&Content{},
		&ContentVersion{},
		&Idea{},
		&BrandChunkBatch{},
		&JobRun{},
	}
}
