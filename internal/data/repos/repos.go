package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/agentwriter-backend/internal/data/repos/content"
	"github.com/yungbote/agentwriter-backend/internal/data/repos/jobs"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
)

type ContentRepo = content.ContentRepo
type ContentVersionRepo = content.ContentVersionRepo
type IdeaRepo = content.IdeaRepo
type AgentRepo = content.AgentRepo
type JobRunRepo = jobs.JobRunRepo

type StatusWrite = content.StatusWrite

// Repos is the full repository set, constructed once per process.
type Repos struct {
	Content        ContentRepo
	ContentVersion ContentVersionRepo
	Idea           IdeaRepo
	Agent          AgentRepo
	JobRun         JobRunRepo
}

func New(db *gorm.DB, baseLog *logger.Logger) *Repos {
	return &Repos{
		Content:        content.NewContentRepo(db, baseLog),
		ContentVersion: content.NewContentVersionRepo(db, baseLog),
		Idea:           content.NewIdeaRepo(db, baseLog),
		Agent:          content.NewAgentRepo(db, baseLog),
		JobRun:         jobs.NewJobRunRepo(db, baseLog),
	}
}
