package content

import (
	"gorm.io/gorm"

	"github.com/yungbote/agentwriter-backend/internal/data/repos"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
	"github.com/yungbote/agentwriter-backend/internal/platform/objectstore"
	"github.com/yungbote/agentwriter-backend/internal/platform/openai"
	"github.com/yungbote/agentwriter-backend/internal/platform/qdrant"
	"github.com/yungbote/agentwriter-backend/internal/platform/websearch"
	"github.com/yungbote/agentwriter-backend/internal/services"
)

// Deps are the collaborators shared by every content stage. Search, Vectors
// and Exports are optional.
type Deps struct {
	DB      *gorm.DB
	Log     *logger.Logger
	Repos   *repos.Repos
	Tracker services.StatusTracker
	Billing services.BillingNotifier
	LLM     openai.Client
	Search  websearch.Client
	Vectors qdrant.Store
	Exports objectstore.Store
}
