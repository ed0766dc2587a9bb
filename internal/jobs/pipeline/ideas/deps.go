package ideas

import (
	"github.com/yungbote/agentwriter-backend/internal/data/repos"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
	"github.com/yungbote/agentwriter-backend/internal/platform/openai"
	"github.com/yungbote/agentwriter-backend/internal/platform/qdrant"
	"github.com/yungbote/agentwriter-backend/internal/services"
)

// Deps are the collaborators shared by every idea stage. Vectors is optional.
type Deps struct {
	Log     *logger.Logger
	Repos   *repos.Repos
	Tracker services.StatusTracker
	Emitter services.SSEEmitter
	Billing services.BillingNotifier
	LLM     openai.Client
	Vectors qdrant.Store
}
