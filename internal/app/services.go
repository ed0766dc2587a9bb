package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/agentwriter-backend/internal/data/repos"
	"github.com/yungbote/agentwriter-backend/internal/observability"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
	"github.com/yungbote/agentwriter-backend/internal/realtime"
	"github.com/yungbote/agentwriter-backend/internal/services"
)

type Services struct {
	Emitter       services.SSEEmitter
	Tracker       services.StatusTracker
	Billing       services.BillingNotifier
	Auth          services.AuthService
	ChannelAccess services.ChannelAccess
	Content       services.ContentService
	Idea          services.IdeaService
	Brand         services.BrandService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r *repos.Repos, clients Clients, hub *realtime.SSEHub, jobs services.JobEnqueuer, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")

	var emitter services.SSEEmitter = &services.HubEmitter{Hub: hub}
	if clients.Bus != nil {
		emitter = &services.BusEmitter{Bus: clients.Bus, Log: log}
	}
	tracker := services.NewStatusTracker(db, r, emitter, log)

	return Services{
		Emitter:       emitter,
		Tracker:       tracker,
		Billing:       services.NewBillingNotifier(clients.Billing, metrics, services.BillingConfig{}, log),
		Auth:          services.NewAuthService(log, cfg.JWTSecretKey, cfg.AccessTokenTTL),
		ChannelAccess: services.NewChannelAccess(r),
		Content:       services.NewContentService(db, r, tracker, jobs, log),
		Idea:          services.NewIdeaService(db, r, tracker, jobs, log),
		Brand:         services.NewBrandService(db, r, tracker, jobs, log),
	}
}
