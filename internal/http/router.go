package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/agentwriter-backend/internal/http/handlers"
	httpMW "github.com/yungbote/agentwriter-backend/internal/http/middleware"
	"github.com/yungbote/agentwriter-backend/internal/observability"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string
	Metrics        *observability.Metrics

	AuthMiddleware  *httpMW.AuthMiddleware
	ContentHandler  *httpH.ContentHandler
	IdeaHandler     *httpH.IdeaHandler
	BrandHandler    *httpH.BrandHandler
	RealtimeHandler *httpH.RealtimeHandler
	QueueHandler    *httpH.QueueHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	protected := r.Group("/api")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Contents
		if cfg.ContentHandler != nil {
			protected.POST("/agents/:agentId/contents", cfg.ContentHandler.Create)
			protected.GET("/contents/:id", cfg.ContentHandler.Get)
			protected.GET("/contents/:id/versions", cfg.ContentHandler.Versions)
			protected.POST("/contents/:id/regenerate", cfg.ContentHandler.Regenerate)
			protected.POST("/contents/:id/approve", cfg.ContentHandler.Approve)
			protected.PUT("/contents/:id/body", cfg.ContentHandler.SaveBody)
		}

		// Ideas
		if cfg.IdeaHandler != nil {
			protected.POST("/agents/:agentId/ideas/generate", cfg.IdeaHandler.Generate)
			protected.POST("/ideas/bulk-approve", cfg.IdeaHandler.BulkApprove)
			protected.POST("/ideas/bulk-reject", cfg.IdeaHandler.BulkReject)
		}

		// Brand
		if cfg.BrandHandler != nil {
			protected.PUT("/agents/:agentId/brand-document", cfg.BrandHandler.UpdateDocument)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			protected.GET("/events", cfg.RealtimeHandler.Events)
		}

		if cfg.QueueHandler != nil {
			protected.GET("/queues", cfg.QueueHandler.List)
		}
	}

	return r
}
