package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/yungbote/agentwriter-backend/internal/data/db"
	"github.com/yungbote/agentwriter-backend/internal/data/repos"
	apphttp "github.com/yungbote/agentwriter-backend/internal/http"
	httpH "github.com/yungbote/agentwriter-backend/internal/http/handlers"
	httpMW "github.com/yungbote/agentwriter-backend/internal/http/middleware"
	"github.com/yungbote/agentwriter-backend/internal/jobs"
	"github.com/yungbote/agentwriter-backend/internal/jobs/monitor"
	"github.com/yungbote/agentwriter-backend/internal/observability"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
	"github.com/yungbote/agentwriter-backend/internal/realtime"
	"github.com/yungbote/agentwriter-backend/internal/services"
)

// Mode selects which halves of the system a process runs.
type Mode struct {
	API     bool
	Workers bool
}

var (
	ModeServe  = Mode{API: true, Workers: true}
	ModeAPI    = Mode{API: true}
	ModeWorker = Mode{Workers: true}
	// ModeAdmin connects to the database and declares queues without
	// consuming them; used by one-shot CLI commands.
	ModeAdmin = Mode{}
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Mode     Mode
	Repos    *repos.Repos
	Clients  Clients
	Services Services
	Registry *jobs.Registry
	SSEHub   *realtime.SSEHub
	Metrics  *observability.Metrics
	Server   *apphttp.Server

	pg           *db.PostgresService
	otelShutdown func(context.Context) error
	monitor      *monitor.Handle
	cancel       context.CancelFunc
}

func New(ctx context.Context, mode Mode) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel)
	metrics := observability.Init(log)

	pg, err := db.NewPostgresService(log, cfg.Postgres)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := db.AutoMigrateAll(pg.DB()); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	reposet := repos.New(theDB, log)
	hub := realtime.NewSSEHub(log)
	registry := newRegistry(log, cfg, theDB, pg.DSN(), reposet, clients, metrics)
	serviceset := wireServices(theDB, log, cfg, reposet, clients, hub, registry, metrics)
	if err := registerPipelines(registry, mode.Workers, log, theDB, reposet, clients, serviceset); err != nil {
		clients.Close()
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	a := &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Mode:         mode,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		Registry:     registry,
		SSEHub:       hub,
		Metrics:      metrics,
		pg:           pg,
		otelShutdown: otelShutdown,
	}
	if mode.API {
		a.Server = apphttp.NewServer(":"+cfg.Port, a.routerConfig())
	}
	return a, nil
}

func (a *App) routerConfig() apphttp.RouterConfig {
	checks := map[string]httpH.Pinger{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if a.Clients.Redis != nil {
		rdb := a.Clients.Redis
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return apphttp.RouterConfig{
		Log:             a.Log,
		ServiceName:     a.Cfg.ServiceName,
		AllowedOrigins:  a.Cfg.AllowedOrigins,
		Metrics:         a.Metrics,
		AuthMiddleware:  httpMW.NewAuthMiddleware(a.Log, a.Services.Auth),
		ContentHandler:  httpH.NewContentHandler(a.Services.Content),
		IdeaHandler:     httpH.NewIdeaHandler(a.Services.Idea),
		BrandHandler:    httpH.NewBrandHandler(a.Services.Brand),
		RealtimeHandler: httpH.NewRealtimeHandler(a.Log, a.SSEHub, a.Services.ChannelAccess),
		QueueHandler:    httpH.NewQueueHandler(a.Registry),
		HealthHandler:   httpH.NewHealthHandler(checks),
	}
}

// Start runs the background half of the process: the bus forwarder feeding
// the local hub, the workers, the stuck-job monitor and metric collectors.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.Mode.API && a.Clients.Bus != nil {
		hub := a.SSEHub
		if err := a.Clients.Bus.StartForwarder(ctx, func(m realtime.SSEMessage) { hub.Broadcast(m) }); err != nil {
			return fmt.Errorf("start event forwarder: %w", err)
		}
	}

	if a.Mode.Workers {
		a.Registry.Start(ctx)
		monCfg := a.Cfg.Monitor
		monCfg.Queues = a.Registry.Queues()
		a.monitor = monitor.Start(ctx, monCfg, a.Repos.JobRun, a.Log,
			services.FailStalledEntity(a.Services.Tracker, a.Log),
			monitor.WithCounter(a.Metrics),
		)
	}

	if a.Metrics != nil {
		a.Metrics.StartJobQueueCollector(ctx, a.Log, a.Registry)
		a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB)
		if a.Clients.Redis != nil {
			a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Redis)
		}
	}
	return nil
}

// Run serves HTTP until Close. Worker-only processes block until ctx ends.
func (a *App) Run(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Server == nil {
		<-ctx.Done()
		return nil
	}
	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("HTTP server listening", "port", a.Cfg.Port)
		errCh <- a.Server.Run()
	}()
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops intake first, then drains workers, then flushes side channels
// and finally releases connections.
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.Registry != nil {
		if err := a.Registry.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("registry close: %w", err))
		}
	}
	if a.Services.Billing != nil {
		if err := a.Services.Billing.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("billing flush: %w", err))
		}
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("otel shutdown: %w", err))
		}
	}
	if a.pg != nil {
		if err := a.pg.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close: %w", err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		a.Log.Warn("Shutdown finished with errors", "error", err)
	} else {
		a.Log.Info("Shutdown complete")
	}
	a.Log.Sync()
	return err
}
