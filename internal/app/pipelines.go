package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/agentwriter-backend/internal/data/repos"
	"github.com/yungbote/agentwriter-backend/internal/jobs"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/chunks"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/content"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/ideas"
	"github.com/yungbote/agentwriter-backend/internal/jobs/queue"
	"github.com/yungbote/agentwriter-backend/internal/observability"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
	"github.com/yungbote/agentwriter-backend/internal/services"
)

// newRegistry builds the queue table. With redis configured every queue's
// rate limit is shared across processes; with PG_NOTIFY_ENABLED idle workers
// are woken by NOTIFY instead of waiting out their poll interval.
func newRegistry(log *logger.Logger, cfg Config, db *gorm.DB, dsn string, r *repos.Repos, clients Clients, metrics *observability.Metrics) *jobs.Registry {
	opts := []jobs.Option{
		jobs.WithOverrides(cfg.QueueOverrides),
		jobs.WithObserver(metrics),
	}
	if clients.Redis != nil {
		rdb := clients.Redis
		opts = append(opts, jobs.WithLimiterFactory(func(o queue.Options) queue.Limiter {
			if !o.RateLimit.Enabled() {
				return queue.NewLocalLimiter(o.RateLimit)
			}
			return queue.NewRedisLimiter(rdb, "agentwriter:ratelimit:"+o.Name, o.RateLimit)
		}))
	}
	if cfg.PGNotify {
		opts = append(opts,
			jobs.WithNotifier(queue.NewPGNotifier(db)),
			jobs.WithListener(queue.NewListener(dsn, log)),
		)
	}
	return jobs.NewRegistry(r.JobRun, log, opts...)
}

// registerPipelines attaches a consumer to every pipeline queue. Processes
// that only produce jobs declare the queues instead.
func registerPipelines(reg *jobs.Registry, consume bool, log *logger.Logger, db *gorm.DB, r *repos.Repos, clients Clients, svc Services) error {
	if !consume {
		all := append(append(content.Queues(), ideas.Queues()...), chunks.Options())
		for _, opts := range all {
			if _, err := reg.Declare(opts); err != nil {
				return fmt.Errorf("declare %s: %w", opts.Name, err)
			}
		}
		return nil
	}

	reg.OnJobFailed(services.FailJobEntity(svc.Tracker, log))
	if err := content.Register(reg, content.Deps{
		DB:      db,
		Log:     log,
		Repos:   r,
		Tracker: svc.Tracker,
		Billing: svc.Billing,
		LLM:     clients.LLM,
		Search:  clients.Search,
		Vectors: clients.Vectors,
		Exports: clients.Exports,
	}); err != nil {
		return fmt.Errorf("register content pipeline: %w", err)
	}
	if err := ideas.Register(reg, ideas.Deps{
		Log:     log,
		Repos:   r,
		Tracker: svc.Tracker,
		Emitter: svc.Emitter,
		Billing: svc.Billing,
		LLM:     clients.LLM,
		Vectors: clients.Vectors,
	}); err != nil {
		return fmt.Errorf("register ideas pipeline: %w", err)
	}
	if err := chunks.Register(reg, chunks.Deps{
		Log:     log,
		Repos:   r,
		Tracker: svc.Tracker,
		Billing: svc.Billing,
		LLM:     clients.LLM,
		Vectors: clients.Vectors,
	}); err != nil {
		return fmt.Errorf("register brand chunk pipeline: %w", err)
	}
	return nil
}
