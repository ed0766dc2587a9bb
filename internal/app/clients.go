package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/agentwriter-backend/internal/platform/billing"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
	"github.com/yungbote/agentwriter-backend/internal/platform/objectstore"
	"github.com/yungbote/agentwriter-backend/internal/platform/openai"
	"github.com/yungbote/agentwriter-backend/internal/platform/qdrant"
	"github.com/yungbote/agentwriter-backend/internal/platform/websearch"
	"github.com/yungbote/agentwriter-backend/internal/realtime/bus"
)

// Clients holds the external providers. Search, Vectors, Exports, Billing
// and Redis are optional and left nil when unconfigured.
type Clients struct {
	Redis   *goredis.Client
	Bus     bus.Bus
	LLM     openai.Client
	Search  websearch.Client
	Vectors qdrant.Store
	Exports objectstore.Store
	Billing billing.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Redis
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return Clients{}, fmt.Errorf("init redis %s: %w", cfg.RedisAddr, err)
		}
		b, err := bus.NewRedisBus(log, rdb, cfg.RedisChannel)
		if err != nil {
			_ = rdb.Close()
			return Clients{}, fmt.Errorf("init redis event bus: %w", err)
		}
		out.Redis = rdb
		out.Bus = b
	} else {
		log.Warn("REDIS_ADDR not set; status events stay in this process")
		out.Bus = bus.NewMemoryBus()
	}

	// Openai
	llm, err := openai.NewClient(log, cfg.OpenAI)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}
	out.LLM = llm

	// Web search
	if cfg.WebSearch.URL != "" {
		search, err := websearch.NewClient(log, cfg.WebSearch, nil)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init web search client: %w", err)
		}
		out.Search = search
	} else {
		log.Warn("WEB_SEARCH_URL not set; research runs without web results")
	}

	// Qdrant
	vectors, err := resolveVectorStore(log)
	if err != nil {
		out.Close()
		return Clients{}, err
	}
	if vectors != nil {
		out.Vectors = vectors
	}

	// Minio
	exports, err := resolveExportStore(ctx, log, cfg.Exports)
	if err != nil {
		out.Close()
		return Clients{}, err
	}
	if exports != nil {
		out.Exports = exports
	}

	// Billing
	if cfg.Billing.Enabled() {
		bc, err := billing.NewClient(cfg.Billing, nil)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init billing client: %w", err)
		}
		out.Billing = bc
	} else {
		log.Warn("BILLING_INGEST_URL not set; usage events are counted and dropped")
	}

	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
