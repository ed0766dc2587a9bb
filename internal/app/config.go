package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/agentwriter-backend/internal/data/db"
	"github.com/yungbote/agentwriter-backend/internal/jobs/monitor"
	"github.com/yungbote/agentwriter-backend/internal/jobs/queue"
	"github.com/yungbote/agentwriter-backend/internal/observability"
	"github.com/yungbote/agentwriter-backend/internal/platform/billing"
	"github.com/yungbote/agentwriter-backend/internal/platform/envutil"
	"github.com/yungbote/agentwriter-backend/internal/platform/logger"
	"github.com/yungbote/agentwriter-backend/internal/platform/objectstore"
	"github.com/yungbote/agentwriter-backend/internal/platform/openai"
	"github.com/yungbote/agentwriter-backend/internal/platform/websearch"
)

type Config struct {
	ServiceName    string
	Environment    string
	Version        string
	Port           string
	AllowedOrigins []string

	JWTSecretKey   string
	AccessTokenTTL time.Duration

	Postgres     db.Config
	PGNotify     bool
	RedisAddr    string
	RedisChannel string

	OpenAI    openai.Config
	WebSearch websearch.Config
	Billing   billing.Config
	Exports   objectstore.Config
	Otel      observability.OtelConfig

	Monitor         monitor.Config
	QueueOverrides  map[string]queue.Options
	ShutdownTimeout time.Duration
}

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		ServiceName:    envutil.String("SERVICE_NAME", "agentwriter"),
		Environment:    envutil.String("ENVIRONMENT", "development"),
		Version:        envutil.String("VERSION", "dev"),
		Port:           envutil.String("PORT", "8080"),
		AllowedOrigins: splitList(envutil.String("CORS_ALLOWED_ORIGINS", "")),

		JWTSecretKey:   envutil.String("JWT_SECRET_KEY", ""),
		AccessTokenTTL: envutil.Duration("ACCESS_TOKEN_TTL", time.Hour),

		Postgres: db.Config{
			DSN:          strings.TrimSpace(envutil.String("POSTGRES_DSN", "")),
			Host:         envutil.String("POSTGRES_HOST", "localhost"),
			Port:         envutil.String("POSTGRES_PORT", "5432"),
			User:         envutil.String("POSTGRES_USER", "postgres"),
			Password:     envutil.String("POSTGRES_PASSWORD", ""),
			Name:         envutil.String("POSTGRES_NAME", "agentwriter"),
			MaxOpenConns: envutil.Int("POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envutil.Int("POSTGRES_MAX_IDLE_CONNS", 10),
		},
		PGNotify:     envutil.Bool("PG_NOTIFY_ENABLED", true),
		RedisAddr:    strings.TrimSpace(envutil.String("REDIS_ADDR", "")),
		RedisChannel: envutil.String("REDIS_CHANNEL", "agentwriter:events"),

		OpenAI:    openai.ConfigFromEnv(),
		WebSearch: websearch.ConfigFromEnv(),
		Billing:   billing.ConfigFromEnv(),
		Exports:   objectstore.ConfigFromEnv(),

		Monitor: monitor.Config{
			Interval: envutil.Duration("STUCK_JOB_INTERVAL", monitor.DefaultInterval),
			Timeout:  envutil.Duration("STUCK_JOB_TIMEOUT", monitor.DefaultTimeout),
		},
		ShutdownTimeout: envutil.Duration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
	cfg.Otel = observability.OtelConfigFromEnv()
	cfg.Otel.ServiceName = cfg.ServiceName
	cfg.Otel.Environment = cfg.Environment
	cfg.Otel.Version = cfg.Version

	if cfg.JWTSecretKey == "" {
		log.Warn("JWT_SECRET_KEY is not set; every API request will be rejected")
	}

	if path := strings.TrimSpace(os.Getenv("PIPELINE_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read PIPELINE_CONFIG: %w", err)
		}
		if err := applyPipelineFile(&cfg, raw); err != nil {
			return Config{}, fmt.Errorf("PIPELINE_CONFIG %s: %w", path, err)
		}
		log.Info("Loaded pipeline config", "path", path, "queue_overrides", len(cfg.QueueOverrides))
	}
	return cfg, nil
}

// pipelineFile is the optional YAML overlay for queue and monitor tuning.
//
//	queues:
//	  content.writing:
//	    concurrency: 8
//	    rate_limit: {max: 20, per: 1s}
//	    max_attempts: 5
//	    backoff: [10s, 1m]
//	    timeout: 15m
//	monitor:
//	  interval: 1m
//	  timeout: 20m
type pipelineFile struct {
	Queues  map[string]queueTuning `yaml:"queues"`
	Monitor struct {
		Interval string `yaml:"interval"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"monitor"`
}

type queueTuning struct {
	Concurrency int `yaml:"concurrency"`
	RateLimit   struct {
		Max int    `yaml:"max"`
		Per string `yaml:"per"`
	} `yaml:"rate_limit"`
	MaxAttempts int      `yaml:"max_attempts"`
	Backoff     []string `yaml:"backoff"`
	Timeout     string   `yaml:"timeout"`
}

func applyPipelineFile(cfg *Config, raw []byte) error {
	var f pipelineFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if len(f.Queues) > 0 {
		cfg.QueueOverrides = make(map[string]queue.Options, len(f.Queues))
	}
	for name, q := range f.Queues {
		opts := queue.Options{
			Name:        name,
			Concurrency: q.Concurrency,
			MaxAttempts: q.MaxAttempts,
		}
		var err error
		if opts.RateLimit.Per, err = parseDuration(q.RateLimit.Per); err != nil {
			return fmt.Errorf("queues.%s.rate_limit.per: %w", name, err)
		}
		opts.RateLimit.Max = q.RateLimit.Max
		if opts.Timeout, err = parseDuration(q.Timeout); err != nil {
			return fmt.Errorf("queues.%s.timeout: %w", name, err)
		}
		for i, b := range q.Backoff {
			d, err := parseDuration(b)
			if err != nil {
				return fmt.Errorf("queues.%s.backoff[%d]: %w", name, i, err)
			}
			opts.Backoff = append(opts.Backoff, d)
		}
		cfg.QueueOverrides[name] = opts
	}
	if d, err := parseDuration(f.Monitor.Interval); err != nil {
		return fmt.Errorf("monitor.interval: %w", err)
	} else if d > 0 {
		cfg.Monitor.Interval = d
	}
	if d, err := parseDuration(f.Monitor.Timeout); err != nil {
		return fmt.Errorf("monitor.timeout: %w", err)
	} else if d > 0 {
		cfg.Monitor.Timeout = d
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
