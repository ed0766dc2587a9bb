package queue

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter gates job starts. A nil Limiter means unlimited.
type Limiter interface {
	Wait(ctx context.Context) error
}

// NewLocalLimiter limits starts within this process only.
func NewLocalLimiter(rl RateLimit) Limiter {
	if !rl.Enabled() {
		return nil
	}
	return rate.NewLimiter(rate.Every(rl.Per/time.Duration(rl.Max)), rl.Max)
}

type redisLimiter struct {
	rdb goredis.UniversalClient
	key string
	rl  RateLimit
	now func() time.Time
}

// NewRedisLimiter enforces rl across every process consuming the queue with a
// fixed window counter per key.
func NewRedisLimiter(rdb goredis.UniversalClient, key string, rl RateLimit) Limiter {
	if !rl.Enabled() || rdb == nil {
		return nil
	}
	return &redisLimiter{rdb: rdb, key: key, rl: rl, now: time.Now}
}

func (l *redisLimiter) Wait(ctx context.Context) error {
	for {
		now := l.now()
		window := now.UnixMilli() / l.rl.Per.Milliseconds()
		k := fmt.Sprintf("ratelimit:%s:%d", l.key, window)

		var incr *goredis.IntCmd
		_, err := l.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			incr = p.Incr(ctx, k)
			p.PExpire(ctx, k, l.rl.Per)
			return nil
		})
		if err != nil {
			return fmt.Errorf("rate limiter %s: %w", l.key, err)
		}
		if incr.Val() <= int64(l.rl.Max) {
			return nil
		}

		next := time.UnixMilli((window + 1) * l.rl.Per.Milliseconds())
		t := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
