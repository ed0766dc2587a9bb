package queue

import "time"

const (
	DefaultMaxAttempts  = 3
	DefaultTimeout      = 10 * time.Minute
	DefaultPollInterval = time.Second
)

var DefaultBackoff = []time.Duration{5 * time.Second, 30 * time.Second, 2 * time.Minute}

// RateLimit allows Max job starts per Per window. A zero value is unlimited.
type RateLimit struct {
	Max int           `yaml:"max"`
	Per time.Duration `yaml:"per"`
}

func (r RateLimit) Enabled() bool { return r.Max > 0 && r.Per > 0 }

type Options struct {
	Name         string
	Concurrency  int
	RateLimit    RateLimit
	MaxAttempts  int
	Backoff      []time.Duration
	Timeout      time.Duration
	PollInterval time.Duration
}

func (o Options) WithDefaults() Options {
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.MaxAttempts < 1 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if len(o.Backoff) == 0 {
		o.Backoff = DefaultBackoff
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	return o
}

// BackoffFor returns the delay before the retry that follows a failed attempt
// (1-based). Attempts past the table reuse its last entry.
func (o Options) BackoffFor(attempt int) time.Duration {
	if len(o.Backoff) == 0 {
		return 0
	}
	i := attempt - 1
	if i < 0 {
		i = 0
	}
	if i >= len(o.Backoff) {
		i = len(o.Backoff) - 1
	}
	return o.Backoff[i]
}

// Merge returns o with every non-zero field of over applied on top.
func (o Options) Merge(over Options) Options {
	if over.Concurrency > 0 {
		o.Concurrency = over.Concurrency
	}
	if over.RateLimit.Enabled() {
		o.RateLimit = over.RateLimit
	}
	if over.MaxAttempts > 0 {
		o.MaxAttempts = over.MaxAttempts
	}
	if len(over.Backoff) > 0 {
		o.Backoff = over.Backoff
	}
	if over.Timeout > 0 {
		o.Timeout = over.Timeout
	}
	if over.PollInterval > 0 {
		o.PollInterval = over.PollInterval
	}
	return o
}
