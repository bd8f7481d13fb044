package serp

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/FranksOps/signlead/pkg/ratelimit"
)

// RetryConfig tunes Retrying. Zero values get defaults.
type RetryConfig struct {
	// MaxAttempts counts the first try.
	MaxAttempts int
	// Cooldown is the wait after a rate-limit response.
	Cooldown       time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// JitterFrac spreads transient backoff by +/- this fraction.
	JitterFrac float64
	Logger     *slog.Logger
}

// Retrying wraps a provider with the per-query retry policy. Rate limits
// wait out a cooldown and transient failures back off exponentially; when
// attempts run out, or the backend rejects the query outright, the query
// counts as empty. Only ErrExhausted and context errors reach the caller.
type Retrying struct {
	Provider
	cfg   RetryConfig
	sleep func(context.Context, time.Duration) error
}

// NewRetrying wraps p.
func NewRetrying(p Provider, cfg RetryConfig) *Retrying {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Second
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 10 * time.Second
	}
	if cfg.JitterFrac < 0 {
		cfg.JitterFrac = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Retrying{Provider: p, cfg: cfg, sleep: ratelimit.Sleep}
}

func (r *Retrying) Search(ctx context.Context, q Query) ([]Result, error) {
	var lastErr error
	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		rs, err := r.Provider.Search(ctx, q)
		if err == nil {
			return rs, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, ErrExhausted) {
			return nil, err
		}
		lastErr = err

		var wait time.Duration
		switch {
		case errors.Is(err, ErrRateLimited):
			wait = r.cfg.Cooldown
		case IsTransient(err):
			wait = backoffSleep(r.cfg.BackoffInitial, r.cfg.BackoffMax, r.cfg.JitterFrac, attempt)
		default:
			attempt = r.cfg.MaxAttempts
			continue
		}
		if attempt == r.cfg.MaxAttempts-1 {
			break
		}

		r.cfg.Logger.Warn("search failed, retrying",
			"engine", r.Name(), "query", q.Text, "state", q.State,
			"attempt", attempt+1, "wait", wait, "err", err)
		if err := r.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	r.cfg.Logger.Error("search failed, skipping query",
		"engine", r.Name(), "query", q.Text, "state", q.State, "err", lastErr)
	return []Result{}, nil
}

func backoffSleep(initial, max time.Duration, jitterFrac float64, attempt int) time.Duration {
	sleep := initial
	for i := 0; i < attempt && sleep < max; i++ {
		sleep *= 2
		if sleep > max {
			sleep = max
			break
		}
	}
	if jitterFrac <= 0 {
		return sleep
	}
	j := 1 + (rand.Float64()*2-1)*jitterFrac
	return time.Duration(float64(sleep) * j)
}
