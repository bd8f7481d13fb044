package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Pacer spaces out sequential operations by sleeping a random duration drawn
// from [Min, Max] before each one. Unlike a ticker it never lets callers burst:
// every Wait sleeps.
// It is safe for concurrent use by multiple goroutines.
type Pacer struct {
	min, max time.Duration

	mu   sync.Mutex
	rand func() float64
}

// NewPacer creates a pacer that waits between min and max. If max is below min
// the band collapses to min. A zero band makes Wait a no-op.
func NewPacer(min, max time.Duration) *Pacer {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	return &Pacer{min: min, max: max, rand: rand.Float64}
}

// Next returns the delay the following Wait would sleep for.
func (p *Pacer) Next() time.Duration {
	if p == nil || p.max == 0 {
		return 0
	}
	if p.max == p.min {
		return p.min
	}
	p.mu.Lock()
	f := p.rand()
	p.mu.Unlock()
	return p.min + time.Duration(f*float64(p.max-p.min))
}

// Wait blocks for one randomized interval, or until the context is canceled.
func (p *Pacer) Wait(ctx context.Context) error {
	d := p.Next()
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Sleep waits for exactly d unless the context ends first. It is used for
// fixed cooldowns such as backing off after a rate-limit response.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
