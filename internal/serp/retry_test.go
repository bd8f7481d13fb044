package serp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func newTestRetrying(p Provider, attempts int) (*Retrying, *[]time.Duration) {
	r := NewRetrying(p, RetryConfig{
		MaxAttempts:    attempts,
		Cooldown:       7 * time.Second,
		BackoffInitial: time.Second,
		BackoffMax:     4 * time.Second,
	})
	var waits []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return r, &waits
}

func TestRetrying_RateLimitCooldownThenSuccess(t *testing.T) {
	inner := &stubProvider{
		name:    "stub",
		errs:    []error{ErrRateLimited, fmt.Errorf("%w: captcha", ErrRateLimited), nil},
		results: [][]Result{nil, nil, {{URL: "https://a.example.com"}}},
	}
	r, waits := newTestRetrying(inner, 3)

	rs, err := r.Search(context.Background(), Query{Text: "q"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rs) != 1 {
		t.Errorf("expected the third attempt's result, got %+v", rs)
	}
	if len(inner.calls) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(inner.calls))
	}
	if len(*waits) != 2 || (*waits)[0] != 7*time.Second {
		t.Errorf("expected two cooldown waits, got %v", *waits)
	}
}

func TestRetrying_GivesUpWithEmpty(t *testing.T) {
	inner := &stubProvider{
		name: "stub",
		errs: []error{ErrRateLimited, ErrRateLimited, ErrRateLimited, ErrRateLimited},
	}
	r, waits := newTestRetrying(inner, 3)

	rs, err := r.Search(context.Background(), Query{Text: "q"})
	if err != nil {
		t.Fatalf("expected failure to be absorbed, got %v", err)
	}
	if rs == nil || len(rs) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", rs)
	}
	if len(inner.calls) != 3 || len(*waits) != 2 {
		t.Errorf("expected 3 attempts and 2 waits, got %d / %d", len(inner.calls), len(*waits))
	}
}

func TestRetrying_TransientBackoff(t *testing.T) {
	transient := &TransientError{Op: "get", Err: errors.New("connection reset")}
	inner := &stubProvider{name: "stub", errs: []error{transient, transient, transient, transient}}
	r, waits := newTestRetrying(inner, 4)

	if _, err := r.Search(context.Background(), Query{Text: "q"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(*waits) != len(want) {
		t.Fatalf("expected %d waits, got %v", len(want), *waits)
	}
	for i, w := range want {
		if (*waits)[i] != w {
			t.Errorf("wait %d: expected %v, got %v", i, w, (*waits)[i])
		}
	}
}

func TestRetrying_APIErrorNotRetried(t *testing.T) {
	inner := &stubProvider{name: "stub", errs: []error{&APIError{Engine: "stub", Code: 400}}}
	r, waits := newTestRetrying(inner, 3)

	rs, err := r.Search(context.Background(), Query{Text: "q"})
	if err != nil || len(rs) != 0 {
		t.Fatalf("expected empty result, got %v, %v", rs, err)
	}
	if len(inner.calls) != 1 || len(*waits) != 0 {
		t.Errorf("expected a single attempt, got %d calls / %d waits", len(inner.calls), len(*waits))
	}
}

func TestRetrying_ExhaustedPassesThrough(t *testing.T) {
	inner := &stubProvider{name: "stub", errs: []error{ErrExhausted}}
	r, _ := newTestRetrying(inner, 3)

	if _, err := r.Search(context.Background(), Query{Text: "q"}); !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}
	if len(inner.calls) != 1 {
		t.Errorf("expected no retry, got %d calls", len(inner.calls))
	}
}

func TestRetrying_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inner := &stubProvider{name: "stub", errs: []error{ErrRateLimited}}
	r, _ := newTestRetrying(inner, 3)

	if _, err := r.Search(ctx, Query{Text: "q"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBackoffSleep_Jitter(t *testing.T) {
	for i := 0; i < 50; i++ {
		d := backoffSleep(time.Second, 10*time.Second, 0.5, 1)
		if d < time.Second || d > 3*time.Second {
			t.Fatalf("jittered backoff out of range: %v", d)
		}
	}
}
