package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestPacer_NoBlockWhenZeroBand(t *testing.T) {
	p := NewPacer(0, 0)

	start := time.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 10*time.Millisecond {
		t.Errorf("pacer with zero band should not block")
	}
}

func TestPacer_NilIsNoop(t *testing.T) {
	var p *Pacer
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPacer_WaitWithinBand(t *testing.T) {
	p := NewPacer(50*time.Millisecond, 100*time.Millisecond)

	start := time.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := time.Since(start)
	if d < 45*time.Millisecond || d > 250*time.Millisecond {
		t.Errorf("expected wait between 50ms and 100ms, took %v", d)
	}
}

func TestPacer_NextDeterministicRand(t *testing.T) {
	p := NewPacer(100*time.Millisecond, 200*time.Millisecond)
	p.rand = func() float64 { return 0.5 }

	if got := p.Next(); got != 150*time.Millisecond {
		t.Errorf("expected 150ms, got %v", got)
	}
}

func TestPacer_InvertedBandCollapses(t *testing.T) {
	p := NewPacer(80*time.Millisecond, 10*time.Millisecond)
	if got := p.Next(); got != 80*time.Millisecond {
		t.Errorf("expected collapsed band at 80ms, got %v", got)
	}
}

func TestPacer_ContextCancellation(t *testing.T) {
	p := NewPacer(time.Second, 2*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Wait(ctx); err == nil {
		t.Fatalf("expected context canceled error")
	}
}

func TestSleep(t *testing.T) {
	start := time.Now()
	if err := Sleep(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Errorf("sleep returned too early")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Second); err == nil {
		t.Errorf("expected cancellation error")
	}
}
