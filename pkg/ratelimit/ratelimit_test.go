package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiter_FirstCallDoesNotBlock(t *testing.T) {
	limiter := NewLimiter(time.Second, 0)
	defer limiter.Stop()

	start := time.Now()
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("first call should proceed immediately")
	}
}

func TestLimiter_ZeroIntervalDoesNotBlock(t *testing.T) {
	limiter := NewLimiter(0, 0.5)
	defer limiter.Stop()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("limiter with zero interval should not block")
	}
}

func TestLimiter_SpacesStarts(t *testing.T) {
	interval := 150 * time.Millisecond
	limiter := NewLimiter(interval, 0)
	defer limiter.Stop()

	ctx := context.Background()
	var starts []time.Time
	for i := 0; i < 3; i++ {
		err := limiter.Do(ctx, func(context.Context) error {
			starts = append(starts, time.Now())
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < interval-10*time.Millisecond {
			t.Errorf("start %d followed previous by %v, want >= %v", i, gap, interval)
		}
	}
}

func TestLimiter_MeasuresFromStart(t *testing.T) {
	interval := 100 * time.Millisecond
	limiter := NewLimiter(interval, 0)
	defer limiter.Stop()

	ctx := context.Background()
	_ = limiter.Do(ctx, func(context.Context) error {
		time.Sleep(150 * time.Millisecond)
		return nil
	})

	// The previous operation ran longer than the interval, so no extra wait.
	start := time.Now()
	_ = limiter.Wait(ctx)
	if d := time.Since(start); d > 50*time.Millisecond {
		t.Errorf("expected no wait after a long operation, waited %v", d)
	}
}

func TestLimiter_SerializesConcurrentCallers(t *testing.T) {
	limiter := NewLimiter(20*time.Millisecond, 0)
	defer limiter.Stop()

	var running, maxRunning atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = limiter.Do(context.Background(), func(context.Context) error {
				n := running.Add(1)
				for {
					m := maxRunning.Load()
					if n <= m || maxRunning.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if got := maxRunning.Load(); got != 1 {
		t.Errorf("expected at most one concurrent operation, saw %d", got)
	}
}

func TestLimiter_PropagatesError(t *testing.T) {
	limiter := NewLimiter(0, 0)
	defer limiter.Stop()

	want := errors.New("boom")
	err := limiter.Do(context.Background(), func(context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestLimiter_ContextCancellation(t *testing.T) {
	limiter := NewLimiter(time.Second, 0)
	defer limiter.Stop()

	_ = limiter.Wait(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ran := false
	err := limiter.Do(ctx, func(context.Context) error {
		ran = true
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if ran {
		t.Error("canceled operation should not run")
	}
}

func TestLimiter_Stop(t *testing.T) {
	limiter := NewLimiter(time.Second, 0)
	limiter.Stop()
	limiter.Stop()

	if err := limiter.Wait(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

func TestLimiter_Jitter(t *testing.T) {
	interval := 100 * time.Millisecond
	limiter := NewLimiter(interval, 0.5)
	defer limiter.Stop()

	ctx := context.Background()
	_ = limiter.Wait(ctx)

	start := time.Now()
	_ = limiter.Wait(ctx)
	d := time.Since(start)

	// Jitter only ever adds: between 100ms and 150ms, with scheduling slack.
	if d < 90*time.Millisecond || d > 300*time.Millisecond {
		t.Errorf("expected jittered wait roughly between 100ms and 150ms, took %v", d)
	}
}
