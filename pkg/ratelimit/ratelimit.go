package ratelimit

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// DefaultInterval is the minimum spacing between the starts of two operations.
const DefaultInterval = 2 * time.Second

// ErrStopped is returned for operations submitted to, or still queued in, a stopped limiter.
var ErrStopped = errors.New("ratelimit: limiter stopped")

type task struct {
	ctx  context.Context
	fn   func(context.Context) error
	errc chan error
}

// Limiter serializes operations through a single consumer goroutine and
// spaces their starts by at least the configured interval, plus optional
// positive jitter. It is safe for concurrent use by multiple goroutines.
type Limiter struct {
	interval time.Duration
	jitter   float64 // 0.0 to 1.0
	tasks    chan task
	stop     chan struct{}
	done     chan struct{}

	// last is only touched by the consumer goroutine.
	last time.Time
}

// NewLimiter creates a limiter with the given minimum interval and jitter
// factor, and starts its consumer. Jitter is clamped to [0, 1]. An interval
// <= 0 still serializes operations but never delays them.
func NewLimiter(interval time.Duration, jitter float64) *Limiter {
	if interval < 0 {
		interval = 0
	}
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}

	l := &Limiter{
		interval: interval,
		jitter:   jitter,
		tasks:    make(chan task),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go l.run()
	return l
}

// Interval returns the configured minimum spacing.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Wait blocks until the caller is permitted to start an operation, or until
// the context is canceled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.Do(ctx, nil)
}

// Do enqueues fn and blocks until it has run. fn starts no sooner than the
// interval after the previous operation started, and no other operation
// submitted to this limiter runs concurrently with it. A context canceled
// while queued fails the operation without consuming a slot.
func (l *Limiter) Do(ctx context.Context, fn func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	t := task{ctx: ctx, fn: fn, errc: make(chan error, 1)}

	select {
	case l.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}

	select {
	case err := <-t.errc:
		return err
	case <-l.done:
		// The consumer may have answered right before exiting.
		select {
		case err := <-t.errc:
			return err
		default:
			return ErrStopped
		}
	}
}

// Stop terminates the consumer. Operations already running finish; queued and
// future ones fail with ErrStopped. Stop is idempotent.
func (l *Limiter) Stop() {
	select {
	case <-l.stop:
	default:
		close(l.stop)
	}
	<-l.done
}

func (l *Limiter) run() {
	defer close(l.done)
	for {
		select {
		case <-l.stop:
			return
		case t := <-l.tasks:
			if err := t.ctx.Err(); err != nil {
				t.errc <- err
				continue
			}
			if wait := l.delay(); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-timer.C:
				case <-t.ctx.Done():
					timer.Stop()
					t.errc <- t.ctx.Err()
					continue
				case <-l.stop:
					timer.Stop()
					t.errc <- ErrStopped
					return
				}
			}
			// Spacing is measured from grant to grant, not from completion.
			l.last = time.Now()
			var err error
			if t.fn != nil {
				err = t.fn(t.ctx)
			}
			t.errc <- err
		}
	}
}

func (l *Limiter) delay() time.Duration {
	if l.last.IsZero() || l.interval == 0 {
		return 0
	}
	spacing := l.interval
	if l.jitter > 0 {
		// Only positive jitter: the interval is a floor.
		spacing += time.Duration(float64(l.interval) * l.jitter * rand.Float64())
	}
	return spacing - time.Since(l.last)
}
