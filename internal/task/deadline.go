package task

import (
	"context"
	"time"
)

type softKey struct{}

type softSignal struct {
	deadline time.Time
	done     chan struct{}
	timer    *time.Timer
}

// WithSoftDeadline derives a context carrying a cooperative soft deadline.
// Unlike a context deadline it does not cancel anything: handlers observe it
// at their own checkpoints via SoftDone or SoftExpired and wind down
// gracefully. The returned stop function releases the timer.
func WithSoftDeadline(ctx context.Context, d time.Duration) (context.Context, func()) {
	sig := &softSignal{
		deadline: time.Now().Add(d),
		done:     make(chan struct{}),
	}
	sig.timer = time.AfterFunc(d, func() { close(sig.done) })
	stop := func() { sig.timer.Stop() }
	return context.WithValue(ctx, softKey{}, sig), stop
}

// SoftDone returns a channel closed when the soft limit expires. With no soft
// deadline on the context it returns nil, which blocks forever in a select —
// exactly the behaviour a checkpoint wants.
func SoftDone(ctx context.Context) <-chan struct{} {
	sig, _ := ctx.Value(softKey{}).(*softSignal)
	if sig == nil {
		return nil
	}
	return sig.done
}

// SoftExpired is the non-blocking checkpoint: true once the soft limit has
// passed. Batch loops call this between per-recipient sends.
func SoftExpired(ctx context.Context) bool {
	select {
	case <-SoftDone(ctx):
		return true
	default:
		return false
	}
}
