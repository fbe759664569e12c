package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mariachi-loyalty/dispatch/internal/domain"
	"github.com/mariachi-loyalty/dispatch/internal/task"
)

// Broker holds one buffered channel per named queue. Queues are fully
// isolated lanes: workers for one queue never touch another, so an email
// backlog cannot delay an odoo sync.
//
// Enqueue is non-blocking — a saturated queue returns ErrQueueFull
// immediately instead of stalling the producer. Dequeue blocks until an item
// arrives or ctx is cancelled.
type Broker struct {
	router *task.Router
	queues map[string]chan *Delivery
}

// Delivery wraps a task in flight plus the channel its structured result is
// resolved on. The result channel is buffered so Resolve never blocks a
// worker, even when the producer dropped the handle (fire-and-forget).
type Delivery struct {
	Task   task.Task
	result chan task.Result
}

// Resolve records the task's outcome. Safe to call exactly once per delivery;
// the worker is the only caller.
func (d *Delivery) Resolve(r task.Result) {
	select {
	case d.result <- r:
	default:
	}
}

// Handle is returned to the producer on enqueue. Awaiting callers read the
// structured result; fire-and-forget callers simply drop it.
type Handle struct {
	TaskID string
	Queue  string
	result <-chan task.Result
}

// Await blocks until the task resolves or ctx is cancelled.
func (h *Handle) Await(ctx context.Context) (task.Result, error) {
	select {
	case r := <-h.result:
		return r, nil
	case <-ctx.Done():
		return task.Result{}, ctx.Err()
	}
}

// New creates a broker with one channel of the given capacity per queue in
// the table.
func New(router *task.Router, queues map[string]task.QueueConfig, capacity int) *Broker {
	b := &Broker{
		router: router,
		queues: make(map[string]chan *Delivery, len(queues)),
	}
	for name := range queues {
		b.queues[name] = make(chan *Delivery, capacity)
	}
	return b
}

// Enqueue routes a named task to its queue and places it there. The payload
// is serialized to JSON at enqueue time so the task is immutable afterwards.
// queueOverride, when non-empty, bypasses the router (the scheduler does not
// use this; it exists for operational re-drives).
func (b *Broker) Enqueue(name string, payload any, queueOverride string) (*Handle, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for %s: %w", name, err)
	}

	queueName := queueOverride
	if queueName == "" {
		queueName = b.router.Route(name)
	}
	ch, ok := b.queues[queueName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownQueue, queueName)
	}

	d := &Delivery{
		Task: task.Task{
			ID:         uuid.New().String(),
			Name:       name,
			Queue:      queueName,
			Payload:    raw,
			EnqueuedAt: time.Now().UTC(),
		},
		result: make(chan task.Result, 1),
	}

	select {
	case ch <- d:
	default:
		return nil, domain.ErrQueueFull
	}

	return &Handle{TaskID: d.Task.ID, Queue: queueName, result: d.result}, nil
}

// Dequeue blocks until a delivery is available on the named queue or ctx is
// cancelled. Returns (nil, false) on cancellation (graceful shutdown) and on
// unknown queue names.
func (b *Broker) Dequeue(ctx context.Context, queueName string) (*Delivery, bool) {
	ch, ok := b.queues[queueName]
	if !ok {
		return nil, false
	}
	select {
	case d := <-ch:
		return d, true
	case <-ctx.Done():
		return nil, false
	}
}

// Depths returns the number of waiting tasks per queue, for the metrics
// snapshot.
func (b *Broker) Depths() map[string]int {
	depths := make(map[string]int, len(b.queues))
	for name, ch := range b.queues {
		depths[name] = len(ch)
	}
	return depths
}
