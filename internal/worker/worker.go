package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mariachi-loyalty/dispatch/internal/queue"
	"github.com/mariachi-loyalty/dispatch/internal/task"
)

// worker is a single execution context. One task at a time, every fault
// contained: a failing task resolves with an error result and the worker
// moves on, so concurrently running and queued tasks are unaffected.
type worker struct {
	pool *Pool
	log  *zap.Logger
}

// run processes tasks until ctx is cancelled (returns false) or the worker
// exhausts its task budget and must be recycled (returns true).
func (w *worker) run(ctx context.Context) bool {
	w.log.Info("worker started")
	for executed := 0; executed < w.pool.maxTasksPerWorker; executed++ {
		d, ok := w.pool.broker.Dequeue(ctx, w.pool.queueName)
		if !ok {
			w.log.Info("worker stopping")
			return false
		}
		w.execute(ctx, d)
	}
	return true
}

func (w *worker) execute(ctx context.Context, d *queue.Delivery) {
	start := time.Now()
	log := w.log.With(
		zap.String("task_id", d.Task.ID),
		zap.String("task", d.Task.Name),
	)

	handler, ok := w.pool.registry.Lookup(d.Task.Name)
	if !ok {
		res := task.Failure(task.KindValidation, "no handler registered for task %q", d.Task.Name)
		d.Resolve(res)
		w.pool.hooks.OnFailed(w.pool.queueName, res.Kind)
		log.Error("unroutable task: no handler")
		return
	}

	// Hard limit cancels the handler's context outright; the soft limit is a
	// cooperative signal layered on top that the handler polls at its
	// checkpoints.
	hardCtx, cancel := context.WithTimeout(ctx, w.pool.limits.Hard)
	defer cancel()
	taskCtx, stopSoft := task.WithSoftDeadline(hardCtx, w.pool.limits.Soft)
	defer stopSoft()

	res := w.invoke(taskCtx, handler, d)
	elapsed := time.Since(start)

	if res.OK() && task.SoftExpired(taskCtx) {
		// Finished late but finished: success with a warning flag.
		res.SoftTimeout = true
		log.Warn("task exceeded soft limit",
			zap.Duration("elapsed", elapsed),
			zap.Duration("soft_limit", w.pool.limits.Soft))
	}

	d.Resolve(res)
	w.pool.hooks.OnExecuted(w.pool.queueName, elapsed)

	if res.OK() {
		log.Info("task completed", zap.Duration("elapsed", elapsed))
		return
	}
	w.pool.hooks.OnFailed(w.pool.queueName, res.Kind)
	log.Warn("task failed",
		zap.String("kind", string(res.Kind)),
		zap.String("message", res.Message),
		zap.Duration("elapsed", elapsed))
}

// invoke runs the handler on its own goroutine so the hard limit can abandon
// it. The handler's context is cancelled at the hard deadline, so blocking
// store or sender calls inside it return promptly; the goroutine then drains
// into the buffered channel and exits.
func (w *worker) invoke(taskCtx context.Context, handler HandlerFunc, d *queue.Delivery) task.Result {
	done := make(chan task.Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- task.Failure(task.KindInternal, "panic in task %s: %v", d.Task.Name, r)
			}
		}()
		done <- handler(taskCtx, d.Task)
	}()

	select {
	case res := <-done:
		return res
	case <-taskCtx.Done():
		if errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
			return task.Failure(task.KindTimeout,
				"task %s exceeded hard limit %s", d.Task.Name, w.pool.limits.Hard)
		}
		// Worker shutdown while the task was in flight.
		return task.Failure(task.KindInternal,
			"%s", fmt.Sprintf("task %s aborted: worker shutting down", d.Task.Name))
	}
}
