package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mariachi-loyalty/dispatch/internal/queue"
	"github.com/mariachi-loyalty/dispatch/internal/task"
)

// Limits bounds a single task execution. Soft is the cooperative signal the
// task body observes at its checkpoints; Hard forcibly abandons the task.
// Soft must be below Hard (reference policy: 25m / 30m).
type Limits struct {
	Soft time.Duration
	Hard time.Duration
}

// MetricHooks carries the metric callbacks injected by main. A struct keeps
// the pool constructor signature clean; nil hooks become no-ops.
type MetricHooks struct {
	OnExecuted func(queueName string, d time.Duration)
	OnFailed   func(queueName string, kind task.ErrorKind)
}

// Pool runs a fixed number of workers against a single queue. Each worker is
// recycled after maxTasksPerWorker executions to bound resource growth in
// long-lived handlers; the slot is immediately refilled with a fresh worker.
type Pool struct {
	queueName         string
	concurrency       int
	maxTasksPerWorker int
	limits            Limits
	broker            *queue.Broker
	registry          *Registry
	logger            *zap.Logger
	hooks             MetricHooks
	wg                sync.WaitGroup
}

func NewPool(
	queueName string,
	concurrency int,
	maxTasksPerWorker int,
	limits Limits,
	broker *queue.Broker,
	registry *Registry,
	logger *zap.Logger,
	hooks MetricHooks,
) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	if maxTasksPerWorker < 1 {
		maxTasksPerWorker = 1000
	}
	if hooks.OnExecuted == nil {
		hooks.OnExecuted = func(string, time.Duration) {}
	}
	if hooks.OnFailed == nil {
		hooks.OnFailed = func(string, task.ErrorKind) {}
	}
	return &Pool{
		queueName:         queueName,
		concurrency:       concurrency,
		maxTasksPerWorker: maxTasksPerWorker,
		limits:            limits,
		broker:            broker,
		registry:          registry,
		logger:            logger.With(zap.String("queue", queueName)),
		hooks:             hooks,
	}
}

// Start launches all worker slots. Cancelling ctx triggers a graceful
// shutdown; call Wait afterwards to let in-flight tasks finish.
func (p *Pool) Start(ctx context.Context) {
	for slot := 0; slot < p.concurrency; slot++ {
		p.wg.Add(1)
		go func(slot int) {
			defer p.wg.Done()
			p.runSlot(ctx, slot)
		}(slot)
	}
}

// Wait blocks until every worker has returned after ctx cancellation.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// runSlot keeps one worker slot occupied: when a worker hits its task budget
// it returns and a fresh one takes over the slot.
func (p *Pool) runSlot(ctx context.Context, slot int) {
	for generation := 0; ; generation++ {
		w := &worker{
			pool: p,
			log: p.logger.With(
				zap.Int("slot", slot),
				zap.Int("generation", generation),
			),
		}
		if recycled := w.run(ctx); !recycled {
			return
		}
		p.logger.Debug("worker recycled",
			zap.Int("slot", slot),
			zap.Int("generation", generation),
			zap.Int("tasks", p.maxTasksPerWorker))
	}
}
