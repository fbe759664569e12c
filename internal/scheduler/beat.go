package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mariachi-loyalty/dispatch/internal/queue"
	"github.com/mariachi-loyalty/dispatch/internal/task"
)

// Entry is one recurring task: fire task Name every Period.
type Entry struct {
	Name   string
	Period time.Duration
}

// DefaultSchedule is the reference beat table. Read-only after startup.
func DefaultSchedule() []Entry {
	return []Entry{
		{Name: task.SyncAllSites, Period: 30 * time.Minute},
		{Name: task.CleanupExpired, Period: 24 * time.Hour},
		{Name: task.GenerateDailyReports, Period: 24 * time.Hour},
		{Name: task.UpdateAnalyticsCache, Period: 5 * time.Minute},
	}
}

// Beat fires fixed-interval recurring tasks independent of worker-pool load.
// It only produces tasks, never executes dispatch logic. Missed ticks while
// the process was down are not backfilled — only the next boundary fires.
type Beat struct {
	broker *queue.Broker
	cron   *cron.Cron
	logger *zap.Logger
}

// NewBeat registers every schedule entry with the cron runner. A malformed
// period is a wiring bug and startup-fatal.
func NewBeat(broker *queue.Broker, entries []Entry, logger *zap.Logger) (*Beat, error) {
	b := &Beat{
		broker: broker,
		cron:   cron.New(),
		logger: logger,
	}
	for _, e := range entries {
		e := e
		spec := fmt.Sprintf("@every %s", e.Period)
		if _, err := b.cron.AddFunc(spec, func() { b.fire(e.Name) }); err != nil {
			return nil, fmt.Errorf("schedule %s (%s): %w", e.Name, spec, err)
		}
	}
	return b, nil
}

// fire enqueues one instance of a scheduled task, fire-and-forget. Failures
// are logged and implicitly retried at the next tick; they never crash the
// process.
func (b *Beat) fire(name string) {
	if _, err := b.broker.Enqueue(name, struct{}{}, ""); err != nil {
		b.logger.Error("beat enqueue failed; will retry next tick",
			zap.String("task", name), zap.Error(err))
		return
	}
	b.logger.Debug("beat fired", zap.String("task", name))
}

// Start launches the cron runner on its own goroutine.
func (b *Beat) Start() { b.cron.Start() }

// Stop halts scheduling and waits for any in-flight fire callback.
func (b *Beat) Stop() {
	ctx := b.cron.Stop()
	<-ctx.Done()
}
