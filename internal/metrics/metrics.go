package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mariachi-loyalty/dispatch/internal/domain"
	"github.com/mariachi-loyalty/dispatch/internal/task"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
type Metrics struct {
	TasksExecuted       *prometheus.CounterVec
	TasksFailed         *prometheus.CounterVec
	TaskDuration        *prometheus.HistogramVec
	QueueDepth          *prometheus.GaugeVec
	NotificationsSent   *prometheus.CounterVec
	NotificationsFailed *prometheus.CounterVec
	ExpiredDeleted      prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TasksExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasks_executed_total",
			Help: "Total number of tasks pulled and executed, per queue.",
		}, []string{"queue"}),

		TasksFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasks_failed_total",
			Help: "Total number of tasks that resolved with an error result.",
		}, []string{"queue", "kind"}),

		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "task_duration_seconds",
			Help:    "Task execution latency from dequeue to resolution.",
			Buckets: prometheus.DefBuckets,
		}, []string{"queue"}),

		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Current number of tasks waiting, per queue.",
		}, []string{"queue"}),

		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of successful channel sends.",
		}, []string{"channel"}),

		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total number of failed channel sends.",
		}, []string{"channel"}),

		ExpiredDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "expired_notifications_deleted_total",
			Help: "Total number of notifications removed by the retention sweeper.",
		}),
	}

	reg.MustRegister(
		m.TasksExecuted,
		m.TasksFailed,
		m.TaskDuration,
		m.QueueDepth,
		m.NotificationsSent,
		m.NotificationsFailed,
		m.ExpiredDeleted,
	)

	return m
}

// WorkerHooks returns the callbacks expected by worker.MetricHooks,
// centralising the prometheus observation calls so the worker package stays
// metrics-agnostic.
func (m *Metrics) WorkerHooks() (
	onExecuted func(queueName string, d time.Duration),
	onFailed func(queueName string, kind task.ErrorKind),
) {
	onExecuted = func(queueName string, d time.Duration) {
		m.TasksExecuted.WithLabelValues(queueName).Inc()
		m.TaskDuration.WithLabelValues(queueName).Observe(d.Seconds())
	}
	onFailed = func(queueName string, kind task.ErrorKind) {
		m.TasksFailed.WithLabelValues(queueName, string(kind)).Inc()
	}
	return
}

// DispatchHooks returns the per-channel callbacks for dispatch.Hooks.
func (m *Metrics) DispatchHooks() (
	onDelivered func(ch domain.Channel),
	onFailed func(ch domain.Channel),
) {
	onDelivered = func(ch domain.Channel) {
		m.NotificationsSent.WithLabelValues(string(ch)).Inc()
	}
	onFailed = func(ch domain.Channel) {
		m.NotificationsFailed.WithLabelValues(string(ch)).Inc()
	}
	return
}

// ObserveQueueDepths records a queue-depth snapshot; main calls this on a
// short ticker.
func (m *Metrics) ObserveQueueDepths(depths map[string]int) {
	for queueName, depth := range depths {
		m.QueueDepth.WithLabelValues(queueName).Set(float64(depth))
	}
}
