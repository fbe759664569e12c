package task

import (
	"encoding/json"
	"time"
)

// Well-known queue names. Each queue is an isolated lane with its own
// worker pool, so a backlog in one domain never starves another.
const (
	QueueDefault       = "default"
	QueueEmail         = "email"
	QueueOdoo          = "odoo"
	QueueNotifications = "notifications"
	QueueAnalytics     = "analytics"
)

// Fully-qualified task names. The prefix before the first dot determines
// queue routing (see router.go).
const (
	SendNotification     = "notifications.send"
	SendBatch            = "notifications.send_batch"
	CleanupExpired       = "notifications.cleanup_expired"
	SendDigest           = "notifications.send_digest"
	SendEmail            = "email.send"
	SendBulkEmails       = "email.send_bulk"
	SyncAllSites         = "odoo.sync_all_sites"
	SyncSite             = "odoo.sync_site"
	GenerateDailyReports = "analytics.generate_daily_reports"
	UpdateAnalyticsCache = "analytics.update_analytics_cache"
)

// QueueConfig is the static exchange/routing-key pair for one queue.
// The table is loaded once at startup and read-only thereafter; adding a
// queue means editing DefaultQueues, never runtime inference.
type QueueConfig struct {
	Exchange   string
	RoutingKey string
}

// DefaultQueues returns the full queue table.
func DefaultQueues() map[string]QueueConfig {
	return map[string]QueueConfig{
		QueueDefault:       {Exchange: "default", RoutingKey: "default"},
		QueueEmail:         {Exchange: "email", RoutingKey: "email"},
		QueueOdoo:          {Exchange: "odoo", RoutingKey: "odoo"},
		QueueNotifications: {Exchange: "notifications", RoutingKey: "notifications"},
		QueueAnalytics:     {Exchange: "analytics", RoutingKey: "analytics"},
	}
}

// Task is a unit of deferred work. Immutable once enqueued; identity is the
// broker-assigned ID.
type Task struct {
	ID         string
	Name       string
	Queue      string
	Payload    json.RawMessage
	EnqueuedAt time.Time
}

// DecodePayload unmarshals the task payload into v.
func (t *Task) DecodePayload(v any) error {
	return json.Unmarshal(t.Payload, v)
}
