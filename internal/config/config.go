package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mariachi-loyalty/dispatch/internal/task"
)

// Config holds all runtime configuration loaded from environment variables.
// It is constructed once at startup and passed by reference to every
// component; there is no ambient global registry. Every field has a sensible
// default; only DATABASE_URL is required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Broker
	QueueCapacity int

	// Worker counts per queue. Default 1 — the prefetch=1 equivalent that
	// guarantees fair round-robin pickup instead of head-of-line hogging.
	DefaultWorkers      int
	EmailWorkers        int
	OdooWorkers         int
	NotificationWorkers int
	AnalyticsWorkers    int

	// Task execution limits (reference policy: soft 25m, hard 30m).
	SoftTimeLimit     time.Duration
	HardTimeLimit     time.Duration
	MaxTasksPerWorker int

	// Per-channel sends per second.
	RateLimitPerChannel int

	// Batch fan-out concurrency cap.
	BatchConcurrency int

	// Webhook channel endpoint
	WebhookBaseURL string
	WebhookTimeout time.Duration
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		QueueCapacity: getInt("QUEUE_CAPACITY", 1000),

		DefaultWorkers:      getInt("DEFAULT_WORKERS", 1),
		EmailWorkers:        getInt("EMAIL_WORKERS", 1),
		OdooWorkers:         getInt("ODOO_WORKERS", 1),
		NotificationWorkers: getInt("NOTIFICATION_WORKERS", 1),
		AnalyticsWorkers:    getInt("ANALYTICS_WORKERS", 1),

		SoftTimeLimit:     getDuration("TASK_SOFT_TIME_LIMIT", 25*time.Minute),
		HardTimeLimit:     getDuration("TASK_HARD_TIME_LIMIT", 30*time.Minute),
		MaxTasksPerWorker: getInt("MAX_TASKS_PER_WORKER", 1000),

		RateLimitPerChannel: getInt("RATE_LIMIT_PER_CHANNEL", 100),
		BatchConcurrency:    getInt("BATCH_CONCURRENCY", 8),

		WebhookBaseURL: getEnv("WEBHOOK_BASE_URL", "https://webhook.site/your-uuid-here"),
		WebhookTimeout: getDuration("WEBHOOK_TIMEOUT", 10*time.Second),
	}

	if cfg.SoftTimeLimit >= cfg.HardTimeLimit {
		return nil, fmt.Errorf("TASK_SOFT_TIME_LIMIT (%s) must be below TASK_HARD_TIME_LIMIT (%s)",
			cfg.SoftTimeLimit, cfg.HardTimeLimit)
	}

	return cfg, nil
}

// WorkersFor returns the configured concurrency for a queue.
func (c *Config) WorkersFor(queueName string) int {
	switch queueName {
	case task.QueueEmail:
		return c.EmailWorkers
	case task.QueueOdoo:
		return c.OdooWorkers
	case task.QueueNotifications:
		return c.NotificationWorkers
	case task.QueueAnalytics:
		return c.AnalyticsWorkers
	default:
		return c.DefaultWorkers
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
