package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mariachi-loyalty/dispatch/internal/domain"
)

// SiteSyncer is the external Odoo-sync collaborator. The dispatch core only
// needs its contract; the real connector lives outside this service.
type SiteSyncer interface {
	SyncSite(ctx context.Context, tenantID string, force bool) (synced, failed int, err error)
}

// ReportGenerator is the external reporting collaborator.
type ReportGenerator interface {
	GenerateDaily(ctx context.Context, tenantID string) (reportID string, err error)
}

// LogSyncer is the stand-in SiteSyncer that records the sync in the log.
type LogSyncer struct {
	Logger *zap.Logger
}

func (s *LogSyncer) SyncSite(_ context.Context, tenantID string, force bool) (int, int, error) {
	s.Logger.Info("site data synced",
		zap.String("tenant_id", tenantID),
		zap.Bool("force", force))
	return 0, 0, nil
}

// LogReporter is the stand-in ReportGenerator.
type LogReporter struct {
	Logger *zap.Logger
}

func (r *LogReporter) GenerateDaily(_ context.Context, tenantID string) (string, error) {
	reportID := uuid.New().String()
	r.Logger.Info("daily report generated",
		zap.String("tenant_id", tenantID),
		zap.String("report_id", reportID))
	return reportID, nil
}

// AnalyticsCache holds the latest per-tenant status counts, refreshed by the
// analytics.update_analytics_cache task every five minutes.
type AnalyticsCache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
}

type CacheEntry struct {
	Counts    map[domain.Status]int `json:"counts"`
	UpdatedAt time.Time             `json:"updated_at"`
}

func NewAnalyticsCache() *AnalyticsCache {
	return &AnalyticsCache{entries: make(map[string]CacheEntry)}
}

func (c *AnalyticsCache) Set(tenantID string, counts map[domain.Status]int, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[tenantID] = CacheEntry{Counts: counts, UpdatedAt: at}
}

func (c *AnalyticsCache) Get(tenantID string) (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[tenantID]
	return e, ok
}
