package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mariachi-loyalty/dispatch/internal/batch"
	"github.com/mariachi-loyalty/dispatch/internal/directory"
	"github.com/mariachi-loyalty/dispatch/internal/dispatch"
	"github.com/mariachi-loyalty/dispatch/internal/domain"
	"github.com/mariachi-loyalty/dispatch/internal/queue"
	"github.com/mariachi-loyalty/dispatch/internal/store"
	"github.com/mariachi-loyalty/dispatch/internal/sweep"
	"github.com/mariachi-loyalty/dispatch/internal/task"
	"github.com/mariachi-loyalty/dispatch/internal/worker"
)

// Deps bundles everything the task bodies need. Components are injected at
// construction — handlers never reach for ambient state.
type Deps struct {
	Store       store.Store
	Directory   directory.Directory
	Broker      *queue.Broker
	Dispatcher  *dispatch.Dispatcher
	Coordinator *batch.Coordinator
	Sweeper     *sweep.Sweeper
	Syncer      SiteSyncer
	Reports     ReportGenerator
	Cache       *AnalyticsCache
	Logger      *zap.Logger
}

// BatchPayload is the payload of a notifications.send_batch task.
type BatchPayload struct {
	BatchID  string       `json:"batch_id,omitempty"`
	TenantID string       `json:"tenant_id"`
	Batch    domain.Batch `json:"batch"`
}

// TenantPayload is the payload of tasks that operate on one tenant.
type TenantPayload struct {
	TenantID string `json:"tenant_id"`
	Force    bool   `json:"force,omitempty"`
}

// BulkEmailPayload is the payload of an email.send_bulk task.
type BulkEmailPayload struct {
	NotificationIDs []string `json:"notification_ids"`
	TenantID        string   `json:"tenant_id"`
}

// RegisterAll binds every task body to its name. Each handler converts all
// faults into the structured result contract; nothing escapes to the worker
// as an unhandled fault.
func RegisterAll(reg *worker.Registry, d Deps) error {
	handlers := map[string]worker.HandlerFunc{
		task.SendNotification:     d.sendNotification,
		task.SendBatch:            d.sendBatch,
		task.CleanupExpired:       d.cleanupExpired,
		task.SendDigest:           d.sendDigest,
		task.SendEmail:            d.sendEmail,
		task.SendBulkEmails:       d.sendBulkEmails,
		task.SyncAllSites:         d.syncAllSites,
		task.SyncSite:             d.syncSite,
		task.GenerateDailyReports: d.generateDailyReports,
		task.UpdateAnalyticsCache: d.updateAnalyticsCache,
	}
	for name, h := range handlers {
		if err := reg.Register(name, h); err != nil {
			return err
		}
	}
	return nil
}

func (d Deps) sendNotification(ctx context.Context, t task.Task) task.Result {
	var p batch.SendPayload
	if err := t.DecodePayload(&p); err != nil {
		return task.Failure(task.KindValidation, "bad payload for %s: %s", t.Name, err)
	}
	if p.NotificationID == "" || p.TenantID == "" {
		return task.Failure(task.KindValidation, "notification_id and tenant_id are required")
	}
	return d.Dispatcher.Dispatch(ctx, p.NotificationID, p.TenantID)
}

func (d Deps) sendBatch(ctx context.Context, t task.Task) task.Result {
	var p BatchPayload
	if err := t.DecodePayload(&p); err != nil {
		return task.Failure(task.KindValidation, "bad payload for %s: %s", t.Name, err)
	}
	if p.TenantID == "" {
		return task.Failure(task.KindValidation, "tenant_id is required")
	}

	result, err := d.Coordinator.Run(ctx, p.BatchID, p.Batch, p.TenantID)
	if err != nil {
		return task.FromError(err)
	}

	return task.Success(fmt.Sprintf("batch fan-out: %d created, %d failed",
		result.CreatedCount, result.FailedCount)).
		With("batch_id", result.BatchID).
		With("total_targets", result.TotalTargets).
		With("created_count", result.CreatedCount).
		With("failed_count", result.FailedCount).
		With("errors", result.Errors)
}

func (d Deps) cleanupExpired(ctx context.Context, _ task.Task) task.Result {
	deleted, err := d.Sweeper.Sweep(ctx, time.Now().UTC())
	if err != nil {
		return task.FromError(err)
	}
	return task.Success("expired notifications cleaned up").With("deleted_count", deleted)
}

// sendDigest creates one low-priority in-app summary notification for every
// digest-enabled user of a tenant.
func (d Deps) sendDigest(ctx context.Context, t task.Task) task.Result {
	var p TenantPayload
	if err := t.DecodePayload(&p); err != nil {
		return task.Failure(task.KindValidation, "bad payload for %s: %s", t.Name, err)
	}
	if p.TenantID == "" {
		return task.Failure(task.KindValidation, "tenant_id is required")
	}

	users, err := d.Directory.Find(ctx, p.TenantID, map[string]string{"digest": "true"})
	if err != nil {
		return task.FromError(fmt.Errorf("find digest users: %w", err))
	}

	sent := 0
	var errs []string
	for _, userID := range users {
		if task.SoftExpired(ctx) {
			errs = append(errs, "digest wound down at soft time limit")
			break
		}
		now := time.Now().UTC()
		n := &domain.Notification{
			ID:          uuid.New().String(),
			TenantID:    p.TenantID,
			RecipientID: userID,
			Type:        domain.TypeSystem,
			Title:       "Activity summary",
			Message:     "Here is a summary of your recent activity.",
			Priority:    domain.PriorityLow,
			Channels:    []domain.Channel{domain.ChannelInApp},
			Status:      domain.StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := d.Store.Create(ctx, n); err != nil {
			errs = append(errs, fmt.Sprintf("user %s: %s", userID, err))
			continue
		}
		if _, err := d.Broker.Enqueue(task.SendNotification,
			batch.SendPayload{NotificationID: n.ID, TenantID: p.TenantID}, ""); err != nil {
			errs = append(errs, fmt.Sprintf("user %s: %s", userID, err))
			continue
		}
		sent++
	}

	res := task.Success("digest notifications sent").
		With("sent_count", sent).
		With("total_users", len(users))
	if len(errs) > 0 {
		res = res.With("errors", errs)
	}
	return res
}

func (d Deps) sendEmail(ctx context.Context, t task.Task) task.Result {
	var p batch.SendPayload
	if err := t.DecodePayload(&p); err != nil {
		return task.Failure(task.KindValidation, "bad payload for %s: %s", t.Name, err)
	}
	if p.NotificationID == "" || p.TenantID == "" {
		return task.Failure(task.KindValidation, "notification_id and tenant_id are required")
	}
	return d.Dispatcher.DispatchVia(ctx, p.NotificationID, p.TenantID,
		[]domain.Channel{domain.ChannelEmail})
}

func (d Deps) sendBulkEmails(ctx context.Context, t task.Task) task.Result {
	var p BulkEmailPayload
	if err := t.DecodePayload(&p); err != nil {
		return task.Failure(task.KindValidation, "bad payload for %s: %s", t.Name, err)
	}
	if p.TenantID == "" {
		return task.Failure(task.KindValidation, "tenant_id is required")
	}

	sent, failed := 0, 0
	var errs []string
	for _, id := range p.NotificationIDs {
		if task.SoftExpired(ctx) {
			errs = append(errs, "bulk send wound down at soft time limit")
			break
		}
		res := d.Dispatcher.DispatchVia(ctx, id, p.TenantID, []domain.Channel{domain.ChannelEmail})
		if res.OK() {
			sent++
		} else {
			failed++
			errs = append(errs, fmt.Sprintf("%s: %s", id, res.Message))
		}
	}

	res := task.Success(fmt.Sprintf("bulk emails: %d sent, %d failed", sent, failed)).
		With("sent_count", sent).
		With("failed_count", failed).
		With("total", len(p.NotificationIDs))
	if len(errs) > 0 {
		res = res.With("errors", errs)
	}
	return res
}

// syncAllSites fans one odoo.sync_site task out per known tenant; the beat
// fires it every thirty minutes.
func (d Deps) syncAllSites(ctx context.Context, _ task.Task) task.Result {
	tenants, err := d.Store.Tenants(ctx)
	if err != nil {
		return task.FromError(fmt.Errorf("list tenants: %w", err))
	}

	enqueued := 0
	var errs []string
	for _, tenantID := range tenants {
		if _, err := d.Broker.Enqueue(task.SyncSite, TenantPayload{TenantID: tenantID}, ""); err != nil {
			errs = append(errs, fmt.Sprintf("tenant %s: %s", tenantID, err))
			continue
		}
		enqueued++
	}

	res := task.Success("site syncs enqueued").With("enqueued_count", enqueued)
	if len(errs) > 0 {
		res = res.With("errors", errs)
	}
	return res
}

func (d Deps) syncSite(ctx context.Context, t task.Task) task.Result {
	var p TenantPayload
	if err := t.DecodePayload(&p); err != nil {
		return task.Failure(task.KindValidation, "bad payload for %s: %s", t.Name, err)
	}
	if p.TenantID == "" {
		return task.Failure(task.KindValidation, "tenant_id is required")
	}

	synced, failed, err := d.Syncer.SyncSite(ctx, p.TenantID, p.Force)
	if err != nil {
		return task.FromError(fmt.Errorf("sync tenant %s: %w", p.TenantID, err))
	}
	return task.Success("site data synced").
		With("tenant_id", p.TenantID).
		With("synced_count", synced).
		With("failed_count", failed)
}

func (d Deps) generateDailyReports(ctx context.Context, _ task.Task) task.Result {
	tenants, err := d.Store.Tenants(ctx)
	if err != nil {
		return task.FromError(fmt.Errorf("list tenants: %w", err))
	}

	reports := make(map[string]string, len(tenants))
	var errs []string
	for _, tenantID := range tenants {
		if task.SoftExpired(ctx) {
			errs = append(errs, "report generation wound down at soft time limit")
			break
		}
		reportID, err := d.Reports.GenerateDaily(ctx, tenantID)
		if err != nil {
			errs = append(errs, fmt.Sprintf("tenant %s: %s", tenantID, err))
			continue
		}
		reports[tenantID] = reportID
	}

	res := task.Success("daily reports generated").With("report_count", len(reports))
	if len(errs) > 0 {
		res = res.With("errors", errs)
	}
	return res
}

func (d Deps) updateAnalyticsCache(ctx context.Context, _ task.Task) task.Result {
	tenants, err := d.Store.Tenants(ctx)
	if err != nil {
		return task.FromError(fmt.Errorf("list tenants: %w", err))
	}

	now := time.Now().UTC()
	updated := 0
	var errs []string
	for _, tenantID := range tenants {
		counts, err := d.Store.CountByStatus(ctx, tenantID)
		if err != nil {
			errs = append(errs, fmt.Sprintf("tenant %s: %s", tenantID, err))
			continue
		}
		d.Cache.Set(tenantID, counts, now)
		updated++
	}

	res := task.Success("analytics cache updated").With("tenant_count", updated)
	if len(errs) > 0 {
		res = res.With("errors", errs)
	}
	return res
}
