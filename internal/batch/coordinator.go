package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mariachi-loyalty/dispatch/internal/directory"
	"github.com/mariachi-loyalty/dispatch/internal/domain"
	"github.com/mariachi-loyalty/dispatch/internal/queue"
	"github.com/mariachi-loyalty/dispatch/internal/store"
	"github.com/mariachi-loyalty/dispatch/internal/task"
)

// Coordinator fans a single logical batch out into one notification plus one
// dispatch task per recipient. Fan-out runs with bounded concurrency rather
// than serialized per-item waits, so N creations proceed in parallel up to
// the cap and a slow recipient never stalls the batch's accounting.
//
// Per-target failures are collected into the result and counted; they never
// abort the remaining targets. There is no automatic per-target retry —
// failures stay visible in BatchResult for operator follow-up.
type Coordinator struct {
	store       store.Store
	dir         directory.Directory
	broker      *queue.Broker
	tracker     *Tracker
	concurrency int
	logger      *zap.Logger
}

func NewCoordinator(
	st store.Store,
	dir directory.Directory,
	broker *queue.Broker,
	tracker *Tracker,
	concurrency int,
	logger *zap.Logger,
) *Coordinator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Coordinator{
		store:       st,
		dir:         dir,
		broker:      broker,
		tracker:     tracker,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run resolves the target set and creates and enqueues one notification per
// recipient. It returns once every notification is created (not delivered);
// delivery converges asynchronously through the dispatch queue. batchID may
// be empty, in which case one is assigned.
func (c *Coordinator) Run(ctx context.Context, batchID string, b domain.Batch, tenantID string) (*domain.BatchResult, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if batchID == "" {
		batchID = uuid.New().String()
	}

	targets, err := c.resolveTargets(ctx, b, tenantID)
	if err != nil {
		return nil, fmt.Errorf("resolve targets: %w", err)
	}
	if len(targets) == 0 {
		return nil, domain.ErrNoTargets
	}

	c.tracker.begin(batchID, tenantID, len(targets))
	log := c.logger.With(
		zap.String("batch_id", batchID),
		zap.String("tenant_id", tenantID),
		zap.Int("total_targets", len(targets)),
	)
	log.Info("batch fan-out started")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	launched := 0
	for _, recipientID := range targets {
		// Soft-limit checkpoint between per-recipient sends: wind down
		// instead of launching further targets.
		if task.SoftExpired(ctx) {
			break
		}
		recipientID := recipientID
		launched++
		g.Go(func() error {
			if err := c.fanOutOne(gctx, batchID, b, tenantID, recipientID); err != nil {
				c.tracker.failed(batchID, err.Error())
			} else {
				c.tracker.created(batchID)
			}
			// Partial-failure semantics: never abort the group.
			return nil
		})
	}
	_ = g.Wait()

	for i := launched; i < len(targets); i++ {
		c.tracker.failed(batchID, fmt.Sprintf("recipient %s skipped: batch wound down at soft time limit", targets[i]))
	}
	c.tracker.complete(batchID)

	result, _ := c.tracker.Progress(batchID)
	log.Info("batch fan-out complete",
		zap.Int("created", result.CreatedCount),
		zap.Int("failed", result.FailedCount))
	return &result, nil
}

// Progress exposes the live result of a running or finished batch.
func (c *Coordinator) Progress(batchID string) (domain.BatchResult, bool) {
	return c.tracker.Progress(batchID)
}

// resolveTargets produces the deduplicated, tenant-scoped recipient set.
// Explicit IDs are kept verbatim (existence is checked per target during
// fan-out so a missing recipient is counted as that target's failure);
// filters are evaluated against the directory, which only returns active
// tenant users.
func (c *Coordinator) resolveTargets(ctx context.Context, b domain.Batch, tenantID string) ([]string, error) {
	if len(b.Targets.RecipientIDs) > 0 {
		return dedupe(b.Targets.RecipientIDs), nil
	}
	ids, err := c.dir.Find(ctx, tenantID, b.Targets.Filter)
	if err != nil {
		return nil, err
	}
	return dedupe(ids), nil
}

func (c *Coordinator) fanOutOne(ctx context.Context, batchID string, b domain.Batch, tenantID, recipientID string) error {
	ok, err := c.dir.Exists(ctx, tenantID, recipientID)
	if err != nil {
		return fmt.Errorf("recipient %s: directory lookup: %s", recipientID, err)
	}
	if !ok {
		return fmt.Errorf("recipient %s: %s", recipientID, domain.ErrNotFound)
	}

	now := time.Now().UTC()
	n := &domain.Notification{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		RecipientID: recipientID,
		Type:        b.Type,
		Title:       b.Title,
		Message:     b.Message,
		Priority:    b.Priority,
		Channels:    b.Channels,
		Status:      domain.StatusPending,
		ExpiresAt:   b.ExpiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.store.Create(ctx, n); err != nil {
		return fmt.Errorf("recipient %s: create notification: %s", recipientID, err)
	}

	payload := SendPayload{NotificationID: n.ID, TenantID: tenantID}
	if _, err := c.broker.Enqueue(task.SendNotification, payload, ""); err != nil {
		return fmt.Errorf("recipient %s: enqueue dispatch: %s", recipientID, err)
	}
	return nil
}

// SendPayload is the payload of a notifications.send task.
type SendPayload struct {
	NotificationID string `json:"notification_id"`
	TenantID       string `json:"tenant_id"`
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
