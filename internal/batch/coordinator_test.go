package batch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mariachi-loyalty/dispatch/internal/directory"
	"github.com/mariachi-loyalty/dispatch/internal/domain"
	"github.com/mariachi-loyalty/dispatch/internal/queue"
	"github.com/mariachi-loyalty/dispatch/internal/store"
	"github.com/mariachi-loyalty/dispatch/internal/task"
)

type fixture struct {
	store   *store.MockStore
	dir     *directory.MockDirectory
	broker  *queue.Broker
	tracker *Tracker
	coord   *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	router, err := task.NewRouter(task.DefaultRules())
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	f := &fixture{
		store:   store.NewMockStore(),
		dir:     directory.NewMockDirectory(),
		broker:  queue.New(router, task.DefaultQueues(), 100),
		tracker: NewTracker(),
	}
	f.coord = NewCoordinator(f.store, f.dir, f.broker, f.tracker, 4, zap.NewNop())
	return f
}

func promoBatch(targets domain.Selector) domain.Batch {
	return domain.Batch{
		Type:     domain.TypePromotion,
		Title:    "Double points",
		Message:  "Visit this weekend for double points.",
		Priority: domain.PriorityMedium,
		Channels: []domain.Channel{domain.ChannelPush},
		Targets:  targets,
	}
}

func TestBatchFanOutAllRecipientsExist(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"u1", "u2", "u3"} {
		f.dir.Add("tenant-a", id, directory.MockUser{Active: true})
	}

	b := promoBatch(domain.Selector{RecipientIDs: []string{"u1", "u2", "u3"}})
	result, err := f.coord.Run(context.Background(), "", b, "tenant-a")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.TotalTargets != 3 || result.CreatedCount != 3 || result.FailedCount != 0 {
		t.Errorf("result = total:%d created:%d failed:%d, want 3/3/0",
			result.TotalTargets, result.CreatedCount, result.FailedCount)
	}
	if !result.Complete() {
		t.Error("result should be complete")
	}
	if f.store.Len() != 3 {
		t.Errorf("store holds %d notifications, want 3", f.store.Len())
	}
	if depth := f.broker.Depths()[task.QueueNotifications]; depth != 3 {
		t.Errorf("notifications queue depth = %d, want 3", depth)
	}
}

func TestBatchFanOutMissingRecipientCountsAsFailure(t *testing.T) {
	f := newFixture(t)
	f.dir.Add("tenant-a", "u1", directory.MockUser{Active: true})
	f.dir.Add("tenant-a", "u2", directory.MockUser{Active: true})
	// u3 does not exist in the directory.

	b := promoBatch(domain.Selector{RecipientIDs: []string{"u1", "u2", "u3"}})
	result, err := f.coord.Run(context.Background(), "batch-1", b, "tenant-a")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.TotalTargets != 3 || result.CreatedCount != 2 || result.FailedCount != 1 {
		t.Errorf("result = total:%d created:%d failed:%d, want 3/2/1",
			result.TotalTargets, result.CreatedCount, result.FailedCount)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "u3") {
		t.Errorf("Errors = %v, want exactly one naming u3", result.Errors)
	}
	// The surviving targets were fully processed.
	if f.store.Len() != 2 {
		t.Errorf("store holds %d notifications, want 2", f.store.Len())
	}
}

func TestBatchFanOutInactiveRecipientFails(t *testing.T) {
	f := newFixture(t)
	f.dir.Add("tenant-a", "u1", directory.MockUser{Active: false})

	b := promoBatch(domain.Selector{RecipientIDs: []string{"u1"}})
	result, err := f.coord.Run(context.Background(), "", b, "tenant-a")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.CreatedCount != 0 || result.FailedCount != 1 {
		t.Errorf("inactive recipient: created:%d failed:%d, want 0/1",
			result.CreatedCount, result.FailedCount)
	}
}

func TestBatchDeduplicatesTargets(t *testing.T) {
	f := newFixture(t)
	f.dir.Add("tenant-a", "u1", directory.MockUser{Active: true})

	b := promoBatch(domain.Selector{RecipientIDs: []string{"u1", "u1", "u1"}})
	result, err := f.coord.Run(context.Background(), "", b, "tenant-a")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.TotalTargets != 1 || result.CreatedCount != 1 {
		t.Errorf("duplicates should collapse: total:%d created:%d, want 1/1",
			result.TotalTargets, result.CreatedCount)
	}
	if f.store.Len() != 1 {
		t.Errorf("store holds %d notifications, want 1", f.store.Len())
	}
}

func TestBatchFilterTargets(t *testing.T) {
	f := newFixture(t)
	f.dir.Add("tenant-a", "u1", directory.MockUser{Active: true, DigestEnabled: true})
	f.dir.Add("tenant-a", "u2", directory.MockUser{Active: true, DigestEnabled: false})
	f.dir.Add("tenant-a", "u3", directory.MockUser{Active: false, DigestEnabled: true})

	b := promoBatch(domain.Selector{Filter: map[string]string{"digest": "true"}})
	result, err := f.coord.Run(context.Background(), "", b, "tenant-a")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.TotalTargets != 1 || result.CreatedCount != 1 {
		t.Errorf("filter resolve: total:%d created:%d, want 1/1",
			result.TotalTargets, result.CreatedCount)
	}
}

func TestBatchNoTargets(t *testing.T) {
	f := newFixture(t)
	// Filter matches nobody.
	b := promoBatch(domain.Selector{Filter: map[string]string{"digest": "true"}})
	_, err := f.coord.Run(context.Background(), "", b, "tenant-a")
	if !errors.Is(err, domain.ErrNoTargets) {
		t.Errorf("Run() = %v, want ErrNoTargets", err)
	}
}

func TestBatchInvalidBatchRejected(t *testing.T) {
	f := newFixture(t)
	b := promoBatch(domain.Selector{RecipientIDs: []string{"u1"}})
	b.Title = ""
	if _, err := f.coord.Run(context.Background(), "", b, "tenant-a"); !errors.Is(err, domain.ErrInvalidTitle) {
		t.Errorf("Run() = %v, want ErrInvalidTitle", err)
	}
}

func TestBatchProgressQueryable(t *testing.T) {
	f := newFixture(t)
	f.dir.Add("tenant-a", "u1", directory.MockUser{Active: true})

	b := promoBatch(domain.Selector{RecipientIDs: []string{"u1"}})
	result, err := f.coord.Run(context.Background(), "batch-42", b, "tenant-a")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.BatchID != "batch-42" {
		t.Errorf("BatchID = %q, want batch-42", result.BatchID)
	}

	snapshot, ok := f.coord.Progress("batch-42")
	if !ok {
		t.Fatal("Progress() should find the completed batch")
	}
	if snapshot.CompletedAt == nil {
		t.Error("completed batch should carry CompletedAt")
	}
	if _, ok := f.coord.Progress("unknown"); ok {
		t.Error("Progress() should not find unknown batch IDs")
	}
}

func TestBatchSoftLimitWindsDown(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"u1", "u2", "u3"} {
		f.dir.Add("tenant-a", id, directory.MockUser{Active: true})
	}

	// Soft limit already elapsed before the fan-out starts: every target is
	// counted as a skip, none silently dropped.
	ctx, stop := task.WithSoftDeadline(context.Background(), time.Nanosecond)
	defer stop()
	time.Sleep(10 * time.Millisecond)

	b := promoBatch(domain.Selector{RecipientIDs: []string{"u1", "u2", "u3"}})
	result, err := f.coord.Run(ctx, "", b, "tenant-a")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.FailedCount != 3 || !result.Complete() {
		t.Errorf("wound-down batch: failed:%d complete:%v, want 3/true",
			result.FailedCount, result.Complete())
	}
	for _, msg := range result.Errors {
		if !strings.Contains(msg, "soft time limit") {
			t.Errorf("skip error %q should name the soft limit", msg)
		}
	}
}
