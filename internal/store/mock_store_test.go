package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mariachi-loyalty/dispatch/internal/domain"
)

func seedNotification(t *testing.T, m *MockStore, id, tenantID string, status domain.Status) {
	t.Helper()
	now := time.Now().UTC()
	err := m.Create(context.Background(), &domain.Notification{
		ID:          id,
		TenantID:    tenantID,
		RecipientID: "user-1",
		Type:        domain.TypePoints,
		Title:       "You earned points",
		Message:     "Ten points added to your card.",
		Priority:    domain.PriorityMedium,
		Channels:    []domain.Channel{domain.ChannelInApp},
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
}

func TestMockStoreTenantIsolation(t *testing.T) {
	m := NewMockStore()
	seedNotification(t, m, "n1", "tenant-a", domain.StatusPending)
	ctx := context.Background()

	if _, err := m.Get(ctx, "n1", "tenant-a"); err != nil {
		t.Fatalf("same-tenant Get() error = %v", err)
	}
	if _, err := m.Get(ctx, "n1", "tenant-b"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("cross-tenant Get() = %v, want ErrNotFound", err)
	}
	if err := m.UpdateStatus(ctx, "n1", "tenant-b", domain.StatusSent, time.Now()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("cross-tenant UpdateStatus() = %v, want ErrNotFound", err)
	}
	if err := m.Delete(ctx, "n1", "tenant-b"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("cross-tenant Delete() = %v, want ErrNotFound", err)
	}
}

func TestMockStoreStatusGuard(t *testing.T) {
	m := NewMockStore()
	seedNotification(t, m, "n1", "tenant-a", domain.StatusPending)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := m.UpdateStatus(ctx, "n1", "tenant-a", domain.StatusSent, now); err != nil {
		t.Fatalf("pending -> sent error = %v", err)
	}

	// Second transition to sent is refused by the guard, not an error of a
	// different class.
	err := m.UpdateStatus(ctx, "n1", "tenant-a", domain.StatusSent, now)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("sent -> sent = %v, want ErrInvalidTransition", err)
	}

	n, _ := m.Get(ctx, "n1", "tenant-a")
	if n.Status != domain.StatusSent {
		t.Errorf("status = %s, want sent", n.Status)
	}
}

func TestMockStoreWriteCount(t *testing.T) {
	m := NewMockStore()
	seedNotification(t, m, "n1", "tenant-a", domain.StatusPending)
	ctx := context.Background()

	if m.WriteCount != 1 {
		t.Fatalf("WriteCount after create = %d, want 1", m.WriteCount)
	}

	// Reads and refused writes leave the counter untouched.
	_, _ = m.Get(ctx, "n1", "tenant-a")
	_ = m.UpdateStatus(ctx, "n1", "tenant-a", domain.StatusRead, time.Now()) // illegal from pending
	if m.WriteCount != 1 {
		t.Errorf("WriteCount after read + refused write = %d, want 1", m.WriteCount)
	}

	_ = m.UpdateStatus(ctx, "n1", "tenant-a", domain.StatusSent, time.Now())
	if m.WriteCount != 2 {
		t.Errorf("WriteCount after legal write = %d, want 2", m.WriteCount)
	}
}

func TestMockStoreMarkFailedAndRead(t *testing.T) {
	m := NewMockStore()
	seedNotification(t, m, "n1", "tenant-a", domain.StatusPending)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := m.MarkFailed(ctx, "n1", "tenant-a", "smtp refused", now); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	n, _ := m.Get(ctx, "n1", "tenant-a")
	if n.Status != domain.StatusFailed || n.ErrorMessage == nil || *n.ErrorMessage != "smtp refused" {
		t.Errorf("after MarkFailed: status=%s err=%v", n.Status, n.ErrorMessage)
	}

	// failed -> read is illegal.
	if err := m.MarkRead(ctx, "n1", "tenant-a", now); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("MarkRead() on failed = %v, want ErrInvalidTransition", err)
	}

	seedNotification(t, m, "n2", "tenant-a", domain.StatusSent)
	if err := m.MarkRead(ctx, "n2", "tenant-a", now); err != nil {
		t.Fatalf("MarkRead() on sent error = %v", err)
	}
	n2, _ := m.Get(ctx, "n2", "tenant-a")
	if n2.Status != domain.StatusRead || n2.ReadAt == nil {
		t.Errorf("after MarkRead: status=%s readAt=%v", n2.Status, n2.ReadAt)
	}
}

func TestMockStoreListExpired(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	seedNotification(t, m, "expired", "tenant-a", domain.StatusSent)
	seedNotification(t, m, "fresh", "tenant-a", domain.StatusSent)
	seedNotification(t, m, "forever", "tenant-a", domain.StatusPending)

	n, _ := m.Get(ctx, "expired", "tenant-a")
	n.ExpiresAt = &past
	_ = m.Create(ctx, n) // overwrite with expiry set
	n, _ = m.Get(ctx, "fresh", "tenant-a")
	n.ExpiresAt = &future
	_ = m.Create(ctx, n)

	expired, err := m.ListExpired(ctx, now)
	if err != nil {
		t.Fatalf("ListExpired() error = %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "expired" {
		t.Errorf("ListExpired() = %v, want exactly the expired row", expired)
	}
}

func TestMockStoreTenantsAndCounts(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()
	seedNotification(t, m, "n1", "tenant-a", domain.StatusPending)
	seedNotification(t, m, "n2", "tenant-a", domain.StatusSent)
	seedNotification(t, m, "n3", "tenant-b", domain.StatusSent)

	tenants, err := m.Tenants(ctx)
	if err != nil {
		t.Fatalf("Tenants() error = %v", err)
	}
	if len(tenants) != 2 || tenants[0] != "tenant-a" || tenants[1] != "tenant-b" {
		t.Errorf("Tenants() = %v, want [tenant-a tenant-b]", tenants)
	}

	counts, err := m.CountByStatus(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("CountByStatus() error = %v", err)
	}
	if counts[domain.StatusPending] != 1 || counts[domain.StatusSent] != 1 {
		t.Errorf("CountByStatus(tenant-a) = %v", counts)
	}
	if c, _ := m.CountByStatus(ctx, "tenant-b"); c[domain.StatusSent] != 1 {
		t.Errorf("CountByStatus(tenant-b) = %v", c)
	}
}
