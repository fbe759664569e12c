package store

import (
	"context"
	"time"

	"github.com/mariachi-loyalty/dispatch/internal/domain"
)

// Store is the narrow query contract the dispatch core consumes. The
// notification records are owned by the store; the core only mutates status
// and timestamps, and every operation carries a mandatory tenant filter —
// cross-tenant reads and writes are forbidden by contract.
//
// The pgx implementation is in pg_store.go; tests use a hand-written mock
// (mock_store.go).
type Store interface {
	Create(ctx context.Context, n *domain.Notification) error
	Get(ctx context.Context, id, tenantID string) (*domain.Notification, error)

	// UpdateStatus performs a status-guarded conditional update: the write
	// applies only when the current status may legally transition to the new
	// one (domain.Status.CanTransition). A refused guard returns
	// domain.ErrInvalidTransition and leaves the row untouched, which is what
	// gives concurrent dispatches of the same notification at-most-once
	// externally visible effect without a global lock.
	UpdateStatus(ctx context.Context, id, tenantID string, status domain.Status, at time.Time) error

	// MarkFailed is UpdateStatus to failed plus the error message, in one write.
	MarkFailed(ctx context.Context, id, tenantID, errMsg string, at time.Time) error

	MarkRead(ctx context.Context, id, tenantID string, at time.Time) error

	ListExpired(ctx context.Context, before time.Time) ([]*domain.Notification, error)
	Delete(ctx context.Context, id, tenantID string) error

	// Tenants lists every tenant with at least one notification; consumed by
	// the analytics cache task.
	Tenants(ctx context.Context) ([]string, error)
	CountByStatus(ctx context.Context, tenantID string) (map[domain.Status]int, error)
}
