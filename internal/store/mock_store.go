package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mariachi-loyalty/dispatch/internal/domain"
)

// MockStore is a hand-written, in-memory Store used in unit tests. It applies
// the same tenant filter and status-transition guard as the Postgres
// implementation, and counts writes so tests can assert "zero store writes"
// properties.
type MockStore struct {
	mu            sync.RWMutex
	notifications map[string]*domain.Notification

	// WriteCount increments on every mutating call that reaches the map.
	WriteCount int

	// Optional error overrides — set in tests to simulate failure paths.
	CreateErr error
	GetErr    error
}

func NewMockStore() *MockStore {
	return &MockStore{notifications: make(map[string]*domain.Notification)}
}

func (m *MockStore) Create(_ context.Context, n *domain.Notification) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *n
	m.notifications[n.ID] = &clone
	m.WriteCount++
	return nil
}

func (m *MockStore) Get(_ context.Context, id, tenantID string) (*domain.Notification, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notifications[id]
	if !ok || n.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	clone := *n
	return &clone, nil
}

func (m *MockStore) UpdateStatus(_ context.Context, id, tenantID string, status domain.Status, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok || n.TenantID != tenantID {
		return domain.ErrNotFound
	}
	if !n.Status.CanTransition(status) {
		return domain.ErrInvalidTransition
	}
	n.Status = status
	n.UpdatedAt = at
	if status == domain.StatusDelivered {
		t := at
		n.DeliveredAt = &t
	}
	m.WriteCount++
	return nil
}

func (m *MockStore) MarkFailed(_ context.Context, id, tenantID, errMsg string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok || n.TenantID != tenantID {
		return domain.ErrNotFound
	}
	if !n.Status.CanTransition(domain.StatusFailed) {
		return domain.ErrInvalidTransition
	}
	n.Status = domain.StatusFailed
	n.ErrorMessage = &errMsg
	n.UpdatedAt = at
	m.WriteCount++
	return nil
}

func (m *MockStore) MarkRead(_ context.Context, id, tenantID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok || n.TenantID != tenantID {
		return domain.ErrNotFound
	}
	if !n.Status.CanTransition(domain.StatusRead) {
		return domain.ErrInvalidTransition
	}
	t := at
	n.Status = domain.StatusRead
	n.ReadAt = &t
	n.UpdatedAt = at
	m.WriteCount++
	return nil
}

func (m *MockStore) ListExpired(_ context.Context, before time.Time) ([]*domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var expired []*domain.Notification
	for _, n := range m.notifications {
		if n.ExpiresAt != nil && !n.ExpiresAt.After(before) {
			clone := *n
			expired = append(expired, &clone)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })
	return expired, nil
}

func (m *MockStore) Delete(_ context.Context, id, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok || n.TenantID != tenantID {
		return domain.ErrNotFound
	}
	delete(m.notifications, id)
	m.WriteCount++
	return nil
}

func (m *MockStore) Tenants(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var tenants []string
	for _, n := range m.notifications {
		if !seen[n.TenantID] {
			seen[n.TenantID] = true
			tenants = append(tenants, n.TenantID)
		}
	}
	sort.Strings(tenants)
	return tenants, nil
}

func (m *MockStore) CountByStatus(_ context.Context, tenantID string) (map[domain.Status]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[domain.Status]int)
	for _, n := range m.notifications {
		if n.TenantID == tenantID {
			counts[n.Status]++
		}
	}
	return counts, nil
}

// Len reports the number of stored notifications.
func (m *MockStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.notifications)
}
