package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory is the user-directory collaborator the batch coordinator resolves
// recipients against. Both operations are tenant-scoped and only consider
// active users.
type Directory interface {
	// Exists reports whether recipientID is an active user of the tenant.
	Exists(ctx context.Context, tenantID, recipientID string) (bool, error)
	// Find returns the deduplicated IDs of active users matching the filter.
	// Supported filter keys: "digest" ("true"/"false"). An empty filter
	// matches every active user of the tenant.
	Find(ctx context.Context, tenantID string, filter map[string]string) ([]string, error)
}

type pgDirectory struct {
	pool *pgxpool.Pool
}

// NewPgDirectory returns a Directory backed by the users table.
func NewPgDirectory(pool *pgxpool.Pool) Directory {
	return &pgDirectory{pool: pool}
}

func (d *pgDirectory) Exists(ctx context.Context, tenantID, recipientID string) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE id = $1 AND tenant_id = $2 AND active
		)`, recipientID, tenantID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("directory lookup: %w", err)
	}
	return exists, nil
}

func (d *pgDirectory) Find(ctx context.Context, tenantID string, filter map[string]string) ([]string, error) {
	query := `SELECT id FROM users WHERE tenant_id = $1 AND active`
	args := []any{tenantID}
	if v, ok := filter["digest"]; ok {
		args = append(args, v == "true")
		query += fmt.Sprintf(" AND digest_enabled = $%d", len(args))
	}

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("directory find: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MockDirectory is the in-memory Directory used in tests.
type MockDirectory struct {
	mu    sync.RWMutex
	users map[string]map[string]MockUser // tenant → id → user
}

type MockUser struct {
	Active        bool
	DigestEnabled bool
}

func NewMockDirectory() *MockDirectory {
	return &MockDirectory{users: make(map[string]map[string]MockUser)}
}

// Add registers a user for a tenant.
func (m *MockDirectory) Add(tenantID, id string, u MockUser) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.users[tenantID] == nil {
		m.users[tenantID] = make(map[string]MockUser)
	}
	m.users[tenantID][id] = u
}

func (m *MockDirectory) Exists(_ context.Context, tenantID, recipientID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[tenantID][recipientID]
	return ok && u.Active, nil
}

func (m *MockDirectory) Find(_ context.Context, tenantID string, filter map[string]string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, u := range m.users[tenantID] {
		if !u.Active {
			continue
		}
		if v, ok := filter["digest"]; ok && (v == "true") != u.DigestEnabled {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
