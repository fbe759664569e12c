package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mariachi-loyalty/dispatch/internal/domain"
)

type pgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore returns a Store backed by PostgreSQL.
func NewPgStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

const notificationColumns = `
	id, tenant_id, recipient_id, type, title, message, priority, channels,
	status, error_message, delivered_at, read_at, expires_at, created_at, updated_at`

func (s *pgStore) Create(ctx context.Context, n *domain.Notification) error {
	channels := make([]string, len(n.Channels))
	for i, c := range n.Channels {
		channels[i] = string(c)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications
			(id, tenant_id, recipient_id, type, title, message, priority, channels,
			 status, expires_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		n.ID, n.TenantID, n.RecipientID, n.Type, n.Title, n.Message, n.Priority,
		channels, n.Status, n.ExpiresAt, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *pgStore) Get(ctx context.Context, id, tenantID string) (*domain.Notification, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT`+notificationColumns+`
		FROM notifications WHERE id = $1 AND tenant_id = $2`, id, tenantID)

	n, err := scanNotification(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return n, err
}

// transitionSources lists the statuses allowed to move to next, used as the
// guard predicate of the conditional update.
func transitionSources(next domain.Status) []string {
	all := []domain.Status{
		domain.StatusPending, domain.StatusSent, domain.StatusDelivered,
		domain.StatusRead, domain.StatusFailed, domain.StatusCancelled,
	}
	var sources []string
	for _, s := range all {
		if s.CanTransition(next) {
			sources = append(sources, string(s))
		}
	}
	return sources
}

func (s *pgStore) UpdateStatus(ctx context.Context, id, tenantID string, status domain.Status, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET status = $1,
		    updated_at = $2,
		    delivered_at = CASE WHEN $1 = 'delivered' THEN $2 ELSE delivered_at END
		WHERE id = $3 AND tenant_id = $4 AND status = ANY($5)`,
		status, at, id, tenantID, transitionSources(status),
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row is missing for this tenant or the guard refused.
		if _, err := s.Get(ctx, id, tenantID); err != nil {
			return err
		}
		return domain.ErrInvalidTransition
	}
	return nil
}

func (s *pgStore) MarkFailed(ctx context.Context, id, tenantID, errMsg string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'failed', error_message = $1, updated_at = $2
		WHERE id = $3 AND tenant_id = $4 AND status = ANY($5)`,
		errMsg, at, id, tenantID, transitionSources(domain.StatusFailed),
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, id, tenantID); err != nil {
			return err
		}
		return domain.ErrInvalidTransition
	}
	return nil
}

func (s *pgStore) MarkRead(ctx context.Context, id, tenantID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'read', read_at = $1, updated_at = $1
		WHERE id = $2 AND tenant_id = $3 AND status = ANY($4)`,
		at, id, tenantID, transitionSources(domain.StatusRead),
	)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, id, tenantID); err != nil {
			return err
		}
		return domain.ErrInvalidTransition
	}
	return nil
}

func (s *pgStore) ListExpired(ctx context.Context, before time.Time) ([]*domain.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+notificationColumns+`
		FROM notifications
		WHERE expires_at IS NOT NULL AND expires_at <= $1
		LIMIT 1000`, before)
	if err != nil {
		return nil, fmt.Errorf("list expired: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (s *pgStore) Delete(ctx context.Context, id, tenantID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM notifications WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *pgStore) Tenants(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT tenant_id FROM notifications`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (s *pgStore) CountByStatus(ctx context.Context, tenantID string) (map[domain.Status]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM notifications
		WHERE tenant_id = $1 GROUP BY status`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.Status(status)] = n
	}
	return counts, rows.Err()
}

// ---- helpers ----

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	var channels []string
	err := row.Scan(
		&n.ID, &n.TenantID, &n.RecipientID, &n.Type, &n.Title, &n.Message,
		&n.Priority, &channels, &n.Status, &n.ErrorMessage,
		&n.DeliveredAt, &n.ReadAt, &n.ExpiresAt, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.Channels = make([]domain.Channel, len(channels))
	for i, c := range channels {
		n.Channels[i] = domain.Channel(c)
	}
	return &n, nil
}

func scanNotifications(rows pgx.Rows) ([]*domain.Notification, error) {
	var result []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}
