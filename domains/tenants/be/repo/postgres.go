package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zenGate-Global/venuedesk/domains/tenants/be/service"
	"github.com/zenGate-Global/venuedesk/platform/go/persistence"
)

const tenantColumns = `id, name, slug, status, created_at, updated_at`

// Postgres implements service.Repository with plain parameterised SQL. It keeps
// no state: the transaction passed to each call decides the tenant scope or
// privilege level, so the same statements run on every backend.
type Postgres struct{}

func NewPostgres() *Postgres { return &Postgres{} }

func (Postgres) InsertTenant(ctx context.Context, tx persistence.Tx, t service.Tenant) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO tenants (id, name, slug, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.Name, t.Slug, string(t.Status), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (Postgres) InsertUser(ctx context.Context, tx persistence.Tx, u service.AdminUser) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO users (id, tenant_id, email, full_name, role, permissions, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.TenantID, u.Email, u.FullName, u.Role, u.Permissions, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	return nil
}

func (Postgres) Get(ctx context.Context, tx persistence.Tx, id uuid.UUID) (service.Tenant, error) {
	row := tx.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	t, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, persistence.ErrNoRows) {
			return service.Tenant{}, service.ErrNotFound
		}
		return service.Tenant{}, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

func (Postgres) List(ctx context.Context, tx persistence.Tx) ([]service.Tenant, error) {
	rows, err := tx.Query(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY created_at, slug`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	out := make([]service.Tenant, 0)
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return out, nil
}

func (Postgres) UpdateStatus(ctx context.Context, tx persistence.Tx, id uuid.UUID, status service.Status, at time.Time) error {
	_, err := tx.Exec(ctx, `UPDATE tenants SET status = $2, updated_at = $3 WHERE id = $1`, id, string(status), at)
	if err != nil {
		return fmt.Errorf("update tenant status: %w", err)
	}
	return nil
}

func scanTenant(row persistence.Row) (service.Tenant, error) {
	var (
		t      service.Tenant
		status string
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return service.Tenant{}, err
	}
	s, err := service.StatusFromString(status)
	if err != nil {
		return service.Tenant{}, err
	}
	t.Status = s
	return t, nil
}

// Ensure interface compliance.
var _ service.Repository = (*Postgres)(nil)
