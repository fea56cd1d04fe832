// Package pgtest starts a throwaway Postgres for integration tests, applies the
// platform schema and creates the application roles so row-level security is
// actually enforced (superusers bypass it).
package pgtest

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/zenGate-Global/venuedesk/platform/go/persistence"
)

const (
	AppRole        = "venue_app"
	AppPassword    = "venue_app"
	PrivilegedRole = "venue_platform_admin"
)

// Env describes a bootstrapped database.
type Env struct {
	// OwnerURL connects as the superuser that owns the tables.
	OwnerURL string
	// AppURL connects as AppRole, which is subject to row-level security.
	AppURL string
	// Owner is a pool on OwnerURL for seeding and assertions that must see every row.
	Owner *pgxpool.Pool
}

// Start runs postgres:16-alpine and bootstraps it. It skips the test under -short.
func Start(t *testing.T) *Env {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("venuedesk"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	ownerURL, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	owner, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: ownerURL})
	require.NoError(t, err)
	t.Cleanup(func() { persistence.ClosePool(owner) })

	require.NoError(t, persistence.BootstrapSchema(ctx, owner))
	require.NoError(t, persistence.EnsureRoles(ctx, owner, persistence.RolesConfig{
		AppRole:        AppRole,
		AppPassword:    AppPassword,
		PrivilegedRole: PrivilegedRole,
	}))

	u, err := url.Parse(ownerURL)
	require.NoError(t, err)
	u.User = url.UserPassword(AppRole, AppPassword)

	return &Env{OwnerURL: ownerURL, AppURL: u.String(), Owner: owner}
}

// SeedTenant inserts an active tenant as the owner, bypassing row-level security.
func (e *Env) SeedTenant(t *testing.T, id, name, slug string) {
	t.Helper()
	_, err := e.Owner.Exec(context.Background(),
		`INSERT INTO tenants (id, name, slug) VALUES ($1, $2, $3)`, id, name, slug)
	require.NoError(t, err)
}

// SeedBooking inserts a booking for tenantID as the owner.
func (e *Env) SeedBooking(t *testing.T, id, tenantID, eventName string) {
	t.Helper()
	start := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	_, err := e.Owner.Exec(context.Background(),
		`INSERT INTO bookings (id, tenant_id, event_name, starts_at, ends_at, guest_count) VALUES ($1, $2, $3, $4, $5, 50)`,
		id, tenantID, eventName, start, start.Add(4*time.Hour))
	require.NoError(t, err)
}

// Count returns the number of rows matching query as seen by the owner.
func (e *Env) Count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, e.Owner.QueryRow(context.Background(), query, args...).Scan(&n))
	return n
}
