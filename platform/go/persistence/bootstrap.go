package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	sqlassets "github.com/zenGate-Global/venuedesk/database"
)

// BootstrapSchema applies the embedded platform DDL (tables, then row-level
// security policies) in a single transaction. It is idempotent and intended for
// the CLI and tests; it must run as the table owner.
func BootstrapSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("bootstrap schema: pool is required")
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	for _, stmt := range sqlassets.Statements() {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply ddl: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// RolesConfig names the database roles the application runs as.
type RolesConfig struct {
	AppRole        string // login role used by the API; subject to row-level security
	AppPassword    string // optional; set or rotated when provided
	PrivilegedRole string // NOLOGIN BYPASSRLS role the app may SET ROLE into for provisioning
}

// EnsureRoles creates (or updates) the application and privileged roles and
// grants table access. Creating a BYPASSRLS role requires a superuser connection.
func EnsureRoles(ctx context.Context, pool *pgxpool.Pool, cfg RolesConfig) error {
	cfg.AppRole = strings.TrimSpace(cfg.AppRole)
	cfg.PrivilegedRole = strings.TrimSpace(cfg.PrivilegedRole)
	if pool == nil {
		return fmt.Errorf("ensure roles: pool is required")
	}
	if cfg.AppRole == "" {
		return fmt.Errorf("ensure roles: app role is required")
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	app := pgx.Identifier{cfg.AppRole}.Sanitize()
	appOpts := "LOGIN NOBYPASSRLS"
	if cfg.AppPassword != "" {
		appOpts += " PASSWORD " + pq.QuoteLiteral(cfg.AppPassword)
	}
	if err := ensureRole(ctx, tx, cfg.AppRole, appOpts); err != nil {
		return err
	}

	grantees := app
	if cfg.PrivilegedRole != "" {
		if err := ensureRole(ctx, tx, cfg.PrivilegedRole, "NOLOGIN BYPASSRLS"); err != nil {
			return err
		}
		priv := pgx.Identifier{cfg.PrivilegedRole}.Sanitize()
		grantees += ", " + priv
		if _, err := tx.Exec(ctx, "GRANT "+priv+" TO "+app); err != nil {
			return fmt.Errorf("grant privileged role: %w", err)
		}
	}

	grants := []string{
		"GRANT USAGE ON SCHEMA public TO " + grantees,
		"GRANT SELECT, INSERT, UPDATE, DELETE ON tenants, users, bookings TO " + grantees,
	}
	for _, stmt := range grants {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("grant table access: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func ensureRole(ctx context.Context, tx pgx.Tx, name, options string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)`, name).Scan(&exists); err != nil {
		return fmt.Errorf("check role %s: %w", name, err)
	}

	verb := "CREATE ROLE "
	if exists {
		verb = "ALTER ROLE "
	}
	if _, err := tx.Exec(ctx, verb+pgx.Identifier{name}.Sanitize()+" "+options); err != nil {
		return fmt.Errorf("ensure role %s: %w", name, err)
	}
	return nil
}
