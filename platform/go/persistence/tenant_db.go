package persistence

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/zenGate-Global/venuedesk/platform/go/tenant"
)

// ErrMissingTenantScope is returned before any connection is acquired when a
// tenant session is requested without a tenant id or role.
var ErrMissingTenantScope = errors.New("tenant session requires tenant id and role")

// TenantDB runs units of work inside transactions scoped to one tenant through
// the session variables consumed by row-level security.
type TenantDB struct {
	db     *DB
	logger *zap.Logger
}

type TenantDBConfig struct {
	DB     *DB
	Logger *zap.Logger
}

func NewTenantDB(cfg TenantDBConfig) *TenantDB {
	if cfg.DB == nil {
		panic("persistence.NewTenantDB: db is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TenantDB{db: cfg.DB, logger: logger}
}

// WithTenantSession opens one transaction, sets the tenant id and role session
// variables, runs fn and commits. fn's error is returned unchanged after rollback.
func (t *TenantDB) WithTenantSession(ctx context.Context, tenantID, role string, fn func(tx Tx) error) error {
	tenantID = strings.TrimSpace(tenantID)
	role = strings.TrimSpace(role)
	if tenantID == "" || role == "" {
		return ErrMissingTenantScope
	}

	err := t.db.RunInTransaction(ctx, func(tx Tx) error {
		if err := SetSessionVariable(ctx, tx, SessionTenantIDVar, tenantID); err != nil {
			return err
		}
		if err := SetSessionVariable(ctx, tx, SessionUserRoleVar, role); err != nil {
			return err
		}
		return fn(tx)
	})
	if err != nil {
		t.logger.Debug("tenant session rolled back", zap.String("tenant_id", tenantID), zap.String("role", role), zap.Error(err))
	}
	return err
}

// WithIdentity scopes the session to the identity attached to ctx and fails with
// tenant.ErrNoIdentity when the caller never established one.
func (t *TenantDB) WithIdentity(ctx context.Context, fn func(tx Tx) error) error {
	id, err := tenant.Require(ctx)
	if err != nil {
		return err
	}
	return t.WithTenantSession(ctx, id.TenantID, id.Role, fn)
}

// InTenantSession is the value-returning form of WithTenantSession.
func InTenantSession[T any](ctx context.Context, t *TenantDB, tenantID, role string, fn func(tx Tx) (T, error)) (T, error) {
	var out T
	err := t.WithTenantSession(ctx, tenantID, role, func(tx Tx) error {
		v, err := fn(tx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// InIdentitySession is the value-returning form of WithIdentity.
func InIdentitySession[T any](ctx context.Context, t *TenantDB, fn func(tx Tx) (T, error)) (T, error) {
	id, err := tenant.Require(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return InTenantSession(ctx, t, id.TenantID, id.Role, fn)
}

func identityTenant(ctx context.Context) (string, error) {
	id, err := tenant.Require(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(id.TenantID), nil
}
