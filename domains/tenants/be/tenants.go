// Package tenants wires the tenant registry: privileged provisioning and
// listing for platform operators, plus the identity resolver used by the
// tenant middleware. It is the only way outside code obtains a privileged runner.
package tenants

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/zenGate-Global/venuedesk/domains/tenants/be/handler"
	"github.com/zenGate-Global/venuedesk/domains/tenants/be/internal/privileged"
	"github.com/zenGate-Global/venuedesk/domains/tenants/be/repo"
	"github.com/zenGate-Global/venuedesk/domains/tenants/be/service"
	"github.com/zenGate-Global/venuedesk/platform/go/persistence"
	"github.com/zenGate-Global/venuedesk/platform/go/tenant"
)

type Config struct {
	DB       *persistence.DB
	TenantDB *persistence.TenantDB
	// PrivilegedRole is the BYPASSRLS role used for provisioning. Empty disables elevation.
	PrivilegedRole string
	Logger         *zap.Logger
}

type Module struct {
	Service *service.Service
	Handler *handler.Handler
}

func New(cfg Config) *Module {
	if cfg.DB == nil {
		panic("tenants.New: db is required")
	}
	if cfg.TenantDB == nil {
		panic("tenants.New: tenant db is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	runner := privileged.New(privileged.Config{DB: cfg.DB, Role: cfg.PrivilegedRole, Logger: logger})
	svc := service.New(repo.NewPostgres(), runner, cfg.TenantDB)
	return &Module{Service: svc, Handler: handler.New(svc, logger.Named("tenants"))}
}

// ResolveIdentity satisfies middleware.Resolver. Unknown and deactivated tenants
// are reported as tenant.ErrUnavailable.
func (m *Module) ResolveIdentity(ctx context.Context, id tenant.Identity) error {
	_, err := m.Service.ResolveIdentity(ctx, id)
	if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrTenantInactive) {
		return fmt.Errorf("%w: %w", tenant.ErrUnavailable, err)
	}
	return err
}
