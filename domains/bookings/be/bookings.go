// Package bookings wires the tenant-scoped bookings domain.
package bookings

import (
	"go.uber.org/zap"

	"github.com/zenGate-Global/venuedesk/domains/bookings/be/handler"
	"github.com/zenGate-Global/venuedesk/domains/bookings/be/repo"
	"github.com/zenGate-Global/venuedesk/domains/bookings/be/service"
	"github.com/zenGate-Global/venuedesk/platform/go/persistence"
)

type Module struct {
	Service *service.Service
	Handler *handler.Handler
}

func New(tenantDB *persistence.TenantDB, logger *zap.Logger) *Module {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := service.New(repo.NewPostgres(), tenantDB)
	return &Module{Service: svc, Handler: handler.New(svc, logger.Named("bookings"))}
}
