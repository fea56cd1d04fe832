package tenants_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	tenants "github.com/zenGate-Global/venuedesk/domains/tenants/be"
	"github.com/zenGate-Global/venuedesk/domains/tenants/be/service"
	"github.com/zenGate-Global/venuedesk/platform/go/persistence"
	"github.com/zenGate-Global/venuedesk/platform/go/persistence/pgtest"
	"github.com/zenGate-Global/venuedesk/platform/go/tenant"
)

func newModule(t *testing.T, env *pgtest.Env, kind persistence.Kind, role string) *tenants.Module {
	t.Helper()
	db, err := persistence.Open(context.Background(), persistence.Config{ConnString: env.AppURL, Driver: kind}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return tenants.New(tenants.Config{
		DB:             db,
		TenantDB:       persistence.NewTenantDB(persistence.TenantDBConfig{DB: db}),
		PrivilegedRole: role,
	})
}

func TestProvisioningAgainstPostgres(t *testing.T) {
	env := pgtest.Start(t)
	ctx := context.Background()

	for _, kind := range []persistence.Kind{persistence.KindPgx, persistence.KindPooler} {
		t.Run(string(kind), func(t *testing.T) {
			m := newModule(t, env, kind, pgtest.PrivilegedRole)
			email := "admin-" + string(kind) + "@acme.test"

			out, err := m.Service.Provision(ctx, service.ProvisionInput{Name: "Acme " + string(kind), AdminEmail: email})
			require.NoError(t, err)
			require.Equal(t, 1, env.Count(t, `SELECT count(*) FROM tenants WHERE id = $1`, out.Tenant.ID))
			require.Equal(t, 1, env.Count(t, `SELECT count(*) FROM users WHERE tenant_id = $1 AND cardinality(permissions) > 0`, out.Tenant.ID))

			// Second insert fails on the duplicate email: the tenant insert must roll back with it.
			name := "Acme duplicate " + string(kind)
			_, err = m.Service.Provision(ctx, service.ProvisionInput{Name: name, AdminEmail: email})
			require.ErrorIs(t, err, service.ErrEmailTaken)
			require.Zero(t, env.Count(t, `SELECT count(*) FROM tenants WHERE name = $1`, name))

			// The new admin resolves inside their own tenant session.
			id := tenant.Identity{TenantID: out.Tenant.ID.String(), UserID: out.Admin.ID.String(), Role: out.Admin.Role}
			got, err := m.Service.ResolveIdentity(ctx, id)
			require.NoError(t, err)
			require.Equal(t, out.Tenant.ID, got.ID)

			items, err := m.Service.List(ctx)
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(items), 1)

			_, err = m.Service.SetStatus(ctx, out.Tenant.ID, service.StatusDeactivated)
			require.NoError(t, err)
			_, err = m.Service.ResolveIdentity(ctx, id)
			require.ErrorIs(t, err, service.ErrTenantInactive)
			require.ErrorIs(t, m.ResolveIdentity(ctx, id), tenant.ErrUnavailable)
		})
	}

	t.Run("without elevation row security rejects the write", func(t *testing.T) {
		m := newModule(t, env, persistence.KindPgx, "")

		_, err := m.Service.Provision(ctx, service.ProvisionInput{Name: "Unprivileged Venue", AdminEmail: "admin@unprivileged.test"})
		require.Error(t, err)
		require.True(t, persistence.IsRowSecurityViolation(err), "got %v", err)
		require.Zero(t, env.Count(t, `SELECT count(*) FROM tenants WHERE name = 'Unprivileged Venue'`))
	})
}
