package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zenGate-Global/venuedesk/domains/tenants/be/service"
)

type mockService struct {
	provisionFn func(ctx context.Context, input service.ProvisionInput) (service.Provisioned, error)
	listFn      func(ctx context.Context) ([]service.Tenant, error)
	setStatusFn func(ctx context.Context, id uuid.UUID, status service.Status) (service.Tenant, error)
}

func (m *mockService) Provision(ctx context.Context, input service.ProvisionInput) (service.Provisioned, error) {
	if m.provisionFn == nil {
		panic("provisionFn not configured")
	}
	return m.provisionFn(ctx, input)
}

func (m *mockService) List(ctx context.Context) ([]service.Tenant, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx)
}

func (m *mockService) SetStatus(ctx context.Context, id uuid.UUID, status service.Status) (service.Tenant, error) {
	if m.setStatusFn == nil {
		panic("setStatusFn not configured")
	}
	return m.setStatusFn(ctx, id, status)
}

func newRouter(t *testing.T, svc Service) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1/platform/tenants", New(svc, zaptest.NewLogger(t)).Routes)
	return r
}

func TestTenantsProvisionCreated(t *testing.T) {
	t.Parallel()

	tenantID, adminID := uuid.New(), uuid.New()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := &mockService{
		provisionFn: func(ctx context.Context, input service.ProvisionInput) (service.Provisioned, error) {
			require.Equal(t, "Acme Events", input.Name)
			require.Equal(t, "admin@acme.test", input.AdminEmail)
			return service.Provisioned{
				Tenant: service.Tenant{ID: tenantID, Name: input.Name, Slug: "acme-events-1b4e28ba", Status: service.StatusActive, CreatedAt: now, UpdatedAt: now},
				Admin:  service.AdminUser{ID: adminID, TenantID: tenantID, Email: input.AdminEmail, Role: "tenant_admin", Permissions: []string{"bookings:read"}},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/platform/tenants", strings.NewReader(`{"name":"Acme Events","adminEmail":"admin@acme.test"}`))
	rec := httptest.NewRecorder()
	newRouter(t, svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "/api/v1/platform/tenants/"+tenantID.String(), rec.Header().Get("Location"))

	var body provisionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, tenantID, body.Tenant.TenantID)
	require.Equal(t, "active", body.Tenant.Status)
	require.Equal(t, adminID, body.Admin.UserID)
	require.Equal(t, []string{"bookings:read"}, body.Admin.Permissions)
}

func TestTenantsProvisionErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"malformed body", `{"name":`, nil, http.StatusBadRequest},
		{"validation", `{"name":"","adminEmail":"x"}`, fmt.Errorf("%w: name is required", service.ErrValidation), http.StatusBadRequest},
		{"duplicate email", `{"name":"Acme","adminEmail":"admin@acme.test"}`, fmt.Errorf("%w: 23505", service.ErrEmailTaken), http.StatusConflict},
		{"unexpected", `{"name":"Acme","adminEmail":"admin@acme.test"}`, fmt.Errorf("connection refused"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockService{
				provisionFn: func(ctx context.Context, input service.ProvisionInput) (service.Provisioned, error) {
					return service.Provisioned{}, tc.err
				},
			}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/platform/tenants", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			newRouter(t, svc).ServeHTTP(rec, req)

			require.Equal(t, tc.want, rec.Code)
			require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			require.NotContains(t, rec.Body.String(), "connection refused")
		})
	}
}

func TestTenantsList(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		listFn: func(ctx context.Context) ([]service.Tenant, error) {
			return []service.Tenant{
				{ID: uuid.New(), Name: "Harbour Hall", Slug: "harbour-hall-1", Status: service.StatusActive},
				{ID: uuid.New(), Name: "Garden Loft", Slug: "garden-loft-2", Status: service.StatusDeactivated},
			}, nil
		},
	}

	rec := httptest.NewRecorder()
	newRouter(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/platform/tenants", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 2)
	require.Equal(t, "deactivated", body.Items[1].Status)
}

func TestTenantsSetStatus(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	svc := &mockService{
		setStatusFn: func(ctx context.Context, got uuid.UUID, status service.Status) (service.Tenant, error) {
			if got != id {
				return service.Tenant{}, service.ErrNotFound
			}
			return service.Tenant{ID: id, Status: status}, nil
		},
	}
	router := newRouter(t, svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/v1/platform/tenants/"+id.String()+"/status", strings.NewReader(`{"status":"deactivated"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"deactivated"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/v1/platform/tenants/"+uuid.NewString()+"/status", strings.NewReader(`{"status":"active"}`)))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/v1/platform/tenants/nope/status", strings.NewReader(`{"status":"active"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
