package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/venuedesk/domains/tenants/be/service"
	"github.com/zenGate-Global/venuedesk/platform/go/httpjson"
	platformlogging "github.com/zenGate-Global/venuedesk/platform/go/logging"
)

// Service is the subset of service.Service the HTTP layer needs.
type Service interface {
	Provision(ctx context.Context, input service.ProvisionInput) (service.Provisioned, error)
	List(ctx context.Context) ([]service.Tenant, error)
	SetStatus(ctx context.Context, id uuid.UUID, status service.Status) (service.Tenant, error)
}

// Handler exposes platform tenant administration over HTTP.
type Handler struct {
	svc    Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("tenants service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the handlers on r. Callers gate the group with auth.RequireRole("admin").
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.TenantsList)
	r.Post("/", h.TenantsProvision)
	r.Patch("/{tenantId}/status", h.TenantsSetStatus)
}

type provisionRequest struct {
	Name          string `json:"name"`
	AdminEmail    string `json:"adminEmail"`
	AdminFullName string `json:"adminFullName,omitempty"`
	AdminRole     string `json:"adminRole,omitempty"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type tenantResponse struct {
	TenantID  uuid.UUID `json:"tenantId"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type adminResponse struct {
	UserID      uuid.UUID `json:"userId"`
	Email       string    `json:"email"`
	FullName    string    `json:"fullName"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions"`
}

type provisionResponse struct {
	Tenant tenantResponse `json:"tenant"`
	Admin  adminResponse  `json:"admin"`
}

type listResponse struct {
	Items []tenantResponse `json:"items"`
}

// TenantsList implements GET /platform/tenants
func (h *Handler) TenantsList(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := listResponse{Items: make([]tenantResponse, 0, len(items))}
	for _, t := range items {
		out.Items = append(out.Items, toTenantResponse(t))
	}
	httpjson.Write(w, http.StatusOK, out)
}

// TenantsProvision implements POST /platform/tenants
func (h *Handler) TenantsProvision(w http.ResponseWriter, r *http.Request) {
	var body provisionRequest
	if err := httpjson.Decode(r, &body); err != nil {
		httpjson.WriteProblem(w, httpjson.NewProblem(http.StatusBadRequest, "Invalid request body", err.Error(), httpjson.ProblemTypeValidation))
		return
	}

	out, err := h.svc.Provision(r.Context(), service.ProvisionInput{
		Name:          body.Name,
		AdminEmail:    body.AdminEmail,
		AdminFullName: body.AdminFullName,
		AdminRole:     body.AdminRole,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/platform/tenants/"+out.Tenant.ID.String())
	httpjson.Write(w, http.StatusCreated, provisionResponse{
		Tenant: toTenantResponse(out.Tenant),
		Admin: adminResponse{
			UserID:      out.Admin.ID,
			Email:       out.Admin.Email,
			FullName:    out.Admin.FullName,
			Role:        out.Admin.Role,
			Permissions: out.Admin.Permissions,
		},
	})
}

// TenantsSetStatus implements PATCH /platform/tenants/{tenantId}/status
func (h *Handler) TenantsSetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "tenantId"))
	if err != nil {
		httpjson.WriteProblem(w, httpjson.NewProblem(http.StatusBadRequest, "Invalid tenant id", "tenantId must be a UUID", httpjson.ProblemTypeValidation))
		return
	}

	var body statusRequest
	if err := httpjson.Decode(r, &body); err != nil {
		httpjson.WriteProblem(w, httpjson.NewProblem(http.StatusBadRequest, "Invalid request body", err.Error(), httpjson.ProblemTypeValidation))
		return
	}

	t, err := h.svc.SetStatus(r.Context(), id, service.Status(body.Status))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toTenantResponse(t))
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		httpjson.WriteProblem(w, httpjson.NewProblem(http.StatusBadRequest, "Validation failed", err.Error(), httpjson.ProblemTypeValidation))
	case errors.Is(err, service.ErrNotFound):
		httpjson.WriteProblem(w, httpjson.NewProblem(http.StatusNotFound, "Not found", err.Error(), httpjson.ProblemTypeNotFound))
	case errors.Is(err, service.ErrEmailTaken):
		httpjson.WriteProblem(w, httpjson.NewProblem(http.StatusConflict, "Conflict", service.ErrEmailTaken.Error(), httpjson.ProblemTypeConflict))
	case errors.Is(err, service.ErrSlugTaken):
		httpjson.WriteProblem(w, httpjson.NewProblem(http.StatusConflict, "Conflict", service.ErrSlugTaken.Error(), httpjson.ProblemTypeConflict))
	default:
		platformlogging.FromRequest(r, h.logger).Error("tenant operation failed", zap.Error(err))
		httpjson.WriteProblem(w, httpjson.NewProblem(http.StatusInternalServerError, "Internal error", "internal error", httpjson.ProblemTypeInternal))
	}
}

func toTenantResponse(t service.Tenant) tenantResponse {
	return tenantResponse{
		TenantID:  t.ID,
		Name:      t.Name,
		Slug:      t.Slug,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}
