package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/venuedesk/domains/bookings/be/service"
	"github.com/zenGate-Global/venuedesk/platform/go/httpjson"
	platformlogging "github.com/zenGate-Global/venuedesk/platform/go/logging"
	"github.com/zenGate-Global/venuedesk/platform/go/persistence"
	"github.com/zenGate-Global/venuedesk/platform/go/tenant"
)

type Service interface {
	List(ctx context.Context) ([]service.Booking, error)
	Create(ctx context.Context, input service.CreateInput) (service.Booking, error)
	Cancel(ctx context.Context, id uuid.UUID) (service.Booking, error)
}

type Handler struct {
	svc    Service
	logger *zap.Logger
}

func New(svc Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("bookings service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.BookingsList)
	r.Post("/", h.BookingsCreate)
	r.Post("/{bookingId}/cancel", h.BookingsCancel)
}

type createRequest struct {
	EventName  string    `json:"eventName"`
	StartsAt   time.Time `json:"startsAt"`
	EndsAt     time.Time `json:"endsAt"`
	GuestCount int       `json:"guestCount"`
	Status     string    `json:"status,omitempty"`
}

type bookingResponse struct {
	ID         uuid.UUID  `json:"id"`
	TenantID   uuid.UUID  `json:"tenantId"`
	EventName  string     `json:"eventName"`
	StartsAt   time.Time  `json:"startsAt"`
	EndsAt     time.Time  `json:"endsAt"`
	GuestCount int        `json:"guestCount"`
	Status     string     `json:"status"`
	CreatedBy  *uuid.UUID `json:"createdBy,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

type listResponse struct {
	Items []bookingResponse `json:"items"`
}

// BookingsList implements GET /bookings
func (h *Handler) BookingsList(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := listResponse{Items: make([]bookingResponse, 0, len(items))}
	for _, b := range items {
		out.Items = append(out.Items, toResponse(b))
	}
	httpjson.Write(w, http.StatusOK, out)
}

// BookingsCreate implements POST /bookings
func (h *Handler) BookingsCreate(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if err := httpjson.Decode(r, &body); err != nil {
		httpjson.WriteProblem(w, httpjson.NewProblem(http.StatusBadRequest, "Invalid request body", err.Error(), httpjson.ProblemTypeValidation))
		return
	}

	b, err := h.svc.Create(r.Context(), service.CreateInput{
		EventName:  body.EventName,
		StartsAt:   body.StartsAt,
		EndsAt:     body.EndsAt,
		GuestCount: body.GuestCount,
		Status:     service.Status(body.Status),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/bookings/"+b.ID.String())
	httpjson.Write(w, http.StatusCreated, toResponse(b))
}

// BookingsCancel implements POST /bookings/{bookingId}/cancel
func (h *Handler) BookingsCancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "bookingId"))
	if err != nil {
		httpjson.WriteProblem(w, httpjson.NewProblem(http.StatusBadRequest, "Invalid booking id", "bookingId must be a UUID", httpjson.ProblemTypeValidation))
		return
	}

	b, err := h.svc.Cancel(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toResponse(b))
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		p := httpjson.NewProblem(http.StatusBadRequest, "Validation failed", "one or more fields are invalid", httpjson.ProblemTypeValidation)
		p.Errors = validationErr.Fields
		httpjson.WriteProblem(w, p)
	case errors.Is(err, service.ErrNotFound):
		httpjson.WriteProblem(w, httpjson.NewProblem(http.StatusNotFound, "Not found", "booking not found", httpjson.ProblemTypeNotFound))
	case errors.Is(err, service.ErrAlreadyCancelled):
		httpjson.WriteProblem(w, httpjson.NewProblem(http.StatusConflict, "Conflict", err.Error(), httpjson.ProblemTypeConflict))
	case errors.Is(err, tenant.ErrNoIdentity), errors.Is(err, persistence.ErrMissingTenantScope), persistence.IsRowSecurityViolation(err):
		platformlogging.FromRequest(r, h.logger).Warn("booking request outside tenant scope", zap.Error(err))
		httpjson.WriteProblem(w, httpjson.NewProblem(http.StatusForbidden, "Forbidden", "tenant scope required", httpjson.ProblemTypeForbidden))
	default:
		platformlogging.FromRequest(r, h.logger).Error("booking operation failed", zap.Error(err))
		httpjson.WriteProblem(w, httpjson.NewProblem(http.StatusInternalServerError, "Internal error", "internal error", httpjson.ProblemTypeInternal))
	}
}

func toResponse(b service.Booking) bookingResponse {
	return bookingResponse{
		ID:         b.ID,
		TenantID:   b.TenantID,
		EventName:  b.EventName,
		StartsAt:   b.StartsAt,
		EndsAt:     b.EndsAt,
		GuestCount: b.GuestCount,
		Status:     string(b.Status),
		CreatedBy:  b.CreatedBy,
		CreatedAt:  b.CreatedAt,
	}
}
