package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/venuedesk/domains/users/be/service"
	"github.com/zenGate-Global/venuedesk/platform/go/httpjson"
	platformlogging "github.com/zenGate-Global/venuedesk/platform/go/logging"
	"github.com/zenGate-Global/venuedesk/platform/go/tenant"
)

type operation string

const (
	createOperation operation = "usersCreate"
	listOperation   operation = "usersList"
	getOperation    operation = "usersGet"
	updateOperation operation = "usersUpdate"
	meGetOperation  operation = "usersMe"
	deleteOperation operation = "usersDelete"
)

// Handler wires the users service to the HTTP contract.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("users service is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the users endpoints. The group must sit behind the tenant
// identity middleware.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.UsersList)
	r.Post("/", h.UsersCreate)
	r.Get("/me", h.UsersMe)
	r.Get("/{userId}", h.UsersGet)
	r.Patch("/{userId}", h.UsersUpdate)
	r.Delete("/{userId}", h.UsersDelete)
}

type userResponse struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenantId"`
	Email       string    `json:"email"`
	FullName    string    `json:"fullName"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"createdAt"`
}

type listResponse struct {
	Items      []userResponse `json:"items"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalItems int            `json:"totalItems"`
	TotalPages int            `json:"totalPages"`
}

type createRequest struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role,omitempty"`
}

type updateRequest struct {
	FullName *string `json:"fullName,omitempty"`
	Role     *string `json:"role,omitempty"`
}

func (h *Handler) UsersList(w http.ResponseWriter, r *http.Request) {
	opts, err := buildListOptions(r)
	if err != nil {
		h.writeProblem(w, r, err, listOperation)
		return
	}

	result, err := h.svc.List(r.Context(), opts)
	if err != nil {
		h.writeProblem(w, r, err, listOperation)
		return
	}

	items := make([]userResponse, 0, len(result.Users))
	for _, user := range result.Users {
		items = append(items, toAPIUser(user))
	}

	httpjson.Write(w, http.StatusOK, listResponse{
		Items:      items,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}

func (h *Handler) UsersCreate(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if err := httpjson.Decode(r, &body); err != nil {
		httpjson.WriteProblem(w, h.buildProblem("Invalid request body", err.Error(), httpjson.ProblemTypeValidation, http.StatusBadRequest, nil))
		return
	}

	created, err := h.svc.Create(r.Context(), service.CreateInput{
		Email:    body.Email,
		FullName: body.FullName,
		Role:     body.Role,
	})
	if err != nil {
		h.writeProblem(w, r, err, createOperation)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/users/%s", created.ID.String()))
	httpjson.Write(w, http.StatusCreated, toAPIUser(created))
}

func (h *Handler) UsersGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	user, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeProblem(w, r, err, getOperation)
		return
	}

	httpjson.Write(w, http.StatusOK, toAPIUser(user))
}

func (h *Handler) UsersMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Me(r.Context())
	if err != nil {
		h.writeProblem(w, r, err, meGetOperation)
		return
	}

	httpjson.Write(w, http.StatusOK, toAPIUser(user))
}

func (h *Handler) UsersUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	var body updateRequest
	if err := httpjson.Decode(r, &body); err != nil {
		httpjson.WriteProblem(w, h.buildProblem("Invalid request body", err.Error(), httpjson.ProblemTypeValidation, http.StatusBadRequest, nil))
		return
	}

	updated, err := h.svc.Update(r.Context(), id, service.UpdateInput{FullName: body.FullName, Role: body.Role})
	if err != nil {
		h.writeProblem(w, r, err, updateOperation)
		return
	}

	httpjson.Write(w, http.StatusOK, toAPIUser(updated))
}

func (h *Handler) UsersDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeProblem(w, r, err, deleteOperation)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) userIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		httpjson.WriteProblem(w, h.buildProblem("Invalid user id", "userId must be a UUID", httpjson.ProblemTypeValidation, http.StatusBadRequest, nil))
		return uuid.Nil, false
	}
	return id, true
}

func buildListOptions(r *http.Request) (service.ListOptions, error) {
	q := r.URL.Query()
	opts := service.ListOptions{}
	fields := service.FieldErrors{}

	for name, dst := range map[string]*int{"page": &opts.Page, "pageSize": &opts.PageSize} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fields[name] = append(fields[name], name+" must be a positive integer")
			continue
		}
		*dst = n
	}
	if len(fields) > 0 {
		return service.ListOptions{}, &service.ValidationError{Fields: fields}
	}

	if email := strings.TrimSpace(q.Get("email")); email != "" {
		opts.Email = &email
	}
	if sort := q.Get("sort"); sort != "" {
		opts.Sort = &sort
	}

	return opts, nil
}

func toAPIUser(user service.User) userResponse {
	permissions := user.Permissions
	if permissions == nil {
		permissions = []string{}
	}
	return userResponse{
		ID:          user.ID,
		TenantID:    user.TenantID,
		Email:       user.Email,
		FullName:    user.FullName,
		Role:        user.Role,
		Permissions: permissions,
		CreatedAt:   user.CreatedAt,
	}
}

func (h *Handler) writeProblem(w http.ResponseWriter, r *http.Request, err error, op operation) {
	status, problem := h.problemForError(r.Context(), err, op)
	problem.Status = status
	httpjson.WriteProblem(w, problem)
}

func (h *Handler) problemForError(ctx context.Context, err error, op operation) (int, httpjson.Problem) {
	status, title, detail, problemType, fields := h.classifyError(err)

	logger := h.loggerFrom(ctx)
	fieldsForLog := []zap.Field{
		zap.String("operation", string(op)),
		zap.Int("status", status),
	}

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("users operation failed", append(fieldsForLog, zap.Error(err))...)
	case status == http.StatusNotFound:
		logger.Info("users resource not found", append(fieldsForLog, zap.Error(err))...)
	default:
		logger.Warn("users request rejected", append(fieldsForLog, zap.Error(err))...)
	}

	return status, h.buildProblem(title, detail, problemType, status, fields)
}

func (h *Handler) classifyError(err error) (status int, title, detail, problemType string, fieldErrors service.FieldErrors) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest,
			"Validation failed",
			"one or more fields are invalid",
			httpjson.ProblemTypeValidation,
			validationErr.Fields
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound,
			"Resource not found",
			"user not found",
			httpjson.ProblemTypeNotFound,
			nil
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict,
			"Conflict",
			"user conflict",
			httpjson.ProblemTypeConflict,
			nil
	case errors.Is(err, service.ErrForbidden), errors.Is(err, tenant.ErrNoIdentity):
		return http.StatusForbidden,
			"Forbidden",
			service.ErrForbidden.Error(),
			httpjson.ProblemTypeForbidden,
			nil
	default:
		return http.StatusInternalServerError,
			"Internal server error",
			"an unexpected error occurred",
			httpjson.ProblemTypeInternal,
			nil
	}
}

func (h *Handler) buildProblem(title, detail, problemType string, status int, fieldErrors service.FieldErrors) httpjson.Problem {
	problem := httpjson.NewProblem(status, title, detail, problemType)

	if len(fieldErrors) > 0 {
		copied := make(map[string][]string, len(fieldErrors))
		for field, messages := range fieldErrors {
			copied[field] = append([]string(nil), messages...)
		}
		problem.Errors = copied
	}

	return problem
}

func (h *Handler) loggerFrom(ctx context.Context) *zap.Logger {
	if logger, ok := platformlogging.FromContext(ctx); ok {
		return logger
	}
	return h.logger
}
