package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	platformauth "github.com/zenGate-Global/venuedesk/platform/go/auth"
	"github.com/zenGate-Global/venuedesk/platform/go/persistence"
	"github.com/zenGate-Global/venuedesk/platform/go/tenant"
)

// Errors returned by the service layer.
var (
	ErrNotFound       = errors.New("tenant not found")
	ErrTenantInactive = errors.New("tenant deactivated")
	ErrSlugTaken      = errors.New("tenant slug already exists")
	ErrEmailTaken     = errors.New("admin email already registered")
	ErrValidation     = errors.New("invalid tenant request")
)

// Audit reasons recorded by the privileged runner.
const (
	ReasonProvisioning = "tenant-provisioning"
	ReasonAdminList    = "tenant-admin-list"
	ReasonStatusUpdate = "tenant-status-update"
)

const maxNameLength = 200

type Status string

const (
	StatusActive      Status = "active"
	StatusDeactivated Status = "deactivated"
)

// StatusFromString validates a stored or requested status.
func StatusFromString(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusDeactivated:
		return Status(s), nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
	}
}

// Tenant is one venue operator organisation.
type Tenant struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AdminUser is the first user created alongside a tenant.
type AdminUser struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Email       string
	FullName    string
	Role        string
	Permissions []string
	CreatedAt   time.Time
}

type ProvisionInput struct {
	Name          string
	AdminEmail    string
	AdminFullName string
	// AdminRole defaults to tenant_admin.
	AdminRole string
}

type Provisioned struct {
	Tenant Tenant
	Admin  AdminUser
}

// PermissionsForRole returns the permission set granted to a new user. Only
// tenant admins receive permissions at creation; the slice is never nil.
func PermissionsForRole(role string) []string {
	return platformauth.PermissionsForRole(role)
}

// Repository holds the SQL. Every method runs on the caller's transaction.
type Repository interface {
	InsertTenant(ctx context.Context, tx persistence.Tx, t Tenant) error
	InsertUser(ctx context.Context, tx persistence.Tx, u AdminUser) error
	Get(ctx context.Context, tx persistence.Tx, id uuid.UUID) (Tenant, error)
	List(ctx context.Context, tx persistence.Tx) ([]Tenant, error)
	UpdateStatus(ctx context.Context, tx persistence.Tx, id uuid.UUID, status Status, at time.Time) error
}

// PrivilegedRunner runs cross-tenant work with elevated database rights.
type PrivilegedRunner interface {
	Do(ctx context.Context, reason string, fn func(tx persistence.Tx) error) error
}

// TenantSessions runs work scoped to one tenant.
type TenantSessions interface {
	WithTenantSession(ctx context.Context, tenantID, role string, fn func(tx persistence.Tx) error) error
}

// Service provides tenant registry operations.
type Service struct {
	repo       Repository
	privileged PrivilegedRunner
	sessions   TenantSessions
	now        func() time.Time
}

// New constructs a Service with required dependencies.
func New(repo Repository, privileged PrivilegedRunner, sessions TenantSessions) *Service {
	if repo == nil {
		panic("tenants repo is required")
	}
	if privileged == nil {
		panic("privileged runner is required")
	}
	if sessions == nil {
		panic("tenant sessions are required")
	}
	return &Service{repo: repo, privileged: privileged, sessions: sessions, now: func() time.Time { return time.Now().UTC() }}
}

// Provision creates a tenant and its first admin user in one privileged
// transaction. Either both rows exist afterwards or neither does.
func (s *Service) Provision(ctx context.Context, input ProvisionInput) (Provisioned, error) {
	in, err := normalizeProvisionInput(input)
	if err != nil {
		return Provisioned{}, err
	}

	now := s.now()
	tenantID := uuid.New()
	t := Tenant{
		ID:        tenantID,
		Name:      in.Name,
		Slug:      tenant.BuildSlug(in.Name, tenantID),
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	admin := AdminUser{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Email:       in.AdminEmail,
		FullName:    in.AdminFullName,
		Role:        in.AdminRole,
		Permissions: PermissionsForRole(in.AdminRole),
		CreatedAt:   now,
	}

	err = s.privileged.Do(ctx, ReasonProvisioning, func(tx persistence.Tx) error {
		if err := s.repo.InsertTenant(ctx, tx, t); err != nil {
			return err
		}
		return s.repo.InsertUser(ctx, tx, admin)
	})
	if err != nil {
		return Provisioned{}, mapConflict(err)
	}
	return Provisioned{Tenant: t, Admin: admin}, nil
}

// List returns every tenant. Platform operators only.
func (s *Service) List(ctx context.Context) ([]Tenant, error) {
	var out []Tenant
	err := s.privileged.Do(ctx, ReasonAdminList, func(tx persistence.Tx) error {
		items, err := s.repo.List(ctx, tx)
		if err != nil {
			return err
		}
		out = items
		return nil
	})
	return out, err
}

// SetStatus deactivates or reactivates a tenant. The read happens before the
// write so the operation also works on backends that defer writes to commit.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status Status) (Tenant, error) {
	if _, err := StatusFromString(string(status)); err != nil {
		return Tenant{}, err
	}

	var out Tenant
	err := s.privileged.Do(ctx, ReasonStatusUpdate, func(tx persistence.Tx) error {
		current, err := s.repo.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status == status {
			out = current
			return nil
		}
		now := s.now()
		if err := s.repo.UpdateStatus(ctx, tx, id, status, now); err != nil {
			return err
		}
		current.Status = status
		current.UpdatedAt = now
		out = current
		return nil
	})
	return out, err
}

// ResolveIdentity confirms that the caller's tenant exists and is active. The
// lookup runs inside the caller's own tenant session, so it can only ever see
// that one tenant row.
func (s *Service) ResolveIdentity(ctx context.Context, id tenant.Identity) (Tenant, error) {
	if err := id.Validate(); err != nil {
		return Tenant{}, err
	}
	tenantID, err := uuid.Parse(id.TenantID)
	if err != nil {
		return Tenant{}, ErrNotFound
	}

	var t Tenant
	err = s.sessions.WithTenantSession(ctx, id.TenantID, id.Role, func(tx persistence.Tx) error {
		got, err := s.repo.Get(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		t = got
		return nil
	})
	if err != nil {
		return Tenant{}, err
	}
	if t.Status != StatusActive {
		return Tenant{}, ErrTenantInactive
	}
	return t, nil
}

func normalizeProvisionInput(in ProvisionInput) (ProvisionInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(in.Name) > maxNameLength {
		return in, fmt.Errorf("%w: name exceeds %d characters", ErrValidation, maxNameLength)
	}

	addr, err := mail.ParseAddress(strings.TrimSpace(in.AdminEmail))
	if err != nil || addr.Name != "" {
		return in, fmt.Errorf("%w: admin email is invalid", ErrValidation)
	}
	in.AdminEmail = strings.ToLower(addr.Address)
	in.AdminFullName = strings.TrimSpace(in.AdminFullName)

	switch in.AdminRole = strings.TrimSpace(in.AdminRole); in.AdminRole {
	case "":
		in.AdminRole = platformauth.RoleTenantAdmin
	case platformauth.RoleTenantAdmin, platformauth.RoleStaff:
	default:
		return in, fmt.Errorf("%w: unknown role %q", ErrValidation, in.AdminRole)
	}
	return in, nil
}

func mapConflict(err error) error {
	if !persistence.IsUniqueViolation(err) {
		return err
	}
	switch persistence.ConstraintName(err) {
	case "users_email_key":
		return fmt.Errorf("%w: %v", ErrEmailTaken, err)
	case "tenants_slug_key":
		return fmt.Errorf("%w: %v", ErrSlugTaken, err)
	default:
		return err
	}
}
