package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zenGate-Global/venuedesk/platform/go/persistence"
	"github.com/zenGate-Global/venuedesk/platform/go/tenant"
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

var (
	ErrNotFound         = errors.New("booking not found")
	ErrAlreadyCancelled = errors.New("booking already cancelled")
)

const (
	maxEventName  = 200
	maxGuestCount = 100000
)

type Status string

const (
	StatusTentative Status = "tentative"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Booking is one reserved slot of the venue.
type Booking struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	EventName  string
	StartsAt   time.Time
	EndsAt     time.Time
	GuestCount int
	Status     Status
	// CreatedBy is nil when the creator has no uuid user id (platform tooling).
	CreatedBy *uuid.UUID
	CreatedAt time.Time
}

type CreateInput struct {
	EventName  string
	StartsAt   time.Time
	EndsAt     time.Time
	GuestCount int
	// Status defaults to confirmed; cancelled is not accepted at creation.
	Status Status
}

// Repository holds the SQL. Every call runs on a transaction that already
// carries the tenant session variables.
type Repository interface {
	List(ctx context.Context, tx persistence.Tx) ([]Booking, error)
	Get(ctx context.Context, tx persistence.Tx, id uuid.UUID) (Booking, error)
	Insert(ctx context.Context, tx persistence.Tx, b Booking) error
	UpdateStatus(ctx context.Context, tx persistence.Tx, id uuid.UUID, status Status) error
}

// Sessions opens tenant sessions for the identity on ctx.
type Sessions interface {
	WithIdentity(ctx context.Context, fn func(tx persistence.Tx) error) error
}

type Service struct {
	repo     Repository
	sessions Sessions
	now      func() time.Time
}

func New(repo Repository, sessions Sessions) *Service {
	if repo == nil {
		panic("bookings repository is required")
	}
	if sessions == nil {
		panic("tenant sessions are required")
	}
	return &Service{repo: repo, sessions: sessions, now: time.Now}
}

// List returns every booking visible to the caller's tenant ordered by start time.
func (s *Service) List(ctx context.Context) ([]Booking, error) {
	var out []Booking
	err := s.sessions.WithIdentity(ctx, func(tx persistence.Tx) error {
		items, err := s.repo.List(ctx, tx)
		if err != nil {
			return err
		}
		out = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, input CreateInput) (Booking, error) {
	identity, err := tenant.Require(ctx)
	if err != nil {
		return Booking{}, err
	}
	tenantID, err := uuid.Parse(identity.TenantID)
	if err != nil {
		return Booking{}, fmt.Errorf("tenant id %q is not a uuid: %w", identity.TenantID, err)
	}

	b, err := validateCreate(input)
	if err != nil {
		return Booking{}, err
	}
	b.ID = uuid.New()
	b.TenantID = tenantID
	b.CreatedAt = s.now().UTC()
	if userID, err := uuid.Parse(identity.UserID); err == nil {
		b.CreatedBy = &userID
	}

	err = s.sessions.WithIdentity(ctx, func(tx persistence.Tx) error {
		return s.repo.Insert(ctx, tx, b)
	})
	if err != nil {
		return Booking{}, err
	}
	return b, nil
}

// Cancel marks a booking cancelled. Cancelling twice returns ErrAlreadyCancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (Booking, error) {
	if id == uuid.Nil {
		return Booking{}, ErrNotFound
	}

	var out Booking
	err := s.sessions.WithIdentity(ctx, func(tx persistence.Tx) error {
		b, err := s.repo.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if b.Status == StatusCancelled {
			return ErrAlreadyCancelled
		}
		if err := s.repo.UpdateStatus(ctx, tx, id, StatusCancelled); err != nil {
			return err
		}
		b.Status = StatusCancelled
		out = b
		return nil
	})
	if err != nil {
		return Booking{}, err
	}
	return out, nil
}

func validateCreate(input CreateInput) (Booking, error) {
	fields := FieldErrors{}

	name := strings.TrimSpace(input.EventName)
	switch {
	case name == "":
		fields.add("eventName", "eventName is required")
	case len(name) > maxEventName:
		fields.add("eventName", fmt.Sprintf("eventName must be at most %d characters", maxEventName))
	}

	if input.StartsAt.IsZero() {
		fields.add("startsAt", "startsAt is required")
	}
	if input.EndsAt.IsZero() {
		fields.add("endsAt", "endsAt is required")
	} else if !input.StartsAt.IsZero() && !input.EndsAt.After(input.StartsAt) {
		fields.add("endsAt", "endsAt must be after startsAt")
	}

	if input.GuestCount < 0 || input.GuestCount > maxGuestCount {
		fields.add("guestCount", fmt.Sprintf("guestCount must be between 0 and %d", maxGuestCount))
	}

	status := input.Status
	if status == "" {
		status = StatusConfirmed
	}
	if status != StatusConfirmed && status != StatusTentative {
		fields.add("status", fmt.Sprintf("unsupported status %q", status))
	}

	if len(fields) > 0 {
		return Booking{}, &ValidationError{Fields: fields}
	}

	return Booking{
		EventName:  name,
		StartsAt:   input.StartsAt.UTC(),
		EndsAt:     input.EndsAt.UTC(),
		GuestCount: input.GuestCount,
		Status:     status,
	}, nil
}

func (f FieldErrors) add(field, message string) {
	f[field] = append(f[field], message)
}
