package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/zenGate-Global/venuedesk/domains/tenants/be/service"
	"github.com/zenGate-Global/venuedesk/platform/go/persistence"
)

// MemoryRepository is an in-memory implementation for tests and local tooling.
// It ignores the transaction argument and reports unique violations with the
// same SQLSTATE and constraint names as the Postgres schema.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]service.Tenant
	bySlug  map[string]uuid.UUID
	byEmail map[string]service.AdminUser
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[uuid.UUID]service.Tenant),
		bySlug:  make(map[string]uuid.UUID),
		byEmail: make(map[string]service.AdminUser),
	}
}

func (r *MemoryRepository) InsertTenant(ctx context.Context, _ persistence.Tx, t service.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bySlug[t.Slug]; ok {
		return uniqueViolation("tenants_slug_key")
	}
	r.byID[t.ID] = t
	r.bySlug[t.Slug] = t.ID
	return nil
}

func (r *MemoryRepository) InsertUser(ctx context.Context, _ persistence.Tx, u service.AdminUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[u.Email]; ok {
		return uniqueViolation("users_email_key")
	}
	r.byEmail[u.Email] = u
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, _ persistence.Tx, id uuid.UUID) (service.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byID[id]
	if !ok {
		return service.Tenant{}, service.ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepository) List(ctx context.Context, _ persistence.Tx) ([]service.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]service.Tenant, 0, len(r.byID))
	for _, t := range r.byID {
		items = append(items, t)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].Slug < items[j].Slug
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, _ persistence.Tx, id uuid.UUID, status service.Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok {
		return service.ErrNotFound
	}
	t.Status = status
	t.UpdatedAt = at
	r.byID[id] = t
	return nil
}

// Admin returns the stored admin user for email.
func (r *MemoryRepository) Admin(email string) (service.AdminUser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byEmail[email]
	return u, ok
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint, Message: "duplicate key value violates unique constraint \"" + constraint + "\""}
}

var _ service.Repository = (*MemoryRepository)(nil)
