package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zenGate-Global/venuedesk/domains/bookings/be/service"
	"github.com/zenGate-Global/venuedesk/platform/go/persistence"
)

const bookingColumns = `id, tenant_id, event_name, starts_at, ends_at, guest_count, status, created_by, created_at`

// Postgres implements service.Repository. Row-level security on the caller's
// session does the tenant filtering, so no statement mentions tenant_id in its WHERE clause.
type Postgres struct{}

func NewPostgres() *Postgres { return &Postgres{} }

func (Postgres) List(ctx context.Context, tx persistence.Tx) ([]service.Booking, error) {
	rows, err := tx.Query(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY starts_at, event_name`)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	out := make([]service.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return out, nil
}

func (Postgres) Get(ctx context.Context, tx persistence.Tx, id uuid.UUID) (service.Booking, error) {
	b, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, persistence.ErrNoRows) {
			return service.Booking{}, service.ErrNotFound
		}
		return service.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

func (Postgres) Insert(ctx context.Context, tx persistence.Tx, b service.Booking) error {
	createdBy := uuid.NullUUID{}
	if b.CreatedBy != nil {
		createdBy = uuid.NullUUID{UUID: *b.CreatedBy, Valid: true}
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO bookings (`+bookingColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.TenantID, b.EventName, b.StartsAt, b.EndsAt, b.GuestCount, string(b.Status), createdBy, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (Postgres) UpdateStatus(ctx context.Context, tx persistence.Tx, id uuid.UUID, status service.Status) error {
	if _, err := tx.Exec(ctx, `UPDATE bookings SET status = $2 WHERE id = $1`, id, string(status)); err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	return nil
}

func scanBooking(row persistence.Row) (service.Booking, error) {
	var (
		b         service.Booking
		status    string
		createdBy uuid.NullUUID
	)
	if err := row.Scan(&b.ID, &b.TenantID, &b.EventName, &b.StartsAt, &b.EndsAt, &b.GuestCount, &status, &createdBy, &b.CreatedAt); err != nil {
		return service.Booking{}, err
	}
	b.Status = service.Status(status)
	if createdBy.Valid {
		id := createdBy.UUID
		b.CreatedBy = &id
	}
	return b, nil
}

var _ service.Repository = (*Postgres)(nil)
