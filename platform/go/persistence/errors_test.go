package persistence

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestUniqueViolationAcrossDrivers(t *testing.T) {
	pgxErr := fmt.Errorf("insert user: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	pqErr := &pq.Error{Code: "23505", Constraint: "users_email_key"}
	httpErr := &HTTPError{StatusCode: 400, Code: "23505", Constraint: "users_email_key"}

	for _, err := range []error{pgxErr, pqErr, httpErr} {
		require.True(t, IsUniqueViolation(err))
		require.Equal(t, "users_email_key", ConstraintName(err))
	}

	require.False(t, IsUniqueViolation(errors.New("plain")))
	require.True(t, IsRowSecurityViolation(&pgconn.PgError{Code: "42501"}))
}
