package persistence

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrNoRows is returned by Row.Scan when the query matched nothing. pgx.ErrNoRows
// wraps the same sentinel, so errors.Is works for every adapter.
var ErrNoRows = sql.ErrNoRows

const (
	sqlStateUniqueViolation       = "23505"
	sqlStateInsufficientPrivilege = "42501"
)

// SQLState extracts the five character SQLSTATE code from a driver error, or "".
func SQLState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}
	return ""
}

// ConstraintName reports the violated constraint when the driver exposes it.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Constraint
	}
	return ""
}

func IsUniqueViolation(err error) bool { return SQLState(err) == sqlStateUniqueViolation }

// IsRowSecurityViolation reports a write rejected by a row-level security WITH CHECK clause.
func IsRowSecurityViolation(err error) bool { return SQLState(err) == sqlStateInsufficientPrivilege }
