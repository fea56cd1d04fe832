package persistence

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

var errRowCountUnavailable = errors.New("row count unavailable")

// stubDriver answers every Exec with a result whose row count cannot be read.
type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) { return stubConn{}, nil }

type stubConn struct{}

func (stubConn) Prepare(string) (driver.Stmt, error) { return stubStmt{}, nil }
func (stubConn) Close() error                        { return nil }
func (stubConn) Begin() (driver.Tx, error)           { return stubTx{}, nil }

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

type stubStmt struct{}

func (stubStmt) Close() error  { return nil }
func (stubStmt) NumInput() int { return -1 }
func (stubStmt) Exec([]driver.Value) (driver.Result, error) {
	return stubResult{}, nil
}
func (stubStmt) Query([]driver.Value) (driver.Rows, error) { return nil, io.EOF }

type stubResult struct{}

func (stubResult) LastInsertId() (int64, error) { return 0, nil }
func (stubResult) RowsAffected() (int64, error) { return 0, errRowCountUnavailable }

func init() {
	sql.Register("venuedesk-stub", stubDriver{})
}

func TestPoolerExecReportsRowCountFailure(t *testing.T) {
	db, err := sql.Open("venuedesk-stub", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	defer tx.Rollback() // nolint:errcheck

	n, err := (&poolerTx{tx: tx}).Exec(context.Background(), "UPDATE bookings SET status = $1", "cancelled")
	require.ErrorIs(t, err, errRowCountUnavailable)
	require.Zero(t, n)
}
