package persistence

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net/url"

	"github.com/lib/pq"
)

// poolerAdapter talks to a transaction-mode pooler (PgBouncer and friends)
// through database/sql and lib/pq. The pooler may hand every transaction a
// different server connection, so nothing may outlive a transaction: role
// elevation becomes SET LOCAL ROLE issued at the start of the next transaction.
type poolerAdapter struct {
	db *sql.DB
}

func newPoolerAdapter(ctx context.Context, cfg Config) (*poolerAdapter, error) {
	dsn, err := stripPoolerParams(cfg.ConnString)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open pooler connection: %w", err)
	}

	if cfg.Pool.MaxConns > 0 {
		db.SetMaxOpenConns(int(cfg.Pool.MaxConns))
	}
	if cfg.Pool.MinConns > 0 {
		db.SetMaxIdleConns(int(cfg.Pool.MinConns))
	}
	if cfg.Pool.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.Pool.MaxConnLifetime)
	}
	if cfg.Pool.MaxConnIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.Pool.MaxConnIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping pooler: %w", err)
	}
	return &poolerAdapter{db: db}, nil
}

// stripPoolerParams drops query parameters understood by pooler-aware clients
// that lib/pq would otherwise forward to the server as runtime settings.
func stripPoolerParams(connString string) (string, error) {
	if isKeywordDSN(connString) {
		return connString, nil
	}
	u, err := url.Parse(connString)
	if err != nil {
		return "", fmt.Errorf("parse connection string: %w", err)
	}
	q := u.Query()
	q.Del("pgbouncer")
	q.Del("connection_limit")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (a *poolerAdapter) acquire(ctx context.Context) (conn, error) {
	c, err := a.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &poolerConn{conn: c}, nil
}

func (a *poolerAdapter) ping(ctx context.Context) error { return a.db.PingContext(ctx) }

func (a *poolerAdapter) close() { _ = a.db.Close() }

type poolerConn struct {
	conn *sql.Conn
	role string
}

func (c *poolerConn) begin(ctx context.Context) (txn, error) {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	if c.role != "" {
		if _, err := tx.ExecContext(ctx, "SET LOCAL ROLE "+pq.QuoteIdentifier(c.role)); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("set local role: %w", err)
		}
	}
	return &poolerTx{tx: tx}, nil
}

func (c *poolerConn) elevate(_ context.Context, role string) error {
	if role == "" {
		return errors.New("role is required")
	}
	c.role = role
	return nil
}

// resetRole only forgets the pending role: SET LOCAL ROLE already ended with its transaction.
func (c *poolerConn) resetRole(context.Context) error {
	c.role = ""
	return nil
}

func (c *poolerConn) release() { _ = c.conn.Close() }

// destroy makes database/sql drop the underlying driver connection instead of pooling it.
func (c *poolerConn) destroy(context.Context) error {
	err := c.conn.Raw(func(any) error { return driver.ErrBadConn })
	_ = c.conn.Close()
	if errors.Is(err, driver.ErrBadConn) {
		return nil
	}
	return err
}

type poolerTx struct {
	tx *sql.Tx
}

func (t *poolerTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, pqArgs(args)...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (t *poolerTx) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, pqArgs(args)...)
	if err != nil {
		return nil, err
	}
	return &poolerRows{rows: rows}, nil
}

func (t *poolerTx) QueryRow(ctx context.Context, query string, args ...any) Row {
	return poolerRow{row: t.tx.QueryRowContext(ctx, query, pqArgs(args)...)}
}

func (t *poolerTx) commit(context.Context) error { return t.tx.Commit() }

func (t *poolerTx) rollback(context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

type poolerRows struct {
	rows *sql.Rows
}

func (r *poolerRows) Next() bool { return r.rows.Next() }

func (r *poolerRows) Scan(dest ...any) error { return r.rows.Scan(pqDest(dest)...) }

func (r *poolerRows) Err() error { return r.rows.Err() }

func (r *poolerRows) Close() { _ = r.rows.Close() }

type poolerRow struct {
	row *sql.Row
}

func (r poolerRow) Scan(dest ...any) error { return r.row.Scan(pqDest(dest)...) }

// pqArgs and pqDest let repositories pass and scan text[] columns as []string
// regardless of adapter; pgx does this natively, lib/pq needs pq.Array.
func pqArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		if v, ok := a.([]string); ok {
			out[i] = pq.Array(v)
			continue
		}
		out[i] = a
	}
	return out
}

func pqDest(dest []any) []any {
	out := make([]any, len(dest))
	for i, d := range dest {
		if v, ok := d.(*[]string); ok {
			out[i] = pq.Array(v)
			continue
		}
		out[i] = d
	}
	return out
}
