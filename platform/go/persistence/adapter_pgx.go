package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxAdapter serves sessions from a local pgxpool. Role elevation is
// session-level SET ROLE, so a failed RESET ROLE must never reach the pool again.
type pgxAdapter struct {
	pool *pgxpool.Pool
}

func (a *pgxAdapter) acquire(ctx context.Context) (conn, error) {
	c, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &pgxConn{
		conn:      c,
		releaseFn: c.Release,
		destroyFn: func(ctx context.Context) error {
			return c.Hijack().Close(ctx)
		},
	}, nil
}

func (a *pgxAdapter) ping(ctx context.Context) error { return a.pool.Ping(ctx) }

func (a *pgxAdapter) close() { ClosePool(a.pool) }

// pgxExecutor is the part of *pgxpool.Conn the adapter uses; pgxmock satisfies it in tests.
type pgxExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type pgxConn struct {
	conn      pgxExecutor
	releaseFn func()
	destroyFn func(ctx context.Context) error
}

func (c *pgxConn) begin(ctx context.Context) (txn, error) {
	tx, err := c.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return &pgxTx{tx: tx}, nil
}

func (c *pgxConn) elevate(ctx context.Context, role string) error {
	if role == "" {
		return errors.New("role is required")
	}
	_, err := c.conn.Exec(ctx, "SET ROLE "+pgx.Identifier{role}.Sanitize())
	return err
}

func (c *pgxConn) resetRole(ctx context.Context) error {
	_, err := c.conn.Exec(ctx, "RESET ROLE")
	return err
}

func (c *pgxConn) release() { c.releaseFn() }

func (c *pgxConn) destroy(ctx context.Context) error { return c.destroyFn(ctx) }

type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *pgxTx) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t *pgxTx) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return t.tx.QueryRow(ctx, sql, args...)
}

func (t *pgxTx) commit(ctx context.Context) error { return t.tx.Commit(ctx) }

func (t *pgxTx) rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }
