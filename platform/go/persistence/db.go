package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrElevationUnsupported is returned by adapters whose transport cannot switch roles mid-session.
	ErrElevationUnsupported = errors.New("role elevation not supported by backend")
	// ErrSessionReleased is returned when a session is used after Release.
	ErrSessionReleased = errors.New("session already released")
	// ErrTxClosed is returned when a transaction handle is used after commit or rollback.
	ErrTxClosed = errors.New("transaction already closed")
)

const cleanupTimeout = 5 * time.Second

// Tx is the handle every data-access call inside a transaction must use.
type Tx interface {
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// Rows is the cursor returned by Tx.Query. pgx.Rows satisfies it directly.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Row is the single-row result of Tx.QueryRow.
type Row interface {
	Scan(dest ...any) error
}

// adapter is implemented once per transport.
type adapter interface {
	acquire(ctx context.Context) (conn, error)
	ping(ctx context.Context) error
	close()
}

// conn is one exclusively checked-out connection (or its stateless equivalent).
type conn interface {
	begin(ctx context.Context) (txn, error)
	elevate(ctx context.Context, role string) error
	resetRole(ctx context.Context) error
	release()
	destroy(ctx context.Context) error
}

type txn interface {
	Tx
	commit(ctx context.Context) error
	rollback(ctx context.Context) error
}

// DB is the backend-neutral handle selected once at startup by Open.
type DB struct {
	kind    Kind
	adapter adapter
	logger  *zap.Logger
}

func newDB(kind Kind, a adapter, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{kind: kind, adapter: a, logger: logger.With(zap.String("db_backend", string(kind)))}
}

// Kind reports which adapter backs the handle.
func (db *DB) Kind() Kind { return db.kind }

// Ping verifies the backend is reachable.
func (db *DB) Ping(ctx context.Context) error { return db.adapter.ping(ctx) }

// Close releases every pooled resource; safe to call on nil.
func (db *DB) Close() {
	if db != nil && db.adapter != nil {
		db.adapter.close()
	}
}

// Acquire checks out a session. Callers must Release it exactly once.
func (db *DB) Acquire(ctx context.Context) (*Session, error) {
	c, err := db.adapter.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &Session{conn: c, logger: db.logger}, nil
}

// RunInTransaction acquires a session, runs fn inside one transaction and releases the session.
func (db *DB) RunInTransaction(ctx context.Context, fn func(tx Tx) error) error {
	sess, err := db.Acquire(ctx)
	if err != nil {
		return err
	}
	defer sess.Release()

	return sess.RunInTx(ctx, fn)
}

// InTransaction is the value-returning form of RunInTransaction.
func InTransaction[T any](ctx context.Context, db *DB, fn func(tx Tx) (T, error)) (T, error) {
	var out T
	err := db.RunInTransaction(ctx, func(tx Tx) error {
		v, err := fn(tx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Session is one connection checked out for exclusive use.
type Session struct {
	conn     conn
	logger   *zap.Logger
	released atomic.Bool
	elevated bool
	// broken marks connections whose server-side state is unknown; they are destroyed on release.
	broken bool
}

// RunInTx opens a transaction, runs fn and commits. Any error from fn is returned
// unchanged after rollback; a panic in fn rolls back before unwinding further.
// A context cancelled while fn runs forces a rollback even when fn succeeded.
func (s *Session) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	if s.released.Load() {
		return ErrSessionReleased
	}

	tx, err := s.conn.begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	finished := false
	defer func() {
		if finished {
			return
		}
		cctx, cancel := cleanupContext(ctx)
		defer cancel()
		if rbErr := tx.rollback(cctx); rbErr != nil {
			s.broken = true
			s.logger.Warn("rollback failed; connection will be discarded", zap.Error(rbErr))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	finished = true
	if err := tx.commit(ctx); err != nil {
		s.broken = true
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Elevate switches the session to role until ResetRole. Adapters without
// mid-session role switching return ErrElevationUnsupported and leave the session unchanged.
func (s *Session) Elevate(ctx context.Context, role string) error {
	if s.released.Load() {
		return ErrSessionReleased
	}
	if err := s.conn.elevate(ctx, role); err != nil {
		return err
	}
	s.elevated = true
	return nil
}

// ResetRole reverts a previous Elevate. A failed reset marks the session so that
// Release destroys the connection instead of pooling it.
func (s *Session) ResetRole(ctx context.Context) error {
	if !s.elevated {
		return nil
	}
	cctx, cancel := cleanupContext(ctx)
	defer cancel()
	if err := s.conn.resetRole(cctx); err != nil {
		s.broken = true
		return fmt.Errorf("reset role: %w", err)
	}
	s.elevated = false
	return nil
}

// Release hands the connection back exactly once. Elevated or broken
// connections are destroyed rather than returned to the pool.
func (s *Session) Release() {
	if !s.released.CompareAndSwap(false, true) {
		s.logger.Error("session released more than once")
		return
	}

	if !s.broken && !s.elevated {
		s.conn.release()
		return
	}

	s.logger.Warn("discarding connection", zap.Bool("elevated", s.elevated), zap.Bool("broken", s.broken))
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := s.conn.destroy(ctx); err != nil {
		s.logger.Warn("destroy connection", zap.Error(err))
	}
}

func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}
