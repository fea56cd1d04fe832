package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeConn records the lifecycle calls made by Session and RunInTx.
type fakeConn struct {
	mu          sync.Mutex
	events      []string
	stmts       []string
	commitErr   error
	rollbackErr error
	resetErr    error
	elevateErr  error
	execErr     error
}

func (c *fakeConn) record(ev string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *fakeConn) Events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

func (c *fakeConn) begin(context.Context) (txn, error) {
	c.record("begin")
	return &fakeTxn{c: c}, nil
}

func (c *fakeConn) elevate(_ context.Context, role string) error {
	c.record("elevate:" + role)
	return c.elevateErr
}

func (c *fakeConn) resetRole(context.Context) error {
	c.record("reset")
	return c.resetErr
}

func (c *fakeConn) release() { c.record("release") }

func (c *fakeConn) destroy(context.Context) error {
	c.record("destroy")
	return nil
}

type fakeTxn struct{ c *fakeConn }

func (t *fakeTxn) Exec(_ context.Context, sql string, args ...any) (int64, error) {
	t.c.mu.Lock()
	t.c.stmts = append(t.c.stmts, sql)
	t.c.mu.Unlock()
	return 1, t.c.execErr
}

func (t *fakeTxn) Query(context.Context, string, ...any) (Rows, error) {
	return nil, errors.New("not implemented")
}

func (t *fakeTxn) QueryRow(context.Context, string, ...any) Row { return nil }

func (t *fakeTxn) commit(context.Context) error {
	t.c.record("commit")
	return t.c.commitErr
}

func (t *fakeTxn) rollback(context.Context) error {
	t.c.record("rollback")
	return t.c.rollbackErr
}

// fakeAdapter hands out the same connection on every acquire and counts checkouts.
type fakeAdapter struct {
	c        conn
	acquires int
}

func (a *fakeAdapter) acquire(context.Context) (conn, error) {
	a.acquires++
	return a.c, nil
}

func (a *fakeAdapter) ping(context.Context) error { return nil }

func (a *fakeAdapter) close() {}

func newFakeDB(c conn, logger *zap.Logger) (*DB, *fakeAdapter) {
	a := &fakeAdapter{c: c}
	return newDB(KindPgx, a, logger), a
}

func TestRunInTransactionCommitsAndReleases(t *testing.T) {
	fc := &fakeConn{}
	db, _ := newFakeDB(fc, nil)

	err := db.RunInTransaction(context.Background(), func(tx Tx) error {
		_, err := tx.Exec(context.Background(), "INSERT INTO bookings DEFAULT VALUES")
		return err
	})
	require.NoError(t, err)
	require.Equal(t, []string{"begin", "commit", "release"}, fc.Events())
}

func TestRunInTransactionReturnsCallbackErrorUnchanged(t *testing.T) {
	fc := &fakeConn{}
	db, _ := newFakeDB(fc, nil)
	boom := errors.New("boom")

	err := db.RunInTransaction(context.Background(), func(tx Tx) error { return boom })
	require.True(t, err == boom, "callback error must not be wrapped")
	require.Equal(t, []string{"begin", "rollback", "release"}, fc.Events())
}

func TestRunInTransactionRollsBackOnPanic(t *testing.T) {
	fc := &fakeConn{}
	db, _ := newFakeDB(fc, nil)

	require.PanicsWithValue(t, "kaboom", func() {
		_ = db.RunInTransaction(context.Background(), func(tx Tx) error { panic("kaboom") })
	})
	require.Equal(t, []string{"begin", "rollback", "release"}, fc.Events())
}

func TestRunInTransactionRollsBackWhenContextCancelled(t *testing.T) {
	fc := &fakeConn{}
	db, _ := newFakeDB(fc, nil)
	ctx, cancel := context.WithCancel(context.Background())

	err := db.RunInTransaction(ctx, func(tx Tx) error {
		cancel()
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []string{"begin", "rollback", "release"}, fc.Events())
}

func TestInTransactionReturnsValue(t *testing.T) {
	db, _ := newFakeDB(&fakeConn{}, nil)

	got, err := InTransaction(context.Background(), db, func(tx Tx) (int, error) { return 42, nil })
	require.NoError(t, err)
	require.Equal(t, 42, got)
}

func TestFailedRollbackDiscardsConnection(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	fc := &fakeConn{rollbackErr: errors.New("conn reset")}
	db, _ := newFakeDB(fc, zap.New(core))

	_ = db.RunInTransaction(context.Background(), func(tx Tx) error { return errors.New("fail") })
	require.Equal(t, []string{"begin", "rollback", "destroy"}, fc.Events())
	require.Equal(t, 1, logs.FilterMessage("rollback failed; connection will be discarded").Len())
}

func TestFailedCommitDiscardsConnection(t *testing.T) {
	fc := &fakeConn{commitErr: errors.New("serialization failure")}
	db, _ := newFakeDB(fc, nil)

	err := db.RunInTransaction(context.Background(), func(tx Tx) error { return nil })
	require.ErrorContains(t, err, "commit tx")
	require.Equal(t, []string{"begin", "commit", "destroy"}, fc.Events())
}

func TestSessionReleaseIsIdempotent(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	fc := &fakeConn{}
	db, _ := newFakeDB(fc, zap.New(core))

	sess, err := db.Acquire(context.Background())
	require.NoError(t, err)
	sess.Release()
	sess.Release()

	require.Equal(t, []string{"release"}, fc.Events())
	require.Equal(t, 1, logs.FilterMessage("session released more than once").Len())
	require.ErrorIs(t, sess.RunInTx(context.Background(), func(tx Tx) error { return nil }), ErrSessionReleased)
}

func TestSessionResetFailureDestroysConnection(t *testing.T) {
	fc := &fakeConn{resetErr: errors.New("broken pipe")}
	db, _ := newFakeDB(fc, nil)

	sess, err := db.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, sess.Elevate(context.Background(), "venue_platform_admin"))
	require.Error(t, sess.ResetRole(context.Background()))
	sess.Release()

	require.Equal(t, []string{"elevate:venue_platform_admin", "reset", "destroy"}, fc.Events())
}

func TestSessionStillElevatedIsNeverPooled(t *testing.T) {
	fc := &fakeConn{}
	db, _ := newFakeDB(fc, nil)

	sess, err := db.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, sess.Elevate(context.Background(), "venue_platform_admin"))
	sess.Release()

	require.Equal(t, []string{"elevate:venue_platform_admin", "destroy"}, fc.Events())
}

func TestSessionResetWithoutElevationIsNoop(t *testing.T) {
	fc := &fakeConn{}
	db, _ := newFakeDB(fc, nil)

	sess, err := db.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, sess.ResetRole(context.Background()))
	sess.Release()

	require.Equal(t, []string{"release"}, fc.Events())
}
