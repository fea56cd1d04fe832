// Package privileged runs cross-tenant work (tenant provisioning, platform
// listings) inside one transaction on a connection temporarily switched to a
// row-level-security bypassing role.
//
// The package is internal to the tenants domain: other domains cannot import it,
// so ordinary request handlers have no path to elevated access.
package privileged

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zenGate-Global/venuedesk/platform/go/persistence"
	"github.com/zenGate-Global/venuedesk/platform/go/requesttrace"
)

// ErrReasonRequired is returned when Do is called without an audit reason.
var ErrReasonRequired = errors.New("privileged operation requires a reason")

// Session is the subset of *persistence.Session the runner drives.
type Session interface {
	Elevate(ctx context.Context, role string) error
	ResetRole(ctx context.Context) error
	RunInTx(ctx context.Context, fn func(tx persistence.Tx) error) error
	Release()
}

type sessionSource interface {
	acquire(ctx context.Context) (Session, error)
}

type dbSource struct{ db *persistence.DB }

func (s dbSource) acquire(ctx context.Context) (Session, error) {
	sess, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

type Config struct {
	DB *persistence.DB
	// Role is the BYPASSRLS role to switch to. Empty disables elevation.
	Role   string
	Logger *zap.Logger
}

type Runner struct {
	sessions sessionSource
	role     string
	logger   *zap.Logger
}

func New(cfg Config) *Runner {
	if cfg.DB == nil {
		panic("privileged.New: db is required")
	}
	return newRunner(dbSource{db: cfg.DB}, cfg.Role, cfg.Logger)
}

func newRunner(src sessionSource, role string, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{sessions: src, role: strings.TrimSpace(role), logger: logger.Named("privileged")}
}

// Do runs fn in a single transaction with elevated rights and records who asked
// for it and why. fn's error is returned unchanged. The role is reset and the
// connection released on every exit path; a connection whose reset failed is
// discarded instead of being pooled.
func (r *Runner) Do(ctx context.Context, reason string, fn func(tx persistence.Tx) error) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}

	audit := requesttrace.FromContextOrAnonymous(ctx)
	logger := r.logger.With(
		zap.String("reason", reason),
		zap.String("actor", audit.Actor()),
		zap.String("actor_tenant_id", audit.Tenant()),
		zap.String("request_id", audit.RequestID),
		zap.String("db_role", r.role),
	)
	logger.Info("privileged operation requested")

	sess, err := r.sessions.acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer func() {
		if err := sess.ResetRole(ctx); err != nil {
			logger.Warn("privileged role reset failed; connection will be discarded", zap.Error(err))
		}
		sess.Release()
	}()

	if err := r.elevate(ctx, sess, logger); err != nil {
		return err
	}

	start := time.Now()
	if err := sess.RunInTx(ctx, fn); err != nil {
		logger.Warn("privileged operation rolled back", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return err
	}
	logger.Info("privileged operation committed", zap.Duration("duration", time.Since(start)))
	return nil
}

func (r *Runner) elevate(ctx context.Context, sess Session, logger *zap.Logger) error {
	if r.role == "" {
		logger.Warn("no privileged role configured; running with connection rights")
		return nil
	}

	err := sess.Elevate(ctx, r.role)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrElevationUnsupported):
		logger.Warn("backend cannot switch roles; running with connection rights", zap.Error(err))
		return nil
	default:
		return fmt.Errorf("elevate to %s: %w", r.role, err)
	}
}

// Run is the value-returning form of Runner.Do.
func Run[T any](ctx context.Context, r *Runner, reason string, fn func(tx persistence.Tx) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, reason, func(tx persistence.Tx) error {
		v, err := fn(tx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
