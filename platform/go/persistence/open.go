package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Open picks the adapter for cfg once, verifies connectivity and returns the uniform handle.
// A missing connection string yields ErrNoConnectionConfig; callers treat it as fatal at startup.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	kind, err := cfg.resolveKind()
	if err != nil {
		return nil, err
	}

	var a adapter
	switch kind {
	case KindPgx:
		pc := cfg.Pool
		pc.ConnString = cfg.ConnString
		pool, err := NewPool(ctx, pc)
		if err != nil {
			return nil, err
		}
		a = &pgxAdapter{pool: pool}
	case KindPooler:
		pa, err := newPoolerAdapter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a = pa
	case KindHTTP:
		ha, err := newHTTPAdapter(cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := ha.ping(ctx); err != nil {
			ha.close()
			return nil, fmt.Errorf("ping http endpoint: %w", err)
		}
		a = ha
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, kind)
	}

	db := newDB(kind, a, logger)
	db.logger.Info("database backend selected")
	return db, nil
}
