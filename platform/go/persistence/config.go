package persistence

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Kind names one of the interchangeable database adapters.
type Kind string

const (
	// KindPgx is a local pooled TCP connection managed by pgxpool.
	KindPgx Kind = "pgx"
	// KindPooler is a remote pooled connection behind a transaction-mode pooler (PgBouncer, Neon pooler, Supabase).
	KindPooler Kind = "pooler"
	// KindHTTP is a stateless serverless endpoint that accepts SQL batches over HTTP.
	KindHTTP Kind = "http"
	// KindAuto defers the choice to DetectKind.
	KindAuto Kind = "auto"
)

var (
	ErrNoConnectionConfig = errors.New("database connection string is required")
	ErrUnknownDriver      = errors.New("unknown database driver")
)

// Config selects and tunes the database adapter. Values map 1:1 with env configuration.
type Config struct {
	ConnString   string        // postgres:// URL, libpq key=value DSN, or https:// for an explicit HTTP endpoint
	Driver       Kind          // auto | pgx | pooler | http
	HTTPEndpoint string        // optional override of the derived https://<host>/sql endpoint
	HTTPTimeout  time.Duration // per request timeout for the HTTP adapter (0 means 30s)
	Pool         PoolConfig
}

// DetectKind inspects a connection string and picks the adapter that matches its transport.
func DetectKind(connString string) (Kind, error) {
	connString = strings.TrimSpace(connString)
	if connString == "" {
		return "", ErrNoConnectionConfig
	}
	if isKeywordDSN(connString) {
		return detectKeywordKind(connString), nil
	}

	u, err := url.Parse(connString)
	if err != nil {
		return "", fmt.Errorf("parse connection string: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return KindHTTP, nil
	case "postgres", "postgresql":
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrUnknownDriver, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, "-pooler.") || u.Port() == "6543" || strings.EqualFold(u.Query().Get("pgbouncer"), "true") {
		return KindPooler, nil
	}
	if strings.HasSuffix(host, ".neon.tech") {
		return KindHTTP, nil
	}
	return KindPgx, nil
}

// isKeywordDSN reports a libpq keyword/value string such as "host=db user=app dbname=venues".
func isKeywordDSN(connString string) bool {
	return !strings.Contains(connString, "://") && strings.Contains(connString, "=")
}

// detectKeywordKind applies the URL rules to the host and port keywords.
// The HTTP backend needs a URL, so keyword DSNs never select it.
func detectKeywordKind(connString string) Kind {
	for _, field := range strings.Fields(connString) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		value = strings.ToLower(strings.Trim(value, "'"))
		switch strings.ToLower(key) {
		case "host":
			if strings.Contains(value, "-pooler.") {
				return KindPooler
			}
		case "port":
			if value == "6543" {
				return KindPooler
			}
		}
	}
	return KindPgx
}

func (c Config) resolveKind() (Kind, error) {
	if strings.TrimSpace(c.ConnString) == "" {
		return "", ErrNoConnectionConfig
	}
	switch Kind(strings.ToLower(string(c.Driver))) {
	case "", KindAuto:
		return DetectKind(c.ConnString)
	case KindPgx:
		return KindPgx, nil
	case KindPooler:
		return KindPooler, nil
	case KindHTTP:
		return KindHTTP, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDriver, c.Driver)
	}
}

// httpEndpoint derives the SQL-over-HTTP endpoint from the connection string host.
func (c Config) httpEndpoint() (string, error) {
	if c.HTTPEndpoint != "" {
		return c.HTTPEndpoint, nil
	}
	u, err := url.Parse(c.ConnString)
	if err != nil {
		return "", fmt.Errorf("parse connection string: %w", err)
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		return c.ConnString, nil
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("connection string has no host")
	}
	return "https://" + host + "/sql", nil
}
