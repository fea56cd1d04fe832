package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectKind(t *testing.T) {
	testCases := []struct {
		name string
		conn string
		want Kind
	}{
		{"local postgres", "postgres://app:pw@localhost:5432/venues?sslmode=disable", KindPgx},
		{"postgresql scheme", "postgresql://app@db.internal/venues", KindPgx},
		{"neon pooler host", "postgres://app:pw@ep-cool-bird-123456-pooler.eu-central-1.aws.neon.tech/venues", KindPooler},
		{"supabase pooler port", "postgres://app:pw@aws-0-eu.pooler.supabase.com:6543/postgres", KindPooler},
		{"pgbouncer flag", "postgres://app:pw@bouncer:5432/venues?pgbouncer=true", KindPooler},
		{"neon direct host", "postgres://app:pw@ep-cool-bird-123456.eu-central-1.aws.neon.tech/venues", KindHTTP},
		{"explicit https endpoint", "https://sql.example.com/sql", KindHTTP},
		{"keyword dsn", "host=localhost port=5432 user=app dbname=venues sslmode=disable", KindPgx},
		{"keyword dsn on pooler port", "host=aws-0-eu.pooler.supabase.com port=6543 user=app dbname=postgres", KindPooler},
		{"keyword dsn on neon pooler host", "host=ep-cool-bird-123456-pooler.eu-central-1.aws.neon.tech user=app", KindPooler},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DetectKind(tc.conn)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestDetectKindErrors(t *testing.T) {
	_, err := DetectKind("  ")
	require.ErrorIs(t, err, ErrNoConnectionConfig)

	_, err = DetectKind("mysql://root@localhost/db")
	require.ErrorIs(t, err, ErrUnknownDriver)
}

func TestExplicitDriverOverridesDetection(t *testing.T) {
	kind, err := Config{ConnString: "postgres://localhost/db", Driver: "POOLER"}.resolveKind()
	require.NoError(t, err)
	require.Equal(t, KindPooler, kind)

	_, err = Config{ConnString: "postgres://localhost/db", Driver: "sqlite"}.resolveKind()
	require.ErrorIs(t, err, ErrUnknownDriver)
}

func TestOpenWithoutConnectionStringFails(t *testing.T) {
	db, err := Open(context.Background(), Config{}, nil)
	require.ErrorIs(t, err, ErrNoConnectionConfig)
	require.Nil(t, db)
}

func TestHTTPEndpointDerivation(t *testing.T) {
	ep, err := Config{ConnString: "postgres://app:pw@ep-x.eu-central-1.aws.neon.tech/venues"}.httpEndpoint()
	require.NoError(t, err)
	require.Equal(t, "https://ep-x.eu-central-1.aws.neon.tech/sql", ep)

	ep, err = Config{ConnString: "postgres://h/db", HTTPEndpoint: "http://127.0.0.1:9999/sql"}.httpEndpoint()
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:9999/sql", ep)
}

func TestStripPoolerParams(t *testing.T) {
	dsn, err := stripPoolerParams("postgres://app:pw@bouncer:6543/venues?pgbouncer=true&sslmode=require")
	require.NoError(t, err)
	require.Equal(t, "postgres://app:pw@bouncer:6543/venues?sslmode=require", dsn)

	dsn, err = stripPoolerParams("host=bouncer port=6543 user=app")
	require.NoError(t, err)
	require.Equal(t, "host=bouncer port=6543 user=app", dsn)
}
