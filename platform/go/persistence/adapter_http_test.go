package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recordedBatch struct {
	Queries  []httpQuery
	ReadOnly string
	ConnStr  string
}

// fakeSQLEndpoint mimics the /sql batch API: it records each batch and answers
// with the handler's results (or an error body).
type fakeSQLEndpoint struct {
	mu      sync.Mutex
	batches []recordedBatch
	respond func(b recordedBatch) (int, any)
}

func (f *fakeSQLEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req httpBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b := recordedBatch{Queries: req.Queries, ReadOnly: r.Header.Get("Neon-Batch-Read-Only"), ConnStr: r.Header.Get("Neon-Connection-String")}

	f.mu.Lock()
	f.batches = append(f.batches, b)
	f.mu.Unlock()

	status, body := http.StatusOK, any(nil)
	if f.respond != nil {
		status, body = f.respond(b)
	}
	if body == nil {
		results := make([]httpResult, len(b.Queries))
		for i := range results {
			results[i] = httpResult{Command: "SELECT", Rows: [][]*string{}}
		}
		body = httpBatchResponse{Results: results}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeSQLEndpoint) Batches() []recordedBatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedBatch(nil), f.batches...)
}

func newHTTPTestDB(t *testing.T, f *fakeSQLEndpoint) *DB {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	a, err := newHTTPAdapter(Config{
		ConnString:   "postgres://app:pw@ep-x.eu-central-1.aws.neon.tech/venues",
		HTTPEndpoint: srv.URL + "/sql",
		HTTPTimeout:  5 * time.Second,
	}, nil)
	require.NoError(t, err)
	return newDB(KindHTTP, a, nil)
}

func strp(s string) *string { return &s }

func TestHTTPTenantSessionPrependsVariablesToEveryBatch(t *testing.T) {
	endpoint := &fakeSQLEndpoint{
		respond: func(b recordedBatch) (int, any) {
			if b.ReadOnly != "true" {
				return http.StatusOK, nil
			}
			results := make([]httpResult, len(b.Queries))
			results[len(results)-1] = httpResult{
				Command: "SELECT",
				Fields:  []httpField{{Name: "id"}, {Name: "guest_count"}},
				Rows:    [][]*string{{strp("9b2f0c1e-8f55-4c4b-9a4e-3b1d8f6f2a10"), strp("120")}},
			}
			return http.StatusOK, httpBatchResponse{Results: results}
		},
	}
	db := newHTTPTestDB(t, endpoint)
	tdb := NewTenantDB(TenantDBConfig{DB: db})

	var (
		id     uuid.UUID
		guests int
	)
	err := tdb.WithTenantSession(context.Background(), "tenant-a", "tenant_admin", func(tx Tx) error {
		if err := tx.QueryRow(context.Background(), "SELECT id, guest_count FROM bookings LIMIT 1").Scan(&id, &guests); err != nil {
			return err
		}
		_, err := tx.Exec(context.Background(), "UPDATE bookings SET guest_count = $1 WHERE id = $2", guests+1, id)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, "9b2f0c1e-8f55-4c4b-9a4e-3b1d8f6f2a10", id.String())
	require.Equal(t, 120, guests)

	batches := endpoint.Batches()
	require.Len(t, batches, 2)

	for _, b := range batches {
		require.Equal(t, "postgres://app:pw@ep-x.eu-central-1.aws.neon.tech/venues", b.ConnStr)
		require.GreaterOrEqual(t, len(b.Queries), 3)
		require.Equal(t, setLocalConfigSQL, b.Queries[0].Query)
		require.Equal(t, []any{SessionTenantIDVar, "tenant-a"}, b.Queries[0].Params)
		require.Equal(t, []any{SessionUserRoleVar, "tenant_admin"}, b.Queries[1].Params)
	}

	require.Equal(t, "true", batches[0].ReadOnly)
	require.Equal(t, "false", batches[1].ReadOnly)
	require.Equal(t, "UPDATE bookings SET guest_count = $1 WHERE id = $2", batches[1].Queries[2].Query)
	require.Equal(t, []any{"121", "9b2f0c1e-8f55-4c4b-9a4e-3b1d8f6f2a10"}, batches[1].Queries[2].Params)
}

func TestHTTPRollbackSendsNothing(t *testing.T) {
	endpoint := &fakeSQLEndpoint{}
	db := newHTTPTestDB(t, endpoint)
	tdb := NewTenantDB(TenantDBConfig{DB: db})
	boom := errors.New("boom")

	err := tdb.WithTenantSession(context.Background(), "tenant-a", "staff", func(tx Tx) error {
		if _, err := tx.Exec(context.Background(), "INSERT INTO bookings (id) VALUES ($1)", uuid.New()); err != nil {
			return err
		}
		return boom
	})
	require.True(t, err == boom)
	require.Empty(t, endpoint.Batches())
}

func TestHTTPReadAfterWriteFailsLoudly(t *testing.T) {
	endpoint := &fakeSQLEndpoint{}
	db := newHTTPTestDB(t, endpoint)

	err := db.RunInTransaction(context.Background(), func(tx Tx) error {
		if _, err := tx.Exec(context.Background(), "INSERT INTO tenants (id) VALUES ($1)", uuid.New()); err != nil {
			return err
		}
		_, err := tx.Query(context.Background(), "SELECT count(*) FROM tenants")
		return err
	})
	require.ErrorIs(t, err, ErrReadAfterWrite)
	require.Empty(t, endpoint.Batches())
}

func TestHTTPCommitErrorCarriesSQLState(t *testing.T) {
	endpoint := &fakeSQLEndpoint{
		respond: func(b recordedBatch) (int, any) {
			return http.StatusBadRequest, httpErrorBody{
				Message:    `duplicate key value violates unique constraint "users_email_key"`,
				Code:       "23505",
				Constraint: "users_email_key",
			}
		},
	}
	db := newHTTPTestDB(t, endpoint)

	err := db.RunInTransaction(context.Background(), func(tx Tx) error {
		_, err := tx.Exec(context.Background(), "INSERT INTO users (email) VALUES ($1)", "admin@acme.test")
		return err
	})
	require.Error(t, err)
	require.True(t, IsUniqueViolation(err))
	require.Equal(t, "users_email_key", ConstraintName(err))
	require.Len(t, endpoint.Batches(), 1)
}

func TestHTTPElevationUnsupported(t *testing.T) {
	db := newHTTPTestDB(t, &fakeSQLEndpoint{})

	sess, err := db.Acquire(context.Background())
	require.NoError(t, err)
	defer sess.Release()

	require.ErrorIs(t, sess.Elevate(context.Background(), "venue_platform_admin"), ErrElevationUnsupported)
	require.NoError(t, sess.ResetRole(context.Background()))
}

func TestHTTPQueryRowNoRows(t *testing.T) {
	db := newHTTPTestDB(t, &fakeSQLEndpoint{})

	err := db.RunInTransaction(context.Background(), func(tx Tx) error {
		var name string
		return tx.QueryRow(context.Background(), "SELECT name FROM tenants WHERE id = $1", uuid.New()).Scan(&name)
	})
	require.ErrorIs(t, err, ErrNoRows)
}

func TestHTTPSessionVariableAfterWriteKeepsProgramOrder(t *testing.T) {
	endpoint := &fakeSQLEndpoint{}
	db := newHTTPTestDB(t, endpoint)
	ctx := context.Background()

	err := db.RunInTransaction(ctx, func(tx Tx) error {
		if err := SetSessionVariable(ctx, tx, SessionTenantIDVar, "tenant-a"); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "INSERT INTO bookings (event_name) VALUES ($1)", "first"); err != nil {
			return err
		}
		if err := SetSessionVariable(ctx, tx, SessionTenantIDVar, "tenant-b"); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, "INSERT INTO bookings (event_name) VALUES ($1)", "second")
		return err
	})
	require.NoError(t, err)

	batches := endpoint.Batches()
	require.Len(t, batches, 1)
	q := batches[0].Queries
	require.Len(t, q, 4)
	require.Equal(t, []any{SessionTenantIDVar, "tenant-a"}, q[0].Params)
	require.Equal(t, []any{"first"}, q[1].Params)
	require.Equal(t, setLocalConfigSQL, q[2].Query)
	require.Equal(t, []any{SessionTenantIDVar, "tenant-b"}, q[2].Params)
	require.Equal(t, []any{"second"}, q[3].Params)
}

func TestHTTPQueryRowScansFirstRow(t *testing.T) {
	endpoint := &fakeSQLEndpoint{
		respond: func(b recordedBatch) (int, any) {
			return http.StatusOK, httpBatchResponse{Results: []httpResult{{
				Command: "SELECT",
				Fields:  []httpField{{Name: "name"}},
				Rows:    [][]*string{{strp("Harbour Hall")}, {strp("Garden Loft")}},
			}}}
		},
	}
	db := newHTTPTestDB(t, endpoint)

	var name string
	err := db.RunInTransaction(context.Background(), func(tx Tx) error {
		return tx.QueryRow(context.Background(), "SELECT name FROM tenants ORDER BY name DESC").Scan(&name)
	})
	require.NoError(t, err)
	require.Equal(t, "Harbour Hall", name)
}
