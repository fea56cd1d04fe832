package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrReadAfterWrite is returned when a transaction on the HTTP adapter reads
// after buffering a write. Buffered writes are only sent at commit, so the read
// could not observe them; failing is preferred over splitting the transaction.
var ErrReadAfterWrite = errors.New("http backend cannot read after a buffered write in the same transaction")

const defaultHTTPTimeout = 30 * time.Second

// HTTPError is a statement failure reported by the SQL-over-HTTP endpoint.
type HTTPError struct {
	StatusCode int
	Code       string // SQLSTATE
	Message    string
	Constraint string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http sql: %s (SQLSTATE %s)", e.Message, e.Code)
	}
	return fmt.Sprintf("http sql: status %d: %s", e.StatusCode, e.Message)
}

// httpAdapter targets a serverless endpoint (Neon's /sql API) where every
// request runs as its own server-side transaction. A transaction is emulated
// as one batch request, and the session variable assignments are replayed at
// the head of every batch so they always share a transaction with the data statements.
type httpAdapter struct {
	endpoint   string
	connString string
	client     *http.Client
	logger     *zap.Logger
}

func newHTTPAdapter(cfg Config, logger *zap.Logger) (*httpAdapter, error) {
	endpoint, err := cfg.httpEndpoint()
	if err != nil {
		return nil, err
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	connString := cfg.ConnString
	if strings.HasPrefix(connString, "http://") || strings.HasPrefix(connString, "https://") {
		connString = ""
	}
	return &httpAdapter{
		endpoint:   endpoint,
		connString: connString,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

func (a *httpAdapter) acquire(context.Context) (conn, error) { return &httpConn{a: a}, nil }

func (a *httpAdapter) ping(ctx context.Context) error {
	_, err := a.send(ctx, []httpQuery{{Query: "SELECT 1", Params: []any{}}}, true)
	return err
}

func (a *httpAdapter) close() { a.client.CloseIdleConnections() }

type httpQuery struct {
	Query  string `json:"query"`
	Params []any  `json:"params"`
}

type httpBatchRequest struct {
	Queries []httpQuery `json:"queries"`
}

type httpField struct {
	Name string `json:"name"`
}

type httpResult struct {
	Command  string      `json:"command"`
	RowCount *int64      `json:"rowCount"`
	Fields   []httpField `json:"fields"`
	Rows     [][]*string `json:"rows"`
}

type httpBatchResponse struct {
	Results []httpResult `json:"results"`
}

type httpErrorBody struct {
	Message    string `json:"message"`
	Code       string `json:"code"`
	Constraint string `json:"constraint"`
}

// send posts one batch. The endpoint runs the batch in a single transaction and
// rolls all of it back when any statement fails.
func (a *httpAdapter) send(ctx context.Context, queries []httpQuery, readOnly bool) ([]httpResult, error) {
	body, err := json.Marshal(httpBatchRequest{Queries: queries})
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	a.logger.Debug("http sql batch", zap.Int("statements", len(queries)), zap.Bool("read_only", readOnly))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Neon-Raw-Text-Output", "true")
	req.Header.Set("Neon-Array-Mode", "true")
	req.Header.Set("Neon-Batch-Isolation-Level", "ReadCommitted")
	req.Header.Set("Neon-Batch-Read-Only", strconv.FormatBool(readOnly))
	if a.connString != "" {
		req.Header.Set("Neon-Connection-String", a.connString)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http sql request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var eb httpErrorBody
		if jsonErr := json.Unmarshal(payload, &eb); jsonErr != nil || eb.Message == "" {
			eb.Message = strings.TrimSpace(string(payload))
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, Code: eb.Code, Message: eb.Message, Constraint: eb.Constraint}
	}

	var out httpBatchResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Results) != len(queries) {
		return nil, fmt.Errorf("http sql: expected %d results, got %d", len(queries), len(out.Results))
	}
	return out.Results, nil
}

type httpConn struct {
	a *httpAdapter
}

func (c *httpConn) begin(context.Context) (txn, error) { return &httpTx{a: c.a}, nil }

func (c *httpConn) elevate(context.Context, string) error { return ErrElevationUnsupported }

func (c *httpConn) resetRole(context.Context) error { return nil }

func (c *httpConn) release() {}

func (c *httpConn) destroy(context.Context) error { return nil }

// httpTx buffers a transaction client-side. Reads before the first write run
// immediately in a read-only batch; writes are sent together at commit.
type httpTx struct {
	a        *httpAdapter
	preamble []httpQuery
	pending  []httpQuery
	closed   bool
}

func (t *httpTx) setLocal(name, value string) error {
	if t.closed {
		return ErrTxClosed
	}
	q := httpQuery{Query: setLocalConfigSQL, Params: []any{name, value}}
	// Once a write is buffered the assignment must stay behind it, so it joins
	// the pending statements in program order. Later reads fail with
	// ErrReadAfterWrite, so the preamble is only used before the first write.
	if len(t.pending) > 0 {
		t.pending = append(t.pending, q)
		return nil
	}
	t.preamble = append(t.preamble, q)
	return nil
}

// Exec buffers the statement until commit. The affected row count is not known yet and is reported as 0.
func (t *httpTx) Exec(_ context.Context, sql string, args ...any) (int64, error) {
	if t.closed {
		return 0, ErrTxClosed
	}
	params, err := encodeParams(args)
	if err != nil {
		return 0, err
	}
	t.pending = append(t.pending, httpQuery{Query: sql, Params: params})
	return 0, nil
}

func (t *httpTx) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rows, err := t.query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t *httpTx) query(ctx context.Context, sql string, args ...any) (*httpRows, error) {
	if t.closed {
		return nil, ErrTxClosed
	}
	if len(t.pending) > 0 {
		return nil, ErrReadAfterWrite
	}
	params, err := encodeParams(args)
	if err != nil {
		return nil, err
	}

	batch := make([]httpQuery, 0, len(t.preamble)+1)
	batch = append(batch, t.preamble...)
	batch = append(batch, httpQuery{Query: sql, Params: params})

	results, err := t.a.send(ctx, batch, true)
	if err != nil {
		return nil, err
	}
	return newHTTPRows(results[len(results)-1]), nil
}

func (t *httpTx) QueryRow(ctx context.Context, sql string, args ...any) Row {
	rows, err := t.query(ctx, sql, args...)
	return &httpRow{rows: rows, err: err}
}

func (t *httpTx) commit(ctx context.Context) error {
	if t.closed {
		return ErrTxClosed
	}
	t.closed = true
	if len(t.pending) == 0 {
		return nil
	}

	batch := make([]httpQuery, 0, len(t.preamble)+len(t.pending))
	batch = append(batch, t.preamble...)
	batch = append(batch, t.pending...)
	t.pending = nil

	_, err := t.a.send(ctx, batch, false)
	return err
}

func (t *httpTx) rollback(context.Context) error {
	t.closed = true
	t.pending = nil
	return nil
}
