package persistence

import (
	"database/sql"
	"database/sql/driver"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// The HTTP endpoint exchanges every value as Postgres text. encodeParams turns Go
// arguments into that text form and httpRows.Scan parses it back.

func encodeParams(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		v, err := encodeParam(a)
		if err != nil {
			return nil, fmt.Errorf("param $%d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

func encodeParam(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return x, nil
	case *string:
		if x == nil {
			return nil, nil
		}
		return *x, nil
	case []byte:
		return `\x` + hex.EncodeToString(x), nil
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return x.UTC().Format(time.RFC3339Nano), nil
	case bool:
		return strconv.FormatBool(x), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(x), nil
	case []string:
		return encodeTextArray(x), nil
	case driver.Valuer:
		val, err := x.Value()
		if err != nil {
			return nil, err
		}
		return encodeParam(val)
	case fmt.Stringer:
		return x.String(), nil
	default:
		return nil, fmt.Errorf("unsupported parameter type %T", v)
	}
}

func encodeTextArray(items []string) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, it := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		for _, r := range it {
			if r == '"' || r == '\\' {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

type httpRows struct {
	res    httpResult
	cursor int
	err    error
}

func newHTTPRows(res httpResult) *httpRows { return &httpRows{res: res, cursor: -1} }

func (r *httpRows) Next() bool {
	if r.err != nil || r.cursor+1 >= len(r.res.Rows) {
		return false
	}
	r.cursor++
	return true
}

func (r *httpRows) Scan(dest ...any) error {
	if r.cursor < 0 || r.cursor >= len(r.res.Rows) {
		return errors.New("scan called without a current row")
	}
	row := r.res.Rows[r.cursor]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i := range dest {
		if err := assignText(dest[i], row[i]); err != nil {
			r.err = fmt.Errorf("scan column %d: %w", i, err)
			return r.err
		}
	}
	return nil
}

func (r *httpRows) Err() error { return r.err }

func (r *httpRows) Close() {}

type httpRow struct {
	rows *httpRows
	err  error
}

func (r *httpRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.rows == nil {
		return ErrNoRows
	}
	if !r.rows.Next() {
		return ErrNoRows
	}
	return r.rows.Scan(dest...)
}

var pgTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999Z07:00:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02",
}

func parsePgTime(s string) (time.Time, error) {
	for _, layout := range pgTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func assignText(dest any, v *string) error {
	if sc, ok := dest.(sql.Scanner); ok {
		if v == nil {
			return sc.Scan(nil)
		}
		return sc.Scan(*v)
	}

	if p, ok := dest.(**string); ok {
		if v == nil {
			*p = nil
			return nil
		}
		s := *v
		*p = &s
		return nil
	}
	if p, ok := dest.(**time.Time); ok {
		if v == nil {
			*p = nil
			return nil
		}
		t, err := parsePgTime(*v)
		if err != nil {
			return err
		}
		*p = &t
		return nil
	}
	if p, ok := dest.(*any); ok {
		if v == nil {
			*p = nil
		} else {
			*p = *v
		}
		return nil
	}

	if v == nil {
		return fmt.Errorf("cannot scan NULL into %T", dest)
	}
	s := *v

	switch d := dest.(type) {
	case *string:
		*d = s
	case *[]byte:
		*d = []byte(s)
	case *bool:
		*d = s == "t" || s == "true"
	case *int:
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*d = n
	case *int32:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return err
		}
		*d = int32(n)
	case *int64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		*d = n
	case *float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*d = f
	case *time.Time:
		t, err := parsePgTime(s)
		if err != nil {
			return err
		}
		*d = t
	case *[]string:
		items, err := parseTextArray(s)
		if err != nil {
			return err
		}
		*d = items
	default:
		return fmt.Errorf("unsupported scan destination %T", dest)
	}
	return nil
}

// parseTextArray decodes a one-dimensional Postgres array literal such as {a,"b c",NULL}.
// NULL elements become empty strings.
func parseTextArray(s string) ([]string, error) {
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return nil, fmt.Errorf("malformed array literal %q", s)
	}
	body := s[1 : len(s)-1]
	items := []string{}
	if body == "" {
		return items, nil
	}

	var cur strings.Builder
	quoted, escaped, wasQuoted := false, false, false
	flush := func() {
		item := cur.String()
		if !wasQuoted && item == "NULL" {
			item = ""
		}
		items = append(items, item)
		cur.Reset()
		wasQuoted = false
	}
	for _, r := range body {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
			wasQuoted = true
		case r == ',' && !quoted:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if quoted || escaped {
		return nil, fmt.Errorf("malformed array literal %q", s)
	}
	flush()
	return items, nil
}
