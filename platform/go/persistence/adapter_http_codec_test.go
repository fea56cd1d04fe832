package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTextArrayRoundTrip(t *testing.T) {
	in := []string{"bookings:write", `say "hi"`, `back\slash`, "with,comma"}
	out, err := parseTextArray(encodeTextArray(in))
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestParseTextArray(t *testing.T) {
	got, err := parseTextArray("{}")
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = parseTextArray(`{a,NULL,"NULL"}`)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "", "NULL"}, got)

	_, err = parseTextArray(`{"open}`)
	require.Error(t, err)
	_, err = parseTextArray("a,b")
	require.Error(t, err)
}

func TestAssignText(t *testing.T) {
	var (
		s    string
		ps   *string
		b    bool
		n    int64
		ts   time.Time
		perm []string
	)

	require.NoError(t, assignText(&s, strp("acme")))
	require.Equal(t, "acme", s)

	require.NoError(t, assignText(&ps, nil))
	require.Nil(t, ps)

	require.NoError(t, assignText(&b, strp("t")))
	require.True(t, b)

	require.NoError(t, assignText(&n, strp("9000000000")))
	require.Equal(t, int64(9000000000), n)

	require.NoError(t, assignText(&ts, strp("2025-03-01 18:30:00.123456+00")))
	require.Equal(t, time.Date(2025, 3, 1, 18, 30, 0, 123456000, time.UTC), ts.UTC())

	require.NoError(t, assignText(&perm, strp("{tenant:manage,users:manage}")))
	require.Equal(t, []string{"tenant:manage", "users:manage"}, perm)

	require.Error(t, assignText(&s, nil))
}

func TestEncodeParam(t *testing.T) {
	v, err := encodeParam(time.Date(2025, 3, 1, 18, 30, 0, 0, time.FixedZone("CET", 3600)))
	require.NoError(t, err)
	require.Equal(t, "2025-03-01T17:30:00Z", v)

	v, err = encodeParam([]byte{0xde, 0xad})
	require.NoError(t, err)
	require.Equal(t, `\xdead`, v)

	_, err = encodeParam(struct{}{})
	require.Error(t, err)
}
