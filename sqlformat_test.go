package apischema_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/apischema"
)

func TestFormatSQL(t *testing.T) {
	t.Parallel()

	const query = "SELECT id, name  FROM users\n\tWHERE id = 1 AND name = 'a  b' ORDER BY id"

	tests := map[string]struct {
		sql      string
		reindent bool
		want     string
	}{
		"collapses whitespace": {
			sql:  query,
			want: "SELECT id, name FROM users WHERE id = 1 AND name = 'a  b' ORDER BY id",
		},
		"reindents clauses": {
			sql:      query,
			reindent: true,
			want:     "SELECT id, name\nFROM users\nWHERE id = 1\n  AND name = 'a  b'\nORDER BY id",
		},
		"keywords match case-insensitively": {
			sql:      "select 1 from dual",
			reindent: true,
			want:     "select 1\nfrom dual",
		},
		"single statement stays on one line": {
			sql:      "SELECT 1",
			reindent: true,
			want:     "SELECT 1",
		},
		"insert returning": {
			sql:      "INSERT INTO users (name) VALUES ($1) RETURNING id",
			reindent: true,
			want:     "INSERT INTO users (name)\nVALUES ($1)\nRETURNING id",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, apischema.FormatSQL(tc.sql, tc.reindent))
		})
	}
}

func TestTokenizeSQL_keepsQuotedLiterals(t *testing.T) {
	t.Parallel()

	got := apischema.TokenizeSQL(`SELECT "my col" FROM t WHERE x = 'a b'`)
	assert.Equal(t, []string{"SELECT", `"my col"`, "FROM", "t", "WHERE", "x", "=", "'a b'"}, got)
}

func TestPrintQueries(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := apischema.PrintQueries(&buf, []apischema.Query{
		{SQL: "SELECT 1 FROM t", Duration: 2 * time.Millisecond},
		{SQL: "SELECT 2", Duration: 250 * time.Millisecond},
	}, true)
	require.NoError(t, err)

	want := "[SQL] Time: 0.002\n  SELECT 1\n  FROM t\n" +
		"[SQL] Time: 0.250\n  SELECT 2\n"
	assert.Equal(t, want, buf.String())
}

func TestPrintQueries_none(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, apischema.PrintQueries(&buf, nil, true))
	assert.Empty(t, buf.String())
}
