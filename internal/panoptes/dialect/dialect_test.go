package dialect

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEngine(t *testing.T) {
	tests := map[string]Engine{
		"postgres":   Postgres,
		"PostgreSQL": Postgres,
		"pg":         Postgres,
		"mysql":      MySQL,
		"MariaDB":    MySQL,
		"sqlserver":  MSSQL,
		"mssql":      MSSQL,
		" sqlite3 ":  SQLite,
		"oracle":     Oracle,
	}
	for in, want := range tests {
		got, err := ParseEngine(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseEngine("db2")
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, CodeUnsupportedEngine, oopsErr.Code())
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "$3", Postgres.Placeholder(3))
	assert.Equal(t, "?", MySQL.Placeholder(3))
	assert.Equal(t, "?", SQLite.Placeholder(3))
	assert.Equal(t, "@p3", MSSQL.Placeholder(3))
	assert.Equal(t, ":3", Oracle.Placeholder(3))
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"date"`, Postgres.Quote("date"))
	assert.Equal(t, "`date`", MySQL.Quote("date"))
	assert.Equal(t, "[date]", MSSQL.Quote("date"))
	assert.Equal(t, `"date"`, SQLite.Quote("date"))
	assert.Equal(t, `"DATE"`, Oracle.Quote("date"))
}

func TestValidIdentifier(t *testing.T) {
	assert.True(t, ValidIdentifier("panoptes_audit_log"))
	assert.True(t, ValidIdentifier("audit.events"))
	assert.False(t, ValidIdentifier(""))
	assert.False(t, ValidIdentifier("1table"))
	assert.False(t, ValidIdentifier("t; DROP TABLE users"))
	assert.False(t, ValidIdentifier("a.b.c"))
}
