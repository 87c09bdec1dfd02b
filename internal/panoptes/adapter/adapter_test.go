package adapter

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhaw-/panoptes/internal/panoptes/dialect"
	"github.com/vaibhaw-/panoptes/internal/panoptes/event"
)

func TestNew_DBInfoDefaults(t *testing.T) {
	tests := []struct {
		engine string
		opts   Options
		want   event.DBInfo
	}{
		{engine: "sqlite3", want: event.DBInfo{Engine: "sqlite", Host: "local", Name: "sqlite", User: "local", Schema: "main"}},
		{engine: "sqlite", opts: Options{Name: "app.db"}, want: event.DBInfo{Engine: "sqlite", Host: "local", Name: "app.db", User: "local", Schema: "main"}},
		{engine: "pg", opts: Options{Host: "db1", Name: "shop", User: "svc"}, want: event.DBInfo{Engine: "postgres", Host: "db1", Name: "shop", User: "svc", Schema: "public"}},
		{engine: "mariadb", opts: Options{Name: "shop"}, want: event.DBInfo{Engine: "mysql", Name: "shop", Schema: "shop"}},
		{engine: "sqlserver", want: event.DBInfo{Engine: "mssql", Schema: "dbo"}},
		{engine: "oracle", opts: Options{User: "HR"}, want: event.DBInfo{Engine: "oracle", User: "HR", Schema: "HR"}},
	}
	for _, tt := range tests {
		t.Run(tt.engine, func(t *testing.T) {
			a, err := New(tt.engine, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.DBInfo())
			assert.Equal(t, dialect.Engine(tt.want.Engine), a.Engine())
		})
	}
}

func TestValidateClient(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	pg, err := New("postgres", Options{})
	require.NoError(t, err)
	my, err := New("mysql", Options{})
	require.NoError(t, err)

	assert.NoError(t, pg.ValidateClient(mock))
	assert.NoError(t, my.ValidateClient(&sql.DB{}))

	for _, err := range []error{
		my.ValidateClient(mock),
		my.ValidateClient(nil),
		my.ValidateClient("dsn"),
	} {
		require.Error(t, err)
		oopsErr, ok := oops.AsOops(err)
		require.True(t, ok)
		assert.Equal(t, CodeInvalidClient, oopsErr.Code())
	}
}

type fakeResult struct {
	n   int64
	err error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.n, r.err }

func TestRowCount(t *testing.T) {
	a, err := New("sqlite", Options{})
	require.NoError(t, err)

	require.NotNil(t, a.RowCount(fakeResult{n: 3}))
	assert.Equal(t, int64(3), *a.RowCount(fakeResult{n: 3}))
	assert.Nil(t, a.RowCount(fakeResult{err: errors.New("unsupported")}))
	assert.Nil(t, a.RowCount(nil))
}

func TestSnapshotQuery(t *testing.T) {
	q, err := snapshotQuery(dialect.SQLite, "users", "id = 1", 100)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users WHERE id = 1 LIMIT 100", q)

	q, err = snapshotQuery(dialect.MSSQL, "dbo.users", "id = 1", 5)
	require.NoError(t, err)
	assert.Equal(t, "SELECT TOP 5 * FROM dbo.users WHERE id = 1", q)

	q, err = snapshotQuery(dialect.Oracle, "users", "id = 1", 5)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users WHERE id = 1 FETCH FIRST 5 ROWS ONLY", q)

	_, err = snapshotQuery(dialect.Postgres, "users; DROP TABLE x", "1=1", 5)
	assert.Error(t, err)
}
