package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhaw-/panoptes/internal/panoptes/sqlparse"
)

func TestWrapPgx_Exec(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		sql       string
		args      []any
		wantErr   bool
		wantRows  *int64
		wantCode  string
	}{
		{
			name: "update reports affected rows",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE accounts SET balance`).
					WithArgs(10, 5).
					WillReturnResult(pgxmock.NewResult("UPDATE", 2))
			},
			sql:      "UPDATE accounts SET balance = $1 WHERE owner_id = $2",
			args:     []any{10, 5},
			wantRows: ptr(int64(2)),
		},
		{
			name: "driver error carries sqlstate",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`DELETE FROM ledger`).
					WillReturnError(&pgconn.PgError{Code: "42P01", Message: `relation "ledger" does not exist`})
			},
			sql:      "DELETE FROM ledger",
			wantErr:  true,
			wantCode: "42P01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()
			tt.setupMock(mock)

			eng, sink := newEngine(t)
			conn, err := WrapPgx(eng, mock, WithDBName("bank"))
			require.NoError(t, err)

			_, err = conn.Exec(context.Background(), tt.sql, tt.args...)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())

			ev := sink.Last(t)
			assert.Equal(t, "postgres", ev.DB.Engine)
			assert.Equal(t, "bank", ev.DB.Name)
			assert.Equal(t, "public", ev.DB.Schema)
			assert.Equal(t, !tt.wantErr, ev.SQL.Success)
			assert.Equal(t, tt.wantRows, ev.SQL.RowCount)
			assert.Equal(t, tt.wantCode, ev.SQL.ErrorCode)
		})
	}
}

func TestWrapPgx_QueryRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT name FROM users`).
		WithArgs(3).
		WillReturnRows(pgxmock.NewRows([]string{"name"}).AddRow("ann"))

	eng, sink := newEngine(t)
	conn, err := WrapPgx(eng, mock)
	require.NoError(t, err)

	row := conn.QueryRow(context.Background(), "SELECT name FROM users WHERE id = $1", 3)
	assert.Empty(t, sink.Events(), "reported on Scan")

	var name string
	require.NoError(t, row.Scan(&name))
	assert.Equal(t, "ann", name)
	require.NoError(t, mock.ExpectationsWereMet())

	ev := sink.Last(t)
	assert.Equal(t, sqlparse.OpSelect, ev.Operation.Type)
	assert.Equal(t, ptr(int64(1)), ev.SQL.RowCount)
	assert.Equal(t, []any{3}, ev.SQL.Parameters)
}

func TestWrapPgx_Query(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id FROM users`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))

	eng, sink := newEngine(t)
	conn, err := WrapPgx(eng, mock)
	require.NoError(t, err)

	rows, err := conn.Query(context.Background(), "SELECT id FROM users")
	require.NoError(t, err)
	n := 0
	for rows.Next() {
		n++
	}
	rows.Close()
	assert.Equal(t, 2, n)

	ev := sink.Last(t)
	assert.True(t, ev.SQL.Success)
	assert.Nil(t, ev.SQL.RowCount)
}

func TestWrapPgx_SnapshotFailureIsAbsorbed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT \* FROM accounts WHERE id = 5 LIMIT 100`).
		WillReturnError(errors.New("permission denied"))
	mock.ExpectExec(`DELETE FROM accounts WHERE id = 5`).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	eng, sink := newEngine(t)
	conn, err := WrapPgx(eng, mock, WithSnapshots(0))
	require.NoError(t, err)

	_, err = conn.Exec(context.Background(), "DELETE FROM accounts WHERE id = 5")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	ev := sink.Last(t)
	assert.True(t, ev.SQL.Success)
	assert.Nil(t, ev.Data)
	assert.Equal(t, ptr(int64(1)), ev.SQL.RowCount)
}

func TestWrapPgx_Validation(t *testing.T) {
	eng, _ := newEngine(t)
	_, err := WrapPgx(eng, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client is nil")
}

func ptr[T any](v T) *T { return &v }
