package transport

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Row is the single-row result of Client.QueryRow.
type Row interface {
	Scan(dest ...any) error
}

// Client is the minimal surface the database sink writes through.
type Client interface {
	Exec(ctx context.Context, query string, args ...any) error
	QueryRow(ctx context.Context, query string, args ...any) Row
}

// SQLExecutor is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PgxExecutor is satisfied by *pgx.Conn, *pgxpool.Pool and pgx.Tx.
type PgxExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Unwrapper is implemented by audited handles. The database sink writes
// through the underlying handle so its own inserts are not audited.
type Unwrapper interface {
	Underlying() any
}

type sqlClient struct{ db SQLExecutor }

// SQLClient adapts a database/sql handle.
func SQLClient(db SQLExecutor) Client { return sqlClient{db: db} }

func (c sqlClient) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.db.ExecContext(ctx, query, args...)
	return err
}

func (c sqlClient) QueryRow(ctx context.Context, query string, args ...any) Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

type pgxClient struct{ conn PgxExecutor }

// PgxClient adapts a pgx connection, pool or transaction.
func PgxClient(conn PgxExecutor) Client { return pgxClient{conn: conn} }

func (c pgxClient) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.conn.Exec(ctx, query, args...)
	return err
}

func (c pgxClient) QueryRow(ctx context.Context, query string, args ...any) Row {
	return c.conn.QueryRow(ctx, query, args...)
}

// ResolveClient turns a configured handle into a Client. It also returns the
// raw handle, which identifies the target for table provisioning.
func ResolveClient(handle any) (Client, any, error) {
	for {
		u, ok := handle.(Unwrapper)
		if !ok {
			break
		}
		handle = u.Underlying()
	}

	switch h := handle.(type) {
	case nil:
		return nil, nil, fmt.Errorf("no database client configured")
	case Client:
		return h, h, nil
	case SQLExecutor:
		return SQLClient(h), h, nil
	case PgxExecutor:
		return PgxClient(h), h, nil
	}
	return nil, nil, fmt.Errorf("unsupported database client type %T", handle)
}
