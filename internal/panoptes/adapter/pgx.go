package adapter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/vaibhaw-/panoptes/internal/panoptes/dialect"
	"github.com/vaibhaw-/panoptes/internal/panoptes/engine"
	"github.com/vaibhaw-/panoptes/internal/panoptes/event"
	"github.com/vaibhaw-/panoptes/internal/panoptes/sqlparse"
)

// PgxQuerier is satisfied by *pgx.Conn, *pgxpool.Pool and pgx.Tx.
type PgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxConn is an audited pgx handle.
type PgxConn struct {
	conn PgxQuerier
	ic   *interceptor
}

// WrapPgx returns an audited view of conn. Host, database and user default to
// the handle's connection config when it exposes one.
func WrapPgx(eng *engine.Engine, conn PgxQuerier, opts ...Option) (*PgxConn, error) {
	if eng == nil {
		return nil, oops.Code(CodeInvalidClient).Errorf("audit engine is nil")
	}
	if conn == nil {
		return nil, invalidClient(dialect.Postgres, nil, "client is nil")
	}

	o := buildOptions(append(pgxDefaults(conn), opts...))
	a, err := New(string(dialect.Postgres), o)
	if err != nil {
		return nil, err
	}
	if err := a.ValidateClient(conn); err != nil {
		return nil, err
	}
	return &PgxConn{conn: conn, ic: &interceptor{eng: eng, adapter: a, opts: o}}, nil
}

func pgxDefaults(conn PgxQuerier) []Option {
	var cc *pgx.ConnConfig
	switch c := conn.(type) {
	case *pgxpool.Pool:
		if c != nil {
			cc = c.Config().ConnConfig
		}
	case *pgx.Conn:
		if c != nil {
			cc = c.Config()
		}
	}
	if cc == nil {
		return nil
	}
	return []Option{WithHost(cc.Host), WithDBName(cc.Database), WithUser(cc.User)}
}

func (p *PgxConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c := p.ic.begin(ctx, sql, args)
	if c.capturing() {
		before, err := c.capturePgx(c.ctx, p.conn)
		if err != nil {
			c.captureFailed("before", err)
		}
		c.before = before
		c.start = time.Now()
	}

	tag, err := p.conn.Exec(c.ctx, sql, args...)

	var after []event.Row
	if err == nil && c.capturing() && c.op == sqlparse.OpUpdate {
		rows, cerr := c.capturePgx(c.ctx, p.conn)
		if cerr != nil {
			c.captureFailed("after", cerr)
		}
		after = rows
	}

	var count *int64
	if err == nil {
		n := tag.RowsAffected()
		count = &n
	}
	c.finish(count, err, after)
	return tag, err
}

// Query reports the statement once it has been sent. The row count is not
// known at that point and is left empty.
func (p *PgxConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	c := p.ic.begin(ctx, sql, args)
	rows, err := p.conn.Query(c.ctx, sql, args...)
	c.finish(nil, err, nil)
	return rows, err
}

// QueryRow defers the report until Scan, where pgx surfaces the error.
func (p *PgxConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	c := p.ic.begin(ctx, sql, args)
	return &auditedRow{row: p.conn.QueryRow(c.ctx, sql, args...), call: c}
}

func (p *PgxConn) Underlying() any { return p.conn }

func (p *PgxConn) DBInfo() event.DBInfo { return p.ic.adapter.DBInfo() }

type auditedRow struct {
	row  pgx.Row
	call *call
	once sync.Once
}

func (r *auditedRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	r.once.Do(func() {
		n := int64(1)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			n = 0
			r.call.finish(&n, nil, nil)
		case err != nil:
			r.call.finish(nil, err, nil)
		default:
			r.call.finish(&n, nil, nil)
		}
	})
	return err
}
