package adapter

import (
	"context"
	"database/sql"
	"time"

	"github.com/samber/oops"

	"github.com/vaibhaw-/panoptes/internal/panoptes/engine"
	"github.com/vaibhaw-/panoptes/internal/panoptes/event"
	"github.com/vaibhaw-/panoptes/internal/panoptes/sqlparse"
)

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqlRunner runs statements through q and reports them.
type sqlRunner struct {
	ic *interceptor
	q  sqlQuerier
}

func (r sqlRunner) exec(ctx context.Context, query string, args []any) (sql.Result, error) {
	c := r.ic.begin(ctx, query, args)
	if c.capturing() {
		before, err := c.captureSQL(c.ctx, r.q)
		if err != nil {
			c.captureFailed("before", err)
		}
		c.before = before
		c.start = time.Now()
	}

	res, err := r.q.ExecContext(c.ctx, query, args...)

	var after []event.Row
	if err == nil && c.capturing() && c.op == sqlparse.OpUpdate {
		rows, cerr := c.captureSQL(c.ctx, r.q)
		if cerr != nil {
			c.captureFailed("after", cerr)
		}
		after = rows
	}

	var count *int64
	if err == nil {
		count = r.ic.adapter.RowCount(res)
	}
	c.finish(count, err, after)
	return res, err
}

func (r sqlRunner) query(ctx context.Context, query string, args []any) (*sql.Rows, error) {
	c := r.ic.begin(ctx, query, args)
	rows, err := r.q.QueryContext(c.ctx, query, args...)
	c.finish(nil, err, nil)
	return rows, err
}

func (r sqlRunner) queryRow(ctx context.Context, query string, args []any) *sql.Row {
	c := r.ic.begin(ctx, query, args)
	row := r.q.QueryRowContext(c.ctx, query, args...)
	c.finish(nil, row.Err(), nil)
	return row
}

// DB is an audited *sql.DB.
type DB struct {
	db *sql.DB
	sqlRunner
}

// WrapDB returns an audited view of db for the named engine.
func WrapDB(eng *engine.Engine, db *sql.DB, engineName string, opts ...Option) (*DB, error) {
	if eng == nil {
		return nil, oops.Code(CodeInvalidClient).Errorf("audit engine is nil")
	}
	o := buildOptions(opts)
	a, err := New(engineName, o)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, invalidClient(a.Engine(), nil, "client is nil")
	}
	if err := a.ValidateClient(db); err != nil {
		return nil, err
	}

	ic := &interceptor{eng: eng, adapter: a, opts: o}
	return &DB{db: db, sqlRunner: sqlRunner{ic: ic, q: db}}, nil
}

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.exec(ctx, query, args)
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.query(ctx, query, args)
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.queryRow(ctx, query, args)
}

func (d *DB) Exec(query string, args ...any) (sql.Result, error) {
	return d.exec(context.Background(), query, args)
}

func (d *DB) Query(query string, args ...any) (*sql.Rows, error) {
	return d.query(context.Background(), query, args)
}

func (d *DB) QueryRow(query string, args ...any) *sql.Row {
	return d.queryRow(context.Background(), query, args)
}

// BeginTx starts a transaction whose statements are audited.
func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := d.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, sqlRunner: sqlRunner{ic: d.ic, q: tx}}, nil
}

func (d *DB) PingContext(ctx context.Context) error { return d.db.PingContext(ctx) }

func (d *DB) Close() error { return d.db.Close() }

// Unwrap returns the unaudited handle.
func (d *DB) Unwrap() *sql.DB { return d.db }

// Underlying lets the database sink write through the raw handle.
func (d *DB) Underlying() any { return d.db }

// DBInfo reports the connection metadata attached to every event.
func (d *DB) DBInfo() event.DBInfo { return d.ic.adapter.DBInfo() }

// Tx is an audited *sql.Tx.
type Tx struct {
	tx *sql.Tx
	sqlRunner
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.exec(ctx, query, args)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.query(ctx, query, args)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.queryRow(ctx, query, args)
}

func (t *Tx) Commit() error { return t.tx.Commit() }

func (t *Tx) Rollback() error { return t.tx.Rollback() }

func (t *Tx) Unwrap() *sql.Tx { return t.tx }

func (t *Tx) Underlying() any { return t.tx }
