// Package adapter wraps database handles so every statement they run is
// reported to the audit engine.
package adapter

import (
	"database/sql"

	"github.com/samber/oops"

	"github.com/vaibhaw-/panoptes/internal/panoptes/dialect"
	"github.com/vaibhaw-/panoptes/internal/panoptes/event"
	"github.com/vaibhaw-/panoptes/internal/panoptes/transport"
)

// CodeInvalidClient tags errors for handles an adapter cannot wrap.
const CodeInvalidClient = "ADAPTER_INVALID_CLIENT"

// DefaultSnapshotLimit caps the rows captured per before/after snapshot.
const DefaultSnapshotLimit = 100

// Adapter describes one database engine to the interceptors.
type Adapter interface {
	Engine() dialect.Engine
	DBInfo() event.DBInfo
	ValidateClient(client any) error
	RowCount(res sql.Result) *int64
}

// Options carries connection metadata and capture settings shared by all
// wrappers.
type Options struct {
	Host   string
	Name   string
	User   string
	Schema string

	Snapshots     bool
	SnapshotLimit int
}

type Option func(*Options)

func WithHost(host string) Option     { return func(o *Options) { o.Host = host } }
func WithDBName(name string) Option   { return func(o *Options) { o.Name = name } }
func WithUser(user string) Option     { return func(o *Options) { o.User = user } }
func WithSchema(schema string) Option { return func(o *Options) { o.Schema = schema } }

// WithSnapshots enables before/after row capture for UPDATE and DELETE.
// A limit of 0 uses DefaultSnapshotLimit.
func WithSnapshots(limit int) Option {
	return func(o *Options) {
		o.Snapshots = true
		o.SnapshotLimit = limit
	}
}

func buildOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	if o.SnapshotLimit <= 0 {
		o.SnapshotLimit = DefaultSnapshotLimit
	}
	return o
}

// New returns the adapter for engineName.
func New(engineName string, opts Options) (Adapter, error) {
	eng, err := dialect.ParseEngine(engineName)
	if err != nil {
		return nil, err
	}

	switch eng {
	case dialect.Postgres:
		return &sqlAdapter{engine: eng, info: withDefaults(eng, opts, "", "", "public"), pgx: true}, nil
	case dialect.MySQL:
		return &sqlAdapter{engine: eng, info: withDefaults(eng, opts, "", "", opts.Name)}, nil
	case dialect.MSSQL:
		return &sqlAdapter{engine: eng, info: withDefaults(eng, opts, "", "", "dbo")}, nil
	case dialect.SQLite:
		info := withDefaults(eng, opts, "local", "local", "main")
		if info.Name == "" {
			info.Name = "sqlite"
		}
		return &sqlAdapter{engine: eng, info: info}, nil
	case dialect.Oracle:
		return &sqlAdapter{engine: eng, info: withDefaults(eng, opts, "", "", opts.User)}, nil
	default:
		return nil, oops.Code(dialect.CodeUnsupportedEngine).
			With("engine", engineName).
			Errorf("no adapter for engine %q", engineName)
	}
}

func withDefaults(eng dialect.Engine, o Options, host, user, schema string) event.DBInfo {
	info := event.DBInfo{Engine: string(eng), Host: o.Host, Name: o.Name, User: o.User, Schema: o.Schema}
	if info.Host == "" {
		info.Host = host
	}
	if info.User == "" {
		info.User = user
	}
	if info.Schema == "" {
		info.Schema = schema
	}
	return info
}

type sqlAdapter struct {
	engine dialect.Engine
	info   event.DBInfo
	// pgx reports whether pgx handles are accepted in addition to database/sql.
	pgx bool
}

func (a *sqlAdapter) Engine() dialect.Engine { return a.engine }

func (a *sqlAdapter) DBInfo() event.DBInfo { return a.info }

func (a *sqlAdapter) ValidateClient(client any) error {
	switch c := client.(type) {
	case nil:
		return invalidClient(a.engine, client, "client is nil")
	case *sql.DB:
		if c == nil {
			return invalidClient(a.engine, client, "client is nil")
		}
		return nil
	case *sql.Tx, *sql.Conn:
		return nil
	case transport.PgxExecutor:
		if a.pgx {
			return nil
		}
		return invalidClient(a.engine, client, "pgx handles are only supported for postgres")
	}
	return invalidClient(a.engine, client, "expected *sql.DB, *sql.Conn or *sql.Tx")
}

func (a *sqlAdapter) RowCount(res sql.Result) *int64 {
	if res == nil {
		return nil
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	return &n
}

func invalidClient(eng dialect.Engine, client any, msg string) error {
	return oops.Code(CodeInvalidClient).
		With("engine", string(eng)).
		With("client_type", typeName(client)).
		Errorf("invalid %s client: %s", eng, msg)
}
