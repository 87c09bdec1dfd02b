// Package panoptes records an audit event for every SQL statement an
// application runs through a wrapped database handle.
//
// The package-level functions share one process-wide configuration store and
// engine. Call Init once at startup, wrap handles with WrapDB or WrapPgx, and
// attach the acting user to request contexts with Middleware or
// RunWithUserContext. Hosts that want several independent engines use
// internal packages engine and config directly.
package panoptes

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/vaibhaw-/panoptes/internal/panoptes/adapter"
	"github.com/vaibhaw-/panoptes/internal/panoptes/auditctx"
	"github.com/vaibhaw-/panoptes/internal/panoptes/config"
	"github.com/vaibhaw-/panoptes/internal/panoptes/dialect"
	"github.com/vaibhaw-/panoptes/internal/panoptes/engine"
	"github.com/vaibhaw-/panoptes/internal/panoptes/event"
	"github.com/vaibhaw-/panoptes/internal/panoptes/logger"
	"github.com/vaibhaw-/panoptes/internal/panoptes/transport"
)

type (
	Config         = config.Config
	TransportsCfg  = config.TransportsCfg
	FileCfg        = config.FileCfg
	HTTPCfg        = config.HTTPCfg
	DatabaseCfg    = config.DatabaseCfg
	TableRules     = config.TableRules
	OperationRules = config.OperationRules

	UserContext = auditctx.UserContext
	ActorType   = auditctx.ActorType

	Payload = engine.Payload
	DBInfo  = event.DBInfo
	Event   = event.Event

	DB      = adapter.DB
	Tx      = adapter.Tx
	PgxConn = adapter.PgxConn
	Option  = adapter.Option
)

const (
	ActorUser    = auditctx.ActorUser
	ActorSystem  = auditctx.ActorSystem
	ActorService = auditctx.ActorService
)

var (
	Bool          = config.Bool
	WithHost      = adapter.WithHost
	WithDBName    = adapter.WithDBName
	WithUser      = adapter.WithUser
	WithSchema    = adapter.WithSchema
	WithSnapshots = adapter.WithSnapshots
)

var (
	store = config.NewStore()
	std   = engine.New(store)
)

// Init merges cfg over the defaults, validates it and enables auditing. It
// fails with CONFIG_ALREADY_INITIALIZED when called twice. Zero-valued fields,
// such as an empty AppName or Environment, take their defaults.
func Init(cfg Config) error {
	if err := store.Init(cfg); err != nil {
		return err
	}
	merged, _ := store.Get()
	logger.L().Infow("panoptes initialized",
		"app_name", merged.AppName,
		"environment", merged.Environment,
		"transports", merged.Transports.Enabled,
		"async", merged.Transports.Async,
	)
	return nil
}

// SetTableRules replaces the rules of the named tables. Other tables keep
// their rules.
func SetTableRules(rules map[string]TableRules) error { return store.PatchTableRules(rules) }

// SetOperationRules overrides the operation toggles that are set in rules.
func SetOperationRules(rules OperationRules) error { return store.PatchOperationRules(rules) }

// NewScope returns a context that can hold a user context installed later
// with SetUserContext.
func NewScope(ctx context.Context) context.Context { return auditctx.Scope(ctx) }

// SetUserContext installs uc in the scope carried by ctx. It reports false
// when ctx has no scope.
func SetUserContext(ctx context.Context, uc UserContext) bool { return auditctx.Set(ctx, uc) }

// GetUserContext returns a copy of the current user context, or nil.
func GetUserContext(ctx context.Context) *UserContext { return auditctx.Get(ctx) }

func ClearUserContext(ctx context.Context) { auditctx.Clear(ctx) }

// WithUserContext returns a child context carrying uc.
func WithUserContext(ctx context.Context, uc UserContext) context.Context {
	return auditctx.With(ctx, uc)
}

// RunWithUserContext runs fn with uc attached. The caller's context is never
// modified, even if fn panics.
func RunWithUserContext(ctx context.Context, uc UserContext, fn func(context.Context) error) error {
	return auditctx.Run(ctx, uc, fn)
}

// Middleware attaches a user context to each request. extract may be nil.
func Middleware(extract func(*http.Request) *UserContext) func(http.Handler) http.Handler {
	return auditctx.Middleware(extract)
}

// WrapDB returns an audited view of db. engineName is one of postgres, mysql,
// mssql, sqlite or oracle, or a common alias.
func WrapDB(db *sql.DB, engineName string, opts ...Option) (*DB, error) {
	return adapter.WrapDB(std, db, engineName, opts...)
}

// WrapPgx returns an audited view of a pgx connection, pool or transaction.
func WrapPgx(conn adapter.PgxQuerier, opts ...Option) (*PgxConn, error) {
	return adapter.WrapPgx(std, conn, opts...)
}

// AuditQuery records a statement executed outside a wrapped handle.
func AuditQuery(ctx context.Context, p Payload) { std.AuditQuery(ctx, p) }

// Flush waits for pending asynchronous deliveries.
func Flush(ctx context.Context) error { return std.Flush(ctx) }

// GenerateAuditTableSQL returns the script that creates the audit table and
// its indexes for engineName. table defaults to panoptes_audit_log.
func GenerateAuditTableSQL(engineName string, table ...string) (string, error) {
	eng, err := dialect.ParseEngine(engineName)
	if err != nil {
		return "", err
	}
	name := config.DefaultTableName
	if len(table) > 0 && table[0] != "" {
		name = table[0]
	}
	return transport.TableScript(eng, name)
}
