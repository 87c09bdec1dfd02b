package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vaibhaw-/panoptes/internal/panoptes/config"
	"github.com/vaibhaw-/panoptes/internal/panoptes/dialect"
	"github.com/vaibhaw-/panoptes/internal/panoptes/event"
	"github.com/vaibhaw-/panoptes/internal/panoptes/logger"
)

// DatabaseSink inserts one row per event into the audit table.
type DatabaseSink struct {
	client Client
	handle any
	engine dialect.Engine
	table  string
	auto   bool
}

func NewDatabaseSink(cfg config.DatabaseCfg) (*DatabaseSink, error) {
	client, handle, err := ResolveClient(cfg.Client)
	if err != nil {
		return nil, err
	}
	engine, err := dialect.ParseEngine(cfg.Engine)
	if err != nil {
		return nil, err
	}
	table := cfg.TableName
	if table == "" {
		table = config.DefaultTableName
	}
	if err := checkTable(table); err != nil {
		return nil, err
	}
	return &DatabaseSink{
		client: client,
		handle: handle,
		engine: engine,
		table:  table,
		auto:   cfg.AutoCreateTable,
	}, nil
}

func (s *DatabaseSink) Name() string { return "database" }

func (s *DatabaseSink) Send(ctx context.Context, ev event.Event) error {
	if s.auto {
		if err := provisioned.ensure(ctx, s.handle, s.client, s.engine, s.table); err != nil {
			return err
		}
	}

	query, args, err := InsertStatement(s.engine, s.table, ev)
	if err != nil {
		return err
	}
	if err := s.client.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert audit record into %s: %w", s.table, err)
	}
	return nil
}

// EnsureTable probes for the audit table and creates it when missing. It
// reports whether the table had to be created.
func EnsureTable(ctx context.Context, client Client, engine dialect.Engine, table string) (bool, error) {
	query, args, err := ExistsQuery(engine, table)
	if err != nil {
		return false, err
	}

	var count int64
	if err := client.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("check audit table %s: %w", table, err)
	}
	if count > 0 {
		return false, nil
	}

	stmts, err := TableDDL(engine, table)
	if err != nil {
		return false, err
	}
	for _, stmt := range stmts {
		if err := client.Exec(ctx, stmt); err != nil {
			return false, fmt.Errorf("create audit table %s: %w", table, err)
		}
	}
	return true, nil
}

type provisionKey struct {
	handle any
	table  string
}

type provisionState struct {
	mu       sync.Mutex
	verified atomic.Bool
}

// provisionRegistry remembers, per client handle and table, whether the audit
// table has been verified. Verification is one-way for the process lifetime.
type provisionRegistry struct {
	mu     sync.Mutex
	states map[provisionKey]*provisionState
}

var provisioned = &provisionRegistry{states: map[provisionKey]*provisionState{}}

func (r *provisionRegistry) state(handle any, table string) *provisionState {
	if handle == nil || !reflect.TypeOf(handle).Comparable() {
		return &provisionState{}
	}
	key := provisionKey{handle: handle, table: table}

	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[key]
	if !ok {
		st = &provisionState{}
		r.states[key] = st
	}
	return st
}

func (r *provisionRegistry) ensure(ctx context.Context, handle any, client Client, engine dialect.Engine, table string) error {
	st := r.state(handle, table)
	if st.verified.Load() {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.verified.Load() {
		return nil
	}

	created, err := EnsureTable(ctx, client, engine, table)
	if err != nil {
		return err
	}
	if created {
		logger.L().Infow("created audit table", "transport", "database", "table", table, "engine", engine)
	} else {
		logger.L().Debugw("audit table already exists", "transport", "database", "table", table, "engine", engine)
	}
	st.verified.Store(true)
	return nil
}

type insertColumn struct {
	name  string
	value any
}

// InsertStatement builds the parameterized INSERT for ev. Columns the event
// does not carry a value for are left out so the table defaults apply.
func InsertStatement(engine dialect.Engine, table string, ev event.Event) (string, []any, error) {
	if err := checkTable(table); err != nil {
		return "", nil, err
	}
	cols, err := insertColumns(engine, ev)
	if err != nil {
		return "", nil, err
	}

	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		names[i] = columnByName(c.name).ident(engine)
		marks[i] = engine.Placeholder(i + 1)
		args[i] = c.value
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(names, ", "), strings.Join(marks, ", "))
	return query, args, nil
}

func insertColumns(engine dialect.Engine, ev event.Event) ([]insertColumn, error) {
	var cols []insertColumn
	add := func(name string, v any) { cols = append(cols, insertColumn{name, v}) }
	opt := func(name, v string) {
		if v != "" {
			add(name, v)
		}
	}
	optAny := func(name string, v any) {
		if v != nil {
			add(name, fmt.Sprint(v))
		}
	}

	add("app_name", ev.Meta.AppName)
	add("environment", ev.Meta.Environment)
	add("timestamp", timestampValue(engine, ev.Meta.Timestamp))
	add("timestamp_unix", ev.Meta.TimestampUnix)
	add("date", ev.Meta.Date)
	add("time", ev.Meta.Time)
	add("duration_ms", ev.Meta.DurationMS)
	add("reason", ev.Meta.Reason)

	add("db_engine", ev.DB.Engine)
	opt("db_host", ev.DB.Host)
	opt("db_name", ev.DB.Name)
	opt("db_user", ev.DB.User)
	opt("db_schema", ev.DB.Schema)

	add("operation_type", string(ev.Operation.Type))
	add("operation_category", string(ev.Operation.Category))
	opt("main_table", ev.Operation.MainTable)
	tables, err := jsonText(ev.Operation.TablesInvolved)
	if err != nil {
		return nil, err
	}
	add("tables_involved", tables)

	add("sql_raw", ev.SQL.Raw)
	add("sql_normalized", ev.SQL.Normalized)
	params, err := jsonText(ev.SQL.Parameters)
	if err != nil {
		return nil, err
	}
	add("sql_parameters", params)
	if ev.SQL.RowCount != nil {
		add("row_count", *ev.SQL.RowCount)
	} else {
		add("row_count", nil)
	}
	add("success", boolValue(engine, ev.SQL.Success))
	opt("error_code", ev.SQL.ErrorCode)
	opt("error_message", ev.SQL.ErrorMessage)

	var before, after any
	if ev.Data != nil && len(ev.Data.Before) > 0 {
		if before, err = jsonText(ev.Data.Before); err != nil {
			return nil, err
		}
	}
	if ev.Data != nil && len(ev.Data.After) > 0 {
		if after, err = jsonText(ev.Data.After); err != nil {
			return nil, err
		}
	}
	add("data_before", before)
	add("data_after", after)

	opt("actor_type", string(ev.Actor.ActorType))
	optAny("actor_user_id", ev.Actor.AppUserID)
	opt("actor_username", ev.Actor.AppUsername)
	if ev.Actor.AppRoles != nil {
		roles, err := jsonText(ev.Actor.AppRoles)
		if err != nil {
			return nil, err
		}
		add("actor_roles", roles)
	}
	optAny("actor_tenant_id", ev.Actor.TenantID)

	opt("request_ip", ev.Request.IPAddress)
	opt("request_user_agent", ev.Request.UserAgent)
	opt("request_id", ev.Request.RequestID)
	opt("request_session_id", ev.Request.SessionID)

	return cols, nil
}

func jsonText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode audit column: %w", err)
	}
	return string(b), nil
}

// timestampValue keeps the ISO text for SQLite, which stores it as TEXT, and
// hands a time.Time to engines with a native timestamp type.
func timestampValue(engine dialect.Engine, iso string) any {
	if engine == dialect.SQLite {
		return iso
	}
	t, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		return iso
	}
	return t
}

func boolValue(engine dialect.Engine, b bool) any {
	if engine != dialect.Oracle {
		return b
	}
	if b {
		return 1
	}
	return 0
}
