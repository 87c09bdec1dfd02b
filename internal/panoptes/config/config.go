package config

import (
	"slices"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Error codes attached to configuration errors.
const (
	CodeInvalid            = "CONFIG_INVALID"
	CodeAlreadyInitialized = "CONFIG_ALREADY_INITIALIZED"
	CodeNotInitialized     = "CONFIG_NOT_INITIALIZED"
)

// Transport names recognized by the dispatcher.
const (
	TransportConsole  = "console"
	TransportFile     = "file"
	TransportHTTP     = "http"
	TransportDatabase = "database"
)

// Default values applied by Init for fields left empty.
const (
	DefaultAppName     = "panoptes-app"
	DefaultEnvironment = "dev"
	DefaultFilePath    = "./logs/panoptes.log"
	DefaultTableName   = "panoptes_audit_log"
	DefaultHTTPTimeout = 5 * time.Second
)

var allowedEnvironments = []string{"dev", "stage", "prod"}

// Sensitivity is informational only; sinks may use it for routing.
type Sensitivity string

const (
	SensitivityNormal    Sensitivity = "NORMAL"
	SensitivitySensitive Sensitivity = "SENSITIVE"
	SensitivityHigh      Sensitivity = "HIGH"
)

type FileCfg struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type HTTPCfg struct {
	Endpoint   string            `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout    time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries int               `mapstructure:"max_retries" yaml:"max_retries"`
	Headers    map[string]string `mapstructure:"headers" yaml:"headers"`
}

type DatabaseCfg struct {
	// Client is the handle audit rows are written through: a transport.Client,
	// *sql.DB, *sql.Conn, *sql.Tx or a pgx executor. It is shared, never copied.
	Client          any    `mapstructure:"-" yaml:"-"`
	Engine          string `mapstructure:"engine" yaml:"engine"`
	TableName       string `mapstructure:"table_name" yaml:"table_name"`
	AutoCreateTable bool   `mapstructure:"auto_create_table" yaml:"auto_create_table"`
}

type TransportsCfg struct {
	Enabled []string `mapstructure:"enabled" yaml:"enabled"`

	// Async hands events to a background goroutine instead of waiting for sinks.
	Async bool `mapstructure:"async" yaml:"async"`

	File     FileCfg     `mapstructure:"file" yaml:"file"`
	HTTP     HTTPCfg     `mapstructure:"http" yaml:"http"`
	Database DatabaseCfg `mapstructure:"database" yaml:"database"`
}

// TableRules narrows auditing for a single table. A nil Enabled means true.
type TableRules struct {
	Enabled           *bool       `mapstructure:"enabled" yaml:"enabled"`
	AuditedOperations []string    `mapstructure:"audited_operations" yaml:"audited_operations"`
	Sensitivity       Sensitivity `mapstructure:"sensitivity" yaml:"sensitivity"`
}

// OperationRules are global per-operation switches. A nil field means true.
type OperationRules struct {
	AuditSelect *bool `mapstructure:"audit_select" yaml:"audit_select"`
	AuditInsert *bool `mapstructure:"audit_insert" yaml:"audit_insert"`
	AuditUpdate *bool `mapstructure:"audit_update" yaml:"audit_update"`
	AuditDelete *bool `mapstructure:"audit_delete" yaml:"audit_delete"`
	AuditDDL    *bool `mapstructure:"audit_ddl" yaml:"audit_ddl"`
}

type Config struct {
	AppName        string                `mapstructure:"app_name" yaml:"app_name"`
	Environment    string                `mapstructure:"environment" yaml:"environment"`
	Transports     TransportsCfg         `mapstructure:"transports" yaml:"transports"`
	TableRules     map[string]TableRules `mapstructure:"table_rules" yaml:"table_rules"`
	OperationRules OperationRules        `mapstructure:"operation_rules" yaml:"operation_rules"`
}

// Bool returns a pointer to b, for populating rule fields.
func Bool(b bool) *bool { return &b }

// Flag reports the value of a rule pointer, treating nil as true.
func Flag(b *bool) bool { return b == nil || *b }

// Defaults returns the configuration used for every field Init leaves empty.
func Defaults() Config {
	return Config{
		AppName:     DefaultAppName,
		Environment: DefaultEnvironment,
		Transports: TransportsCfg{
			Enabled: []string{TransportConsole},
			File:    FileCfg{Path: DefaultFilePath},
			HTTP:    HTTPCfg{Timeout: DefaultHTTPTimeout},
			Database: DatabaseCfg{
				TableName: DefaultTableName,
			},
		},
		TableRules: map[string]TableRules{},
		OperationRules: OperationRules{
			AuditSelect: Bool(true),
			AuditInsert: Bool(true),
			AuditUpdate: Bool(true),
			AuditDelete: Bool(true),
			AuditDDL:    Bool(true),
		},
	}
}

// Merge layers override on top of base. Non-zero scalars replace, transport
// sub-objects merge field by field, table rules and operation rules merge by key.
func Merge(base, override Config) Config {
	out := base.Clone()

	if override.AppName != "" {
		out.AppName = override.AppName
	}
	if override.Environment != "" {
		out.Environment = override.Environment
	}

	t := override.Transports
	if t.Enabled != nil {
		out.Transports.Enabled = slices.Clone(t.Enabled)
	}
	if t.Async {
		out.Transports.Async = true
	}
	if t.File.Path != "" {
		out.Transports.File.Path = t.File.Path
	}
	if t.HTTP.Endpoint != "" {
		out.Transports.HTTP.Endpoint = t.HTTP.Endpoint
	}
	if t.HTTP.Timeout > 0 {
		out.Transports.HTTP.Timeout = t.HTTP.Timeout
	}
	if t.HTTP.MaxRetries > 0 {
		out.Transports.HTTP.MaxRetries = t.HTTP.MaxRetries
	}
	if t.HTTP.Headers != nil {
		out.Transports.HTTP.Headers = cloneMap(t.HTTP.Headers)
	}
	if t.Database.Client != nil {
		out.Transports.Database.Client = t.Database.Client
	}
	if t.Database.Engine != "" {
		out.Transports.Database.Engine = t.Database.Engine
	}
	if t.Database.TableName != "" {
		out.Transports.Database.TableName = t.Database.TableName
	}
	if t.Database.AutoCreateTable {
		out.Transports.Database.AutoCreateTable = true
	}

	for name, rule := range override.TableRules {
		out.TableRules[name] = rule.clone()
	}
	out.OperationRules = out.OperationRules.patch(override.OperationRules)

	return out
}

// Validate checks the merged configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.AppName) == "" {
		return oops.Code(CodeInvalid).
			With("field", "app_name").
			Errorf("invalid configuration: app_name is required")
	}
	if !slices.Contains(allowedEnvironments, c.Environment) {
		return oops.Code(CodeInvalid).
			With("field", "environment").
			With("value", c.Environment).
			Errorf("invalid configuration: environment must be one of %s", strings.Join(allowedEnvironments, ", "))
	}
	if c.Transports.Enabled == nil {
		return oops.Code(CodeInvalid).
			With("field", "transports.enabled").
			Errorf("invalid configuration: transports.enabled is required, for example [console]")
	}
	for name, rule := range c.TableRules {
		if err := rule.validate(name); err != nil {
			return err
		}
	}
	return nil
}

func (r TableRules) validate(table string) error {
	switch r.Sensitivity {
	case "", SensitivityNormal, SensitivitySensitive, SensitivityHigh:
		return nil
	default:
		return oops.Code(CodeInvalid).
			With("table", table).
			With("value", string(r.Sensitivity)).
			Errorf("invalid configuration: sensitivity for table %q must be NORMAL, SENSITIVE or HIGH", table)
	}
}

// Clone returns a deep copy. The database client handle is shared.
func (c Config) Clone() Config {
	out := c
	out.Transports.Enabled = slices.Clone(c.Transports.Enabled)
	out.Transports.HTTP.Headers = cloneMap(c.Transports.HTTP.Headers)

	out.TableRules = make(map[string]TableRules, len(c.TableRules))
	for name, rule := range c.TableRules {
		out.TableRules[name] = rule.clone()
	}
	out.OperationRules = OperationRules{}.patch(c.OperationRules)
	return out
}

// IsEnabled reports whether the table rule allows auditing at all.
func (r TableRules) IsEnabled() bool { return Flag(r.Enabled) }

func (r TableRules) clone() TableRules {
	out := r
	if r.Enabled != nil {
		out.Enabled = Bool(*r.Enabled)
	}
	out.AuditedOperations = slices.Clone(r.AuditedOperations)
	return out
}

// patch returns r with every non-nil field of p applied, copying pointers.
func (r OperationRules) patch(p OperationRules) OperationRules {
	apply := func(dst **bool, src *bool) {
		if src != nil {
			*dst = Bool(*src)
		} else if *dst != nil {
			*dst = Bool(**dst)
		}
	}
	apply(&r.AuditSelect, p.AuditSelect)
	apply(&r.AuditInsert, p.AuditInsert)
	apply(&r.AuditUpdate, p.AuditUpdate)
	apply(&r.AuditDelete, p.AuditDelete)
	apply(&r.AuditDDL, p.AuditDDL)
	return r
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
