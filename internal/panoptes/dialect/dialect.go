// Package dialect names the supported database engines and their SQL quirks.
package dialect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/oops"
)

// Engine is one of the supported database engines.
type Engine string

const (
	Postgres Engine = "postgres"
	MySQL    Engine = "mysql"
	MSSQL    Engine = "mssql"
	SQLite   Engine = "sqlite"
	Oracle   Engine = "oracle"
)

// CodeUnsupportedEngine tags errors for engine names outside the closed set.
const CodeUnsupportedEngine = "UNSUPPORTED_ENGINE"

// Engines lists every supported engine in a stable order.
var Engines = []Engine{Postgres, MySQL, MSSQL, SQLite, Oracle}

var aliases = map[string]Engine{
	"postgres":   Postgres,
	"postgresql": Postgres,
	"pg":         Postgres,
	"pgx":        Postgres,
	"mysql":      MySQL,
	"mariadb":    MySQL,
	"mssql":      MSSQL,
	"sqlserver":  MSSQL,
	"sqlite":     SQLite,
	"sqlite3":    SQLite,
	"oracle":     Oracle,
}

// ParseEngine accepts an engine name or a common alias, case-insensitively.
func ParseEngine(name string) (Engine, error) {
	if e, ok := aliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return e, nil
	}
	return "", oops.Code(CodeUnsupportedEngine).
		With("engine", name).
		Errorf("unsupported database engine %q; supported: postgres, mysql, mssql, sqlite, oracle", name)
}

func (e Engine) String() string { return string(e) }

// Placeholder returns the bind marker for the n-th (1-based) parameter.
func (e Engine) Placeholder(n int) string {
	switch e {
	case Postgres:
		return fmt.Sprintf("$%d", n)
	case MSSQL:
		return fmt.Sprintf("@p%d", n)
	case Oracle:
		return fmt.Sprintf(":%d", n)
	default:
		return "?"
	}
}

// Quote quotes a column name so reserved words such as timestamp, date and
// time can be used as identifiers.
func (e Engine) Quote(name string) string {
	switch e {
	case MySQL:
		return "`" + name + "`"
	case MSSQL:
		return "[" + name + "]"
	case Oracle:
		return `"` + strings.ToUpper(name) + `"`
	default:
		return `"` + name + `"`
	}
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidIdentifier reports whether name is a plain, optionally schema-qualified
// identifier that is safe to interpolate into SQL text.
func ValidIdentifier(name string) bool {
	return identPattern.MatchString(name)
}
