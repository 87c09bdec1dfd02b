package transport

import (
	"fmt"
	"strings"

	"github.com/samber/oops"

	"github.com/vaibhaw-/panoptes/internal/panoptes/config"
	"github.com/vaibhaw-/panoptes/internal/panoptes/dialect"
)

// CodeInvalidTable tags errors for audit table names that are not plain identifiers.
const CodeInvalidTable = "INVALID_TABLE_NAME"

type column struct {
	name     string
	reserved bool
	// postgres, mysql, mssql, sqlite, oracle
	types [5]string
}

func (c column) sqlType(e dialect.Engine) string {
	switch e {
	case dialect.Postgres:
		return c.types[0]
	case dialect.MySQL:
		return c.types[1]
	case dialect.MSSQL:
		return c.types[2]
	case dialect.SQLite:
		return c.types[3]
	default:
		return c.types[4]
	}
}

func (c column) ident(e dialect.Engine) string {
	if c.reserved {
		return e.Quote(c.name)
	}
	return c.name
}

const (
	pgText  = "TEXT"
	myText  = "TEXT"
	msText  = "NVARCHAR(MAX)"
	orClob  = "CLOB"
	liteTxt = "TEXT"
)

func str(n int) [5]string {
	return [5]string{
		fmt.Sprintf("VARCHAR(%d)", n),
		fmt.Sprintf("VARCHAR(%d)", n),
		fmt.Sprintf("NVARCHAR(%d)", n),
		liteTxt,
		fmt.Sprintf("VARCHAR2(%d)", n),
	}
}

func notNull(t [5]string) [5]string {
	for i := range t {
		t[i] += " NOT NULL"
	}
	return t
}

var (
	longText = [5]string{pgText, myText, msText, liteTxt, orClob}
	jsonType = [5]string{"JSONB", "JSON", msText, liteTxt, orClob}
)

// auditColumns is the fixed column set of the audit table, id and created_at
// excluded, in insert order.
var auditColumns = []column{
	{name: "app_name", types: notNull(str(255))},
	{name: "environment", types: notNull(str(50))},
	{name: "timestamp", reserved: true, types: [5]string{
		"TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP",
		"TIMESTAMP(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3)",
		"DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME()",
		"TEXT NOT NULL",
		"TIMESTAMP DEFAULT CURRENT_TIMESTAMP NOT NULL",
	}},
	{name: "timestamp_unix", types: notNull([5]string{"BIGINT", "BIGINT", "BIGINT", "INTEGER", "NUMBER(19)"})},
	{name: "date", reserved: true, types: notNull([5]string{"DATE", "DATE", "DATE", "TEXT", "VARCHAR2(10)"})},
	{name: "time", reserved: true, types: notNull([5]string{"TIME", "TIME", "TIME", "TEXT", "VARCHAR2(8)"})},
	{name: "duration_ms", types: [5]string{"NUMERIC(12, 3)", "DECIMAL(12, 3)", "DECIMAL(12, 3)", "REAL", "NUMBER(12, 3)"}},
	{name: "reason", types: str(255)},
	{name: "db_engine", types: notNull(str(50))},
	{name: "db_host", types: str(255)},
	{name: "db_name", types: str(255)},
	{name: "db_user", types: str(255)},
	{name: "db_schema", types: str(255)},
	{name: "operation_type", types: notNull(str(50))},
	{name: "operation_category", types: str(50)},
	{name: "main_table", types: str(255)},
	{name: "tables_involved", types: jsonType},
	{name: "sql_raw", types: notNull(longText)},
	{name: "sql_normalized", types: longText},
	{name: "sql_parameters", types: jsonType},
	{name: "row_count", types: [5]string{"BIGINT", "BIGINT", "BIGINT", "INTEGER", "NUMBER(19)"}},
	{name: "success", types: [5]string{
		"BOOLEAN NOT NULL DEFAULT TRUE",
		"BOOLEAN NOT NULL DEFAULT TRUE",
		"BIT NOT NULL DEFAULT 1",
		"INTEGER NOT NULL DEFAULT 1",
		"NUMBER(1) DEFAULT 1 NOT NULL",
	}},
	{name: "error_code", types: str(255)},
	{name: "error_message", types: longText},
	{name: "data_before", types: jsonType},
	{name: "data_after", types: jsonType},
	{name: "actor_type", types: str(50)},
	{name: "actor_user_id", types: str(255)},
	{name: "actor_username", types: str(255)},
	{name: "actor_roles", types: jsonType},
	{name: "actor_tenant_id", types: str(255)},
	{name: "request_ip", types: str(45)},
	{name: "request_user_agent", types: longText},
	{name: "request_id", types: str(255)},
	{name: "request_session_id", types: str(255)},
}

var indexedColumns = []string{"timestamp", "app_name", "main_table", "operation_type", "actor_user_id", "success", "date"}

func columnByName(name string) column {
	for _, c := range auditColumns {
		if c.name == name {
			return c
		}
	}
	return column{name: name}
}

func indexName(table, col string) string {
	if table == config.DefaultTableName {
		return "idx_panoptes_" + col
	}
	return "idx_" + strings.ReplaceAll(table, ".", "_") + "_" + col
}

func checkTable(table string) error {
	if !dialect.ValidIdentifier(table) {
		return oops.Code(CodeInvalidTable).
			With("table", table).
			Errorf("invalid audit table name %q", table)
	}
	return nil
}

// TableDDL returns the statements that create the audit table and its
// indexes. Every statement is safe to run when the object already exists.
func TableDDL(engine dialect.Engine, table string) ([]string, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	var defs []string
	defs = append(defs, "id "+map[dialect.Engine]string{
		dialect.Postgres: "BIGSERIAL PRIMARY KEY",
		dialect.MySQL:    "BIGINT AUTO_INCREMENT PRIMARY KEY",
		dialect.MSSQL:    "BIGINT IDENTITY(1,1) PRIMARY KEY",
		dialect.SQLite:   "INTEGER PRIMARY KEY AUTOINCREMENT",
		dialect.Oracle:   "NUMBER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY",
	}[engine])
	for _, c := range auditColumns {
		defs = append(defs, c.ident(engine)+" "+c.sqlType(engine))
	}
	defs = append(defs, "created_at "+map[dialect.Engine]string{
		dialect.Postgres: "TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP",
		dialect.MySQL:    "TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP",
		dialect.MSSQL:    "DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME()",
		dialect.SQLite:   "TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP",
		dialect.Oracle:   "TIMESTAMP DEFAULT CURRENT_TIMESTAMP NOT NULL",
	}[engine])

	switch engine {
	case dialect.MySQL:
		for _, col := range indexedColumns {
			defs = append(defs, fmt.Sprintf("INDEX %s (%s)", indexName(table, col), columnByName(col).ident(engine)))
		}
		return []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci",
			table, strings.Join(defs, ",\n  "))}, nil

	case dialect.Postgres, dialect.SQLite:
		stmts := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", table, strings.Join(defs, ",\n  "))}
		for _, col := range indexedColumns {
			stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
				indexName(table, col), table, columnByName(col).ident(engine)))
		}
		return stmts, nil

	case dialect.MSSQL:
		stmts := []string{fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nCREATE TABLE %s (\n  %s\n)",
			table, table, strings.Join(defs, ",\n  "))}
		for _, col := range indexedColumns {
			idx := indexName(table, col)
			stmts = append(stmts, fmt.Sprintf(
				"IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'%s' AND object_id = OBJECT_ID(N'%s'))\nCREATE INDEX %s ON %s (%s)",
				idx, table, idx, table, columnByName(col).ident(engine)))
		}
		return stmts, nil

	case dialect.Oracle:
		stmts := []string{oracleGuard(fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", table, strings.Join(defs, ",\n  ")))}
		for _, col := range indexedColumns {
			stmts = append(stmts, oracleGuard(fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
				indexName(table, col), table, columnByName(col).ident(engine))))
		}
		return stmts, nil
	}

	return nil, oops.Code(dialect.CodeUnsupportedEngine).
		With("engine", string(engine)).
		Errorf("unsupported database engine %q", engine)
}

// TableScript renders TableDDL as a script for the engine's command-line
// client. Oracle blocks are terminated with "/" as SQL*Plus expects.
func TableScript(engine dialect.Engine, table string) (string, error) {
	stmts, err := TableDDL(engine, table)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i, stmt := range stmts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(stmt)
		if engine == dialect.Oracle {
			b.WriteString("\n/")
		} else {
			b.WriteString(";")
		}
	}
	b.WriteString("\n")
	return b.String(), nil
}

// oracleGuard runs ddl and ignores ORA-00955 (name already used) and
// ORA-01408 (column list already indexed).
func oracleGuard(ddl string) string {
	return "BEGIN\n  EXECUTE IMMEDIATE '" + strings.ReplaceAll(ddl, "'", "''") + "';\n" +
		"EXCEPTION\n  WHEN OTHERS THEN\n    IF SQLCODE NOT IN (-955, -1408) THEN\n      RAISE;\n    END IF;\nEND;"
}

// ExistsQuery returns a probe whose single result column is the number of
// tables named table visible to the connection.
func ExistsQuery(engine dialect.Engine, table string) (string, []any, error) {
	if err := checkTable(table); err != nil {
		return "", nil, err
	}

	schema, name, qualified := strings.Cut(table, ".")
	if !qualified {
		name = schema
	}

	switch engine {
	case dialect.Postgres:
		if qualified {
			return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2",
				[]any{schema, name}, nil
		}
		return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ANY(current_schemas(false)) AND table_name = $1",
			[]any{name}, nil
	case dialect.MySQL:
		if qualified {
			return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?",
				[]any{schema, name}, nil
		}
		return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?",
			[]any{name}, nil
	case dialect.MSSQL:
		return "SELECT CASE WHEN OBJECT_ID(@p1, 'U') IS NULL THEN 0 ELSE 1 END", []any{table}, nil
	case dialect.SQLite:
		if qualified {
			return fmt.Sprintf("SELECT COUNT(*) FROM %s.sqlite_master WHERE type = 'table' AND name = ?", schema),
				[]any{name}, nil
		}
		return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", []any{name}, nil
	case dialect.Oracle:
		if qualified {
			return "SELECT COUNT(*) FROM all_tables WHERE owner = UPPER(:1) AND table_name = UPPER(:2)",
				[]any{schema, name}, nil
		}
		return "SELECT COUNT(*) FROM user_tables WHERE table_name = UPPER(:1)", []any{name}, nil
	}

	return "", nil, oops.Code(dialect.CodeUnsupportedEngine).
		With("engine", string(engine)).
		Errorf("unsupported database engine %q", engine)
}
