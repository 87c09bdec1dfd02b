package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/vaibhaw-/panoptes/internal/panoptes/config"
	"github.com/vaibhaw-/panoptes/internal/panoptes/dialect"
	"github.com/vaibhaw-/panoptes/internal/panoptes/logger"
	"github.com/vaibhaw-/panoptes/internal/panoptes/transport"
)

var (
	schemaFlagEngine string
	schemaFlagTable  string
	schemaFlagOutput string

	createFlagEngine string
	createFlagDSN    string
	createFlagTable  string
	createFlagPgx    bool
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the audit table DDL for an engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := dialect.ParseEngine(firstNonEmpty(schemaFlagEngine, loaded.Transports.Database.Engine))
		if err != nil {
			return err
		}
		script, err := transport.TableScript(eng, tableName(schemaFlagTable))
		if err != nil {
			return err
		}

		var out io.Writer = cmd.OutOrStdout()
		if schemaFlagOutput != "" {
			f, err := os.Create(schemaFlagOutput)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer f.Close()
			out = f
		}
		_, err = io.WriteString(out, script)
		return err
	},
}

var createTableCmd = &cobra.Command{
	Use:   "create-table",
	Short: "Create the audit table and its indexes if they do not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := dialect.ParseEngine(firstNonEmpty(createFlagEngine, loaded.Transports.Database.Engine))
		if err != nil {
			return err
		}
		table := tableName(createFlagTable)

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		client, closeFn, err := openClient(ctx, eng, dsn(createFlagDSN), createFlagPgx)
		if err != nil {
			return err
		}
		defer closeFn()

		created, err := transport.EnsureTable(ctx, client, eng, table)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "created %s on %s\n", table, eng)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s already exists on %s\n", table, eng)
		}
		return nil
	},
}

func init() {
	schemaCmd.Flags().StringVar(&schemaFlagEngine, "engine", "", "engine: postgres|mysql|mssql|sqlite|oracle (default from config)")
	schemaCmd.Flags().StringVar(&schemaFlagTable, "table", "", "audit table name (default from config)")
	schemaCmd.Flags().StringVar(&schemaFlagOutput, "output", "", "output file (default stdout)")

	createTableCmd.Flags().StringVar(&createFlagEngine, "engine", "", "engine: postgres|mysql|sqlite (default from config)")
	createTableCmd.Flags().StringVar(&createFlagDSN, "dsn", "", "connection string (default transports.database.dsn)")
	createTableCmd.Flags().StringVar(&createFlagTable, "table", "", "audit table name (default from config)")
	createTableCmd.Flags().BoolVar(&createFlagPgx, "pgx", false, "connect to postgres with a pgx pool instead of lib/pq")
}

// openClient connects to the audit database. MSSQL and Oracle need drivers
// the CLI does not ship; use the schema command to get their DDL.
func openClient(ctx context.Context, eng dialect.Engine, dsn string, usePgx bool) (transport.Client, func(), error) {
	if dsn == "" {
		return nil, nil, fmt.Errorf("no dsn: pass --dsn or set transports.database.dsn")
	}

	if eng == dialect.Postgres && usePgx {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connect pgx pool: %w", err)
		}
		return transport.PgxClient(pool), pool.Close, nil
	}

	db, err := openDB(eng, dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping %s: %w", eng, err)
	}
	return transport.SQLClient(db), func() { _ = db.Close() }, nil
}

func openDB(eng dialect.Engine, dsn string) (*sql.DB, error) {
	var driver string
	switch eng {
	case dialect.Postgres:
		driver = "postgres"
	case dialect.MySQL:
		driver = "mysql"
	case dialect.SQLite:
		driver = "sqlite3"
	default:
		return nil, fmt.Errorf("no bundled driver for %s", eng)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", eng, err)
	}
	if eng == dialect.SQLite {
		// one writer at a time
		db.SetMaxOpenConns(1)
	}
	logger.L().Debugw("opened audit database", "engine", eng, "driver", driver)
	return db, nil
}

func tableName(flag string) string {
	return firstNonEmpty(flag, loaded.Transports.Database.TableName, config.DefaultTableName)
}

func dsn(flag string) string {
	return firstNonEmpty(flag, loadedDSN())
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
