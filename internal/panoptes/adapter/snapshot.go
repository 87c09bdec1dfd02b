package adapter

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vaibhaw-/panoptes/internal/panoptes/dialect"
	"github.com/vaibhaw-/panoptes/internal/panoptes/event"
)

// snapshotQuery builds the row-limited SELECT used for before/after capture.
func snapshotQuery(eng dialect.Engine, table, where string, limit int) (string, error) {
	if !dialect.ValidIdentifier(table) {
		return "", fmt.Errorf("table %q is not a plain identifier", table)
	}
	switch eng {
	case dialect.MSSQL:
		return fmt.Sprintf("SELECT TOP %d * FROM %s WHERE %s", limit, table, where), nil
	case dialect.Oracle:
		return fmt.Sprintf("SELECT * FROM %s WHERE %s FETCH FIRST %d ROWS ONLY", table, where, limit), nil
	default:
		return fmt.Sprintf("SELECT * FROM %s WHERE %s LIMIT %d", table, where, limit), nil
	}
}

type sqlRowQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// captureSQL reads the rows matched by the call's predicate through q.
func (c *call) captureSQL(ctx context.Context, q sqlRowQuerier) ([]event.Row, error) {
	query, err := snapshotQuery(c.ic.adapter.Engine(), c.table, c.snapshot, c.ic.opts.SnapshotLimit)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", c.table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []event.Row{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("snapshot %s: scan: %w", c.table, err)
		}
		row := make(event.Row, len(cols))
		for i, col := range cols {
			row[col] = plainValue(vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", c.table, err)
	}
	return out, nil
}

type pgxRowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// capturePgx is captureSQL for pgx handles.
func (c *call) capturePgx(ctx context.Context, q pgxRowQuerier) ([]event.Row, error) {
	query, err := snapshotQuery(dialect.Postgres, c.table, c.snapshot, c.ic.opts.SnapshotLimit)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", c.table, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", c.table, err)
	}

	out := make([]event.Row, 0, len(maps))
	for _, m := range maps {
		out = append(out, event.Row(m))
	}
	return out, nil
}

// plainValue turns driver byte slices into strings so rows serialize as text.
func plainValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
