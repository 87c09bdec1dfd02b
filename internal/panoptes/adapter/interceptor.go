package adapter

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vaibhaw-/panoptes/internal/panoptes/engine"
	"github.com/vaibhaw-/panoptes/internal/panoptes/event"
	"github.com/vaibhaw-/panoptes/internal/panoptes/logger"
	"github.com/vaibhaw-/panoptes/internal/panoptes/sqlparse"
)

// interceptor holds what every wrapper needs to report a statement.
type interceptor struct {
	eng     *engine.Engine
	adapter Adapter
	opts    Options
}

// call tracks one intercepted statement from start to report.
type call struct {
	ic     *interceptor
	ctx    context.Context
	span   trace.Span
	query  string
	args   []any
	start  time.Time
	before []event.Row

	// snapshot is the predicate used for data capture, empty when disabled.
	snapshot string
	table    string
	op       sqlparse.OperationType
}

func (ic *interceptor) begin(ctx context.Context, query string, args []any) *call {
	if ctx == nil {
		ctx = context.Background()
	}
	op := sqlparse.Classify(query).OperationType
	ctx, span := ic.eng.Tracer().Start(ctx, "panoptes.query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", string(ic.adapter.Engine())),
			attribute.String("db.statement", query),
			attribute.String("db.operation.name", string(op)),
		),
	)

	c := &call{ic: ic, ctx: ctx, span: span, query: query, args: args, op: op}
	if ic.opts.Snapshots && (op == sqlparse.OpUpdate || op == sqlparse.OpDelete) {
		parsed, verdict, ok := ic.eng.Decide(query)
		if ok && verdict.Audit && parsed.MainTable != "" {
			c.snapshot = sqlparse.WhereClause(query)
			c.table = parsed.MainTable
		}
	}

	c.start = time.Now()
	return c
}

// capturing reports whether before/after rows should be read.
func (c *call) capturing() bool { return c.snapshot != "" }

// captureFailed logs a snapshot error. The statement itself is unaffected.
func (c *call) captureFailed(phase string, err error) {
	logger.L().Warnw("snapshot capture failed",
		"phase", phase,
		"table", c.table,
		"engine", c.ic.adapter.Engine(),
		"error", err,
	)
}

// finish reports the statement and ends the span. after is only used for
// successful UPDATEs.
func (c *call) finish(rowCount *int64, err error, after []event.Row) {
	elapsed := time.Since(c.start)
	defer c.span.End()

	if err != nil {
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, err.Error())
	}
	if rowCount != nil {
		c.span.SetAttributes(attribute.Int64("db.response.returned_rows", *rowCount))
	}

	c.ic.eng.AuditQuery(c.ctx, engine.Payload{
		DB:         c.ic.adapter.DBInfo(),
		SQL:        c.query,
		Params:     c.args,
		DurationMS: float64(elapsed.Microseconds()) / 1000,
		RowCount:   rowCount,
		Success:    err == nil,
		Err:        err,
		Before:     c.before,
		After:      after,
	})
}

func typeName(v any) string { return fmt.Sprintf("%T", v) }
