// Package engine is the per-query entry point that interceptors call after a
// statement has run.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vaibhaw-/panoptes/internal/panoptes/auditctx"
	"github.com/vaibhaw-/panoptes/internal/panoptes/config"
	"github.com/vaibhaw-/panoptes/internal/panoptes/event"
	"github.com/vaibhaw-/panoptes/internal/panoptes/logger"
	"github.com/vaibhaw-/panoptes/internal/panoptes/rules"
	"github.com/vaibhaw-/panoptes/internal/panoptes/sqlparse"
	"github.com/vaibhaw-/panoptes/internal/panoptes/transport"
)

// Payload is what an interceptor reports for one executed statement.
type Payload struct {
	DB         event.DBInfo
	SQL        string
	Params     []any
	DurationMS float64

	// RowCount is nil when the driver does not report affected rows.
	RowCount *int64

	Success bool
	Err     error

	Before []event.Row
	After  []event.Row
}

// Engine glues classification, rule evaluation, event construction and
// dispatch together.
type Engine struct {
	store      *config.Store
	dispatcher *transport.Dispatcher
	tracer     trace.Tracer
	now        func() time.Time
	newID      func() string

	// inflight holds a done channel per running async dispatch.
	mu       sync.Mutex
	seq      uint64
	inflight map[uint64]chan struct{}
}

type Option func(*Engine)

func WithDispatcher(d *transport.Dispatcher) Option {
	return func(e *Engine) { e.dispatcher = d }
}

// WithTracer sets the tracer used for dispatch and interceptor spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(store *config.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		tracer: noop.NewTracerProvider().Tracer("noop"),
		now:    time.Now,
		newID:  uuid.NewString,

		inflight: map[uint64]chan struct{}{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.dispatcher == nil {
		e.dispatcher = transport.NewDispatcher()
	}
	return e
}

func (e *Engine) Store() *config.Store { return e.store }

func (e *Engine) Tracer() trace.Tracer { return e.tracer }

// Enabled reports whether the store has been initialized. Interceptors use it
// to skip work such as snapshot capture when nothing will be recorded.
func (e *Engine) Enabled() bool { return e.store.Initialized() }

// Decide classifies sql and evaluates the current rules without recording
// anything.
func (e *Engine) Decide(sql string) (sqlparse.ParsedSQL, rules.Verdict, bool) {
	cfg, ok := e.store.Get()
	if !ok {
		return sqlparse.ParsedSQL{}, rules.Verdict{}, false
	}
	parsed := sqlparse.Classify(sql)
	return parsed, rules.Decide(cfg, parsed), true
}

// AuditQuery records one statement. It is a no-op before the store is
// initialized and never fails: the statement's own error is recorded in the
// event, delivery errors are logged by the dispatcher.
//
// Dispatch is synchronous unless Transports.Async is set, in which case the
// event is handed to a background goroutine and Flush waits for it.
func (e *Engine) AuditQuery(ctx context.Context, p Payload) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, ok := e.store.Get()
	if !ok {
		return
	}

	user := auditctx.Get(ctx)
	parsed := sqlparse.Classify(p.SQL)

	verdict := rules.Decide(cfg, parsed)
	if !verdict.Audit {
		logger.L().Debugw("statement not audited",
			"reason", verdict.Reason,
			"operation", parsed.OperationType,
			"table", parsed.MainTable,
		)
		return
	}

	in := event.Input{
		EventID:     e.newID(),
		AppName:     cfg.AppName,
		Environment: cfg.Environment,
		DB:          p.DB,
		SQL:         p.SQL,
		Params:      p.Params,
		DurationMS:  p.DurationMS,
		RowCount:    p.RowCount,
		Success:     p.Success && p.Err == nil,
		User:        user,
		Parsed:      parsed,
		Reason:      verdict.Reason,
		Before:      p.Before,
		After:       p.After,
		Now:         e.now(),
	}
	if p.Err != nil {
		in.ErrorCode = ErrorCode(p.Err)
		in.ErrorMessage = p.Err.Error()
	}
	ev := event.Build(in)

	dctx := context.WithoutCancel(ctx)
	if cfg.Transports.Async {
		done := e.track()
		go func() {
			defer done()
			e.dispatch(dctx, ev, cfg)
		}()
		return
	}
	e.dispatch(dctx, ev, cfg)
}

func (e *Engine) dispatch(ctx context.Context, ev event.Event, cfg config.Config) {
	ctx, span := e.tracer.Start(ctx, "panoptes.dispatch",
		trace.WithAttributes(
			attribute.String("panoptes.event_id", ev.Meta.EventID),
			attribute.String("db.operation.name", string(ev.Operation.Type)),
			attribute.StringSlice("panoptes.transports", cfg.Transports.Enabled),
		),
	)
	defer span.End()

	e.dispatcher.Dispatch(ctx, ev, cfg)
}

// track registers an async dispatch and returns the func that retires it.
func (e *Engine) track() func() {
	ch := make(chan struct{})

	e.mu.Lock()
	e.seq++
	id := e.seq
	e.inflight[id] = ch
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.inflight, id)
		e.mu.Unlock()
		close(ch)
	}
}

// Flush waits for asynchronous dispatches started before the call. Dispatches
// started while it waits are left to a later Flush.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	pending := make([]chan struct{}, 0, len(e.inflight))
	for _, ch := range e.inflight {
		pending = append(pending, ch)
	}
	e.mu.Unlock()

	for _, ch := range pending {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close flushes pending dispatches and releases sink resources.
func (e *Engine) Close(ctx context.Context) error {
	if err := e.Flush(ctx); err != nil {
		return err
	}
	return e.dispatcher.Close()
}
