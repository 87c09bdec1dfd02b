// Package simulate drives a concurrent synthetic workload through an audited
// SQLite handle. It is used as an end-to-end smoke test of the pipeline.
package simulate

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vaibhaw-/panoptes/internal/panoptes/adapter"
	"github.com/vaibhaw-/panoptes/internal/panoptes/auditctx"
	"github.com/vaibhaw-/panoptes/internal/panoptes/engine"
	"github.com/vaibhaw-/panoptes/internal/panoptes/logger"
	_ "github.com/vaibhaw-/panoptes/internal/panoptes/sqliteerr"
)

// Result summarizes a finished run.
type Result struct {
	Ops     map[string]int
	Errors  int
	Elapsed time.Duration
}

// Total is the number of statements executed, failed ones included.
func (r Result) Total() int {
	n := r.Errors
	for _, c := range r.Ops {
		n += c
	}
	return n
}

// Run seeds cfg.Database and executes cfg.TotalOps statements across
// cfg.Concurrency workers, each under a randomly chosen fake actor.
func Run(ctx context.Context, eng *engine.Engine, cfg Config) (Result, error) {
	cfg.applyDefaults()
	gofakeit.Seed(cfg.Seed)

	raw, err := sql.Open("sqlite3", cfg.Database+"?_busy_timeout=5000")
	if err != nil {
		return Result{}, fmt.Errorf("open %s: %w", cfg.Database, err)
	}
	defer raw.Close()
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY churn.
	raw.SetMaxOpenConns(1)

	ds, err := seed(ctx, raw, cfg)
	if err != nil {
		return Result{}, err
	}

	opts := []adapter.Option{adapter.WithDBName(cfg.RunID)}
	if cfg.Snapshots {
		opts = append(opts, adapter.WithSnapshots(0))
	}
	db, err := adapter.WrapDB(eng, raw, "sqlite", opts...)
	if err != nil {
		return Result{}, err
	}

	actors := fakeActors(cfg.Actors)

	logger.L().Infow("starting workload",
		"run_id", cfg.RunID,
		"ops", cfg.TotalOps,
		"concurrency", cfg.Concurrency,
		"seed", cfg.Seed,
	)

	ops := make(chan string, cfg.TotalOps)
	for i := 0; i < cfg.TotalOps; i++ {
		ops <- cfg.Mix.pick(gofakeit.Float64())
	}
	close(ops)

	var (
		mu  sync.Mutex
		res = Result{Ops: map[string]int{}}
		wg  sync.WaitGroup
	)
	start := time.Now()

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for op := range ops {
				if ctx.Err() != nil {
					return
				}
				actor := actors[gofakeit.Number(0, len(actors)-1)]
				actor.RequestID = gofakeit.UUID()

				err := auditctx.Run(ctx, actor, func(ctx context.Context) error {
					return execute(ctx, db, op, ds)
				})

				mu.Lock()
				if err != nil {
					res.Errors++
					logger.L().Warnw("workload statement failed", "worker", w, "operation", op, "error", err)
				} else {
					res.Ops[op]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	res.Elapsed = time.Since(start)

	if err := eng.Flush(ctx); err != nil {
		return res, fmt.Errorf("flush audit events: %w", err)
	}

	logger.L().Infow("workload complete",
		"run_id", cfg.RunID,
		"select", res.Ops["SELECT"],
		"insert", res.Ops["INSERT"],
		"update", res.Ops["UPDATE"],
		"delete", res.Ops["DELETE"],
		"errors", res.Errors,
		"elapsed", res.Elapsed,
	)
	return res, ctx.Err()
}

// execute runs one generated statement. UPDATE and DELETE inline their
// predicate so snapshot capture can replay it.
func execute(ctx context.Context, db *adapter.DB, op string, ds dataset) error {
	switch op {
	case "SELECT":
		rows, err := db.QueryContext(ctx,
			`SELECT o.order_id, o.status, p.email FROM pharmacy_order o JOIN patient p ON p.patient_id = o.patient_id WHERE o.patient_id = ?`,
			gofakeit.RandomString(ds.PatientIDs))
		if err != nil {
			return err
		}
		defer rows.Close()
		n := 0
		for rows.Next() {
			n++
		}
		logger.L().Debugw("orders read", "rows", n)
		return rows.Err()

	case "INSERT":
		_, err := db.ExecContext(ctx,
			`INSERT INTO pharmacy_order (order_id, patient_id, drug_id, status, total_price) VALUES (?, ?, ?, ?, ?)`,
			gofakeit.UUID(), gofakeit.RandomString(ds.PatientIDs), gofakeit.RandomString(ds.DrugIDs), "PENDING", gofakeit.Price(10, 1000))
		return err

	case "UPDATE":
		var q string
		if gofakeit.Bool() {
			q = fmt.Sprintf(`UPDATE drug SET stock_qty = %d WHERE drug_id = '%s'`,
				gofakeit.Number(0, 500), gofakeit.RandomString(ds.DrugIDs))
		} else {
			q = fmt.Sprintf(`UPDATE pharmacy_order SET status = '%s' WHERE order_id = '%s'`,
				gofakeit.RandomString(orderStatus), gofakeit.RandomString(ds.OrderIDs))
		}
		_, err := db.ExecContext(ctx, q)
		return err

	case "DELETE":
		_, err := db.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM pharmacy_order WHERE order_id = '%s'`, gofakeit.RandomString(ds.OrderIDs)))
		return err
	}
	return fmt.Errorf("unknown operation %q", op)
}
