package simulate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/vaibhaw-/panoptes/internal/panoptes/auditctx"
	"github.com/vaibhaw-/panoptes/internal/panoptes/logger"
)

var drugNames = []string{
	"Atorvastatin", "Levothyroxine", "Lisinopril", "Metformin", "Amlodipine",
	"Metoprolol", "Omeprazole", "Simvastatin", "Losartan", "Albuterol",
	"Gabapentin", "Sertraline", "Furosemide", "Prednisone", "Amoxicillin",
}

var (
	dosageForms  = []string{"tablet", "capsule", "injection", "syrup", "ointment"}
	orderStatus  = []string{"PENDING", "FILLED", "CANCELLED"}
	actorRoles   = []string{"pharmacist", "clerk", "admin", "auditor"}
	sourceApps   = []string{"pharmacy-web", "pharmacy-batch"}
	schemaTables = []string{
		`CREATE TABLE IF NOT EXISTS patient (
    patient_id TEXT PRIMARY KEY,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL,
    email TEXT,
    phone_number TEXT,
    city TEXT
)`,
		`CREATE TABLE IF NOT EXISTS drug (
    drug_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    dosage_form TEXT NOT NULL,
    price REAL NOT NULL,
    stock_qty INTEGER NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS pharmacy_order (
    order_id TEXT PRIMARY KEY,
    patient_id TEXT NOT NULL REFERENCES patient(patient_id),
    drug_id TEXT NOT NULL REFERENCES drug(drug_id),
    status TEXT NOT NULL,
    total_price REAL NOT NULL
)`,
	}
)

// dataset holds the ids seeded so generated statements hit real rows.
type dataset struct {
	PatientIDs []string
	DrugIDs    []string
	OrderIDs   []string
}

// seed creates the workload schema and fills it with fake rows. It writes
// through the raw handle so seeding is not audited.
func seed(ctx context.Context, db *sql.DB, cfg Config) (dataset, error) {
	var ds dataset
	for _, ddl := range schemaTables {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return ds, fmt.Errorf("create workload schema: %w", err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return ds, fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := 0; i < cfg.Patients; i++ {
		id := gofakeit.UUID()
		_, err := tx.ExecContext(ctx,
			`INSERT INTO patient (patient_id, first_name, last_name, email, phone_number, city) VALUES (?, ?, ?, ?, ?, ?)`,
			id, gofakeit.FirstName(), gofakeit.LastName(), gofakeit.Email(), gofakeit.PhoneFormatted(), gofakeit.City())
		if err != nil {
			return ds, fmt.Errorf("seed patient: %w", err)
		}
		ds.PatientIDs = append(ds.PatientIDs, id)
	}

	for i := 0; i < cfg.Drugs; i++ {
		id := gofakeit.UUID()
		_, err := tx.ExecContext(ctx,
			`INSERT INTO drug (drug_id, name, dosage_form, price, stock_qty) VALUES (?, ?, ?, ?, ?)`,
			id, gofakeit.RandomString(drugNames), gofakeit.RandomString(dosageForms), gofakeit.Price(5, 500), gofakeit.Number(0, 500))
		if err != nil {
			return ds, fmt.Errorf("seed drug: %w", err)
		}
		ds.DrugIDs = append(ds.DrugIDs, id)
	}

	for i := 0; i < cfg.Orders; i++ {
		id := gofakeit.UUID()
		_, err := tx.ExecContext(ctx,
			`INSERT INTO pharmacy_order (order_id, patient_id, drug_id, status, total_price) VALUES (?, ?, ?, ?, ?)`,
			id, gofakeit.RandomString(ds.PatientIDs), gofakeit.RandomString(ds.DrugIDs), gofakeit.RandomString(orderStatus), gofakeit.Price(10, 1000))
		if err != nil {
			return ds, fmt.Errorf("seed order: %w", err)
		}
		ds.OrderIDs = append(ds.OrderIDs, id)
	}

	if err := tx.Commit(); err != nil {
		return ds, fmt.Errorf("commit seed: %w", err)
	}

	logger.L().Infow("workload seeded",
		"patients", len(ds.PatientIDs),
		"drugs", len(ds.DrugIDs),
		"orders", len(ds.OrderIDs),
	)
	return ds, nil
}

// fakeActors builds the identities the workload runs as.
func fakeActors(n int) []auditctx.UserContext {
	actors := make([]auditctx.UserContext, 0, n)
	for i := 0; i < n; i++ {
		actors = append(actors, auditctx.UserContext{
			ActorType:   auditctx.ActorUser,
			AppUserID:   gofakeit.Number(1000, 9999),
			AppUsername: gofakeit.Username(),
			AppRoles:    []string{gofakeit.RandomString(actorRoles)},
			TenantID:    fmt.Sprintf("tenant-%d", gofakeit.Number(1, 3)),
			IPAddress:   gofakeit.IPv4Address(),
			UserAgent:   gofakeit.UserAgent(),
			SessionID:   gofakeit.UUID(),
			SourceApp:   gofakeit.RandomString(sourceApps),
		})
	}
	return actors
}
