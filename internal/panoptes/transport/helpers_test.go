package transport

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/vaibhaw-/panoptes/internal/panoptes/auditctx"
	"github.com/vaibhaw-/panoptes/internal/panoptes/event"
	"github.com/vaibhaw-/panoptes/internal/panoptes/sqlparse"
)

func sampleEvent(t *testing.T) event.Event {
	t.Helper()
	sql := "UPDATE users SET email='x' WHERE id=7"
	n := int64(1)
	return event.Build(event.Input{
		EventID:     "evt-1",
		AppName:     "billing",
		Environment: "dev",
		DB:          event.DBInfo{Engine: "sqlite", Host: "local", Name: "app", User: "local", Schema: "main"},
		SQL:         sql,
		DurationMS:  2.25,
		RowCount:    &n,
		Success:     true,
		User: &auditctx.UserContext{
			ActorType: auditctx.ActorUser,
			AppUserID: 42,
			AppRoles:  []string{"admin"},
			RequestID: "req-1",
		},
		Parsed: sqlparse.Classify(sql),
		Reason: "default:allowed",
		Now:    time.Date(2024, 3, 10, 12, 30, 0, 0, time.UTC),
	})
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// countingClient records every statement sent through it.
type countingClient struct {
	Client

	mu     sync.Mutex
	probes int
	execs  []string
	// failExec makes Exec fail for statements containing this text.
	failExec string
}

func newCountingClient(inner Client) *countingClient {
	return &countingClient{Client: inner}
}

func (c *countingClient) QueryRow(ctx context.Context, query string, args ...any) Row {
	c.mu.Lock()
	c.probes++
	c.mu.Unlock()
	return c.Client.QueryRow(ctx, query, args...)
}

func (c *countingClient) Exec(ctx context.Context, query string, args ...any) error {
	c.mu.Lock()
	c.execs = append(c.execs, query)
	fail := c.failExec != "" && strings.Contains(query, c.failExec)
	c.mu.Unlock()
	if fail {
		return errFailExec
	}
	return c.Client.Exec(ctx, query, args...)
}

func (c *countingClient) count(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, q := range c.execs {
		if strings.HasPrefix(q, prefix) {
			n++
		}
	}
	return n
}

func (c *countingClient) probeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.probes
}

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

const errFailExec = sentinelError("exec failed")
