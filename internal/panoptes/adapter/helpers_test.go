package adapter

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaibhaw-/panoptes/internal/panoptes/config"
	"github.com/vaibhaw-/panoptes/internal/panoptes/engine"
	"github.com/vaibhaw-/panoptes/internal/panoptes/event"
	_ "github.com/vaibhaw-/panoptes/internal/panoptes/sqliteerr"
	"github.com/vaibhaw-/panoptes/internal/panoptes/transport"
)

type captureSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (s *captureSink) Name() string { return "capture" }

func (s *captureSink) Send(_ context.Context, ev event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *captureSink) Events() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Event(nil), s.events...)
}

func (s *captureSink) Last(t *testing.T) event.Event {
	t.Helper()
	events := s.Events()
	require.NotEmpty(t, events)
	return events[len(events)-1]
}

func newEngine(t *testing.T, opts ...engine.Option) (*engine.Engine, *captureSink) {
	t.Helper()
	sink := &captureSink{}
	store := config.NewStore()
	require.NoError(t, store.Init(config.Config{
		AppName:    "adapter-test",
		Transports: config.TransportsCfg{Enabled: []string{"capture"}},
	}))
	d := transport.NewDispatcher(transport.WithSink("capture", sink))
	return engine.New(store, append([]engine.Option{engine.WithDispatcher(d)}, opts...)...), sink
}

// openUsers returns a SQLite database holding a users table with two rows.
func openUsers(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO users (id, email) VALUES (1, 'a@example.com'), (7, 'b@example.com')`)
	require.NoError(t, err)
	return db
}
