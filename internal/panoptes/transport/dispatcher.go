package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vaibhaw-/panoptes/internal/panoptes/config"
	"github.com/vaibhaw-/panoptes/internal/panoptes/event"
	"github.com/vaibhaw-/panoptes/internal/panoptes/logger"
)

// Dispatcher fans an event out to every enabled sink. Sinks are built on
// first use from the transports configuration and reused afterwards.
type Dispatcher struct {
	console    io.Writer
	httpClient *http.Client

	mu      sync.Mutex
	sinks   map[string]Sink
	unknown map[string]bool
}

type DispatcherOption func(*Dispatcher)

// WithConsoleWriter redirects the console sink, mainly for tests.
func WithConsoleWriter(w io.Writer) DispatcherOption {
	return func(d *Dispatcher) { d.console = w }
}

// WithHTTPClient sets the client used by the http sink.
func WithHTTPClient(c *http.Client) DispatcherOption {
	return func(d *Dispatcher) { d.httpClient = c }
}

// WithSink registers s under name, replacing the built-in sink of that name
// or adding a new one that can be listed in Transports.Enabled.
func WithSink(name string, s Sink) DispatcherOption {
	return func(d *Dispatcher) { d.sinks[name] = s }
}

func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sinks:   map[string]Sink{},
		unknown: map[string]bool{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch delivers ev to every sink named in cfg.Transports.Enabled
// concurrently and waits for all of them. Failures are logged and counted,
// never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, ev event.Event, cfg config.Config) {
	var g errgroup.Group

	for _, name := range cfg.Transports.Enabled {
		sink, err := d.sink(name, cfg.Transports)
		if err != nil {
			failuresCounter.WithLabelValues(name).Inc()
			logger.L().Errorw("transport unavailable", "transport", name, "error", err)
			continue
		}
		if sink == nil {
			continue
		}

		g.Go(func() error {
			if err := send(ctx, sink, ev); err != nil {
				failuresCounter.WithLabelValues(name).Inc()
				logger.L().Errorw("failed to deliver audit event",
					"transport", name,
					"event_id", ev.Meta.EventID,
					"error", err,
				)
				return nil
			}
			eventsCounter.WithLabelValues(name).Inc()
			return nil
		})
	}

	_ = g.Wait()
}

func send(ctx context.Context, s Sink, ev event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport panic: %v", r)
		}
	}()
	return s.Send(ctx, ev)
}

// sink returns the sink for name, building it on first use. It returns nil,
// nil for names it does not recognize.
func (d *Dispatcher) sink(name string, cfg config.TransportsCfg) (Sink, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := d.sinks[name]; ok {
		return s, nil
	}

	var (
		s   Sink
		err error
	)
	switch name {
	case config.TransportConsole:
		s = NewConsoleSink(d.console)
	case config.TransportFile:
		s = NewFileSink(cfg.File.Path)
	case config.TransportHTTP:
		s = NewHTTPSink(cfg.HTTP, d.httpClient)
	case config.TransportDatabase:
		s, err = NewDatabaseSink(cfg.Database)
		if err != nil {
			return nil, err
		}
	default:
		if !d.unknown[name] {
			d.unknown[name] = true
			logger.L().Warnw("ignoring unknown transport", "transport", name)
		}
		return nil, nil
	}

	d.sinks[name] = s
	return s, nil
}

// Close releases sinks that hold resources.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for _, s := range d.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
