// Package transport delivers audit events to their configured destinations.
package transport

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vaibhaw-/panoptes/internal/panoptes/event"
)

// Sink is one delivery destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev event.Event) error
}

var (
	eventsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "panoptes_transport_events_total",
		Help: "Total number of audit events delivered, by transport",
	}, []string{"transport"})

	failuresCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "panoptes_transport_failures_total",
		Help: "Total number of audit event deliveries that failed, by transport",
	}, []string{"transport"})
)
