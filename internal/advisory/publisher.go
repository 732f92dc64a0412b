package advisory

import (
	"context"
	"log/slog"

	"rehla/internal/platform/metrics"
	"rehla/internal/serial"
)

// Publisher queues advisories for the Worker. It implements serial.Observer
// and never blocks the caller: when the buffer is full the event is dropped
// and counted.
type Publisher struct {
	events  chan Event
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewPublisher returns a publisher with a buffer of size events.
func NewPublisher(size int, logger *slog.Logger, m *metrics.Metrics) *Publisher {
	if size <= 0 {
		size = 1
	}
	return &Publisher{
		events:  make(chan Event, size),
		logger:  logger,
		metrics: m,
	}
}

// ObserveDomainMismatch implements serial.Observer.
func (p *Publisher) ObserveDomainMismatch(ctx context.Context, a serial.Advisory) {
	p.Publish(ctx, NewEvent(ctx, a))
}

// Publish enqueues event without blocking.
func (p *Publisher) Publish(ctx context.Context, event Event) {
	select {
	case p.events <- event:
		p.metrics.IncAdvisoryPublished()
	default:
		p.metrics.IncAdvisoryDropped()
		p.logger.WarnContext(ctx, "advisory buffer full, event dropped",
			"kind", event.Kind,
			"host", event.Host,
		)
	}
}

// Events is the worker inbox.
func (p *Publisher) Events() <-chan Event {
	return p.events
}
