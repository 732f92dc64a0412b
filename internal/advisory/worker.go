package advisory

import (
	"context"
	"log/slog"
	"time"

	"rehla/internal/platform/metrics"
)

// drainTimeout bounds how long Run keeps flushing after shutdown.
const drainTimeout = 5 * time.Second

// Sink is one destination for advisory events.
type Sink interface {
	Name() string
	Write(ctx context.Context, event Event) error
}

// Worker consumes advisory events and fans them out to sinks. A failing sink
// is logged and counted; it never stops the others.
type Worker struct {
	inbox   <-chan Event
	sinks   []Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewWorker(inbox <-chan Event, logger *slog.Logger, m *metrics.Metrics, sinks ...Sink) *Worker {
	return &Worker{inbox: inbox, sinks: sinks, logger: logger, metrics: m}
}

// Run blocks until ctx is done, then flushes what is already queued.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event := <-w.inbox:
			w.dispatch(ctx, event)
		}
	}
}

func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case event := <-w.inbox:
			w.dispatch(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) dispatch(ctx context.Context, event Event) {
	for _, sink := range w.sinks {
		if err := sink.Write(ctx, event); err != nil {
			w.metrics.IncAdvisorySinkFailure(sink.Name())
			w.logger.ErrorContext(ctx, "advisory sink failed",
				"sink", sink.Name(),
				"event_id", event.ID,
				"error", err,
			)
		}
	}
}
