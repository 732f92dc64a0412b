package advisory

import (
	"context"
	"log/slog"
)

// LogSink writes advisories to the structured log.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Write(ctx context.Context, event Event) error {
	s.logger.InfoContext(ctx, "scan advisory",
		"event_id", event.ID,
		"kind", event.Kind,
		"host", event.Host,
		"expected_domain", event.ExpectedDomain,
		"serial", event.Serial,
		"client", event.Client,
		"request_id", event.RequestID,
	)
	return nil
}

// StoreSink persists advisories.
type StoreSink struct {
	store Store
}

func NewStoreSink(store Store) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Write(ctx context.Context, event Event) error {
	return s.store.Append(ctx, event)
}
