// Package serial turns raw scanned QR text into the serial number used to look up
// or create a tree record.
//
// Tags carry either a bare serial ("00001") or a link to the public profile
// ("https://rehla-trees-planting.com/00001"). Resolution is total: every input maps
// to a serial and nothing here returns an error. A link that points at an
// unexpected host is still resolved; the mismatch is reported to observers only.
package serial

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"rehla/internal/platform/metrics"
)

// Resolution describes how a payload was resolved.
type Resolution struct {
	Payload        string `json:"payload"`
	Serial         string `json:"serial"`
	IsURL          bool   `json:"is_url"`
	Host           string `json:"host,omitempty"`
	DomainMismatch bool   `json:"domain_mismatch"`
}

// Resolve applies the resolution rule with no side effects. An empty
// expectedDomain disables the mismatch check.
func Resolve(payload, expectedDomain string) Resolution {
	res := Resolution{Payload: payload, Serial: payload}

	u, ok := parseAbsolute(payload)
	if !ok {
		return res
	}
	res.IsURL = true
	res.Host = u.Hostname()
	res.DomainMismatch = expectedDomain != "" && !strings.EqualFold(res.Host, expectedDomain)

	if last := lastSegment(u.EscapedPath()); last != "" {
		res.Serial = last
	}
	return res
}

// parseAbsolute accepts only URLs with both a scheme and a host. url.Parse alone
// is far too lenient ("SOME-CODE" parses as a relative path). Scanners often
// append a newline, so surrounding whitespace is ignored.
func parseAbsolute(payload string) (*url.URL, bool) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, false
	}
	u, err := url.Parse(payload)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, false
	}
	return u, true
}

func lastSegment(path string) string {
	segments := strings.Split(path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return ""
}

// Advisory is emitted when a URL payload points at an unexpected host.
type Advisory struct {
	Host           string
	ExpectedDomain string
	Payload        string
	Serial         string
}

// Observer receives advisories. Implementations must not block; the extractor
// calls them inline.
type Observer interface {
	ObserveDomainMismatch(ctx context.Context, advisory Advisory)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, advisory Advisory)

func (f ObserverFunc) ObserveDomainMismatch(ctx context.Context, advisory Advisory) {
	f(ctx, advisory)
}

// Extractor resolves payloads against a configured domain and reports
// mismatches to the log, metrics and any registered observers.
type Extractor struct {
	expectedDomain string
	logger         *slog.Logger
	metrics        *metrics.Metrics
	observers      []Observer
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMetrics records resolution counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Extractor) {
		e.metrics = m
	}
}

// WithObserver adds an advisory observer.
func WithObserver(o Observer) Option {
	return func(e *Extractor) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// NewExtractor builds an Extractor for expectedDomain.
func NewExtractor(expectedDomain string, logger *slog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		expectedDomain: strings.TrimSpace(expectedDomain),
		logger:         logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExpectedDomain returns the configured tag domain.
func (e *Extractor) ExpectedDomain() string {
	return e.expectedDomain
}

// Extract returns the serial for payload.
func (e *Extractor) Extract(ctx context.Context, payload string) string {
	return e.Resolve(ctx, payload).Serial
}

// Resolve is Extract with the full resolution details.
func (e *Extractor) Resolve(ctx context.Context, payload string) Resolution {
	res := Resolve(payload, e.expectedDomain)

	kind := "plain"
	if res.IsURL {
		kind = "url"
	}
	e.metrics.IncScanResolved(kind)

	if res.DomainMismatch {
		e.reportMismatch(ctx, res)
	}
	return res
}

func (e *Extractor) reportMismatch(ctx context.Context, res Resolution) {
	e.metrics.IncDomainMismatch()
	if e.logger != nil {
		e.logger.WarnContext(ctx, "scanned QR code points at unexpected domain",
			"host", res.Host,
			"expected_domain", e.expectedDomain,
			"serial", res.Serial,
		)
	}
	advisory := Advisory{
		Host:           res.Host,
		ExpectedDomain: e.expectedDomain,
		Payload:        res.Payload,
		Serial:         res.Serial,
	}
	for _, o := range e.observers {
		e.notify(ctx, o, advisory)
	}
}

// notify isolates observer panics so extraction stays total.
func (e *Extractor) notify(ctx context.Context, o Observer, advisory Advisory) {
	defer func() {
		if rec := recover(); rec != nil && e.logger != nil {
			e.logger.ErrorContext(ctx, "advisory observer panicked", "panic", rec)
		}
	}()
	o.ObserveDomainMismatch(ctx, advisory)
}
