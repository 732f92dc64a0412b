package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	ScansResolved        *prometheus.CounterVec
	DomainMismatches     prometheus.Counter
	AdvisoriesPublished  prometheus.Counter
	AdvisoriesDropped    prometheus.Counter
	AdvisorySinkFailures *prometheus.CounterVec
	CMSRequestDuration   *prometheus.HistogramVec
	ProfileCache         *prometheus.CounterVec
	TreesCreated         prometheus.Counter
	PhotosUploaded       prometheus.Counter
	HTTPLatency          *prometheus.HistogramVec
	RateLimited          prometheus.Counter
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ScansResolved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rehla_scans_resolved_total",
			Help: "Scanned payloads resolved to a serial, by payload kind (url, plain)",
		}, []string{"kind"}),
		DomainMismatches: f.NewCounter(prometheus.CounterOpts{
			Name: "rehla_scan_domain_mismatch_total",
			Help: "URL payloads whose host differs from the expected tag domain",
		}),
		AdvisoriesPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "rehla_advisories_published_total",
			Help: "Advisory events accepted by the advisory pipeline",
		}),
		AdvisoriesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "rehla_advisories_dropped_total",
			Help: "Advisory events dropped because the pipeline buffer was full",
		}),
		AdvisorySinkFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rehla_advisory_sink_failures_total",
			Help: "Advisory sink write failures by sink",
		}, []string{"sink"}),
		CMSRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rehla_cms_request_duration_seconds",
			Help:    "Latency of CMS REST calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		ProfileCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rehla_profile_cache_lookups_total",
			Help: "Public profile cache lookups by result (hit, miss)",
		}, []string{"result"}),
		TreesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "rehla_trees_created_total",
			Help: "Tree records created through the form binder",
		}),
		PhotosUploaded: f.NewCounter(prometheus.CounterOpts{
			Name: "rehla_photos_uploaded_total",
			Help: "Photos uploaded to the CMS media library",
		}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rehla_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "rehla_ratelimit_rejections_total",
			Help: "Requests rejected by the public rate limiter",
		}),
	}
}

func (m *Metrics) IncScanResolved(kind string) {
	if m == nil {
		return
	}
	m.ScansResolved.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncDomainMismatch() {
	if m == nil {
		return
	}
	m.DomainMismatches.Inc()
}

func (m *Metrics) IncAdvisoryPublished() {
	if m == nil {
		return
	}
	m.AdvisoriesPublished.Inc()
}

func (m *Metrics) IncAdvisoryDropped() {
	if m == nil {
		return
	}
	m.AdvisoriesDropped.Inc()
}

func (m *Metrics) IncAdvisorySinkFailure(sink string) {
	if m == nil {
		return
	}
	m.AdvisorySinkFailures.WithLabelValues(sink).Inc()
}

func (m *Metrics) ObserveCMSRequest(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.CMSRequestDuration.WithLabelValues(operation, outcome).Observe(seconds)
}

func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.ProfileCache.WithLabelValues("hit").Inc()
}

func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.ProfileCache.WithLabelValues("miss").Inc()
}

func (m *Metrics) IncTreesCreated() {
	if m == nil {
		return
	}
	m.TreesCreated.Inc()
}

func (m *Metrics) AddPhotosUploaded(n int) {
	if m == nil {
		return
	}
	m.PhotosUploaded.Add(float64(n))
}

func (m *Metrics) ObserveHTTP(route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPLatency.WithLabelValues(route, status).Observe(seconds)
}

func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}
