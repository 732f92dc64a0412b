package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"rehla/internal/platform/metrics"
	"rehla/internal/ratelimit/models"
	dErrors "rehla/pkg/domainerrors"
	"rehla/pkg/platform/circuit"
	"rehla/pkg/platform/httputil"
	"rehla/pkg/requestcontext"
)

// Store admits or rejects a request against a sliding window bucket.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
}

type Middleware struct {
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	limits   models.Limits
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithFallback sets the store used while the primary is failing.
func WithFallback(fallback Store) Option {
	return func(m *Middleware) {
		m.fallback = fallback
	}
}

// WithBreaker replaces the default breaker guarding the primary store.
func WithBreaker(breaker *circuit.Breaker) Option {
	return func(m *Middleware) {
		if breaker != nil {
			m.breaker = breaker
		}
	}
}

// WithLimits sets per-class budgets.
func WithLimits(limits models.Limits) Option {
	return func(m *Middleware) {
		if limits != nil {
			m.limits = limits
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(mw *Middleware) {
		mw.metrics = m
	}
}

// WithDisabled turns the middleware into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func New(primary Store, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		primary: primary,
		logger:  logger,
		breaker: circuit.New("ratelimit"),
		limits: models.Limits{
			models.ClassRead:  {RequestsPerWindow: 120, Window: time.Minute},
			models.ClassAuth:  {RequestsPerWindow: 10, Window: time.Minute},
			models.ClassWrite: {RequestsPerWindow: 30, Window: time.Minute},
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit limits requests per client IP within class. A nil Middleware
// passes every request through.
func (m *Middleware) RateLimit(class models.EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil || m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			limit := m.limits.For(class)

			result, degraded, err := m.check(ctx, models.NewIPKey(ip, class), limit)
			if err != nil {
				m.logger.ErrorContext(ctx, "rate limit check failed", "error", err, "class", string(class))
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if degraded {
				w.Header().Set("X-RateLimit-Status", "degraded")
			}

			if !result.Allowed {
				m.metrics.IncRateLimited()
				m.logger.WarnContext(ctx, "rate limit exceeded", "class", string(class), "client_ip", ip)
				writeRateLimitExceeded(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// check consults the primary store and reports whether the result came from
// the fallback.
func (m *Middleware) check(ctx context.Context, key string, limit models.Limit) (*models.Result, bool, error) {
	result, err := m.primary.Allow(ctx, key, limit.RequestsPerWindow, limit.Window)
	if err != nil {
		useFallback, change := m.breaker.RecordFailure()
		if change.Opened {
			m.logger.WarnContext(ctx, "rate limit store unhealthy, using fallback", "breaker", m.breaker.Name(), "error", err)
		}
		if !useFallback || m.fallback == nil {
			return nil, false, err
		}
		return m.fromFallback(ctx, key, limit)
	}

	usePrimary, change := m.breaker.RecordSuccess()
	if change.Closed {
		m.logger.InfoContext(ctx, "rate limit store recovered", "breaker", m.breaker.Name())
	}
	if !usePrimary && m.fallback != nil {
		return m.fromFallback(ctx, key, limit)
	}
	return result, false, nil
}

func (m *Middleware) fromFallback(ctx context.Context, key string, limit models.Limit) (*models.Result, bool, error) {
	result, err := m.fallback.Allow(ctx, key, limit.RequestsPerWindow, limit.Window)
	if err != nil {
		return nil, true, err
	}
	return result, true, nil
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result) {
	seconds := max(int(math.Ceil(result.RetryAfter.Seconds())), 1)
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	httputil.WriteError(w, dErrors.New(dErrors.CodeTooManyRequests, "too many requests, try again later"))
}
