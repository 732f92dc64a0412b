package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"rehla/internal/platform/config"
	"rehla/internal/platform/metrics"
	"rehla/internal/ratelimit/models"
	"rehla/internal/ratelimit/store/bucket"
	"rehla/pkg/platform/circuit"
	"rehla/pkg/requestcontext"
)

var errRedisDown = errors.New("redis: connection refused")

type failingStore struct {
	err   error
	calls int
}

func (f *failingStore) Allow(context.Context, string, int, time.Duration) (*models.Result, error) {
	f.calls++
	return nil, f.err
}

type RateLimitSuite struct {
	suite.Suite
	logger  *slog.Logger
	metrics *metrics.Metrics
	limits  models.Limits
}

func TestRateLimitSuite(t *testing.T) {
	suite.Run(t, new(RateLimitSuite))
}

func (s *RateLimitSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.limits = models.Limits{
		models.ClassRead: {RequestsPerWindow: 2, Window: time.Minute},
		models.ClassAuth: {RequestsPerWindow: 1, Window: time.Minute},
	}
}

func (s *RateLimitSuite) serve(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/resolve?payload=ABC", nil)
	req = req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, "test-agent"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func (s *RateLimitSuite) TestRejectsOverBudget() {
	mw := New(bucket.NewInMemory(), s.logger, WithLimits(s.limits), WithMetrics(s.metrics))
	h := mw.RateLimit(models.ClassRead)(okHandler())

	for range 2 {
		rec := s.serve(h, "10.0.0.1")
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := s.serve(h, "10.0.0.1")
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal("0", rec.Header().Get("X-RateLimit-Remaining"))
	s.NotEmpty(rec.Header().Get("Retry-After"))
	s.JSONEq(`{"error":"too_many_requests","error_description":"too many requests, try again later"}`, rec.Body.String())
	s.InDelta(1, promtest.ToFloat64(s.metrics.RateLimited), 0)

	s.Run("other clients keep their own budget", func() {
		s.Equal(http.StatusOK, s.serve(h, "10.0.0.2").Code)
	})
}

func (s *RateLimitSuite) TestClassesAreIndependent() {
	mw := New(bucket.NewInMemory(), s.logger, WithLimits(s.limits))
	auth := mw.RateLimit(models.ClassAuth)(okHandler())
	read := mw.RateLimit(models.ClassRead)(okHandler())

	s.Equal(http.StatusOK, s.serve(auth, "10.0.0.1").Code)
	s.Equal(http.StatusTooManyRequests, s.serve(auth, "10.0.0.1").Code)
	s.Equal(http.StatusOK, s.serve(read, "10.0.0.1").Code)
}

func (s *RateLimitSuite) TestUnknownClassUsesReadBudget() {
	mw := New(bucket.NewInMemory(), s.logger, WithLimits(s.limits))
	h := mw.RateLimit(models.ClassWrite)(okHandler())

	s.Equal("2", s.serve(h, "10.0.0.1").Header().Get("X-RateLimit-Limit"))
}

func (s *RateLimitSuite) TestDisabledPassesThrough() {
	primary := &failingStore{err: errRedisDown}
	mw := New(primary, s.logger, WithDisabled(true))
	rec := s.serve(mw.RateLimit(models.ClassRead)(okHandler()), "10.0.0.1")

	s.Equal(http.StatusOK, rec.Code)
	s.Empty(rec.Header().Get("X-RateLimit-Limit"))
	s.Zero(primary.calls)
}

func (s *RateLimitSuite) TestFailsOpenWithoutFallback() {
	mw := New(&failingStore{err: errRedisDown}, s.logger, WithLimits(s.limits))
	rec := s.serve(mw.RateLimit(models.ClassRead)(okHandler()), "10.0.0.1")

	s.Equal(http.StatusOK, rec.Code)
	s.Empty(rec.Header().Get("X-RateLimit-Limit"))
}

func (s *RateLimitSuite) TestFallbackAfterBreakerOpens() {
	primary := &failingStore{err: errRedisDown}
	breaker := circuit.New("ratelimit-test", circuit.WithFailureThreshold(2))
	mw := New(primary, s.logger,
		WithLimits(s.limits),
		WithFallback(bucket.NewInMemory()),
		WithBreaker(breaker),
	)
	h := mw.RateLimit(models.ClassRead)(okHandler())

	first := s.serve(h, "10.0.0.1")
	s.Equal(http.StatusOK, first.Code)
	s.Empty(first.Header().Get("X-RateLimit-Status"), "breaker still closed")

	second := s.serve(h, "10.0.0.1")
	s.Equal(http.StatusOK, second.Code)
	s.True(breaker.IsOpen())
	s.Equal("degraded", second.Header().Get("X-RateLimit-Status"))
	s.Equal("1", second.Header().Get("X-RateLimit-Remaining"))

	s.serve(h, "10.0.0.1")
	s.Equal(http.StatusTooManyRequests, s.serve(h, "10.0.0.1").Code)
}

func TestRecoveryClosesBreaker(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	primary := &failingStore{err: errRedisDown}
	breaker := circuit.New("ratelimit-test", circuit.WithFailureThreshold(1), circuit.WithSuccessThreshold(2))
	store := &switchStore{current: primary}
	mw := New(store, logger, WithFallback(bucket.NewInMemory()), WithBreaker(breaker))
	h := mw.RateLimit(models.ClassRead)(okHandler())

	serve := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(requestcontext.WithClientMetadata(req.Context(), "10.0.0.9", ""))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	serve()
	require.True(t, breaker.IsOpen())

	store.current = bucket.NewInMemory()
	assert.Equal(t, "degraded", serve().Header().Get("X-RateLimit-Status"))
	assert.Empty(t, serve().Header().Get("X-RateLimit-Status"))
	assert.False(t, breaker.IsOpen())
}

type switchStore struct {
	current Store
}

func (s *switchStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	return s.current.Allow(ctx, key, limit, window)
}

func TestLimitsFromConfig(t *testing.T) {
	limits := models.LimitsFromConfig(config.RateLimit{Limit: 60, AuthLimit: 5, WriteLimit: 20, Window: 30 * time.Second})

	assert.Equal(t, models.Limit{RequestsPerWindow: 5, Window: 30 * time.Second}, limits.For(models.ClassAuth))
	assert.Equal(t, 20, limits.For(models.ClassWrite).RequestsPerWindow)
	assert.Equal(t, "ip:auth:10.0.0.1", models.NewIPKey("10.0.0.1", models.ClassAuth))
}
