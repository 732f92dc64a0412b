package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rehla/internal/platform/metrics"
	"rehla/pkg/requestcontext"
)

type echoHandler struct{}

func (echoHandler) Register(r chi.Router) {
	r.Get("/api/echo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Client-IP", requestcontext.ClientIP(r.Context()))
		w.Header().Set("X-Seen-Request-ID", requestcontext.RequestID(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/api/panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
}

func newTestRouter(health map[string]HealthChecker) http.Handler {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.IncRateLimited()
	return NewRouter(Deps{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Gatherer: reg,
		Health:   health,
		Handlers: []Registrar{echoHandler{}},
	})
}

func TestRouterMiddlewareChain(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/echo", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "192.0.2.10", rr.Header().Get("X-Client-IP"))
	assert.NotEmpty(t, rr.Header().Get("X-Seen-Request-ID"))
}

func TestRouterRecoversPanics(t *testing.T) {
	router := newTestRouter(nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestHealthz(t *testing.T) {
	t.Run("no dependencies", func(t *testing.T) {
		router := newTestRouter(nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	})

	t.Run("failing dependency", func(t *testing.T) {
		router := newTestRouter(map[string]HealthChecker{
			"redis":    HealthCheckFunc(func(context.Context) error { return errors.New("connection refused") }),
			"postgres": HealthCheckFunc(func(context.Context) error { return nil }),
		})
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.JSONEq(t, `{"status":"degraded","checks":{"redis":"connection refused","postgres":"ok"}}`, rr.Body.String())
	})
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "rehla_ratelimit_rejections_total 1")
}
