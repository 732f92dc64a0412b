package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"rehla/internal/advisory"
	"rehla/internal/platform/metrics"
	"rehla/internal/platform/middleware"
	ratelimit "rehla/internal/ratelimit/middleware"
	rlmodels "rehla/internal/ratelimit/models"
	dErrors "rehla/pkg/domainerrors"
	"rehla/pkg/platform/httputil"
	strutil "rehla/pkg/platform/strings"
	"rehla/pkg/requestcontext"
)

// Lister reads stored advisories.
type Lister interface {
	List(ctx context.Context, filter advisory.Filter) ([]advisory.Event, error)
}

// ListResponse is the body of GET /api/admin/advisories.
type ListResponse struct {
	Advisories []advisory.Event `json:"advisories"`
	Count      int              `json:"count"`
}

// Handler exposes recorded advisories to operators.
type Handler struct {
	store     Lister
	logger    *slog.Logger
	metrics   *metrics.Metrics
	validator middleware.TokenValidator
	limiter   *ratelimit.Middleware
}

// Option configures a Handler.
type Option func(*Handler)

// WithRateLimiter applies the write budget to advisory reads.
func WithRateLimiter(l *ratelimit.Middleware) Option {
	return func(h *Handler) {
		h.limiter = l
	}
}

func New(store Lister, logger *slog.Logger, metrics *metrics.Metrics, validator middleware.TokenValidator, opts ...Option) *Handler {
	h := &Handler{store: store, logger: logger, metrics: metrics, validator: validator}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the advisory routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))
		r.Use(middleware.LatencyMiddleware(h.metrics))
		r.Use(h.limiter.RateLimit(rlmodels.ClassWrite))
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Get("/api/admin/advisories", h.handleList)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := advisory.Filter{Hosts: strutil.Hosts(q["host"]...)}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		filter.Limit = limit
	}

	events, err := h.store.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list advisories",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list advisories"))
		return
	}
	if events == nil {
		events = []advisory.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Advisories: events, Count: len(events)})
}
