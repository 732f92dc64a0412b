package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"rehla/internal/auth"
	"rehla/internal/cms"
	"rehla/internal/platform/metrics"
	"rehla/internal/platform/middleware"
	ratelimit "rehla/internal/ratelimit/middleware"
	rlmodels "rehla/internal/ratelimit/models"
	dErrors "rehla/pkg/domainerrors"
	"rehla/pkg/platform/httputil"
	"rehla/pkg/requestcontext"
)

// Authenticator exchanges CMS credentials for a session.
type Authenticator interface {
	Authenticate(ctx context.Context, identifier, password string) (*auth.Session, error)
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// LoginResponse carries the CMS token back to the field app.
type LoginResponse struct {
	Token     string     `json:"token"`
	User      cms.User   `json:"user"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Handler proxies logins to the CMS so the field app talks to one origin.
type Handler struct {
	authn   Authenticator
	logger  *slog.Logger
	metrics *metrics.Metrics
	limiter *ratelimit.Middleware
}

// Option configures a Handler.
type Option func(*Handler)

// WithRateLimiter applies the auth budget to login attempts.
func WithRateLimiter(l *ratelimit.Middleware) Option {
	return func(h *Handler) {
		h.limiter = l
	}
}

func New(authn Authenticator, logger *slog.Logger, metrics *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{authn: authn, logger: logger, metrics: metrics}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the auth routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(20 * time.Second))
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.LatencyMiddleware(h.metrics))
		r.Use(h.limiter.RateLimit(rlmodels.ClassAuth))
		r.Post("/api/auth/login", h.handleLogin)
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid login request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	session, err := h.authn.Authenticate(ctx, req.Identifier, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "login failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	resp := LoginResponse{Token: session.Token, User: session.User}
	if !session.ExpiresAt.IsZero() {
		resp.ExpiresAt = &session.ExpiresAt
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
