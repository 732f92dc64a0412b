package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"rehla/internal/platform/metrics"
	"rehla/internal/platform/middleware"
	ratelimit "rehla/internal/ratelimit/middleware"
	rlmodels "rehla/internal/ratelimit/models"
	"rehla/internal/tree/models"
	dErrors "rehla/pkg/domainerrors"
	"rehla/pkg/platform/httputil"
	"rehla/pkg/requestcontext"
)

const (
	defaultMaxUploadBytes = 32 << 20
	multipartMemory       = 8 << 20
)

// Service defines the tree operations exposed over HTTP.
type Service interface {
	Resolve(ctx context.Context, payload string) (*models.Resolution, error)
	Profile(ctx context.Context, payloadOrSerial string) (*models.Tree, error)
	Submit(ctx context.Context, token string, form models.Form) (*models.Tree, error)
}

// FormBinder sets a form's serial from a scanned payload.
type FormBinder interface {
	Bind(ctx context.Context, form *models.Form, payload string)
}

// Handler serves the public resolver and profile endpoints and the
// authenticated tree submission endpoint.
type Handler struct {
	service        Service
	binder         FormBinder
	logger         *slog.Logger
	metrics        *metrics.Metrics
	validator      middleware.TokenValidator
	maxUploadBytes int64
	limiter        *ratelimit.Middleware
}

// Option configures a Handler.
type Option func(*Handler)

// WithMaxUploadBytes caps the multipart body size of a submission.
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// WithRateLimiter applies per-IP budgets: read for lookups, write for submissions.
func WithRateLimiter(l *ratelimit.Middleware) Option {
	return func(h *Handler) {
		h.limiter = l
	}
}

func New(
	service Service,
	binder FormBinder,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	validator middleware.TokenValidator,
	opts ...Option) *Handler {
	h := &Handler{
		service:        service,
		binder:         binder,
		logger:         logger,
		metrics:        metrics,
		validator:      validator,
		maxUploadBytes: defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the tree routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))
		r.Use(middleware.LatencyMiddleware(h.metrics))
		r.Use(h.limiter.RateLimit(rlmodels.ClassRead))
		r.Get("/api/resolve", h.handleResolve)
		r.Get("/api/trees/{serial}", h.handleProfile)
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(2 * time.Minute))
		r.Use(middleware.LatencyMiddleware(h.metrics))
		r.Use(h.limiter.RateLimit(rlmodels.ClassWrite))
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Post("/api/admin/trees", h.handleSubmit)
	})
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Resolve(r.Context(), r.URL.Query().Get("payload"))
	if err != nil {
		h.writeError(w, r, "resolve failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.Profile(r.Context(), chi.URLParam(r, "serial"))
	if err != nil {
		h.writeError(w, r, "profile lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tree)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, "submission too large", dErrors.New(dErrors.CodeValidation, "submission is too large"))
			return
		}
		h.writeError(w, r, "invalid submission", dErrors.New(dErrors.CodeBadRequest, "expected a multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	form, err := h.parseForm(ctx, r.MultipartForm)
	if err != nil {
		h.writeError(w, r, "invalid submission", err)
		return
	}

	tree, err := h.service.Submit(ctx, requestcontext.BearerToken(ctx), form)
	if err != nil {
		h.writeError(w, r, "tree submission failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tree)
}

func (h *Handler) parseForm(ctx context.Context, mf *multipart.Form) (models.Form, error) {
	value := func(key string) string {
		if v := mf.Value[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	form := models.Form{
		SerialNumber: value("serial_number"),
		Species:      value("species"),
		PlantedAt:    value("planted_at"),
		LocationName: value("location_name"),
		PlanterName:  value("planter_name"),
		Notes:        value("notes"),
	}
	if payload := value("payload"); form.SerialNumber == "" && payload != "" {
		h.binder.Bind(ctx, &form, payload)
	}

	var err error
	if form.Latitude, err = parseCoordinate("latitude", value("latitude")); err != nil {
		return models.Form{}, err
	}
	if form.Longitude, err = parseCoordinate("longitude", value("longitude")); err != nil {
		return models.Form{}, err
	}

	headers := mf.File["photos"]
	if len(headers) > models.MaxPhotos {
		return models.Form{}, dErrors.New(dErrors.CodeValidation, "too many photos")
	}
	for _, fh := range headers {
		photo, err := readPhoto(fh)
		if err != nil {
			return models.Form{}, err
		}
		form.Photos = append(form.Photos, photo)
	}
	return form, nil
}

func parseCoordinate(field, raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, field+" must be a number")
	}
	return &v, nil
}

func readPhoto(fh *multipart.FileHeader) (models.PhotoFile, error) {
	f, err := fh.Open()
	if err != nil {
		return models.PhotoFile{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "unreadable photo")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return models.PhotoFile{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "unreadable photo")
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return models.PhotoFile{}, dErrors.New(dErrors.CodeValidation, "photo "+fh.Filename+" is not an image")
	}
	return models.PhotoFile{Name: fh.Filename, ContentType: contentType, Data: data}, nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "error", err, "request_id", requestcontext.RequestID(ctx))
	} else {
		h.logger.WarnContext(ctx, msg, "error", err, "request_id", requestcontext.RequestID(ctx))
	}
	httputil.WriteError(w, err)
}
