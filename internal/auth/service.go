package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"rehla/internal/cms"
	dErrors "rehla/pkg/domainerrors"
	"rehla/pkg/platform/sentinel"
)

// Authenticator exchanges credentials for a CMS token.
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (*cms.AuthResponse, error)
}

// Manager logs users in and out against the CMS and keeps the resulting
// session in its Storage.
type Manager struct {
	authn   Authenticator
	storage Storage
	logger  *slog.Logger
	clock   func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock sets the clock used for expiry checks.
func WithClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

func NewManager(authn Authenticator, storage Storage, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		authn:   authn,
		storage: storage,
		logger:  logger,
		clock:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Authenticate exchanges credentials for a session without storing it.
func (m *Manager) Authenticate(ctx context.Context, identifier, password string) (*Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "identifier and password are required")
	}

	resp, err := m.authn.Login(ctx, identifier, password)
	if err != nil {
		return nil, loginError(err)
	}
	return &Session{
		Token:     resp.JWT,
		User:      resp.User,
		ExpiresAt: TokenExpiry(resp.JWT),
	}, nil
}

// Login authenticates and stores the new session, replacing any previous one.
func (m *Manager) Login(ctx context.Context, identifier, password string) (*Session, error) {
	session, err := m.Authenticate(ctx, identifier, password)
	if err != nil {
		return nil, err
	}
	if err := m.storage.Save(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save session")
	}
	m.logger.InfoContext(ctx, "user logged in",
		"user_id", session.User.ID,
		"expires_at", session.ExpiresAt,
	)
	return session, nil
}

// Current returns the stored session. A missing or expired session is
// reported as unauthorized, and an expired one is cleared.
func (m *Manager) Current(ctx context.Context) (*Session, error) {
	session, err := m.storage.Load(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "not logged in")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	if session.Expired(m.clock()) {
		if err := m.storage.Clear(ctx); err != nil {
			m.logger.WarnContext(ctx, "failed to clear expired session", "error", err)
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "session expired")
	}
	return session, nil
}

// Logout discards the stored session.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.storage.Clear(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear session")
	}
	return nil
}

// TokenExpiry reads the exp claim without verifying the signature. The token
// came straight from the CMS; the zero time means no expiry was found.
func TokenExpiry(token string) time.Time {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

func loginError(err error) error {
	var apiErr *cms.APIError
	switch {
	case errors.Is(err, cms.ErrUnauthorized),
		errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest:
		return dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid identifier or password")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "content service unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "login failed")
	}
}
