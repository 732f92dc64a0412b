package auth_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"rehla/internal/auth"
	"rehla/internal/auth/store/session"
	"rehla/internal/cms"
	dErrors "rehla/pkg/domainerrors"
	"rehla/pkg/platform/sentinel"
)

type stubAuthenticator struct {
	resp  *cms.AuthResponse
	err   error
	calls int
}

func (s *stubAuthenticator) Login(_ context.Context, _, _ string) (*cms.AuthResponse, error) {
	s.calls++
	return s.resp, s.err
}

func signedToken(userID int64, exp time.Time) string {
	claims := auth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("cms-secret"))
	if err != nil {
		panic(err)
	}
	return tok
}

type ManagerSuite struct {
	suite.Suite
	now     time.Time
	authn   *stubAuthenticator
	storage *session.InMemory
	manager *auth.Manager
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.now = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	s.authn = &stubAuthenticator{}
	s.storage = session.NewInMemory()
	s.manager = auth.NewManager(s.authn, s.storage,
		slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		auth.WithClock(func() time.Time { return s.now }),
	)
}

func (s *ManagerSuite) TestLoginStoresSession() {
	exp := s.now.Add(24 * time.Hour)
	s.authn.resp = &cms.AuthResponse{JWT: signedToken(7, exp), User: cms.User{ID: 7, Username: "planter"}}

	got, err := s.manager.Login(context.Background(), " planter ", "secret")

	s.Require().NoError(err)
	s.Equal(exp.Unix(), got.ExpiresAt.Unix())
	current, err := s.manager.Current(context.Background())
	s.Require().NoError(err)
	s.Equal(got.Token, current.Token)
	s.Equal(7, current.User.ID)
}

func (s *ManagerSuite) TestLoginValidation() {
	_, err := s.manager.Login(context.Background(), "", "secret")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Zero(s.authn.calls, "CMS is not called for blank credentials")
}

func (s *ManagerSuite) TestLoginFailuresAreClassified() {
	cases := []struct {
		name string
		err  error
		code dErrors.Code
	}{
		{"bad credentials", &cms.APIError{Status: 400, Message: "Invalid identifier or password"}, dErrors.CodeUnauthorized},
		{"forbidden", &cms.APIError{Status: 403}, dErrors.CodeUnauthorized},
		{"cms down", sentinel.ErrUnavailable, dErrors.CodeUnavailable},
		{"unexpected", errors.New("boom"), dErrors.CodeInternal},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.authn.err = tc.err
			_, err := s.manager.Login(context.Background(), "planter", "secret")
			s.Equal(tc.code, dErrors.CodeOf(err))
			_, loadErr := s.storage.Load(context.Background())
			s.ErrorIs(loadErr, sentinel.ErrNotFound)
		})
	}
}

func (s *ManagerSuite) TestCurrentWithoutLogin() {
	_, err := s.manager.Current(context.Background())
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ManagerSuite) TestExpiredSessionIsLoggedOut() {
	s.Require().NoError(s.storage.Save(context.Background(), &auth.Session{
		Token:     "stale",
		ExpiresAt: s.now.Add(-time.Minute),
	}))

	_, err := s.manager.Current(context.Background())

	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	_, loadErr := s.storage.Load(context.Background())
	s.ErrorIs(loadErr, sentinel.ErrNotFound, "expired session is cleared")
}

func (s *ManagerSuite) TestLogout() {
	s.Require().NoError(s.storage.Save(context.Background(), &auth.Session{Token: "t"}))

	s.Require().NoError(s.manager.Logout(context.Background()))
	s.Require().NoError(s.manager.Logout(context.Background()))

	_, err := s.manager.Current(context.Background())
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := auth.TokenExpiry(signedToken(1, exp)); !got.Equal(exp) {
		t.Fatalf("TokenExpiry() = %v, want %v", got, exp)
	}
	if got := auth.TokenExpiry("not-a-jwt"); !got.IsZero() {
		t.Fatalf("TokenExpiry(garbage) = %v, want zero", got)
	}
}
