package auth

import (
	"time"

	"rehla/internal/cms"
)

// Session is the logged-in state of one CMS user. It is owned by the caller
// and persisted only through a Storage.
type Session struct {
	Token     string    `json:"token"`
	User      cms.User  `json:"user"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Expired reports whether the token is past its exp claim. Sessions without a
// known expiry never expire locally; the CMS still rejects stale tokens.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// TTL is the remaining lifetime, zero when unknown or already expired.
func (s *Session) TTL(now time.Time) time.Duration {
	if s.ExpiresAt.IsZero() || s.Expired(now) {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}
