package auth

import "context"

// Storage persists at most one session. Load returns sentinel.ErrNotFound
// when nothing is stored; Clear on an empty store is not an error.
type Storage interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Clear(ctx context.Context) error
}
