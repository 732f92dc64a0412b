package cms

import (
	"errors"
	"fmt"
	"net/http"

	"rehla/pkg/platform/sentinel"
)

// ErrUnauthorized reports rejected credentials or a missing/expired token.
var ErrUnauthorized = errors.New("cms: unauthorized")

// APIError is a non-2xx CMS response.
type APIError struct {
	Status  int
	Name    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("cms: status %d", e.Status)
	}
	return fmt.Sprintf("cms: status %d: %s", e.Status, e.Message)
}

// Unwrap maps the status onto the errors callers branch on.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return ErrUnauthorized
	case e.Status == http.StatusNotFound:
		return sentinel.ErrNotFound
	case e.Status >= http.StatusInternalServerError:
		return sentinel.ErrUnavailable
	default:
		return nil
	}
}
