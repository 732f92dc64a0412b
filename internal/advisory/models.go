package advisory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"rehla/internal/serial"
	"rehla/pkg/requestcontext"
)

// Kind classifies an advisory.
type Kind string

// KindUnexpectedDomain marks a tag link whose host is not the tag domain.
const KindUnexpectedDomain Kind = "unexpected_domain"

// Event is an advisory condition: logged and stored for operators, never shown
// to the person scanning.
type Event struct {
	ID             uuid.UUID `json:"id"`
	Kind           Kind      `json:"kind"`
	Host           string    `json:"host"`
	ExpectedDomain string    `json:"expected_domain"`
	Payload        string    `json:"payload"`
	Serial         string    `json:"serial"`
	RequestID      string    `json:"request_id,omitempty"`
	Client         string    `json:"client,omitempty"`
	Mobile         bool      `json:"mobile"`
	ObservedAt     time.Time `json:"observed_at"`
}

// Filter narrows List results. Zero values mean no restriction.
type Filter struct {
	Hosts []string
	Limit int
}

// DefaultListLimit caps List when Filter.Limit is unset.
const DefaultListLimit = 100

// EffectiveLimit returns the limit to apply.
func (f Filter) EffectiveLimit() int {
	if f.Limit <= 0 || f.Limit > 1000 {
		return DefaultListLimit
	}
	return f.Limit
}

// Store persists advisory events.
type Store interface {
	Append(ctx context.Context, event Event) error
	List(ctx context.Context, filter Filter) ([]Event, error)
}

// NewEvent builds an event from an extractor advisory and the request context.
func NewEvent(ctx context.Context, a serial.Advisory) Event {
	client, mobile := describeClient(requestcontext.UserAgent(ctx))
	return Event{
		ID:             uuid.New(),
		Kind:           KindUnexpectedDomain,
		Host:           a.Host,
		ExpectedDomain: a.ExpectedDomain,
		Payload:        a.Payload,
		Serial:         a.Serial,
		RequestID:      requestcontext.RequestID(ctx),
		Client:         client,
		Mobile:         mobile,
		ObservedAt:     requestcontext.Now(ctx).UTC(),
	}
}

// describeClient turns a User-Agent into "Browser on OS".
func describeClient(userAgent string) (string, bool) {
	if userAgent == "" {
		return "", false
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	os := ua.OS()
	switch {
	case browser == "" && os == "":
		return "unknown", ua.Mobile()
	case os == "":
		return browser, ua.Mobile()
	default:
		return fmt.Sprintf("%s on %s", browser, os), ua.Mobile()
	}
}
