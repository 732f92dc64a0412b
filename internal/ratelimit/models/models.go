package models

import (
	"fmt"
	"time"

	"rehla/internal/platform/config"
)

// EndpointClass groups routes that share a request budget.
type EndpointClass string

const (
	// ClassRead covers public lookups: resolve and profile.
	ClassRead EndpointClass = "read"
	// ClassAuth covers credential exchange.
	ClassAuth EndpointClass = "auth"
	// ClassWrite covers tree submissions and admin reads.
	ClassWrite EndpointClass = "write"
)

// Limit is a request budget over a sliding window.
type Limit struct {
	RequestsPerWindow int
	Window            time.Duration
}

// Result is the outcome of a single rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limits maps endpoint classes to budgets.
type Limits map[EndpointClass]Limit

// LimitsFromConfig derives per-class budgets from runtime configuration.
func LimitsFromConfig(cfg config.RateLimit) Limits {
	return Limits{
		ClassRead:  {RequestsPerWindow: cfg.Limit, Window: cfg.Window},
		ClassAuth:  {RequestsPerWindow: cfg.AuthLimit, Window: cfg.Window},
		ClassWrite: {RequestsPerWindow: cfg.WriteLimit, Window: cfg.Window},
	}
}

// For returns the budget for class, falling back to the read budget.
func (l Limits) For(class EndpointClass) Limit {
	if limit, ok := l[class]; ok {
		return limit
	}
	return l[ClassRead]
}

// NewIPKey builds the bucket key for a client IP within a class.
func NewIPKey(ip string, class EndpointClass) string {
	return fmt.Sprintf("ip:%s:%s", class, ip)
}
