// Package plan is the subscription-tier policy: which checks a plan may run,
// how many dispatch attempts each check gets, and how long completed results
// stay cached.
package plan

import (
	"strings"
	"time"

	"github.com/talonscan/talon/internal/model"
)

// Type is a subscription tier.
type Type string

const (
	Free     Type = "free"
	Pro      Type = "pro"
	Business Type = "business"
)

// Parse normalizes a user-supplied plan name. Unknown plans fall back to
// free rather than failing the request.
func Parse(s string) Type {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case Pro:
		return Pro
	case Business:
		return Business
	default:
		return Free
	}
}

// Policy is the pure limit lookup consumed by the orchestrator.
type Policy struct{}

// NewPolicy returns the static policy table.
func NewPolicy() *Policy { return &Policy{} }

// AllowedChecks returns the set of checks the plan may dispatch.
func (p *Policy) AllowedChecks(t Type) []model.CheckName {
	switch Parse(string(t)) {
	case Business:
		return model.AllChecks()
	case Pro:
		return []model.CheckName{
			model.CheckTLS,
			model.CheckHeaders,
			model.CheckDNS,
			model.CheckPerformance,
			model.CheckSEO,
		}
	default:
		return []model.CheckName{
			model.CheckHeaders,
			model.CheckPerformance,
		}
	}
}

// RetryBudget returns the maximum dispatch attempts per check, counting the
// initial dispatch.
func (p *Policy) RetryBudget(t Type) int {
	switch Parse(string(t)) {
	case Business:
		return 3
	case Pro:
		return 2
	default:
		return 1
	}
}

// CacheTTL returns how long a completed scan may be served from cache.
// Higher tiers get fresher results.
func (p *Policy) CacheTTL(t Type) time.Duration {
	switch Parse(string(t)) {
	case Business:
		return 15 * time.Minute
	case Pro:
		return 30 * time.Minute
	default:
		return time.Hour
	}
}
