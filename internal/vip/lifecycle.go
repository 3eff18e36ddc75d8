// Package vip derives VIP subscription lifecycle states and turns state
// transitions into notifications.
package vip

import (
	"math"
	"time"

	"github.com/sells-group/barberfinder/internal/model"
)

// State is a provider's derived VIP lifecycle phase.
type State string

const (
	StateNonVIP       State = "non_vip"
	StateActive       State = "vip_active"
	StateExpiringSoon State = "vip_expiring_soon"
	StateExpired      State = "vip_expired"
)

// DefaultExpiringSoonDays is the warning window.
const DefaultExpiringSoonDays = 7

// Status is the outcome of one evaluation.
type Status struct {
	State State
	// DaysLeft is ceil((expires_at - now) / 24h). Zero when no expiry is
	// tracked.
	DaysLeft int
}

// Policy tunes evaluation.
type Policy struct {
	// ExpiringSoonDays is the inclusive upper bound of the warning window.
	ExpiringSoonDays int
	// ExpiredWhenDowngraded reports vip_expired instead of non_vip for a
	// provider whose VIP flag was already cleared after its expiry passed.
	ExpiredWhenDowngraded bool
}

// DefaultPolicy returns the standard seven-day window.
func DefaultPolicy() Policy {
	return Policy{ExpiringSoonDays: DefaultExpiringSoonDays}
}

// Evaluate derives the lifecycle state of p at now using DefaultPolicy.
func Evaluate(p model.Provider, now time.Time) Status {
	return DefaultPolicy().Evaluate(p, now)
}

// Evaluate derives the lifecycle state of p at now. A VIP provider with no
// expiry is active indefinitely. A non-VIP provider is non_vip unless it
// carries an expiry that has not passed yet.
func (pol Policy) Evaluate(p model.Provider, now time.Time) Status {
	soon := pol.ExpiringSoonDays
	if soon <= 0 {
		soon = DefaultExpiringSoonDays
	}

	if p.VIPExpiresAt == nil {
		if p.VIP {
			return Status{State: StateActive}
		}
		return Status{State: StateNonVIP}
	}

	days := DaysLeft(*p.VIPExpiresAt, now)
	if !p.VIP && days <= 0 {
		if pol.ExpiredWhenDowngraded {
			return Status{State: StateExpired, DaysLeft: days}
		}
		return Status{State: StateNonVIP}
	}

	switch {
	case days <= 0:
		return Status{State: StateExpired, DaysLeft: days}
	case days <= soon:
		return Status{State: StateExpiringSoon, DaysLeft: days}
	default:
		return Status{State: StateActive, DaysLeft: days}
	}
}

// DaysLeft returns the whole days until expiresAt, rounded up.
func DaysLeft(expiresAt, now time.Time) int {
	diff := expiresAt.Sub(now)
	return int(math.Ceil(float64(diff) / float64(24*time.Hour)))
}
