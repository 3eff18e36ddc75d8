package vip

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/barberfinder/internal/model"
)

// Tracker remembers the last observed lifecycle state per provider and
// emits a notification when a provider enters vip_expiring_soon or
// vip_expired. Each Tracker owns its own memory; instances do not share
// state.
type Tracker struct {
	mu     sync.Mutex
	policy Policy
	last   map[string]memo
	newID  func() string
}

// memo is what the tracker remembers for one provider. The expiry ties the
// state to one subscription cycle: the same state under a different expiry
// is a new cycle. anyExpiry marks restored entries whose notification
// carried no expiry.
type memo struct {
	state     State
	expiresAt string
	anyExpiry bool
}

func (m memo) same(state State, expiresAt string) bool {
	return m.state == state && (m.anyExpiry || m.expiresAt == expiresAt)
}

func expiryKey(p model.Provider) string {
	if p.VIPExpiresAt == nil {
		return ""
	}
	return p.VIPExpiresAt.UTC().Format(time.RFC3339)
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithIDFunc overrides notification id generation.
func WithIDFunc(fn func() string) TrackerOption {
	return func(t *Tracker) {
		t.newID = fn
	}
}

// NewTracker creates a Tracker using policy.
func NewTracker(policy Policy, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		policy: policy,
		last:   make(map[string]memo),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Observe evaluates every provider at now and returns the notifications for
// state changes, in input order. Re-observing a provider in the same state
// and expiry yields nothing. Moving to non_vip or vip_active is recorded
// silently.
func (t *Tracker) Observe(providers []model.Provider, now time.Time) []model.Notification {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []model.Notification
	for _, p := range providers {
		st := t.policy.Evaluate(p, now)
		key := expiryKey(p)
		prev, seen := t.last[p.ID]
		t.last[p.ID] = memo{state: st.State, expiresAt: key}
		if seen && prev.same(st.State, key) {
			continue
		}

		switch st.State {
		case StateExpiringSoon:
			out = append(out, expiringSoon(t.newID(), p, st, now))
		case StateExpired:
			out = append(out, expired(t.newID(), p, now))
		}
	}
	return out
}

// Last returns the last observed state for providerID.
func (t *Tracker) Last(providerID string) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.last[providerID]
	return m.state, ok
}

// Forget drops the memory for providerID, so its next observation is
// treated as new.
func (t *Tracker) Forget(providerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, providerID)
}

// Len returns how many providers are remembered.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.last)
}

// Restore seeds the memory from notifications emitted by an earlier
// process, so a restart does not announce the same transition again. For
// each provider the last lifecycle notification in ns wins. The
// notification's expires_at pins the restored state to that subscription
// cycle; a provider that renewed since is announced again. It returns how
// many providers were seeded.
func (t *Tracker) Restore(ns []model.Notification) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	seeded := make(map[string]bool)
	for _, n := range ns {
		if n.SubjectID == "" {
			continue
		}
		var st State
		switch n.Kind {
		case model.KindVIPExpiringSoon:
			st = StateExpiringSoon
		case model.KindVIPExpired:
			st = StateExpired
		case model.KindVIPActivated:
			st = StateActive
		default:
			continue
		}
		expires, _ := n.Metadata["expires_at"].(string)
		t.last[n.SubjectID] = memo{state: st, expiresAt: expires, anyExpiry: expires == ""}
		seeded[n.SubjectID] = true
	}
	return len(seeded)
}
