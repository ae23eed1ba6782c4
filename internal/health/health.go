// Package health tracks per-credential circuit-breaker state: usage
// snapshots, consecutive failures, and cooldowns. Grounded on the
// status-code dispatch in other_examples' yansircc-cc-relayer Relay
// (handleUpstreamError: 529/429/403/401 branches each compute a
// cooldown-until and persist it) generalized to the three-kind classifier
// of spec §4.2.
package health

import (
	"sync"
	"time"

	"github.com/xyz-jphil/ccapis-proxy/internal/apperror"
)

// State is one of the three circuit states of spec §3.
type State int

const (
	StateHealthy State = iota
	StateDegraded
	StateTripped
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "HEALTHY"
	case StateDegraded:
		return "DEGRADED"
	case StateTripped:
		return "TRIPPED"
	default:
		return "UNKNOWN"
	}
}

// Window is one quota-accounting interval's usage (spec §3).
type Window struct {
	UtilizationPct float64
	ResetsAt       time.Time
}

// Usage is a per-credential snapshot of all known windows, keyed by name
// ("five_hour", "seven_day", "seven_day_opus", "seven_day_oauth_apps").
type Usage struct {
	Windows   map[string]Window
	FetchedAt time.Time
}

// FiveHour returns the mandatory five_hour window, or the zero value and
// false if the snapshot doesn't have it yet.
func (u *Usage) FiveHour() (Window, bool) {
	if u == nil || u.Windows == nil {
		return Window{}, false
	}
	w, ok := u.Windows["five_hour"]
	return w, ok
}

// Record is the mutable per-credential health state (spec §3). Invariant:
// State == StateTripped iff now < CooldownUntil; enforced by refresh on
// every read, not by a background sweep.
type Record struct {
	mu                 sync.Mutex
	state              State
	consecutiveFailures int
	cooldownUntil      time.Time
	hasCooldown        bool
	latestUsage        *Usage
}

// Snapshot is a point-in-time copy of a Record's fields, safe to read
// without the lock.
type Snapshot struct {
	State               State
	ConsecutiveFailures int
	CooldownUntil       time.Time
	HasCooldown         bool
	LatestUsage         *Usage
}

// Config is the circuit-breaker tuning of spec §3.
type Config struct {
	Enabled           bool
	FailureThreshold  int
	GenericCooldown   time.Duration
	RateLimitCooldown time.Duration
	UsageStaleness    time.Duration
}

// DefaultConfig matches the defaults implied by spec §4.2/§4.3 for a
// circuit-breaker-enabled deployment.
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		FailureThreshold:  3,
		GenericCooldown:   5 * time.Minute,
		RateLimitCooldown: 1 * time.Hour,
		UsageStaleness:    2 * time.Minute,
	}
}

// Monitor owns one Record per credential id. Public surface matches spec
// §4.2 exactly: update_usage, record_failure, record_success, get,
// is_available, is_usage_stale.
type Monitor struct {
	cfg Config

	mu      sync.RWMutex
	records map[string]*Record
	now     func() time.Time
}

// NewMonitor builds a Monitor with the given circuit-breaker config.
func NewMonitor(cfg Config) *Monitor {
	return &Monitor{cfg: cfg, records: make(map[string]*Record), now: time.Now}
}

func (m *Monitor) recordFor(id string) *Record {
	m.mu.RLock()
	r, ok := m.records[id]
	m.mu.RUnlock()
	if ok {
		return r
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[id]; ok {
		return r
	}
	r = &Record{state: StateHealthy}
	m.records[id] = r
	return r
}

// settle applies the terminal TRIPPED->HEALTHY transition of spec §4.2
// ("on any read: if TRIPPED and now >= cooldown_until, transition to
// HEALTHY"). Caller must hold r.mu.
func (m *Monitor) settle(r *Record) {
	if r.state == StateTripped && r.hasCooldown && !m.now().Before(r.cooldownUntil) {
		r.state = StateHealthy
		r.hasCooldown = false
	}
}

// UpdateUsage replaces the usage snapshot atomically.
func (m *Monitor) UpdateUsage(id string, usage *Usage) {
	r := m.recordFor(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latestUsage = usage
}

// RecordFailure classifies and applies one of the three transition rules
// of spec §4.2.
func (m *Monitor) RecordFailure(id string, kind apperror.Kind) {
	r := m.recordFor(id)
	r.mu.Lock()
	defer r.mu.Unlock()

	now := m.now()
	switch kind {
	case apperror.KindQuotaExhausted:
		if fh, ok := r.latestUsage.FiveHour(); ok && !fh.ResetsAt.IsZero() {
			r.cooldownUntil = fh.ResetsAt
		} else {
			r.cooldownUntil = now.Add(m.cfg.RateLimitCooldown)
		}
		r.hasCooldown = true
		r.state = StateTripped

	case apperror.KindRateLimited:
		r.cooldownUntil = now.Add(m.cfg.RateLimitCooldown)
		r.hasCooldown = true
		r.state = StateTripped

	default: // generic
		r.consecutiveFailures++
		if r.consecutiveFailures >= m.cfg.FailureThreshold {
			r.cooldownUntil = now.Add(m.cfg.GenericCooldown)
			r.hasCooldown = true
			r.state = StateTripped
		} else {
			r.state = StateDegraded
		}
	}
}

// RecordSuccess resets the failure counter and clears TRIPPED if the
// cooldown has already elapsed.
func (m *Monitor) RecordSuccess(id string) {
	r := m.recordFor(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consecutiveFailures = 0
	if !r.hasCooldown || !m.now().Before(r.cooldownUntil) {
		r.state = StateHealthy
		r.hasCooldown = false
	}
}

// Get returns a point-in-time snapshot, applying the terminal settle check
// first.
func (m *Monitor) Get(id string) Snapshot {
	r := m.recordFor(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	m.settle(r)
	return Snapshot{
		State:               r.state,
		ConsecutiveFailures: r.consecutiveFailures,
		CooldownUntil:       r.cooldownUntil,
		HasCooldown:         r.hasCooldown,
		LatestUsage:         r.latestUsage,
	}
}

// IsAvailable reports whether the credential may currently be selected.
func (m *Monitor) IsAvailable(id string) bool {
	if !m.cfg.Enabled {
		return true
	}
	snap := m.Get(id)
	return snap.State != StateTripped
}

// IsUsageStale reports whether the usage snapshot is missing or older than
// the configured staleness threshold.
func (m *Monitor) IsUsageStale(id string) bool {
	snap := m.Get(id)
	if snap.LatestUsage == nil {
		return true
	}
	return m.now().Sub(snap.LatestUsage.FetchedAt) > m.cfg.UsageStaleness
}

// Config returns the circuit-breaker configuration this monitor was built
// with.
func (m *Monitor) Config() Config {
	return m.cfg
}
