// Package selector implements the credential-choice pipeline of spec §4.3:
// filter by health, refresh stale usage, sort by utilization/time-ratio/tier,
// and fall back to round-robin across active credentials when nothing
// passes the health filter or the circuit breaker is disabled.
package selector

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"github.com/xyz-jphil/ccapis-proxy/internal/apperror"
	"github.com/xyz-jphil/ccapis-proxy/internal/credential"
	"github.com/xyz-jphil/ccapis-proxy/internal/health"
)

// fiveHourWindowSeconds is the fixed window length spec §9 pins for the
// elapsed-percentage math ("5 hours = 18,000s"). Clock drift that would
// push a ratio over 100% is clamped, per the same note.
const fiveHourWindowSeconds = 18000

// ErrNoCredential is returned when neither the health-aware pass nor the
// round-robin fallback can produce a candidate (e.g. an empty or
// all-inactive pool).
var ErrNoCredential = errors.New("selector: no credential available")

// UsageRefresher fetches a fresh usage snapshot for one credential. The
// selector calls this synchronously (spec §4.3 step 2) when the cached
// snapshot is stale; New takes it as a dependency so tests can
// substitute a fake without touching the real HTTP client.
type UsageRefresher interface {
	FetchUsage(ctx context.Context, cred credential.Credential) (*health.Usage, error)
}

// Selector picks the best available credential for one request.
type Selector struct {
	monitor  *health.Monitor
	refresh  UsageRefresher
	roundRobin atomic.Uint64
}

// New builds a Selector over the given health monitor and usage refresher.
func New(monitor *health.Monitor, refresh UsageRefresher) *Selector {
	return &Selector{monitor: monitor, refresh: refresh}
}

// Select implements spec §4.3 steps 1-4.
func (s *Selector) Select(ctx context.Context, pool *credential.Pool) (*credential.Credential, error) {
	active := pool.Active()
	if len(active) == 0 {
		return nil, ErrNoCredential
	}

	if !s.monitor.Config().Enabled {
		return s.roundRobinPick(active)
	}

	candidates := make([]credential.Credential, 0, len(active))
	for _, c := range active {
		if s.monitor.IsAvailable(c.ID) {
			candidates = append(candidates, c)
		}
	}

	// Step 2: refresh stale usage synchronously; a refresh failure may
	// eliminate the candidate via RecordFailure + the next IsAvailable-style
	// re-check below.
	kept := candidates[:0]
	for _, c := range candidates {
		if s.monitor.IsUsageStale(c.ID) {
			usage, err := s.refresh.FetchUsage(ctx, c)
			if err != nil {
				var aerr *apperror.Error
				if errors.As(err, &aerr) {
					s.monitor.RecordFailure(c.ID, aerr.Kind)
				} else {
					s.monitor.RecordFailure(c.ID, apperror.KindGeneric)
				}
				if !s.monitor.IsAvailable(c.ID) {
					continue
				}
			} else {
				s.monitor.UpdateUsage(c.ID, usage)
			}
		}
		kept = append(kept, c)
	}
	candidates = kept

	if len(candidates) == 0 {
		return s.roundRobinPick(active)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return less(s.monitor.Get(candidates[i].ID), candidates[i], s.monitor.Get(candidates[j].ID), candidates[j])
	})

	chosen := candidates[0]
	return &chosen, nil
}

// less implements the sort order of spec §4.3 step 3: ascending
// utilization, ascending usage-to-time ratio, descending tier.
func less(a health.Snapshot, ac credential.Credential, b health.Snapshot, bc credential.Credential) bool {
	au := utilizationOf(a)
	bu := utilizationOf(b)
	if au != bu {
		return au < bu
	}
	ar := ratioOf(a)
	br := ratioOf(b)
	if ar != br {
		return ar < br
	}
	return ac.Tier > bc.Tier
}

func utilizationOf(snap health.Snapshot) float64 {
	if snap.LatestUsage == nil {
		return 0
	}
	w, ok := snap.LatestUsage.FiveHour()
	if !ok {
		return 0
	}
	return w.UtilizationPct
}

// ratioOf computes utilization_pct / elapsed_pct_of_window (spec §4.3 step
// 3b), treating elapsed_pct <= 0 as the raw utilization and clamping drift
// above 100% (spec §9).
func ratioOf(snap health.Snapshot) float64 {
	if snap.LatestUsage == nil {
		return 0
	}
	w, ok := snap.LatestUsage.FiveHour()
	if !ok || w.ResetsAt.IsZero() {
		return utilizationOf(snap)
	}
	secondsUntilReset := time.Until(w.ResetsAt).Seconds()
	elapsedPct := (fiveHourWindowSeconds - secondsUntilReset) * 100 / fiveHourWindowSeconds
	if elapsedPct <= 0 {
		return w.UtilizationPct
	}
	if elapsedPct > 100 {
		elapsedPct = 100
	}
	return w.UtilizationPct / elapsedPct
}

// roundRobinPick advances a shared counter modulo the active-credential
// count (spec §4.3 step 4, §5: "wrap-around counter, guarded against
// concurrent advance").
func (s *Selector) roundRobinPick(active []credential.Credential) (*credential.Credential, error) {
	if len(active) == 0 {
		return nil, ErrNoCredential
	}
	idx := s.roundRobin.Add(1) - 1
	chosen := active[int(idx%uint64(len(active)))]
	return &chosen, nil
}
