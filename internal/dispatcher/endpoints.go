package dispatcher

import (
	"fmt"
	"strings"
	"time"
)

// HealthStatus is the GET /health response body of spec §6.
type HealthStatus struct {
	Status            string   `json:"status"`
	Service           string   `json:"service"`
	Version           string   `json:"version"`
	ActiveCredentials []string `json:"active_credentials"`
	CredentialCount   int      `json:"credential_count"`
	Timestamp         string   `json:"timestamp"`
}

// serviceName and serviceVersion are reported by GET /health.
const (
	serviceName    = "ccapis-proxy"
	serviceVersion = "1.0.0"
)

// BuildHealth assembles the GET /health payload.
func (d *Dispatcher) BuildHealth() HealthStatus {
	pool := d.pool.Current()
	active := pool.Active()
	ids := make([]string, 0, len(active))
	for _, c := range active {
		ids = append(ids, c.ID)
	}
	return HealthStatus{
		Status:            "ok",
		Service:           serviceName,
		Version:           serviceVersion,
		ActiveCredentials: ids,
		CredentialCount:   pool.Len(),
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
	}
}

// BuildAccountHealthText assembles the GET /health/accounts plain-text
// per-credential summary of spec §6.
func (d *Dispatcher) BuildAccountHealthText() string {
	pool := d.pool.Current()
	var b strings.Builder
	for _, c := range pool.Credentials {
		snap := d.monitor.Get(c.ID)
		fmt.Fprintf(&b, "%s\t%s\tactive=%v\ttier=%d\tfailures=%d",
			c.ID, snap.State.String(), c.Flags.Active, c.Tier, snap.ConsecutiveFailures)
		if snap.HasCooldown {
			fmt.Fprintf(&b, "\tcooldown_until=%s", snap.CooldownUntil.UTC().Format(time.RFC3339))
		}
		if w, ok := snap.LatestUsage.FiveHour(); ok {
			fmt.Fprintf(&b, "\tfive_hour_utilization_pct=%.1f\tresets_at=%s", w.UtilizationPct, w.ResetsAt.UTC().Format(time.RFC3339))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
