package credential

import (
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
)

// fileCredential is the on-disk JSON shape of one credential entry.
type fileCredential struct {
	ID            string `json:"id"`
	DisplayName   string `json:"displayName"`
	SessionSecret string `json:"sessionSecret"`
	OrgID         string `json:"orgId"`
	BaseURL       string `json:"baseURL"`
	Tier          int    `json:"tier"`
	Active        *bool  `json:"active"`
	TrackUsage    *bool  `json:"trackUsage"`
	Ping          *bool  `json:"ping"`
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// Load reads a credentials JSON file (an array of fileCredential) and
// produces a Pool. A blank baseURL or an empty resulting pool is a
// CredentialConfigMissing condition the caller should treat as a startup
// failure (spec §7) — Load itself just reports the error.
func Load(path string) (*Pool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	var entries []fileCredential
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse credentials file: %w", err)
	}
	creds := make([]Credential, 0, len(entries))
	for _, e := range entries {
		if e.BaseURL == "" {
			return nil, fmt.Errorf("credential %q: baseURL is required", e.ID)
		}
		creds = append(creds, Credential{
			ID:            e.ID,
			DisplayName:   e.DisplayName,
			SessionSecret: e.SessionSecret,
			OrgID:         e.OrgID,
			BaseURL:       e.BaseURL,
			Tier:          e.Tier,
			Flags: Flags{
				Active:     boolOr(e.Active, true),
				TrackUsage: boolOr(e.TrackUsage, true),
				Ping:       boolOr(e.Ping, false),
			},
		})
	}
	if len(creds) == 0 {
		return nil, fmt.Errorf("credentials file %s contains no credentials", path)
	}
	return NewPool(creds), nil
}

// Source holds the atomically-swapped pool pointer. Requests snapshot it
// once (Current) and never re-read mid-request, matching the "readers hold
// no lock" guarantee of spec §5.
type Source struct {
	ptr atomic.Pointer[Pool]
}

// NewSource wraps an initial pool.
func NewSource(initial *Pool) *Source {
	s := &Source{}
	s.ptr.Store(initial)
	return s
}

// Current returns the live pool snapshot.
func (s *Source) Current() *Pool {
	return s.ptr.Load()
}

// Swap atomically replaces the pool snapshot.
func (s *Source) Swap(p *Pool) {
	s.ptr.Store(p)
}
