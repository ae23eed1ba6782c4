// Package credential holds the immutable Credential record and the
// atomically-swapped Pool that the selector reads from.
package credential

import "strings"

// Flags controls whether a credential participates in selection, usage
// polling, and the upstream health-ping (ping is reserved for a future
// collaborator and is otherwise unused by this core).
type Flags struct {
	Active      bool
	TrackUsage  bool
	Ping        bool
}

// Credential is an immutable descriptor of one upstream browser session.
// Lifecycle: loaded at start and on reload; never mutated in place — a
// reload produces a fresh Pool snapshot (spec §3).
type Credential struct {
	ID            string
	DisplayName   string
	SessionSecret string
	OrgID         string
	BaseURL       string
	Tier          int
	Flags         Flags
}

// NormalizedID returns the case-insensitive key this credential is indexed
// under.
func (c Credential) NormalizedID() string {
	return strings.ToLower(c.ID)
}

// Pool is an immutable, ordered snapshot of the credential set plus an
// id-keyed lookup index. Readers obtain a *Pool once per request and never
// observe a torn read across a reload (spec §5).
type Pool struct {
	Credentials []Credential
	byID        map[string]Credential
}

// NewPool builds a lookup-indexed snapshot from a credential slice. IDs are
// assumed unique case-insensitively; later duplicates overwrite earlier ones.
func NewPool(creds []Credential) *Pool {
	byID := make(map[string]Credential, len(creds))
	for _, c := range creds {
		byID[c.NormalizedID()] = c
	}
	return &Pool{Credentials: creds, byID: byID}
}

// Get looks up a credential by id, case-insensitively.
func (p *Pool) Get(id string) (Credential, bool) {
	if p == nil {
		return Credential{}, false
	}
	c, ok := p.byID[strings.ToLower(id)]
	return c, ok
}

// Active returns the credentials with Flags.Active set, in pool order.
func (p *Pool) Active() []Credential {
	if p == nil {
		return nil
	}
	out := make([]Credential, 0, len(p.Credentials))
	for _, c := range p.Credentials {
		if c.Flags.Active {
			out = append(out, c)
		}
	}
	return out
}

// Len reports the total credential count, active or not.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Credentials)
}
