package serp

import (
	"errors"
	"strings"
	"sync"
)

// Credential is an API key paired with the search engine id it queries.
type Credential struct {
	Key      string
	EngineID string
}

// RotorStats summarises credential usage for the run summary.
type RotorStats struct {
	TotalCalls    int        `json:"totalCalls"`
	ExhaustedKeys int        `json:"exhaustedKeys"`
	ActiveKeys    int        `json:"activeKeys"`
	Keys          []KeyUsage `json:"keys,omitempty"`
}

// KeyUsage is the per-credential breakdown. Key is redacted.
type KeyUsage struct {
	Key       string `json:"key"`
	Calls     int    `json:"calls"`
	Exhausted bool   `json:"exhausted"`
}

// Rotor hands out credentials round-robin, skipping the ones whose quota
// ran out. It is safe for concurrent use.
type Rotor struct {
	mu        sync.Mutex
	creds     []Credential
	next      int
	usage     []int
	exhausted []bool
}

// NewRotor pairs keys with engine ids. When there are fewer ids than keys
// the ids are reused cyclically, so a single id serves every key.
func NewRotor(keys, engineIDs []string) (*Rotor, error) {
	keys = compact(keys)
	engineIDs = compact(engineIDs)
	if len(keys) == 0 {
		return nil, errors.New("serp: no API keys configured")
	}
	if len(engineIDs) == 0 {
		return nil, errors.New("serp: no search engine ids configured")
	}
	creds := make([]Credential, len(keys))
	for i, k := range keys {
		creds[i] = Credential{Key: k, EngineID: engineIDs[i%len(engineIDs)]}
	}
	return &Rotor{
		creds:     creds,
		usage:     make([]int, len(creds)),
		exhausted: make([]bool, len(creds)),
	}, nil
}

// Next returns the next usable credential and its index, counting the call
// against it. ok is false once every credential is exhausted.
func (r *Rotor) Next() (c Credential, idx int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for range r.creds {
		i := r.next % len(r.creds)
		r.next++
		if r.exhausted[i] {
			continue
		}
		r.usage[i]++
		return r.creds[i], i, true
	}
	return Credential{}, -1, false
}

// MarkExhausted takes a credential out of rotation. It reports whether the
// credential was active before the call.
func (r *Rotor) MarkExhausted(idx int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx < 0 || idx >= len(r.creds) || r.exhausted[idx] {
		return false
	}
	r.exhausted[idx] = true
	return true
}

// Credentials returns a copy of the configured credentials in order.
func (r *Rotor) Credentials() []Credential {
	out := make([]Credential, len(r.creds))
	copy(out, r.creds)
	return out
}

// Stats returns a snapshot of usage.
func (r *Rotor) Stats() RotorStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s RotorStats
	for i, c := range r.creds {
		s.TotalCalls += r.usage[i]
		if r.exhausted[i] {
			s.ExhaustedKeys++
		}
		s.Keys = append(s.Keys, KeyUsage{Key: RedactKey(c.Key), Calls: r.usage[i], Exhausted: r.exhausted[i]})
	}
	s.ActiveKeys = len(r.creds) - s.ExhaustedKeys
	return s
}

func compact(xs []string) []string {
	var out []string
	for _, x := range xs {
		if x = strings.TrimSpace(x); x != "" {
			out = append(out, x)
		}
	}
	return out
}
