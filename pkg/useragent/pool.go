package useragent

import (
	"math/rand/v2"
	"strings"
	"sync/atomic"
)

// DefaultPool provides a realistic set of desktop browser User-Agents.
var DefaultPool = []string{
	// Chrome Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	// Chrome Mac
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	// Firefox Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:130.0) Gecko/20100101 Firefox/130.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:131.0) Gecko/20100101 Firefox/131.0",
	// Firefox Mac
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:130.0) Gecko/20100101 Firefox/130.0",
	// Safari Mac
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.6 Safari/605.1.15",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.0 Safari/605.1.15",
	// Edge Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36 Edg/129.0.0.0",
}

// Family reports which browser family a User-Agent string claims to be:
// "chrome", "firefox", "safari", "edge" or "" when unrecognized. Edge is
// checked before Chrome since its UA embeds the Chrome token.
func Family(ua string) string {
	switch {
	case strings.Contains(ua, "Edg/"):
		return "edge"
	case strings.Contains(ua, "Firefox/"):
		return "firefox"
	case strings.Contains(ua, "Chrome/"):
		return "chrome"
	case strings.Contains(ua, "Safari/"):
		return "safari"
	default:
		return ""
	}
}

// Pool is a rotation of User-Agents. Search engines compare the claimed
// browser with the TLS handshake, so callers usually narrow the pool with
// ForFamily to match their fingerprint profile.
type Pool struct {
	uas     []string
	counter atomic.Uint64
}

// NewPool creates a new User-Agent pool. If the provided slice is empty,
// it falls back to DefaultPool.
func NewPool(uas []string) *Pool {
	if len(uas) == 0 {
		uas = DefaultPool
	}
	copied := make([]string, len(uas))
	copy(copied, uas)
	return &Pool{uas: copied}
}

// ForFamily returns a new pool restricted to the given browser family.
// Edge agents count as chrome. If nothing matches, the full pool is kept so
// requests still carry a realistic agent.
func (p *Pool) ForFamily(family string) *Pool {
	family = strings.ToLower(family)
	var matched []string
	for _, ua := range p.uas {
		f := Family(ua)
		if f == family || (family == "chrome" && f == "edge") {
			matched = append(matched, ua)
		}
	}
	if len(matched) == 0 {
		return NewPool(p.uas)
	}
	return &Pool{uas: matched}
}

// Next returns the next User-Agent in round-robin order.
// It is safe for concurrent use.
func (p *Pool) Next() string {
	if len(p.uas) == 0 {
		return ""
	}
	idx := p.counter.Add(1) - 1
	return p.uas[idx%uint64(len(p.uas))]
}

// Random returns a uniformly chosen User-Agent. It is safe for concurrent use.
func (p *Pool) Random() string {
	if len(p.uas) == 0 {
		return ""
	}
	return p.uas[rand.IntN(len(p.uas))]
}

// All returns a copy of the User-Agents in the pool.
func (p *Pool) All() []string {
	copied := make([]string, len(p.uas))
	copy(copied, p.uas)
	return copied
}
