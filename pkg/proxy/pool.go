package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	ErrNilURL   = errors.New("proxy: url cannot be nil")
	ErrNotFound = errors.New("proxy: not found in pool")
)

// Proxy represents a single proxy endpoint with health tracking.
type Proxy struct {
	URL           *url.URL
	Failures      int
	Successes     int
	LastUsed      time.Time
	Disabled      bool
	DisabledUntil time.Time
}

// Pool rotates through a set of proxies, benching the ones that keep failing
// or that a search engine has flagged.
type Pool struct {
	mu           sync.Mutex
	proxies      []*Proxy
	currentIndex int
	maxFailures  int
	cooldown     time.Duration
	now          func() time.Time
}

// Config defines settings for the Proxy Pool.
type Config struct {
	// MaxFailures before disabling a proxy temporarily.
	MaxFailures int
	// Cooldown is how long a proxy remains disabled after hitting MaxFailures
	// or being marked blocked.
	Cooldown time.Duration
}

// Stats is a point-in-time view of pool health.
type Stats struct {
	Total   int `json:"total"`
	Healthy int `json:"healthy"`
}

// NewPool creates a new proxy pool. If config values are zero, reasonable defaults are used.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Pool{
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		now:         time.Now,
	}
}

// LoadFile reads proxies from a file, expecting one URL per line.
// Lines starting with '#' or empty lines are ignored.
func (p *Pool) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("proxy: open %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var urls []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("proxy: read %s: %w", path, err)
	}

	return p.Add(urls...)
}

// Add parses raw URL strings and adds them to the pool. A missing scheme
// defaults to http.
func (p *Pool) Add(rawURLs ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, raw := range rawURLs {
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("proxy: parse %q: %w", raw, err)
		}
		p.proxies = append(p.proxies, &Proxy{URL: u})
	}
	return nil
}

// Len returns the number of configured proxies, healthy or not.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}

// Next returns the next healthy proxy URL in the pool. It returns nil if no proxies
// are available or if all proxies are currently cooling down.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return nil
	}

	now := p.now()
	startIndex := p.currentIndex

	for {
		prx := p.proxies[p.currentIndex]
		p.currentIndex = (p.currentIndex + 1) % len(p.proxies)

		if prx.Disabled && now.After(prx.DisabledUntil) {
			prx.Disabled = false
			prx.Failures = 0
		}

		if !prx.Disabled {
			prx.LastUsed = now
			return prx.URL
		}

		if p.currentIndex == startIndex {
			return nil
		}
	}
}

// MarkSuccess records a successful request for the given proxy URL.
func (p *Pool) MarkSuccess(proxyURL *url.URL) error {
	return p.update(proxyURL, func(prx *Proxy) {
		prx.Successes++
		if prx.Failures > 0 {
			prx.Failures--
		}
	})
}

// MarkFailure records a failure for the given proxy URL. If failures exceed
// the configured maximum, the proxy is temporarily disabled.
func (p *Pool) MarkFailure(proxyURL *url.URL) error {
	return p.update(proxyURL, func(prx *Proxy) {
		prx.Failures++
		if prx.Failures >= p.maxFailures {
			p.disable(prx)
		}
	})
}

// MarkBlocked benches a proxy immediately for one cooldown, regardless of its
// failure count. Used when a search engine answered with a challenge page.
func (p *Pool) MarkBlocked(proxyURL *url.URL) error {
	return p.update(proxyURL, p.disable)
}

// Stats reports how many proxies are configured and currently usable.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	s := Stats{Total: len(p.proxies)}
	for _, prx := range p.proxies {
		if !prx.Disabled || now.After(prx.DisabledUntil) {
			s.Healthy++
		}
	}
	return s
}

func (p *Pool) update(proxyURL *url.URL, fn func(*Proxy)) error {
	if proxyURL == nil {
		return ErrNilURL
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	prx := p.findProxy(proxyURL)
	if prx == nil {
		return ErrNotFound
	}
	fn(prx)
	return nil
}

// disable must be called with the lock held.
func (p *Pool) disable(prx *Proxy) {
	prx.Disabled = true
	prx.DisabledUntil = p.now().Add(p.cooldown)
}

// findProxy locates a proxy by its String() representation. Must be called with lock held.
func (p *Pool) findProxy(u *url.URL) *Proxy {
	target := u.String()
	for _, prx := range p.proxies {
		if prx.URL.String() == target {
			return prx
		}
	}
	return nil
}
