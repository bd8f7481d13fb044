package serp

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"
)

// DefaultBlocklist holds low-value domains that never yield leads:
// dictionaries and reference, social networks, job boards and marketplaces.
var DefaultBlocklist = []string{
	"merriam-webster.com", "dictionary.com", "thefreedictionary.com",
	"collinsdictionary.com", "dictionary.cambridge.org", "vocabulary.com",
	"urbandictionary.com", "wiktionary.org", "wikipedia.org", "britannica.com",
	"facebook.com", "instagram.com", "twitter.com", "x.com", "tiktok.com",
	"pinterest.com", "reddit.com", "linkedin.com", "youtube.com", "quora.com",
	"indeed.com", "glassdoor.com", "ziprecruiter.com", "monster.com",
	"simplyhired.com", "snagajob.com", "careerbuilder.com",
	"craigslist.org", "ebay.com", "amazon.com", "etsy.com", "offerup.com",
}

// DefaultMinSnippet is the shortest snippet considered informative.
const DefaultMinSnippet = 20

// Prefilter drops structurally useless results before classification.
type Prefilter struct {
	Blocklist  []string
	MinSnippet int
}

// DefaultPrefilter returns the standard prefilter.
func DefaultPrefilter() Prefilter {
	return Prefilter{Blocklist: DefaultBlocklist, MinSnippet: DefaultMinSnippet}
}

// Check reports whether r may pass, and if not, why.
func (p Prefilter) Check(r Result) (ok bool, reason string) {
	u, err := url.Parse(strings.TrimSpace(r.URL))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false, "invalid_url"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false, "invalid_url"
	}
	if HostMatches(u.Hostname(), p.Blocklist...) {
		return false, "blocklisted"
	}
	if utf8.RuneCountInString(strings.TrimSpace(r.Snippet)) < p.MinSnippet {
		return false, "short_snippet"
	}
	return true, ""
}

// Apply returns the results that pass, preserving order.
func (p Prefilter) Apply(rs []Result) []Result {
	out := rs[:0:0]
	for _, r := range rs {
		if ok, _ := p.Check(r); ok {
			out = append(out, r)
		}
	}
	return out
}

// HostMatches reports whether host equals one of the domains or is a
// subdomain of it.
func HostMatches(host string, domains ...string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for _, d := range domains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

type filtered struct {
	Provider
	pf     Prefilter
	logger *slog.Logger
}

// Filtered wraps a provider so every result set passes through pf.
func Filtered(p Provider, pf Prefilter, logger *slog.Logger) Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &filtered{Provider: p, pf: pf, logger: logger}
}

func (f *filtered) Search(ctx context.Context, q Query) ([]Result, error) {
	rs, err := f.Provider.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	kept := f.pf.Apply(rs)
	if dropped := len(rs) - len(kept); dropped > 0 {
		f.logger.Debug("prefilter dropped results", "engine", f.Name(), "query", q.Text, "dropped", dropped)
	}
	return kept, nil
}
