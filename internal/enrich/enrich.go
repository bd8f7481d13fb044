// Package enrich turns an accepted search result into a Lead by deriving
// display name, location, opening date, phone, temperature, signage and
// revenue band from its text. Every field has a fallback, so Enrich never
// fails.
package enrich

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/FranksOps/signlead/internal/lead"
	"github.com/FranksOps/signlead/internal/serp"
	"github.com/google/uuid"
)

const (
	FallbackName  = "New Commercial Development"
	FallbackPhone = "Contact for details"
	ComingSoon    = "Coming soon"
	TBA           = "TBA"

	maxNameLen    = 65
	maxSummaryLen = 100
)

// leadNamespace scopes lead ids so the same state and URL always map to the
// same id.
var leadNamespace = uuid.MustParse("6f0c6f1e-5b8e-4d57-9a53-3a2f4f3c9b11")

// Config configures an Enricher.
type Config struct {
	// Chains are national franchise names; a mention puts the lead in the
	// top revenue band.
	Chains []string
	Now    func() time.Time
}

// Enricher derives Lead fields. Given the same clock it is deterministic.
type Enricher struct {
	chains []string
	now    func() time.Time
}

// New builds an Enricher.
func New(cfg Config) *Enricher {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	chains := make([]string, 0, len(cfg.Chains))
	for _, c := range cfg.Chains {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			chains = append(chains, c)
		}
	}
	return &Enricher{chains: chains, now: cfg.Now}
}

// Enrich builds the Lead for an accepted result.
func (e *Enricher) Enrich(r serp.Result, state string) lead.Lead {
	now := e.now()
	lower := strings.ToLower(r.Title + " " + r.Snippet)

	return lead.Lead{
		ID:          uuid.NewSHA1(leadNamespace, []byte(state+"|"+r.URL)).String(),
		State:       state,
		StateCode:   lead.Code(state),
		Name:        CleanName(r.Title),
		Summary:     summarize(r.Snippet),
		Location:    Location(r.Snippet+" "+r.Title, state),
		Phone:       Phone(r.Snippet + " " + r.Title),
		Opening:     Opening(r.Title+" "+r.Snippet, now),
		Temperature: Temperature(lower),
		Signage:     Signage(lower),
		Revenue:     e.Revenue(lower),
		Source:      r.URL,
		Discovered:  now.UTC(),
	}
}

func summarize(snippet string) string {
	s := strings.Join(strings.Fields(snippet), " ")
	if utf8.RuneCountInString(s) <= maxSummaryLen {
		return s
	}
	return string([]rune(s)[:maxSummaryLen]) + "..."
}

var hotTerms = []string{
	"now open", "grand opening", "breaks ground", "broke ground", "groundbreaking",
	"opening soon", "now hiring", "construction started",
}

// Temperature grades a lead hot when the text signals imminent activity.
// lower must be lowercase.
func Temperature(lower string) lead.Temperature {
	for _, t := range hotTerms {
		if strings.Contains(lower, t) {
			return lead.Hot
		}
	}
	return lead.Warm
}
