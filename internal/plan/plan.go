// Package plan defines the fixed set of search queries issued for every
// state: general keyword searches followed by franchise-chain searches.
package plan

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Phase tells which part of the plan a query belongs to.
type Phase string

const (
	PhaseKeyword   Phase = "keyword"
	PhaseFranchise Phase = "franchise"
)

// Query is one planned search. State and year scoping are added by the
// search backend.
type Query struct {
	Text  string
	Phase Phase
}

// Plan is the canned query set.
type Plan struct {
	Keywords []string `yaml:"keywords"`
	Chains   []string `yaml:"chains"`
	// ChainSuffix is appended to each chain name, e.g. "new location".
	ChainSuffix string `yaml:"chain_suffix"`
}

// Default returns the built-in plan: 8 keywords and 8 chains, 16 queries a
// state.
func Default() Plan {
	return Plan{
		Keywords: []string{
			"new store opening",
			"restaurant opening",
			"grand opening retail",
			"commercial development construction",
			"new franchise location",
			"strip mall development",
			"shopping center construction",
			"retail building permit",
		},
		Chains: []string{
			"Chick-fil-A", "Dutch Bros", "Raising Cane's", "Wingstop",
			"Jersey Mike's", "Crumbl Cookies", "Dollar General", "Buc-ee's",
		},
		ChainSuffix: "new location",
	}
}

// Load reads a YAML plan. Sections left out of the file keep their
// defaults, so a file may override only the chain list.
func Load(path string) (Plan, error) {
	p := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("plan: read %s: %w", path, err)
	}
	var fromFile Plan
	if err := yaml.Unmarshal(b, &fromFile); err != nil {
		return p, fmt.Errorf("plan: parse %s: %w", path, err)
	}
	if len(fromFile.Keywords) > 0 {
		p.Keywords = fromFile.Keywords
	}
	if len(fromFile.Chains) > 0 {
		p.Chains = fromFile.Chains
	}
	if s := strings.TrimSpace(fromFile.ChainSuffix); s != "" {
		p.ChainSuffix = s
	}
	return p.normalized(), nil
}

func (p Plan) normalized() Plan {
	p.Keywords = trimList(p.Keywords)
	p.Chains = trimList(p.Chains)
	return p
}

// Queries expands the plan in issue order: keywords first, then chains.
func (p Plan) Queries() []Query {
	out := make([]Query, 0, len(p.Keywords)+len(p.Chains))
	for _, k := range p.Keywords {
		out = append(out, Query{Text: k, Phase: PhaseKeyword})
	}
	for _, c := range p.Chains {
		text := c
		if p.ChainSuffix != "" {
			text = c + " " + p.ChainSuffix
		}
		out = append(out, Query{Text: text, Phase: PhaseFranchise})
	}
	return out
}

// trimList drops blanks and case-insensitive duplicates, keeping order.
func trimList(xs []string) []string {
	seen := map[string]bool{}
	var ys []string
	for _, x := range xs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		key := strings.ToLower(x)
		if seen[key] {
			continue
		}
		seen[key] = true
		ys = append(ys, x)
	}
	return ys
}
