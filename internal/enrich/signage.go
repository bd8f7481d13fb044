package enrich

import "strings"

type signGroup struct {
	terms []string
	signs []string
}

var baseSignage = []string{"Monument sign", "Channel letters"}

var signGroups = []signGroup{
	{
		terms: []string{"restaurant", "food", "cafe", "café", "coffee", "drive-thru", "drive-through", "grill", "pizza", "burger", "taco", "bakery", "eatery"},
		signs: []string{"Menu boards", "Drive-thru signage"},
	},
	{
		terms: []string{"retail", "store", "shop", "boutique", "outlet", "dollar"},
		signs: []string{"Interior wayfinding", "Window graphics"},
	},
	{
		terms: []string{"office", "medical", "clinic", "dental", "urgent care", "hospital", "corporate"},
		signs: []string{"Directory signage", "Suite identification"},
	},
	{
		terms: []string{"hotel", "motel", "hospitality", " inn", "resort"},
		signs: []string{"Pylon sign", "Illuminated facade"},
	},
	{
		terms: []string{"auto", "car wash", "dealership", "tire"},
		signs: []string{"Pylon sign", "Lot banners"},
	},
	{
		terms: []string{"gym", "fitness", "yoga", "health club"},
		signs: []string{"Backlit letters", "Parking signage"},
	},
	{
		terms: []string{"bank", "credit union", "financial"},
		signs: []string{"Drive-up lane signage", "Lobby logo wall"},
	},
	{
		terms: []string{"gas station", "fuel", "convenience", "travel center"},
		signs: []string{"Fuel price sign", "Canopy graphics"},
	},
	{
		terms: []string{"grocery", "supermarket"},
		signs: []string{"Department signage", "Aisle markers"},
	},
	{
		terms: []string{"shopping center", "plaza", "mall"},
		signs: []string{"Tenant panels", "Multi-tenant pylon"},
	},
}

// Signage lists the sign products a development of this kind typically
// needs. lower must be lowercase. The result is ordered and has no
// duplicates.
func Signage(lower string) []string {
	padded := " " + lower + " "
	out := append([]string(nil), baseSignage...)
	seen := map[string]bool{}
	for _, s := range out {
		seen[s] = true
	}
	for _, g := range signGroups {
		if !containsAny(padded, g.terms) {
			continue
		}
		for _, s := range g.signs {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// Revenue bands, highest first.
const (
	RevenueNational = "$45K - $90K"
	RevenueMajor    = "$30K - $65K"
	RevenueStandard = "$20K - $45K"
	RevenueBase     = "$15K - $35K"
)

var (
	nationalTerms = []string{"national chain", "franchise", "corporate"}
	majorTerms    = []string{"restaurant", "hotel", "shopping center", "mall", "plaza", "resort"}
	standardTerms = []string{"retail", "store", "medical", "clinic", "auto", "dealership", "office"}
)

// Revenue estimates the sign-package value band. lower must be lowercase.
func (e *Enricher) Revenue(lower string) string {
	switch {
	case containsAny(lower, nationalTerms) || containsAny(lower, e.chains):
		return RevenueNational
	case containsAny(lower, majorTerms):
		return RevenueMajor
	case containsAny(lower, standardTerms):
		return RevenueStandard
	default:
		return RevenueBase
	}
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
