package analyzer

import (
	"net/url"
	"strings"

	"github.com/FranksOps/signlead/internal/serp"
)

// Rejection reasons.
const (
	ReasonNoRelevance    = "no_relevance"
	ReasonDisqualified   = "disqualified"
	ReasonNonUS          = "non_us_domain"
	ReasonNoBusinessType = "no_business_type"
	ReasonInvalidURL     = "invalid_url"
)

// DefaultRelevance are opening/construction terms; at least one must appear.
var DefaultRelevance = []string{
	"opening", "open", "grand opening", "now open", "coming soon", "coming to",
	"construction", "development", "groundbreaking", "permit", "new location",
	"franchise", "expansion", "expand", "relocat", "plaza", "shopping center",
	"mall", "lease", "tenant", "build",
}

// DefaultDisqualifying veto a result outright, whatever else it says.
var DefaultDisqualifying = []string{
	// obituaries
	"obituary", "obituaries", "passed away", "funeral home services",
	// crime
	"charged with", "charged in", "arrested", "embezzlement", "indicted",
	"sentenced", "homicide", "murder", "shooting",
	// sports
	"sports score", "final score", "box score", "touchdown", "playoff",
	// markets
	"stock price", "stock market", "share price", "earnings call",
	"quarterly earnings", "earnings report", "dividend",
	// weather
	"weather forecast", "severe weather", "forecast calls for",
	// definitions
	"definition", "meaning of", "synonyms", "dictionary",
	// job boards, marketplaces, social
	"indeed.com", "glassdoor", "ziprecruiter", "craigslist", "ebay.com",
	"facebook.com", "instagram.com", "tiktok.com",
}

// DefaultBusinessTypes are commercial-tenant terms.
var DefaultBusinessTypes = []string{
	"restaurant", "cafe", "café", "coffee", "bakery", "grill", "pizza", "burger",
	"taco", "eatery", "diner", "brewery", "food", "drive-thru", "drive-through",
	"store", "shop", "retail", "boutique", "outlet", "market", "grocery",
	"supermarket", "pharmacy", "dollar",
	"hotel", "motel", " inn", "resort",
	"clinic", "medical", "dental", "urgent care", "hospital", "office",
	"bank", "credit union", "gym", "fitness", "salon", "spa ",
	"dealership", "auto", "car wash", "gas station", "convenience", "travel center",
	"mall", "plaza", "shopping center", "franchise", "chain",
	"daycare", "showroom", "theater", "cinema",
}

// DefaultNonUSSuffixes are host suffixes of non-US news sites.
var DefaultNonUSSuffixes = []string{".co.uk", ".uk", ".ca", ".com.au", ".au", ".co.nz", ".nz"}

// ClassifierConfig configures a Classifier. Nil lists use the defaults.
type ClassifierConfig struct {
	Relevance     []string
	Disqualifying []string
	BusinessTypes []string
	NonUSSuffixes []string
	// Chains are franchise names; mentioning one counts as a business type.
	Chains []string
	// AllowAnyBusinessType turns off the business-type requirement.
	AllowAnyBusinessType bool
}

// Decision is the classifier's verdict. Matched lists the relevance terms
// that fired on acceptance, or the vetoing term on disqualification.
type Decision struct {
	Accept  bool     `json:"accept"`
	Reason  string   `json:"reason,omitempty"`
	Matched []string `json:"matched,omitempty"`
}

// Classifier is a keyword-presence lead classifier. It is pure: the same
// result and state always yield the same decision.
type Classifier struct {
	relevance     TermSet
	disqualifying TermSet
	business      TermSet
	nonUS         []string
	strict        bool
}

// NewClassifier builds a classifier from cfg.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	pick := func(xs, def []string) []string {
		if xs == nil {
			return def
		}
		return xs
	}
	return &Classifier{
		relevance:     NewTermSet(pick(cfg.Relevance, DefaultRelevance)...),
		disqualifying: NewTermSet(pick(cfg.Disqualifying, DefaultDisqualifying)...),
		business:      NewTermSet(pick(cfg.BusinessTypes, DefaultBusinessTypes)...).With(cfg.Chains...),
		nonUS:         pick(cfg.NonUSSuffixes, DefaultNonUSSuffixes),
		strict:        !cfg.AllowAnyBusinessType,
	}
}

// Classify decides whether r is a lead for the given state. Disqualification
// always beats relevance. The verdict does not currently vary by state.
func (c *Classifier) Classify(r serp.Result, _ string) Decision {
	text := strings.ToLower(r.Title + " " + r.Snippet)

	matched := c.relevance.All(text)
	if len(matched) == 0 {
		return Decision{Reason: ReasonNoRelevance}
	}
	if term, ok := c.disqualifying.First(text); ok {
		return Decision{Reason: ReasonDisqualified, Matched: []string{term}}
	}

	u, err := url.Parse(r.URL)
	if err != nil || u.Host == "" {
		return Decision{Reason: ReasonInvalidURL}
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	for _, suffix := range c.nonUS {
		if strings.HasSuffix(host, suffix) {
			return Decision{Reason: ReasonNonUS, Matched: []string{suffix}}
		}
	}

	if c.strict && !c.business.Any(" "+text+" ") {
		return Decision{Reason: ReasonNoBusinessType}
	}
	return Decision{Accept: true, Matched: matched}
}
