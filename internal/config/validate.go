package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/FranksOps/signlead/internal/lead"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// Err joins the errors into one, or returns nil.
func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	return fmt.Errorf("config: %s", strings.Join(v.Errors, "; "))
}

var (
	repoPattern         = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)
	dateRestrictPattern = regexp.MustCompile(`^[dwmy]\d+$`)
)

// NormalizeAndValidate returns a normalized copy of cfg: state names are
// canonicalized and lists are trimmed.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation

	out.Google.APIKeys = trimList(out.Google.APIKeys)
	out.Google.EngineIDs = trimList(out.Google.EngineIDs)
	out.Chains = trimList(out.Chains)
	out.Scrape.Proxies = trimList(out.Scrape.Proxies)

	// states
	states := make([]string, 0, len(out.States))
	for _, s := range trimList(out.States) {
		st, ok := lead.LookupState(s)
		if !ok {
			res.addErr("unknown state %q", s)
			continue
		}
		states = append(states, st.Name)
	}
	out.States = trimList(states)

	// engine
	switch out.Engine {
	case EngineGoogle:
		if len(out.Google.APIKeys) == 0 {
			res.addErr("google engine needs at least one API key (GOOGLE_API_KEYS)")
		}
		if len(out.Google.EngineIDs) == 0 {
			res.addErr("google engine needs at least one search engine id (GOOGLE_SEARCH_ENGINE_IDS)")
		}
		if n, m := len(out.Google.APIKeys), len(out.Google.EngineIDs); m > 1 && n != m {
			res.addWarn("%d API keys but %d engine ids; ids are reused in order", n, m)
		}
		if out.Google.Num < 1 || out.Google.Num > 10 {
			res.addErr("google.num must be between 1 and 10, got %d", out.Google.Num)
		}
		if out.Google.DateRestrict != "" && !dateRestrictPattern.MatchString(out.Google.DateRestrict) {
			res.addErr("google.date_restrict %q is not of the form m6, w2, d30 or y1", out.Google.DateRestrict)
		}
	case EngineBing, EngineDuckDuckGo:
		if len(out.Google.APIKeys) > 0 {
			res.addWarn("google API keys are ignored by the %s engine", out.Engine)
		}
	default:
		res.addErr("engine must be google, bing or duckduckgo, got %q", out.Engine)
	}

	// pacing sanity
	if out.Delays.QueryMin < 0 || out.Delays.QueryMax < out.Delays.QueryMin {
		res.addErr("delays.query_min/query_max must satisfy 0 <= min <= max")
	} else if out.Delays.QueryMax == 0 {
		res.addWarn("query delay is zero and may cause rate limits.")
	}
	if out.Delays.StateMin < 0 || out.Delays.StateMax < out.Delays.StateMin {
		res.addErr("delays.state_min/state_max must satisfy 0 <= min <= max")
	}
	if out.Retry.MaxAttempts < 1 {
		res.addErr("retry.max_attempts must be > 0")
	}

	// output
	if strings.TrimSpace(out.Output.Dir) == "" {
		res.addErr("output.dir is required")
	}
	if out.Output.MinLeads < 1 {
		res.addErr("output.min_leads must be > 0")
	}
	if out.Output.Interval <= 0 {
		res.addErr("output.interval must be > 0")
	}

	// publishing
	if out.GitHub.Repo != "" && !repoPattern.MatchString(out.GitHub.Repo) {
		res.addErr("github.repo must be owner/name, got %q", out.GitHub.Repo)
	}
	if out.GitHub.Repo != "" && out.GitHub.Token == "" {
		res.addWarn("github.repo is set but no token was found; pages will not be published.")
	}
	if out.GitHub.RequestsPerSecond <= 0 {
		res.addErr("github.requests_per_second must be > 0")
	}

	// storage
	switch out.Store.Backend {
	case StoreNone, StoreJSON, StoreCSV, StoreSQLite:
	case StorePostgres:
		if strings.TrimSpace(out.Store.DSN) == "" {
			res.addErr("store.dsn is required when store.backend=postgres")
		}
	default:
		res.addErr("store.backend must be none, json, csv, sqlite or postgres, got %q", out.Store.Backend)
	}

	if !out.Classify.RequireBusinessType {
		res.addWarn("classify.require_business_type is off; expect more off-topic leads.")
	}

	return out, res
}
