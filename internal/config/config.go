// Package config loads signlead's settings from flags, the environment, an
// optional .env file and an optional signlead.yaml.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Engines.
const (
	EngineGoogle     = "google"
	EngineBing       = "bing"
	EngineDuckDuckGo = "duckduckgo"
)

// Storage backends. StoreNone keeps no raw snapshot.
const (
	StoreNone     = "none"
	StoreJSON     = "json"
	StoreCSV      = "csv"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config is the resolved runtime configuration. It is built once at startup
// and not modified afterwards.
type Config struct {
	Engine string
	// States lists the states to process; empty means all 50.
	States   []string
	PlanFile string
	// Chains extend the plan's franchise chains for classification and
	// revenue tiers.
	Chains []string

	Google    Google
	Scrape    Scrape
	Delays    Delays
	Retry     Retry
	Output    Output
	GitHub    GitHub
	Store     Store
	Classify  Classify
	Metrics   string
	LogLevel  string
	LogFormat string
}

type Google struct {
	APIKeys      []string
	EngineIDs    []string
	Endpoint     string
	Num          int
	DateRestrict string
	Timeout      time.Duration
}

// Scrape configures the HTML engines' fetcher.
type Scrape struct {
	Proxies     []string
	ProxyFile   string
	UserAgents  []string
	Fingerprint string
	Timeout     time.Duration
}

type Delays struct {
	QueryMin time.Duration
	QueryMax time.Duration
	StateMin time.Duration
	StateMax time.Duration
}

type Retry struct {
	MaxAttempts    int
	Cooldown       time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

type Output struct {
	Dir          string
	ScheduleFile string
	MinLeads     int
	Interval     time.Duration
}

type GitHub struct {
	Repo              string
	Branch            string
	Token             string
	RequestsPerSecond float64
}

// Enabled reports whether pages should be published.
func (g GitHub) Enabled() bool {
	return g.Repo != "" && g.Token != ""
}

type Store struct {
	Backend string
	// Path is the file for json, csv and sqlite.
	Path string
	DSN  string
}

// SnapshotPath is Store.Path, or the backend's default file inside the
// output directory. It is empty for postgres and none.
func (c Config) SnapshotPath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	var name string
	switch c.Store.Backend {
	case StoreJSON:
		name = "leads.jsonl"
	case StoreCSV:
		name = "leads.csv"
	case StoreSQLite:
		name = "leads.db"
	default:
		return ""
	}
	return filepath.Join(c.Output.Dir, name)
}

type Classify struct {
	RequireBusinessType bool
}

// Defaults mirror the values a bare `signlead run` uses.
var defaults = map[string]any{
	"engine":                         EngineGoogle,
	"states":                         "",
	"plan_file":                      "",
	"chains":                         "",
	"google.api_keys":                "",
	"google.engine_ids":              "",
	"google.endpoint":                "https://www.googleapis.com/customsearch/v1",
	"google.num":                     10,
	"google.date_restrict":           "m6",
	"google.timeout":                 "15s",
	"scrape.proxies":                 "",
	"scrape.proxy_file":              "",
	"scrape.user_agents":             "",
	"scrape.fingerprint":             "chrome",
	"scrape.timeout":                 "20s",
	"delays.query_min":               "500ms",
	"delays.query_max":               "1500ms",
	"delays.state_min":               "2s",
	"delays.state_max":               "4s",
	"retry.max_attempts":             3,
	"retry.cooldown":                 "10s",
	"retry.backoff_initial":          "1s",
	"retry.backoff_max":              "20s",
	"output.dir":                     "output",
	"output.schedule_file":           "next-run.json",
	"output.min_leads":               1,
	"output.interval":                "96h",
	"github.repo":                    "",
	"github.branch":                  "main",
	"github.token":                   "",
	"github.requests_per_second":     1.0,
	"store.backend":                  StoreJSON,
	"store.path":                     "",
	"store.dsn":                      "",
	"classify.require_business_type": true,
	"metrics.addr":                   "",
	"log.level":                      "info",
	"log.format":                     "text",
}

// Environment names kept from the original deployment, checked after the
// SIGNLEAD_ prefixed form.
var legacyEnv = map[string][]string{
	"google.api_keys":   {"GOOGLE_API_KEYS", "GOOGLE_API_KEY"},
	"google.engine_ids": {"GOOGLE_SEARCH_ENGINE_IDS", "GOOGLE_SEARCH_ENGINE_ID"},
	"output.dir":        {"OUTPUT_DIR"},
	"github.repo":       {"GITHUB_REPO"},
	"github.token":      {"GITHUB_TOKEN"},
	"github.branch":     {"GITHUB_BRANCH"},
}

// EnvPrefix prefixes every environment variable, e.g. SIGNLEAD_OUTPUT_DIR.
const EnvPrefix = "SIGNLEAD"

// NewViper returns a viper instance with defaults and environment bindings.
// Callers bind their flags to it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(append([]string{key, prefixed}, names...)...)
	}
	return v
}

// Load reads .env from the working directory (if present) and the config
// file, then resolves v into a Config. An empty path looks for an optional
// signlead.yaml in the working directory; an explicit path must exist.
func Load(v *viper.Viper, path string) (Config, error) {
	_ = godotenv.Load()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("signlead")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("config: read signlead.yaml: %w", err)
			}
		}
	}

	var errs []error
	dur := func(key string) time.Duration {
		d, err := parseDuration(v.GetString(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
		}
		return d
	}

	cfg := Config{
		Engine:   strings.ToLower(strings.TrimSpace(v.GetString("engine"))),
		States:   list(v, "states"),
		PlanFile: v.GetString("plan_file"),
		Chains:   list(v, "chains"),
		Google: Google{
			APIKeys:      list(v, "google.api_keys"),
			EngineIDs:    list(v, "google.engine_ids"),
			Endpoint:     v.GetString("google.endpoint"),
			Num:          v.GetInt("google.num"),
			DateRestrict: v.GetString("google.date_restrict"),
			Timeout:      dur("google.timeout"),
		},
		Scrape: Scrape{
			Proxies:     list(v, "scrape.proxies"),
			ProxyFile:   v.GetString("scrape.proxy_file"),
			UserAgents:  list(v, "scrape.user_agents"),
			Fingerprint: v.GetString("scrape.fingerprint"),
			Timeout:     dur("scrape.timeout"),
		},
		Delays: Delays{
			QueryMin: dur("delays.query_min"),
			QueryMax: dur("delays.query_max"),
			StateMin: dur("delays.state_min"),
			StateMax: dur("delays.state_max"),
		},
		Retry: Retry{
			MaxAttempts:    v.GetInt("retry.max_attempts"),
			Cooldown:       dur("retry.cooldown"),
			BackoffInitial: dur("retry.backoff_initial"),
			BackoffMax:     dur("retry.backoff_max"),
		},
		Output: Output{
			Dir:          v.GetString("output.dir"),
			ScheduleFile: v.GetString("output.schedule_file"),
			MinLeads:     v.GetInt("output.min_leads"),
			Interval:     dur("output.interval"),
		},
		GitHub: GitHub{
			Repo:              strings.TrimSpace(v.GetString("github.repo")),
			Branch:            v.GetString("github.branch"),
			Token:             strings.TrimSpace(v.GetString("github.token")),
			RequestsPerSecond: v.GetFloat64("github.requests_per_second"),
		},
		Store: Store{
			Backend: strings.ToLower(strings.TrimSpace(v.GetString("store.backend"))),
			Path:    v.GetString("store.path"),
			DSN:     v.GetString("store.dsn"),
		},
		Classify: Classify{
			RequireBusinessType: v.GetBool("classify.require_business_type"),
		},
		Metrics:   v.GetString("metrics.addr"),
		LogLevel:  v.GetString("log.level"),
		LogFormat: v.GetString("log.format"),
	}
	return cfg, errors.Join(errs...)
}

// list reads key as a list. Environment variables and flags arrive as one
// comma separated string; YAML gives a real sequence.
func list(v *viper.Viper, key string) []string {
	if s, ok := v.Get(key).(string); ok {
		return SplitList(s)
	}
	return trimList(v.GetStringSlice(key))
}

// SplitList splits a comma or newline separated list, dropping blanks and
// duplicates.
func SplitList(s string) []string {
	return trimList(strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n'
	}))
}

// parseDuration accepts Go durations and bare integers as seconds.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

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
