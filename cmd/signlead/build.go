package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/FranksOps/signlead/internal/analyzer"
	"github.com/FranksOps/signlead/internal/config"
	"github.com/FranksOps/signlead/internal/enrich"
	"github.com/FranksOps/signlead/internal/fingerprint"
	"github.com/FranksOps/signlead/internal/lead"
	"github.com/FranksOps/signlead/internal/pipeline"
	"github.com/FranksOps/signlead/internal/plan"
	"github.com/FranksOps/signlead/internal/publish"
	"github.com/FranksOps/signlead/internal/scraper"
	"github.com/FranksOps/signlead/internal/secrets"
	"github.com/FranksOps/signlead/internal/serp"
	"github.com/FranksOps/signlead/internal/storage"
	"github.com/FranksOps/signlead/internal/storage/csvbackend"
	"github.com/FranksOps/signlead/internal/storage/jsonbackend"
	"github.com/FranksOps/signlead/internal/storage/postgres"
	"github.com/FranksOps/signlead/internal/storage/sqlite"
	"github.com/FranksOps/signlead/pkg/proxy"
	"github.com/FranksOps/signlead/pkg/ratelimit"
	"github.com/FranksOps/signlead/pkg/useragent"
)

// searchBackend is the assembled search stack. google is set only for the
// google engine, where it doubles as the credential prober.
type searchBackend struct {
	provider serp.Provider
	google   *serp.Google
	rotor    *serp.Rotor
}

func buildSearch(cfg config.Config, logger *slog.Logger) (*searchBackend, error) {
	var (
		base serp.Provider
		sb   searchBackend
	)
	switch cfg.Engine {
	case config.EngineGoogle:
		rotor, err := serp.NewRotor(cfg.Google.APIKeys, cfg.Google.EngineIDs)
		if err != nil {
			return nil, err
		}
		g, err := serp.NewGoogle(serp.GoogleConfig{
			Endpoint:     cfg.Google.Endpoint,
			Rotor:        rotor,
			Timeout:      cfg.Google.Timeout,
			Num:          cfg.Google.Num,
			DateRestrict: cfg.Google.DateRestrict,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		base, sb.google, sb.rotor = g, g, rotor
	case config.EngineBing, config.EngineDuckDuckGo:
		fetcher, err := buildFetcher(cfg.Scrape, logger)
		if err != nil {
			return nil, err
		}
		def := serp.BingDef()
		if cfg.Engine == config.EngineDuckDuckGo {
			def = serp.DuckDuckGoDef()
		}
		base = serp.NewHTMLEngine(def, fetcher, logger)
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}

	sb.provider = serp.NewRetrying(serp.Filtered(base, serp.DefaultPrefilter(), logger), serp.RetryConfig{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		Cooldown:       cfg.Retry.Cooldown,
		BackoffInitial: cfg.Retry.BackoffInitial,
		BackoffMax:     cfg.Retry.BackoffMax,
		JitterFrac:     0.2,
		Logger:         logger,
	})
	return &sb, nil
}

func buildFetcher(sc config.Scrape, logger *slog.Logger) (*scraper.Fetcher, error) {
	profile, err := fingerprint.ParseProfile(sc.Fingerprint)
	if err != nil {
		return nil, err
	}

	var pool *proxy.Pool
	if len(sc.Proxies) > 0 || sc.ProxyFile != "" {
		pool = proxy.NewPool(proxy.Config{})
		if err := pool.Add(sc.Proxies...); err != nil {
			return nil, err
		}
		if sc.ProxyFile != "" {
			if err := pool.LoadFile(sc.ProxyFile); err != nil {
				return nil, err
			}
		}
		logger.Info("proxy pool loaded", "proxies", pool.Len())
	}

	return scraper.NewFetcher(scraper.FetchConfig{
		Timeout:      sc.Timeout,
		MaxRedirects: 5,
		UseCookieJar: true,
		ProxyPool:    pool,
		UAPool:       useragent.NewPool(sc.UserAgents),
		Fingerprint:  profile,
		Logger:       logger,
	})
}

// loadPlan returns the configured query plan and the full chain list, the
// plan's chains plus any configured extras.
func loadPlan(cfg config.Config) (plan.Plan, []string, error) {
	p := plan.Default()
	if cfg.PlanFile != "" {
		var err error
		if p, err = plan.Load(cfg.PlanFile); err != nil {
			return p, nil, err
		}
	}
	chains := append(append([]string{}, p.Chains...), cfg.Chains...)
	return p, chains, nil
}

func buildClassifier(cfg config.Config, chains []string) *analyzer.Classifier {
	return analyzer.NewClassifier(analyzer.ClassifierConfig{
		Chains:               chains,
		AllowAnyBusinessType: !cfg.Classify.RequireBusinessType,
	})
}

func buildStateRunner(cfg config.Config, provider serp.Provider, logger *slog.Logger) (*pipeline.StateRunner, error) {
	p, chains, err := loadPlan(cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.NewStateRunner(pipeline.StateConfig{
		Provider:     provider,
		Classifier:   buildClassifier(cfg, chains),
		Enricher:     enrich.New(enrich.Config{Chains: chains}),
		Queries:      p.Queries(),
		Pacer:        ratelimit.NewPacer(cfg.Delays.QueryMin, cfg.Delays.QueryMax),
		DateRestrict: cfg.Google.DateRestrict,
		Num:          cfg.Google.Num,
		Logger:       logger,
	})
}

// openBackend opens the raw snapshot store. It returns nil for "none".
func openBackend(ctx context.Context, cfg config.Config) (storage.Backend, error) {
	path := cfg.SnapshotPath()
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("snapshot dir: %w", err)
		}
	}
	switch cfg.Store.Backend {
	case config.StoreNone, "":
		return nil, nil
	case config.StoreJSON:
		return jsonbackend.New(path)
	case config.StoreCSV:
		return csvbackend.New(path)
	case config.StoreSQLite:
		return sqlite.New(path)
	case config.StorePostgres:
		return postgres.New(ctx, cfg.Store.DSN)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// buildPublisher returns nil when publishing is not configured. The token
// comes from the environment or, failing that, the OS keychain.
func buildPublisher(cfg config.Config, logger *slog.Logger) (publish.Publisher, error) {
	if cfg.GitHub.Repo == "" {
		logger.Info("github.repo not set, pages will only be written locally")
		return nil, nil
	}
	token, err := secrets.ResolveGitHubToken(cfg.GitHub.Repo, cfg.GitHub.Token)
	if err != nil {
		logger.Warn("keychain lookup failed", "err", err)
	}
	cfg.GitHub.Token = token
	if !cfg.GitHub.Enabled() {
		logger.Warn("no github token, pages will only be written locally", "repo", cfg.GitHub.Repo)
		return nil, nil
	}
	gh, err := publish.NewGitHub(publish.GitHubConfig{
		Repo:              cfg.GitHub.Repo,
		Branch:            cfg.GitHub.Branch,
		Token:             cfg.GitHub.Token,
		RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}
	return gh, nil
}

// selectedStates resolves the configured state names; empty means all.
func selectedStates(names []string) ([]lead.State, error) {
	if len(names) == 0 {
		return lead.States, nil
	}
	out := make([]lead.State, 0, len(names))
	for _, n := range names {
		st, ok := lead.LookupState(n)
		if !ok {
			return nil, fmt.Errorf("unknown state %q", n)
		}
		out = append(out, st)
	}
	return out, nil
}

// schedulePath puts a relative schedule file inside the output directory.
func schedulePath(cfg config.Config) string {
	if filepath.IsAbs(cfg.Output.ScheduleFile) {
		return cfg.Output.ScheduleFile
	}
	return filepath.Join(cfg.Output.Dir, cfg.Output.ScheduleFile)
}
