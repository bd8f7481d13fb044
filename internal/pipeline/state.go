// Package pipeline runs the lead harvest: per-state querying, dedup,
// classification and enrichment, then the sequential multi-state run that
// stores, renders and publishes the results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FranksOps/signlead/internal/analyzer"
	"github.com/FranksOps/signlead/internal/enrich"
	"github.com/FranksOps/signlead/internal/lead"
	"github.com/FranksOps/signlead/internal/metrics"
	"github.com/FranksOps/signlead/internal/plan"
	"github.com/FranksOps/signlead/internal/serp"
	"github.com/FranksOps/signlead/pkg/ratelimit"
)

// StateConfig configures a StateRunner. Provider, Classifier and Enricher
// are required.
type StateConfig struct {
	Provider   serp.Provider
	Classifier *analyzer.Classifier
	Enricher   *enrich.Enricher
	// Queries defaults to plan.Default().Queries().
	Queries []plan.Query
	// Pacer is waited on between consecutive queries.
	Pacer        *ratelimit.Pacer
	DateRestrict string
	Num          int
	Logger       *slog.Logger
}

// StateResult is what one state produced.
type StateResult struct {
	State         lead.State
	Leads         []lead.Lead
	Queries       int
	RawResults    int
	UniqueResults int
	Rejected      map[string]int
	// Exhausted is set when the search backend ran out of credentials
	// partway; Leads holds whatever was gathered before that.
	Exhausted bool
	Duration  time.Duration
}

// StateRunner gathers the leads for one state.
type StateRunner struct {
	provider   serp.Provider
	classifier *analyzer.Classifier
	enricher   *enrich.Enricher
	queries    []plan.Query
	pacer      *ratelimit.Pacer
	restrict   string
	num        int
	logger     *slog.Logger
}

// NewStateRunner validates cfg.
func NewStateRunner(cfg StateConfig) (*StateRunner, error) {
	if cfg.Provider == nil {
		return nil, errors.New("pipeline: provider is required")
	}
	if cfg.Classifier == nil {
		return nil, errors.New("pipeline: classifier is required")
	}
	if cfg.Enricher == nil {
		return nil, errors.New("pipeline: enricher is required")
	}
	if cfg.Queries == nil {
		cfg.Queries = plan.Default().Queries()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &StateRunner{
		provider:   cfg.Provider,
		classifier: cfg.Classifier,
		enricher:   cfg.Enricher,
		queries:    cfg.Queries,
		pacer:      cfg.Pacer,
		restrict:   cfg.DateRestrict,
		num:        cfg.Num,
		logger:     cfg.Logger,
	}, nil
}

// Run queries every planned search for st, keeps the first result per URL,
// and classifies and enriches the survivors. Running out of credentials
// stops querying early but is not an error. Only context cancellation is
// returned as an error, together with the partial result.
func (s *StateRunner) Run(ctx context.Context, st lead.State) (StateResult, error) {
	start := time.Now()
	res := StateResult{State: st, Rejected: map[string]int{}}
	logger := s.logger.With("state", st.Name)

	var gathered []serp.Result
	for i, q := range s.queries {
		if i > 0 {
			if err := s.pacer.Wait(ctx); err != nil {
				res.Duration = time.Since(start)
				return res, fmt.Errorf("pipeline: %s: %w", st.Name, err)
			}
		}

		results, err := s.provider.Search(ctx, serp.Query{
			Text:         q.Text,
			State:        st.Name,
			DateRestrict: s.restrict,
			Num:          s.num,
		})
		res.Queries++
		if errors.Is(err, serp.ErrExhausted) {
			res.Exhausted = true
			logger.Warn("search credentials exhausted, stopping state early", "query", q.Text, "completed", i)
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				res.Duration = time.Since(start)
				return res, fmt.Errorf("pipeline: %s: %w", st.Name, ctx.Err())
			}
			logger.Error("query failed", "query", q.Text, "phase", q.Phase, "err", err)
			continue
		}
		logger.Debug("query done", "query", q.Text, "phase", q.Phase, "results", len(results))
		gathered = append(gathered, results...)
	}
	res.RawResults = len(gathered)

	unique := Dedup(gathered)
	res.UniqueResults = len(unique)

	for _, r := range unique {
		d := s.classifier.Classify(r, st.Name)
		if !d.Accept {
			res.Rejected[d.Reason]++
			metrics.ResultsRejected.WithLabelValues(d.Reason).Inc()
			continue
		}
		l := s.enricher.Enrich(r, st.Name)
		metrics.LeadsTotal.WithLabelValues(st.Code, string(l.Temperature)).Inc()
		res.Leads = append(res.Leads, l)
	}

	res.Duration = time.Since(start)
	metrics.StateDuration.Observe(res.Duration.Seconds())
	hot, warm := lead.Counts(res.Leads)
	logger.Info("state gathered",
		"queries", res.Queries,
		"raw", res.RawResults,
		"unique", res.UniqueResults,
		"leads", len(res.Leads),
		"hot", hot,
		"warm", warm,
		"exhausted", res.Exhausted,
		"took", res.Duration,
	)
	return res, nil
}

// Dedup keeps the first result for each URL, preserving order. URLs are
// compared exactly.
func Dedup(rs []serp.Result) []serp.Result {
	seen := make(map[string]bool, len(rs))
	out := make([]serp.Result, 0, len(rs))
	for _, r := range rs {
		if seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		out = append(out, r)
	}
	return out
}
