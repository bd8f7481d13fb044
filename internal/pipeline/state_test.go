package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/FranksOps/signlead/internal/analyzer"
	"github.com/FranksOps/signlead/internal/enrich"
	"github.com/FranksOps/signlead/internal/lead"
	"github.com/FranksOps/signlead/internal/plan"
	"github.com/FranksOps/signlead/internal/serp"
)

var testChains = []string{"Chick-fil-A", "Dutch Bros"}

func fixedNow() time.Time { return time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC) }

// funcProvider answers each call with fn, passing the zero-based call count.
type funcProvider struct {
	mu    sync.Mutex
	calls []serp.Query
	fn    func(n int, q serp.Query) ([]serp.Result, error)
}

func (p *funcProvider) Name() string { return "func" }

func (p *funcProvider) Search(_ context.Context, q serp.Query) ([]serp.Result, error) {
	p.mu.Lock()
	n := len(p.calls)
	p.calls = append(p.calls, q)
	p.mu.Unlock()
	return p.fn(n, q)
}

func leadResult(url string) serp.Result {
	return serp.Result{
		Title:   "Chick-fil-A to open new Austin location this Spring 2026",
		Snippet: "located at 123 Main St, Austin featuring drive-thru. Call 512-555-0100.",
		URL:     url,
	}
}

func junkResult(url string) serp.Result {
	return serp.Result{Title: "City council meets Tuesday", Snippet: "Agenda items include road repairs and budget.", URL: url}
}

func testQueries(texts ...string) []plan.Query {
	qs := make([]plan.Query, len(texts))
	for i, t := range texts {
		qs[i] = plan.Query{Text: t, Phase: plan.PhaseKeyword}
	}
	return qs
}

func newTestStateRunner(t *testing.T, p serp.Provider, queries ...string) *StateRunner {
	t.Helper()
	sr, err := NewStateRunner(StateConfig{
		Provider:     p,
		Classifier:   analyzer.NewClassifier(analyzer.ClassifierConfig{Chains: testChains}),
		Enricher:     enrich.New(enrich.Config{Chains: testChains, Now: fixedNow}),
		Queries:      testQueries(queries...),
		DateRestrict: "m6",
		Num:          10,
	})
	if err != nil {
		t.Fatalf("NewStateRunner: %v", err)
	}
	return sr
}

func texas(t *testing.T) lead.State {
	t.Helper()
	st, ok := lead.LookupState("TX")
	if !ok {
		t.Fatal("Texas missing from state table")
	}
	return st
}

func TestStateRunner_DedupFirstWins(t *testing.T) {
	p := &funcProvider{fn: func(n int, q serp.Query) ([]serp.Result, error) {
		switch n {
		case 0:
			return []serp.Result{leadResult("https://news.example.com/a"), junkResult("https://news.example.com/j")}, nil
		default:
			dup := leadResult("https://news.example.com/a")
			dup.Title = "Dutch Bros coming to Austin"
			return []serp.Result{dup, leadResult("https://news.example.com/b")}, nil
		}
	}}
	sr := newTestStateRunner(t, p, "restaurant opening", "new store")

	res, err := sr.Run(context.Background(), texas(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Queries != 2 || res.RawResults != 4 || res.UniqueResults != 3 {
		t.Errorf("unexpected counters %+v", res)
	}
	if len(res.Leads) != 2 {
		t.Fatalf("expected 2 leads, got %d", len(res.Leads))
	}
	if res.Leads[0].Name != "Chick-fil-A" || res.Leads[0].Source != "https://news.example.com/a" {
		t.Errorf("first occurrence should win, got %+v", res.Leads[0])
	}
	if res.Rejected[analyzer.ReasonNoRelevance] != 1 {
		t.Errorf("expected one no_relevance rejection, got %v", res.Rejected)
	}
	if res.Exhausted {
		t.Errorf("did not expect exhaustion")
	}

	for _, q := range p.calls {
		if q.State != "Texas" || q.DateRestrict != "m6" || q.Num != 10 {
			t.Errorf("unexpected query %+v", q)
		}
	}
}

func TestStateRunner_ExhaustionStopsEarly(t *testing.T) {
	p := &funcProvider{fn: func(n int, q serp.Query) ([]serp.Result, error) {
		if n >= 1 {
			return nil, serp.ErrExhausted
		}
		return []serp.Result{leadResult("https://news.example.com/a")}, nil
	}}
	sr := newTestStateRunner(t, p, "q1", "q2", "q3")

	res, err := sr.Run(context.Background(), texas(t))
	if err != nil {
		t.Fatalf("exhaustion must not be an error, got %v", err)
	}
	if !res.Exhausted {
		t.Errorf("expected Exhausted")
	}
	if len(p.calls) != 2 {
		t.Errorf("expected querying to stop after the exhausted call, got %d calls", len(p.calls))
	}
	if len(res.Leads) != 1 {
		t.Errorf("expected the gathered lead to survive, got %d", len(res.Leads))
	}
}

func TestStateRunner_QueryErrorContinues(t *testing.T) {
	p := &funcProvider{fn: func(n int, q serp.Query) ([]serp.Result, error) {
		if n == 0 {
			return nil, &serp.APIError{Engine: "func", StatusCode: 400}
		}
		return []serp.Result{leadResult(fmt.Sprintf("https://news.example.com/%d", n))}, nil
	}}
	sr := newTestStateRunner(t, p, "q1", "q2")

	res, err := sr.Run(context.Background(), texas(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Queries != 2 || len(res.Leads) != 1 {
		t.Errorf("expected the second query to still run, got %+v", res)
	}
}

func TestStateRunner_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &funcProvider{fn: func(n int, q serp.Query) ([]serp.Result, error) {
		cancel()
		return nil, ctx.Err()
	}}
	sr := newTestStateRunner(t, p, "q1", "q2")

	_, err := sr.Run(ctx, texas(t))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(p.calls) != 1 {
		t.Errorf("expected no further queries, got %d", len(p.calls))
	}
}

func TestNewStateRunner_Requires(t *testing.T) {
	if _, err := NewStateRunner(StateConfig{}); err == nil {
		t.Error("expected error without a provider")
	}
	p := &funcProvider{}
	if _, err := NewStateRunner(StateConfig{Provider: p}); err == nil {
		t.Error("expected error without a classifier")
	}
	sr, err := NewStateRunner(StateConfig{
		Provider:   p,
		Classifier: analyzer.NewClassifier(analyzer.ClassifierConfig{}),
		Enricher:   enrich.New(enrich.Config{}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sr.queries) != 16 {
		t.Errorf("expected the default plan, got %d queries", len(sr.queries))
	}
}

func TestDedup(t *testing.T) {
	in := []serp.Result{
		{URL: "https://a.example.com", Title: "first"},
		{URL: "https://A.example.com", Title: "case differs"},
		{URL: "https://a.example.com", Title: "dup"},
	}
	out := Dedup(in)
	if len(out) != 2 || out[0].Title != "first" || out[1].Title != "case differs" {
		t.Errorf("unexpected dedup %+v", out)
	}
}
