package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/FranksOps/signlead/internal/analyzer"
	"github.com/FranksOps/signlead/internal/enrich"
	"github.com/FranksOps/signlead/internal/serp"
)

type probeReply struct {
	results []serp.Result
	total   string
	err     error
}

type fakeProber struct {
	replies map[string]probeReply
	texts   []string
}

func (f *fakeProber) Probe(_ context.Context, cred serp.Credential, text string, num int) ([]serp.Result, string, error) {
	f.texts = append(f.texts, text)
	r := f.replies[cred.Key]
	return r.results, r.total, r.err
}

func TestClassifyProbe(t *testing.T) {
	tests := []struct {
		name string
		res  []serp.Result
		err  error
		want CredentialStatus
	}{
		{"working", []serp.Result{{URL: "https://a.example.com"}}, nil, StatusWorking},
		{"empty", nil, nil, StatusNoResults},
		{"bad key", nil, &serp.APIError{StatusCode: 400, Code: 400, Message: "API key not valid"}, StatusInvalid},
		{"not enabled", nil, &serp.APIError{StatusCode: 403, Code: 403, Message: "API has not been used"}, StatusNotEnabled},
		{"quota code", nil, &serp.APIError{StatusCode: 429, Code: 429}, StatusQuota},
		{"quota status", nil, &serp.APIError{StatusCode: 403, Status: "RESOURCE_EXHAUSTED"}, StatusQuota},
		{"wrapped", nil, errors.Join(serp.ErrExhausted, &serp.APIError{StatusCode: 429}), StatusQuota},
		{"server", nil, &serp.APIError{StatusCode: 500, Message: "backend"}, StatusUnreachable},
		{"network", nil, errors.New("dial tcp: connection refused"), StatusUnreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := classifyProbe(tt.res, tt.err)
			if got != tt.want {
				t.Errorf("classifyProbe = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDiagnose(t *testing.T) {
	prober := &fakeProber{replies: map[string]probeReply{
		"AIzaWorkingKey123": {results: []serp.Result{{URL: "https://a.example.com"}}, total: "1200"},
		"AIzaBadKey4567890": {err: &serp.APIError{StatusCode: 400, Code: 400, Message: "API key not valid"}},
	}}
	p := &funcProvider{fn: func(int, serp.Query) ([]serp.Result, error) {
		return []serp.Result{
			leadResult("https://news.example.com/a"),
			leadResult("https://news.example.com/a"),
			junkResult("https://news.example.com/j"),
		}, nil
	}}

	d, err := Diagnose(context.Background(), DiagnoseConfig{
		Prober: prober,
		Credentials: []serp.Credential{
			{Key: "AIzaWorkingKey123", EngineID: "cx1"},
			{Key: "AIzaBadKey4567890", EngineID: "cx2"},
		},
		Provider:    p,
		Classifier:  analyzer.NewClassifier(analyzer.ClassifierConfig{Chains: testChains}),
		Enricher:    enrich.New(enrich.Config{Chains: testChains, Now: fixedNow}),
		SampleState: texas(t),
	})
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}

	if len(d.Credentials) != 2 || d.Working() != 1 {
		t.Fatalf("unexpected credential checks %+v", d.Credentials)
	}
	first, second := d.Credentials[0], d.Credentials[1]
	if first.Index != 1 || first.Status != StatusWorking || first.TotalResults != "1200" {
		t.Errorf("unexpected first check %+v", first)
	}
	if first.Key == "AIzaWorkingKey123" {
		t.Errorf("key should be redacted, got %q", first.Key)
	}
	if second.Status != StatusInvalid || second.Detail != "API key not valid" {
		t.Errorf("unexpected second check %+v", second)
	}
	for _, text := range prober.texts {
		if text != "new restaurant opening" {
			t.Errorf("unexpected probe query %q", text)
		}
	}

	s := d.Sample
	if s == nil {
		t.Fatal("expected a sample extraction")
	}
	if s.State != "Texas" || s.Query != "grand opening" {
		t.Errorf("unexpected sample header %+v", s)
	}
	if s.Raw != 3 || s.Accepted != 1 || s.Rejected[analyzer.ReasonNoRelevance] != 1 || len(s.Leads) != 1 {
		t.Errorf("unexpected sample counts %+v", s)
	}
	if p.calls[0].State != "Texas" {
		t.Errorf("sample query should target Texas, got %+v", p.calls[0])
	}
}

func TestDiagnose_SampleError(t *testing.T) {
	p := &funcProvider{fn: func(int, serp.Query) ([]serp.Result, error) {
		return nil, serp.ErrExhausted
	}}
	d, err := Diagnose(context.Background(), DiagnoseConfig{
		Provider:   p,
		Classifier: analyzer.NewClassifier(analyzer.ClassifierConfig{}),
		Enricher:   enrich.New(enrich.Config{}),
	})
	if err != nil {
		t.Fatalf("a failed sample is reported, not returned: %v", err)
	}
	if d.Sample == nil || d.Sample.Error == "" {
		t.Errorf("expected the sample error to be recorded, got %+v", d.Sample)
	}
	if d.Sample.State != "Alabama" {
		t.Errorf("expected the first state by default, got %q", d.Sample.State)
	}
	if len(d.Credentials) != 0 {
		t.Errorf("no prober means no credential checks, got %+v", d.Credentials)
	}
}

func TestDiagnose_SampleNeedsClassifier(t *testing.T) {
	_, err := Diagnose(context.Background(), DiagnoseConfig{Provider: &funcProvider{}})
	if err == nil {
		t.Error("expected an error without classifier and enricher")
	}
}
