package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/FranksOps/signlead/internal/analyzer"
	"github.com/FranksOps/signlead/internal/enrich"
	"github.com/FranksOps/signlead/internal/lead"
	"github.com/FranksOps/signlead/internal/serp"
)

// CredentialStatus classifies a probed search credential.
type CredentialStatus string

const (
	StatusWorking     CredentialStatus = "working"
	StatusNoResults   CredentialStatus = "no_results"
	StatusInvalid     CredentialStatus = "invalid"
	StatusNotEnabled  CredentialStatus = "api_not_enabled"
	StatusQuota       CredentialStatus = "quota_exceeded"
	StatusUnreachable CredentialStatus = "error"
)

// Prober runs one query with a specific credential. *serp.Google satisfies it.
type Prober interface {
	Probe(ctx context.Context, cred serp.Credential, text string, num int) ([]serp.Result, string, error)
}

// CredentialCheck is the outcome of probing one credential.
type CredentialCheck struct {
	Index        int              `json:"index"`
	Key          string           `json:"key"`
	EngineID     string           `json:"engineId"`
	Status       CredentialStatus `json:"status"`
	TotalResults string           `json:"totalResults,omitempty"`
	Detail       string           `json:"detail,omitempty"`
}

// SampleCheck is the outcome of running one query through the classifier
// and enricher.
type SampleCheck struct {
	Query    string         `json:"query"`
	State    string         `json:"state"`
	Raw      int            `json:"raw"`
	Accepted int            `json:"accepted"`
	Rejected map[string]int `json:"rejected"`
	Leads    []lead.Lead    `json:"leads"`
	Error    string         `json:"error,omitempty"`
}

// Diagnosis is the full diagnose report.
type Diagnosis struct {
	Credentials []CredentialCheck `json:"credentials"`
	Sample      *SampleCheck      `json:"sample,omitempty"`
}

// Working counts credentials that returned results.
func (d Diagnosis) Working() int {
	n := 0
	for _, c := range d.Credentials {
		if c.Status == StatusWorking {
			n++
		}
	}
	return n
}

// DiagnoseConfig configures Diagnose. Prober and Credentials drive the
// credential probe; Provider, Classifier and Enricher drive the sample
// extraction, which is skipped when Provider is nil.
type DiagnoseConfig struct {
	Prober      Prober
	Credentials []serp.Credential
	ProbeQuery  string

	Provider    serp.Provider
	Classifier  *analyzer.Classifier
	Enricher    *enrich.Enricher
	SampleQuery string
	SampleState lead.State

	Logger *slog.Logger
}

// Diagnose probes every credential, then runs a sample extraction. Probe
// failures are reported per credential, never returned.
func Diagnose(ctx context.Context, cfg DiagnoseConfig) (Diagnosis, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ProbeQuery == "" {
		cfg.ProbeQuery = "new restaurant opening"
	}
	if cfg.SampleQuery == "" {
		cfg.SampleQuery = "grand opening"
	}
	if cfg.SampleState.Name == "" {
		cfg.SampleState = lead.States[0]
	}

	var d Diagnosis
	if cfg.Prober != nil {
		for i, cred := range cfg.Credentials {
			if err := ctx.Err(); err != nil {
				return d, err
			}
			results, total, err := cfg.Prober.Probe(ctx, cred, cfg.ProbeQuery, 1)
			check := CredentialCheck{
				Index:        i + 1,
				Key:          serp.RedactKey(cred.Key),
				EngineID:     cred.EngineID,
				TotalResults: total,
			}
			check.Status, check.Detail = classifyProbe(results, err)
			cfg.Logger.Info("credential probed", "index", check.Index, "key", check.Key, "status", check.Status)
			d.Credentials = append(d.Credentials, check)
		}
	}

	if cfg.Provider == nil {
		return d, nil
	}
	if cfg.Classifier == nil || cfg.Enricher == nil {
		return d, errors.New("pipeline: diagnose sample needs a classifier and an enricher")
	}

	sample := &SampleCheck{Query: cfg.SampleQuery, State: cfg.SampleState.Name, Rejected: map[string]int{}}
	d.Sample = sample
	results, err := cfg.Provider.Search(ctx, serp.Query{Text: cfg.SampleQuery, State: cfg.SampleState.Name})
	if err != nil {
		sample.Error = err.Error()
		if ctx.Err() != nil {
			return d, ctx.Err()
		}
		return d, nil
	}
	sample.Raw = len(results)
	for _, r := range Dedup(results) {
		dec := cfg.Classifier.Classify(r, cfg.SampleState.Name)
		if !dec.Accept {
			sample.Rejected[dec.Reason]++
			continue
		}
		sample.Accepted++
		sample.Leads = append(sample.Leads, cfg.Enricher.Enrich(r, cfg.SampleState.Name))
	}
	return d, nil
}

func classifyProbe(results []serp.Result, err error) (CredentialStatus, string) {
	if err == nil {
		if len(results) == 0 {
			return StatusNoResults, "engine returned no results; check the search engine covers the whole web"
		}
		return StatusWorking, ""
	}

	var apiErr *serp.APIError
	if !errors.As(err, &apiErr) {
		return StatusUnreachable, err.Error()
	}
	detail := apiErr.Message
	switch {
	case apiErr.Code == http.StatusTooManyRequests || apiErr.StatusCode == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED":
		return StatusQuota, detail
	case apiErr.Code == http.StatusBadRequest || apiErr.StatusCode == http.StatusBadRequest:
		return StatusInvalid, detail
	case apiErr.Code == http.StatusForbidden || apiErr.StatusCode == http.StatusForbidden:
		return StatusNotEnabled, detail
	default:
		return StatusUnreachable, fmt.Sprintf("http %d: %s", apiErr.StatusCode, detail)
	}
}
