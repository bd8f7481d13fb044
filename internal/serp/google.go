package serp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/FranksOps/signlead/internal/metrics"
	"github.com/FranksOps/signlead/pkg/httpclient"
)

// DefaultGoogleEndpoint is the Custom Search JSON API.
const DefaultGoogleEndpoint = "https://www.googleapis.com/customsearch/v1"

// GoogleConfig configures the Custom Search backend.
type GoogleConfig struct {
	Endpoint string
	Rotor    *Rotor
	// Client overrides the HTTP client; a plain one is built when nil.
	Client       *httpclient.Client
	Timeout      time.Duration
	Num          int
	DateRestrict string
	Now          func() time.Time
	Logger       *slog.Logger
}

// Google searches through the Custom Search JSON API, rotating credentials
// and retiring the ones that run out of quota.
type Google struct {
	endpoint     string
	rotor        *Rotor
	client       *httpclient.Client
	num          int
	dateRestrict string
	now          func() time.Time
	logger       *slog.Logger
}

var _ Provider = (*Google)(nil)

// NewGoogle builds the backend. A rotor is required.
func NewGoogle(cfg GoogleConfig) (*Google, error) {
	if cfg.Rotor == nil {
		return nil, errors.New("serp: google backend needs a credential rotor")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultGoogleEndpoint
	}
	if cfg.Num <= 0 || cfg.Num > 10 {
		cfg.Num = 10
	}
	if cfg.DateRestrict == "" {
		cfg.DateRestrict = "m6"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	client := cfg.Client
	if client == nil {
		var err error
		client, err = httpclient.New(httpclient.Config{
			Timeout: cfg.Timeout,
			Headers: map[string]string{"Accept": "application/json"},
		})
		if err != nil {
			return nil, fmt.Errorf("serp: google client: %w", err)
		}
	}
	return &Google{
		endpoint:     cfg.Endpoint,
		rotor:        cfg.Rotor,
		client:       client,
		num:          cfg.Num,
		dateRestrict: cfg.DateRestrict,
		now:          cfg.Now,
		logger:       cfg.Logger,
	}, nil
}

func (g *Google) Name() string { return "google" }

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
	SearchInformation struct {
		TotalResults string `json:"totalResults"`
	} `json:"searchInformation"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Search issues "<text> <state> <year>". On a quota error the credential is
// retired and the query is retried with the next one.
func (g *Google) Search(ctx context.Context, q Query) ([]Result, error) {
	params := url.Values{}
	params.Set("q", g.queryText(q))
	num := q.Num
	if num <= 0 || num > 10 {
		num = g.num
	}
	params.Set("num", strconv.Itoa(num))
	dr := q.DateRestrict
	if dr == "" {
		dr = g.dateRestrict
	}
	params.Set("dateRestrict", dr)

	for {
		cred, idx, ok := g.rotor.Next()
		if !ok {
			metrics.RecordSearch(g.Name(), "exhausted", 0)
			return nil, ErrExhausted
		}

		start := time.Now()
		resp, err := g.call(ctx, cred, params)
		if err != nil {
			if isQuota(err) {
				if g.rotor.MarkExhausted(idx) {
					metrics.CredentialsExhausted.Inc()
					g.logger.Warn("search credential quota exhausted", "key", RedactKey(cred.Key), "active", g.rotor.Stats().ActiveKeys)
				}
				metrics.RecordSearch(g.Name(), "exhausted", time.Since(start))
				continue
			}
			metrics.RecordSearch(g.Name(), outcome(err), time.Since(start))
			return nil, err
		}

		out := make([]Result, 0, len(resp.Items))
		for _, it := range resp.Items {
			out = append(out, Result{Title: it.Title, URL: it.Link, Snippet: it.Snippet, Engine: g.Name()})
		}
		oc := "ok"
		if len(out) == 0 {
			oc = "empty"
		}
		metrics.RecordSearch(g.Name(), oc, time.Since(start))
		return out, nil
	}
}

// Probe runs one raw query with a specific credential, bypassing the rotor.
// It returns the results and Google's reported total result count.
func (g *Google) Probe(ctx context.Context, cred Credential, text string, num int) ([]Result, string, error) {
	params := url.Values{}
	params.Set("q", text)
	params.Set("num", strconv.Itoa(num))
	resp, err := g.call(ctx, cred, params)
	if err != nil {
		return nil, "", err
	}
	out := make([]Result, 0, len(resp.Items))
	for _, it := range resp.Items {
		out = append(out, Result{Title: it.Title, URL: it.Link, Snippet: it.Snippet, Engine: g.Name()})
	}
	total := resp.SearchInformation.TotalResults
	if total == "" {
		total = "0"
	}
	return out, total, nil
}

func (g *Google) queryText(q Query) string {
	parts := []string{strings.TrimSpace(q.Text)}
	if s := strings.TrimSpace(q.State); s != "" {
		parts = append(parts, s)
	}
	parts = append(parts, strconv.Itoa(g.now().Year()))
	return strings.Join(parts, " ")
}

type quotaError struct{ apiErr *APIError }

func (e *quotaError) Error() string { return e.apiErr.Error() }
func (e *quotaError) Unwrap() error { return e.apiErr }

func isQuota(err error) bool {
	var qe *quotaError
	return errors.As(err, &qe)
}

func (g *Google) call(ctx context.Context, cred Credential, params url.Values) (*googleResponse, error) {
	u, err := url.Parse(g.endpoint)
	if err != nil {
		return nil, fmt.Errorf("serp: google endpoint: %w", err)
	}
	v := u.Query()
	for k, vals := range params {
		v[k] = vals
	}
	v.Set("key", cred.Key)
	v.Set("cx", cred.EngineID)
	u.RawQuery = v.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("serp: google request: %w", err)
	}
	resp, err := g.client.Do(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Op: "google request", Err: errors.New(redactSecrets(err.Error()))}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Op: "google read body", Err: err}
	}

	var gr googleResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		if resp.StatusCode >= 500 {
			return nil, &TransientError{Op: "google", Err: fmt.Errorf("http %d", resp.StatusCode)}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &quotaError{apiErr: &APIError{Engine: "google", StatusCode: resp.StatusCode, Code: 429}}
		}
		if resp.StatusCode == http.StatusOK {
			return nil, &TransientError{Op: "google decode", Err: err}
		}
		return nil, &APIError{Engine: "google", StatusCode: resp.StatusCode, Message: "undecodable response"}
	}

	if gr.Error != nil {
		apiErr := &APIError{
			Engine:     "google",
			StatusCode: resp.StatusCode,
			Code:       gr.Error.Code,
			Status:     gr.Error.Status,
			Message:    gr.Error.Message,
		}
		if gr.Error.Code == http.StatusTooManyRequests || gr.Error.Status == "RESOURCE_EXHAUSTED" {
			return nil, &quotaError{apiErr: apiErr}
		}
		if gr.Error.Code >= 500 {
			return nil, &TransientError{Op: "google", Err: apiErr}
		}
		return nil, apiErr
	}
	if resp.StatusCode >= 500 {
		return nil, &TransientError{Op: "google", Err: fmt.Errorf("http %d", resp.StatusCode)}
	}
	return &gr, nil
}

// outcome maps an error to a metrics label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrExhausted):
		return "exhausted"
	case IsTransient(err):
		return "transient"
	default:
		return "error"
	}
}
