// Package scraper fetches search-engine result pages the way a browser
// would: fingerprinted TLS, a matching User-Agent and optional proxy
// rotation. Pacing between queries is the caller's job.
package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/signlead/internal/bypass"
	"github.com/FranksOps/signlead/internal/fingerprint"
	"github.com/FranksOps/signlead/internal/metrics"
	"github.com/FranksOps/signlead/pkg/httpclient"
	"github.com/FranksOps/signlead/pkg/proxy"
	"github.com/FranksOps/signlead/pkg/useragent"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// maxBody caps how much of a result page is read.
const maxBody = 4 << 20

// FetchConfig configures a Fetcher.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	ProxyPool    *proxy.Pool
	UAPool       *useragent.Pool
	Fingerprint  fingerprint.Profile
	Detectors    []bypass.Detector
	Logger       *slog.Logger
}

// Result is a fetched page. Detection names the protection that answered
// instead of the engine, or is empty.
type Result struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Proxy      *url.URL
	Detection  string
}

// Blocked reports whether the page is a challenge or throttle response.
func (r *Result) Blocked() bool {
	return r.Detection != ""
}

// Fetcher performs single URL fetches using the configured bypass strategies.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
	logger *slog.Logger
}

// NewFetcher initializes a new Fetcher. A single client is held across
// requests so connection pools and the cookie jar (if configured) persist.
// The User-Agent pool is narrowed to the browser family of the TLS profile.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if fam := cfg.Fingerprint.UserAgentFamily(); fam != "" {
		cfg.UAPool = cfg.UAPool.ForFamily(fam)
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// The proxy is chosen per request and handed to the transport through
	// the request context.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyKey).(*url.URL); ok && u != nil {
			return u, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, proxyFunc)
	if err != nil {
		return nil, fmt.Errorf("scraper: transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
		Headers: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.5",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("scraper: client: %w", err)
	}

	return &Fetcher{config: cfg, client: client, logger: logger}, nil
}

// Fetch GETs targetURL. A non-nil error means no response was received
// (transport failure, canceled context, unreadable body). Any HTTP status,
// including challenge pages, comes back as a Result for the caller to judge.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("scraper: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UAPool.Next())

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		if activeProxy = f.config.ProxyPool.Next(); activeProxy != nil {
			req = req.WithContext(context.WithValue(req.Context(), proxyKey, activeProxy))
		}
	}

	start := time.Now()
	resp, err := f.client.Do(req.Context(), req)
	if err != nil {
		f.proxyFailed(activeProxy, false)
		metrics.RecordFetch(req.URL.Host, 0, "", 0)
		return nil, fmt.Errorf("scraper: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		f.proxyFailed(activeProxy, false)
		metrics.RecordFetch(req.URL.Host, resp.StatusCode, "", len(body))
		return nil, fmt.Errorf("scraper: read body: %w", err)
	}

	res := &Result{
		URL:        targetURL,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
		Duration:   time.Since(start),
		Proxy:      activeProxy,
	}
	res.Detection = bypass.Analyze(&bypass.Page{
		StatusCode: res.StatusCode,
		Headers:    res.Headers,
		Body:       res.Body,
	}, f.config.Detectors)

	metrics.RecordFetch(req.URL.Host, res.StatusCode, res.Detection, len(body))

	if res.Blocked() {
		f.logger.Warn("search page challenged", "host", req.URL.Host, "status", res.StatusCode, "detection", res.Detection)
		f.proxyFailed(activeProxy, true)
	} else if activeProxy != nil {
		_ = f.config.ProxyPool.MarkSuccess(activeProxy)
	}
	return res, nil
}

func (f *Fetcher) proxyFailed(u *url.URL, blocked bool) {
	if u == nil {
		return
	}
	metrics.ProxyFailures.WithLabelValues(u.Redacted()).Inc()
	if blocked {
		_ = f.config.ProxyPool.MarkBlocked(u)
		return
	}
	_ = f.config.ProxyPool.MarkFailure(u)
}
