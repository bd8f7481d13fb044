package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/signlead/internal/fingerprint"
	"github.com/FranksOps/signlead/pkg/proxy"
	"github.com/FranksOps/signlead/pkg/useragent"
)

func TestFetcher_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "TestBrowser/1.0" {
			t.Errorf("expected rotated User-Agent, got %q", r.Header.Get("User-Agent"))
		}
		if r.Header.Get("Accept-Language") == "" {
			t.Errorf("expected Accept-Language header")
		}
		w.Header().Set("X-Test", "true")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	fetcher, err := NewFetcher(FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
		UAPool:      useragent.NewPool([]string{"TestBrowser/1.0"}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := fetcher.Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", res.StatusCode)
	}
	if string(res.Body) != "ok" {
		t.Errorf("expected body 'ok', got %s", string(res.Body))
	}
	if res.Headers.Get("X-Test") != "true" {
		t.Errorf("expected X-Test header 'true', got %v", res.Headers["X-Test"])
	}
	if res.Duration == 0 {
		t.Errorf("expected non-zero duration")
	}
	if res.Blocked() {
		t.Errorf("expected clean page, got detection %q", res.Detection)
	}
}

func TestFetcher_UserAgentMatchesFingerprint(t *testing.T) {
	fetcher, err := NewFetcher(FetchConfig{Fingerprint: fingerprint.ProfileFirefox})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, ua := range fetcher.config.UAPool.All() {
		if useragent.Family(ua) != "firefox" {
			t.Errorf("firefox fingerprint paired with %q", ua)
		}
	}
}

func TestFetcher_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{
		Timeout:     10 * time.Millisecond,
		Fingerprint: fingerprint.ProfileGo,
	})

	_, err := fetcher.Fetch(context.Background(), ts.URL)
	if err == nil || !strings.Contains(err.Error(), "request failed") {
		t.Errorf("expected timeout error, got %v", err)
	}
}

func TestFetcher_DetectsThrottle(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{Fingerprint: fingerprint.ProfileGo})
	res, err := fetcher.Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Blocked() || res.Detection != "RateLimit" {
		t.Errorf("expected RateLimit detection, got %q", res.Detection)
	}
}

func TestFetcher_Proxy(t *testing.T) {
	// The "proxy" answers every request itself, so a 418 proves routing.
	proxyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer proxyServer.Close()

	pPool := proxy.NewPool(proxy.Config{MaxFailures: 1, Cooldown: time.Second})
	if err := pPool.Add(proxyServer.URL); err != nil {
		t.Fatalf("failed to add proxy: %v", err)
	}

	fetcher, _ := NewFetcher(FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
		ProxyPool:   pPool,
	})

	res, err := fetcher.Fetch(context.Background(), "http://search.invalid/html/?q=test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != http.StatusTeapot {
		t.Errorf("expected 418 Teapot from proxy, got %d", res.StatusCode)
	}
	if res.Proxy == nil || res.Proxy.String() != proxyServer.URL {
		t.Errorf("expected result to record proxy %s, got %v", proxyServer.URL, res.Proxy)
	}
}

func TestFetcher_BlockedProxyIsBenched(t *testing.T) {
	proxyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Our systems have detected unusual traffic from your computer network."))
	}))
	defer proxyServer.Close()

	pPool := proxy.NewPool(proxy.Config{MaxFailures: 5, Cooldown: time.Hour})
	_ = pPool.Add(proxyServer.URL)

	fetcher, _ := NewFetcher(FetchConfig{Fingerprint: fingerprint.ProfileGo, ProxyPool: pPool})
	res, err := fetcher.Fetch(context.Background(), "http://search.invalid/search?q=x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Detection != "Captcha" {
		t.Errorf("expected Captcha detection, got %q", res.Detection)
	}
	if s := pPool.Stats(); s.Healthy != 0 {
		t.Errorf("expected challenged proxy to be benched, got %+v", s)
	}
}
