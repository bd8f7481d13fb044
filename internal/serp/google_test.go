package serp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func fixedNow() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) }

func newTestGoogle(t *testing.T, url string, keys ...string) *Google {
	t.Helper()
	rotor, err := NewRotor(keys, []string{"cx-1"})
	if err != nil {
		t.Fatalf("rotor: %v", err)
	}
	g, err := NewGoogle(GoogleConfig{Endpoint: url, Rotor: rotor, Now: fixedNow})
	if err != nil {
		t.Fatalf("google: %v", err)
	}
	return g
}

func TestGoogle_Search(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("q"); got != "restaurant opening Texas 2026" {
			t.Errorf("unexpected q %q", got)
		}
		if q.Get("key") != "key-a" || q.Get("cx") != "cx-1" {
			t.Errorf("unexpected credential %s/%s", q.Get("key"), q.Get("cx"))
		}
		if q.Get("num") != "10" || q.Get("dateRestrict") != "m6" {
			t.Errorf("unexpected num/dateRestrict %s/%s", q.Get("num"), q.Get("dateRestrict"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[
			{"title":"Whataburger opens in Katy","link":"https://news.example.com/w","snippet":"The new restaurant opens Monday."},
			{"title":"Second","link":"https://news.example.com/2","snippet":"More text"}]}`))
	}))
	defer ts.Close()

	g := newTestGoogle(t, ts.URL, "key-a")
	rs, err := g.Search(context.Background(), Query{Text: "restaurant opening", State: "Texas"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rs) != 2 {
		t.Fatalf("expected 2 results, got %d", len(rs))
	}
	if rs[0].URL != "https://news.example.com/w" || rs[0].Engine != "google" {
		t.Errorf("unexpected first result: %+v", rs[0])
	}
}

func TestGoogle_EmptyIsNotAnError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"searchInformation":{"totalResults":"0"}}`))
	}))
	defer ts.Close()

	rs, err := newTestGoogle(t, ts.URL, "k").Search(context.Background(), Query{Text: "x"})
	if err != nil || len(rs) != 0 {
		t.Errorf("expected empty result, got %v, %v", rs, err)
	}
}

func TestGoogle_QuotaRotatesThenExhausts(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		mu.Lock()
		seen[key]++
		mu.Unlock()
		switch key {
		case "key-a":
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
		case "key-b":
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"Daily Limit Exceeded","status":"RESOURCE_EXHAUSTED"}}`))
		}
	}))
	defer ts.Close()

	g := newTestGoogle(t, ts.URL, "key-a", "key-b")
	_, err := g.Search(context.Background(), Query{Text: "x", State: "Ohio"})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if seen["key-a"] != 1 || seen["key-b"] != 1 {
		t.Errorf("expected each key tried once, got %v", seen)
	}
	s := g.rotor.Stats()
	if s.ExhaustedKeys != 2 || s.ActiveKeys != 0 {
		t.Errorf("unexpected rotor stats: %+v", s)
	}

	// no further requests once exhausted
	_, err = g.Search(context.Background(), Query{Text: "y"})
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}
	if seen["key-a"]+seen["key-b"] != 2 {
		t.Errorf("expected no more requests, got %v", seen)
	}
}

func TestGoogle_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		transient bool
	}{
		{"bad request", 400, `{"error":{"code":400,"message":"Request contains an invalid argument. key=secret123"}}`, false},
		{"server error json", 500, `{"error":{"code":500,"message":"backend"}}`, true},
		{"bad gateway html", 502, `<html>bad gateway</html>`, true},
		{"truncated 200", 200, `{"items":[`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			_, err := newTestGoogle(t, ts.URL, "k").Search(context.Background(), Query{Text: "x"})
			if err == nil {
				t.Fatal("expected error")
			}
			if IsTransient(err) != tt.transient {
				t.Errorf("IsTransient = %v, want %v (err: %v)", IsTransient(err), tt.transient, err)
			}
			if !tt.transient {
				var apiErr *APIError
				if !errors.As(err, &apiErr) || apiErr.Code != 400 {
					t.Errorf("expected APIError code 400, got %v", err)
				}
				if strings.Contains(err.Error(), "secret123") {
					t.Errorf("credential leaked in error: %v", err)
				}
			}
		})
	}
}

func TestGoogle_Probe(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "new store opening" {
			t.Errorf("probe should send the raw query, got %q", got)
		}
		if r.URL.Query().Get("key") != "probe-key" {
			t.Errorf("expected probe credential")
		}
		_, _ = w.Write([]byte(`{"items":[{"title":"t","link":"https://e.com","snippet":"s"}],"searchInformation":{"totalResults":"1200"}}`))
	}))
	defer ts.Close()

	g := newTestGoogle(t, ts.URL, "rotor-key")
	rs, total, err := g.Probe(context.Background(), Credential{Key: "probe-key", EngineID: "cx"}, "new store opening", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rs) != 1 || total != "1200" {
		t.Errorf("unexpected probe result %v / %s", rs, total)
	}
	if g.rotor.Stats().TotalCalls != 0 {
		t.Errorf("probe must not count against the rotor")
	}
}
