package serp

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/signlead/internal/metrics"
	"github.com/FranksOps/signlead/internal/scraper"
	"github.com/PuerkitoBio/goquery"
)

// PageFetcher is satisfied by *scraper.Fetcher.
type PageFetcher interface {
	Fetch(ctx context.Context, targetURL string) (*scraper.Result, error)
}

// Markup describes where an engine puts its results. The selectors are
// tied to markup the engines change without notice, so a miss yields no
// results rather than an error.
type Markup struct {
	// Block selects one result.
	Block string
	// Link selects the title anchor inside a block.
	Link string
	// Snippet selects the description inside a block.
	Snippet string
}

// EngineDef is a scraped search engine.
type EngineDef struct {
	Name    string
	BaseURL string
	Path    string
	Param   string
	Markup  Markup
	// SelfDomains are the engine's own hosts; links back to them are ads,
	// related searches or navigation.
	SelfDomains []string
}

// BingDef returns the Bing HTML definition.
func BingDef() EngineDef {
	return EngineDef{
		Name:        "bing",
		BaseURL:     "https://www.bing.com",
		Path:        "/search",
		Param:       "q",
		Markup:      Markup{Block: "li.b_algo", Link: "h2 a", Snippet: ".b_caption p, p.b_lineclamp2, p.b_lineclamp3, p.b_lineclamp4"},
		SelfDomains: []string{"bing.com", "microsoft.com", "msn.com"},
	}
}

// DuckDuckGoDef returns the DuckDuckGo HTML (no-JS) definition.
func DuckDuckGoDef() EngineDef {
	return EngineDef{
		Name:        "duckduckgo",
		BaseURL:     "https://html.duckduckgo.com",
		Path:        "/html/",
		Param:       "q",
		Markup:      Markup{Block: "div.result", Link: "a.result__a", Snippet: ".result__snippet"},
		SelfDomains: []string{"duckduckgo.com"},
	}
}

// HTMLEngine searches by fetching and parsing an engine's result page.
type HTMLEngine struct {
	def     EngineDef
	fetcher PageFetcher
	logger  *slog.Logger
}

var _ Provider = (*HTMLEngine)(nil)

// NewHTMLEngine builds a scraping backend for def.
func NewHTMLEngine(def EngineDef, fetcher PageFetcher, logger *slog.Logger) *HTMLEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTMLEngine{def: def, fetcher: fetcher, logger: logger}
}

func (e *HTMLEngine) Name() string { return e.def.Name }

// SearchURL builds the result page URL for q.
func (e *HTMLEngine) SearchURL(q Query) string {
	text := strings.TrimSpace(q.Text)
	if s := strings.TrimSpace(q.State); s != "" {
		text += " " + s
	}
	v := url.Values{}
	v.Set(e.def.Param, text)
	return strings.TrimRight(e.def.BaseURL, "/") + e.def.Path + "?" + v.Encode()
}

// Search fetches and parses one result page.
func (e *HTMLEngine) Search(ctx context.Context, q Query) ([]Result, error) {
	start := time.Now()
	res, err := e.fetcher.Fetch(ctx, e.SearchURL(q))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		metrics.RecordSearch(e.Name(), "transient", time.Since(start))
		return nil, &TransientError{Op: e.Name() + " fetch", Err: err}
	}

	switch {
	case res.Blocked():
		metrics.RecordSearch(e.Name(), "rate_limited", time.Since(start))
		return nil, fmt.Errorf("%w: %s answered with %s", ErrRateLimited, e.Name(), res.Detection)
	case res.StatusCode >= 500:
		metrics.RecordSearch(e.Name(), "transient", time.Since(start))
		return nil, &TransientError{Op: e.Name(), Err: fmt.Errorf("http %d", res.StatusCode)}
	case res.StatusCode != http.StatusOK:
		metrics.RecordSearch(e.Name(), "error", time.Since(start))
		return nil, &APIError{Engine: e.Name(), StatusCode: res.StatusCode}
	}

	out := e.Parse(res.Body)
	oc := "ok"
	if len(out) == 0 {
		oc = "empty"
	}
	metrics.RecordSearch(e.Name(), oc, time.Since(start))
	return out, nil
}

// Parse extracts results from a result page. Blocks that are missing a
// piece, carry a malformed link or point back at the engine are skipped.
func (e *HTMLEngine) Parse(body []byte) []Result {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		e.logger.Debug("unparseable result page", "engine", e.Name(), "err", err)
		return nil
	}

	var out []Result
	doc.Find(e.def.Markup.Block).Each(func(_ int, block *goquery.Selection) {
		link := block.Find(e.def.Markup.Link).First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		title := collapse(link.Text())
		snippet := collapse(block.Find(e.def.Markup.Snippet).First().Text())
		if title == "" || snippet == "" {
			return
		}

		target, ok := e.resolve(href)
		if !ok {
			return
		}
		out = append(out, Result{Title: title, URL: target, Snippet: snippet, Engine: e.Name()})
	})
	return out
}

// resolve turns an anchor href into the destination URL, unwrapping
// DuckDuckGo's /l/?uddg= and Bing's /ck/a?u=a1<base64> redirect links.
func (e *HTMLEngine) resolve(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if !u.IsAbs() {
		base, err := url.Parse(e.def.BaseURL)
		if err != nil {
			return "", false
		}
		u = base.ResolveReference(u)
	}
	if HostMatches(u.Hostname(), e.def.SelfDomains...) {
		dest := unwrapRedirect(u)
		if dest == "" {
			return "", false
		}
		if u, err = url.Parse(dest); err != nil || !u.IsAbs() {
			return "", false
		}
		if HostMatches(u.Hostname(), e.def.SelfDomains...) {
			return "", false
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}

// unwrapRedirect returns the destination carried by an engine redirect
// link, or "" when u is not one.
func unwrapRedirect(u *url.URL) string {
	q := u.Query()
	if dest := q.Get("uddg"); dest != "" {
		return dest
	}
	enc, ok := strings.CutPrefix(q.Get("u"), "a1")
	if !ok || enc == "" {
		return ""
	}
	dest, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(enc, "="))
	if err != nil {
		return ""
	}
	return string(dest)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
