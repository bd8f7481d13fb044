// Package bypass recognises responses where a search backend or its CDN
// refused to serve real results: bot-protection challenges, captchas and
// throttling pages.
package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Page is the part of an HTTP response the detectors look at.
type Page struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Detector examines a page and reports which protection, if any, answered
// instead of the origin.
type Detector func(p *Page) (detected bool, source string)

// DefaultDetectors returns the standard list of detectors. Search-engine
// throttling is checked first because it is by far the most common case.
func DefaultDetectors() []Detector {
	return []Detector{
		detectSearchThrottle,
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
	}
}

// Analyze runs the page through the detectors and returns the source of the
// first one that fires, or "" when the page looks like a normal response.
func Analyze(p *Page, detectors []Detector) string {
	if p == nil {
		return ""
	}
	for _, d := range detectors {
		if detected, source := d(p); detected {
			return source
		}
	}
	return ""
}

func server(p *Page) string {
	return strings.ToLower(p.Headers.Get("Server"))
}

func bodyHas(p *Page, needles ...string) bool {
	for _, n := range needles {
		if bytes.Contains(p.Body, []byte(n)) {
			return true
		}
	}
	return false
}

// detectSearchThrottle catches the rate-limit and captcha interstitials the
// search engines themselves serve. These often come back as 200.
func detectSearchThrottle(p *Page) (bool, string) {
	if p.StatusCode == http.StatusTooManyRequests {
		return true, "RateLimit"
	}
	if p.Headers.Get("Retry-After") != "" && p.StatusCode >= 500 {
		return true, "RateLimit"
	}
	lower := bytes.ToLower(p.Body)
	for _, sig := range [][]byte{
		[]byte("our systems have detected unusual traffic"),
		[]byte("/sorry/index"),
		[]byte("bots use duckduckgo too"),
		[]byte("anomaly-modal"),
		[]byte("id=\"b_captcha"),
		[]byte("one last step"),
	} {
		if bytes.Contains(lower, sig) {
			return true, "Captcha"
		}
	}
	return false, ""
}

// detectCloudflare looks for common Cloudflare challenge/block signatures.
func detectCloudflare(p *Page) (bool, string) {
	if p.StatusCode != http.StatusForbidden && p.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(server(p), "cloudflare") {
		return true, "Cloudflare"
	}
	if bodyHas(p, "cf-browser-verification", "cloudflare-nginx", "cf-turnstile", "Attention Required! | Cloudflare") {
		return true, "Cloudflare"
	}
	return false, ""
}

// detectAkamai looks for Akamai Bot Manager signatures.
func detectAkamai(p *Page) (bool, string) {
	if p.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(server(p), "akamai") {
		return true, "Akamai"
	}
	// generic "Reference #" block page
	if bodyHas(p, "Reference #") && bodyHas(p, "Access Denied") {
		return true, "Akamai"
	}
	return false, ""
}

func detectDataDome(p *Page) (bool, string) {
	if p.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(server(p), "datadome") ||
		p.Headers.Get("X-DataDome") != "" || p.Headers.Get("X-DataDome-Response") != "" {
		return true, "DataDome"
	}
	if bodyHas(p, "geo.captcha-delivery.com", "datadome") {
		return true, "DataDome"
	}
	return false, ""
}

func detectPerimeterX(p *Page) (bool, string) {
	if p.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if p.Headers.Get("X-Px-Captcha") != "" {
		return true, "PerimeterX"
	}
	if bodyHas(p, "client.perimeterx.net", "px-captcha", "_pxBlock") {
		return true, "PerimeterX"
	}
	return false, ""
}
