package fingerprint

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	utls "github.com/refraction-networking/utls"
)

// Profile represents a recognized TLS fingerprint profile.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // standard go TLS
	ProfileRandom  Profile = "random" // randomized uTLS profile
)

// ParseProfile maps a configured name onto a Profile. Empty means chrome.
func ParseProfile(name string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(name)))
	if p == "" {
		return ProfileChrome, nil
	}
	if p == ProfileGo {
		return p, nil
	}
	if _, err := helloID(p); err != nil {
		return "", err
	}
	return p, nil
}

// UserAgentFamily is the browser family whose User-Agent should accompany
// this handshake. Search engines compare the two, so a Firefox ClientHello
// sent with a Chrome UA is an easy bot signal. Random and go return "".
func (p Profile) UserAgentFamily() string {
	switch p {
	case ProfileChrome, ProfileFirefox, ProfileSafari:
		return string(p)
	default:
		return ""
	}
}

func helloID(p Profile) (utls.ClientHelloID, error) {
	switch p {
	case ProfileChrome:
		return utls.HelloChrome_Auto, nil
	case ProfileFirefox:
		return utls.HelloFirefox_Auto, nil
	case ProfileSafari:
		return utls.HelloIOS_Auto, nil
	case ProfileRandom:
		return utls.HelloRandomizedALPN, nil
	default:
		return utls.ClientHelloID{}, fmt.Errorf("fingerprint: unknown profile %q", p)
	}
}

// Transport returns an http.RoundTripper that performs its TLS handshakes
// with the given profile's ClientHello. ProfileGo returns a plain clone of
// http.DefaultTransport. proxyFunc is optional.
func Transport(p Profile, proxyFunc func(*http.Request) (*url.URL, error)) (http.RoundTripper, error) {
	return newTransport(p, proxyFunc, nil)
}

// newTransport builds the transport; base, when set, is copied into every
// uTLS handshake config (tests use it to trust self-signed servers).
func newTransport(p Profile, proxyFunc func(*http.Request) (*url.URL, error), base *utls.Config) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyFunc != nil {
		transport.Proxy = proxyFunc
	}
	if p == ProfileGo {
		return transport, nil
	}

	id, err := helloID(p)
	if err != nil {
		return nil, err
	}

	dial := transport.DialContext
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		cfg := &utls.Config{}
		if base != nil {
			cfg = base.Clone()
		}
		cfg.ServerName = host

		uConn := utls.UClient(tcpConn, cfg, id)
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("fingerprint: %s handshake with %s: %w", p, host, err)
		}
		return uConn, nil
	}

	return transport, nil
}
