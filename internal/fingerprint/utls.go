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
	ProfileAuto    Profile = "auto"   // follow the session's User-Agent
	ProfileRandom  Profile = "random" // randomized uTLS profile
)

// ParseProfile validates a profile name read from configuration.
func ParseProfile(s string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ProfileChrome, ProfileFirefox, ProfileSafari, ProfileGo, ProfileAuto, ProfileRandom:
		return p, nil
	case "":
		return ProfileAuto, nil
	}
	return "", fmt.Errorf("unknown tls profile %q", s)
}

// ForUserAgent picks the TLS profile matching the browser a User-Agent claims
// to be, so the handshake does not contradict the advertised identity.
// Edge and other Chromium derivatives use the Chrome hello.
func ForUserAgent(ua string) Profile {
	switch {
	case strings.Contains(ua, "Firefox/"):
		return ProfileFirefox
	case strings.Contains(ua, "Chrome/"), strings.Contains(ua, "Chromium/"):
		return ProfileChrome
	case strings.Contains(ua, "Safari/"):
		return ProfileSafari
	default:
		return ProfileChrome
	}
}

// Transport returns an http.RoundTripper presenting the TLS fingerprint of p.
// ProfileGo returns a plain clone of http.DefaultTransport; ProfileAuto must be
// resolved by the caller with ForUserAgent first.
// proxyFunc is optional. For uTLS profiles, https requests are tunnelled by
// the uTLS dialer so the hello survives a proxy; plain http requests use the
// transport's Proxy as usual.
func Transport(p Profile, proxyFunc func(*http.Request) (*url.URL, error)) (http.RoundTripper, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyFunc != nil {
		transport.Proxy = proxyFunc
	}
	if p == ProfileGo {
		return transport, nil
	}

	var clientHelloID utls.ClientHelloID
	switch p {
	case ProfileChrome:
		clientHelloID = utls.HelloChrome_Auto
	case ProfileFirefox:
		clientHelloID = utls.HelloFirefox_Auto
	case ProfileSafari:
		clientHelloID = utls.HelloIOS_Auto
	case ProfileRandom:
		clientHelloID = utls.HelloRandomizedALPN
	default:
		return nil, fmt.Errorf("fingerprint: unsupported profile %q", p)
	}

	// uTLS hellos advertise h2, which net/http cannot speak over a custom
	// DialTLSContext, so pin ALPN to http/1.1.
	transport.ForceAttemptHTTP2 = false
	dial := dialFunc(transport.DialContext)
	if proxyFunc != nil {
		transport.Proxy = tunnelProxy(proxyFunc)
	}
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := dialTarget(ctx, dial, proxyFunc, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		uConn := utls.UClient(tcpConn, &utls.Config{ServerName: host, NextProtos: []string{"http/1.1"}}, clientHelloID)
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("fingerprint: utls handshake with %s failed: %w", host, err)
		}

		return uConn, nil
	}

	return transport, nil
}
