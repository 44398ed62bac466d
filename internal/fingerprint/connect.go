package fingerprint

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	xproxy "golang.org/x/net/proxy"
)

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Dial and DialContext let a dialFunc serve as the forward dialer of x/net/proxy.
func (d dialFunc) Dial(network, addr string) (net.Conn, error) {
	return d(context.Background(), network, addr)
}

func (d dialFunc) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return d(ctx, network, addr)
}

// tunnelProxy keeps net/http away from https requests so the uTLS dialer can
// reach the target through the proxy itself. net/http would otherwise open the
// CONNECT tunnel and finish with crypto/tls, dropping the uTLS hello.
func tunnelProxy(proxyFunc func(*http.Request) (*url.URL, error)) func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" {
			return nil, nil
		}
		return proxyFunc(req)
	}
}

// dialTarget opens a raw connection to addr, tunnelling through the proxy
// proxyFunc picks for an https request to addr.
func dialTarget(ctx context.Context, dial dialFunc, proxyFunc func(*http.Request) (*url.URL, error), addr string) (net.Conn, error) {
	if proxyFunc == nil {
		return dial(ctx, "tcp", addr)
	}
	proxyURL, err := proxyFunc(&http.Request{URL: &url.URL{Scheme: "https", Host: addr}})
	if err != nil {
		return nil, fmt.Errorf("fingerprint: resolve proxy: %w", err)
	}
	if proxyURL == nil {
		return dial(ctx, "tcp", addr)
	}

	switch proxyURL.Scheme {
	case "socks5", "socks5h":
		d, err := xproxy.FromURL(proxyURL, dial)
		if err != nil {
			return nil, fmt.Errorf("fingerprint: socks proxy: %w", err)
		}
		if cd, ok := d.(xproxy.ContextDialer); ok {
			return cd.DialContext(ctx, "tcp", addr)
		}
		return d.Dial("tcp", addr)
	case "http", "https":
		return dialConnect(ctx, dial, proxyURL, addr)
	default:
		return nil, fmt.Errorf("fingerprint: unsupported proxy scheme %q", proxyURL.Scheme)
	}
}

// dialConnect opens an HTTP CONNECT tunnel to addr through proxyURL.
func dialConnect(ctx context.Context, dial dialFunc, proxyURL *url.URL, addr string) (net.Conn, error) {
	proxyAddr := proxyURL.Host
	if proxyURL.Port() == "" {
		port := "80"
		if proxyURL.Scheme == "https" {
			port = "443"
		}
		proxyAddr = net.JoinHostPort(proxyURL.Hostname(), port)
	}

	conn, err := dial(ctx, "tcp", proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: dial proxy %s: %w", proxyURL.Redacted(), err)
	}
	if proxyURL.Scheme == "https" {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: proxyURL.Hostname()})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("fingerprint: tls to proxy %s: %w", proxyURL.Redacted(), err)
		}
		conn = tlsConn
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	if u := proxyURL.User; u != nil {
		pass, _ := u.Password()
		cred := base64.StdEncoding.EncodeToString([]byte(u.Username() + ":" + pass))
		req.Header.Set("Proxy-Authorization", "Basic "+cred)
	}
	if err := req.Write(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("fingerprint: send CONNECT: %w", err)
	}

	// The target stays silent until the client hello, so nothing past the
	// response headers is buffered here.
	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("fingerprint: read CONNECT response: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_ = conn.Close()
		return nil, fmt.Errorf("fingerprint: proxy %s refused CONNECT %s: %s", proxyURL.Redacted(), addr, resp.Status)
	}
	return conn, nil
}
