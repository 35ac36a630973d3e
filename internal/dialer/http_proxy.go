package dialer

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/die-net/socksrelay/internal/conn"
)

// ErrProxyRefused is returned when the proxy answers CONNECT with a non-2xx
// status.
var ErrProxyRefused = errors.New("http proxy refused connect")

// HTTPProxyDialer tunnels through an http:// or https:// proxy with CONNECT.
type HTTPProxyDialer struct {
	cfg      Config
	proxyURL *url.URL
	header   http.Header
	direct   Dialer
}

// NewHTTPProxyDialer validates proxyURL and returns a dialer for it. A
// non-empty username adds Basic Proxy-Authorization to every CONNECT.
func NewHTTPProxyDialer(cfg Config, proxyURL *url.URL, username, password string) (*HTTPProxyDialer, error) {
	switch {
	case proxyURL == nil:
		return nil, errors.New("http proxy dialer: missing proxy url")
	case proxyURL.Scheme != "http" && proxyURL.Scheme != "https":
		return nil, fmt.Errorf("http proxy dialer: unsupported scheme %q", proxyURL.Scheme)
	case proxyURL.Hostname() == "":
		return nil, errors.New("http proxy dialer: invalid proxy host")
	}

	header := make(http.Header)
	if username != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		header.Set("Proxy-Authorization", "Basic "+cred)
	}

	return &HTTPProxyDialer{
		cfg:      cfg,
		proxyURL: proxyURL,
		header:   header,
		direct:   NewDirectDialer(cfg),
	}, nil
}

func (d *HTTPProxyDialer) ProxyURL() *url.URL {
	return d.proxyURL
}

// DialContext connects to the proxy and returns a tunnel to address. Bytes
// the proxy sent after its response headers stay readable on the returned
// conn.
func (d *HTTPProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if !strings.HasPrefix(network, "tcp") {
		return nil, fmt.Errorf("http proxy dial %s %s: unsupported network", network, address)
	}

	c, err := d.direct.DialContext(ctx, "tcp", d.proxyURL.Host)
	if err != nil {
		return nil, fmt.Errorf("http proxy: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = c.SetDeadline(time.Now())
	})
	defer stop()
	if d.cfg.NegotiationTimeout > 0 {
		_ = c.SetDeadline(time.Now().Add(d.cfg.NegotiationTimeout))
	}

	tunnel, err := d.connect(ctx, c, address)
	if err == nil && !stop() {
		err = ctx.Err()
	}
	if err != nil {
		_ = c.Close()
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("http proxy dial %s: %w", address, err)
	}

	_ = tunnel.SetDeadline(time.Time{})
	return tunnel, nil
}

func (d *HTTPProxyDialer) connect(ctx context.Context, c net.Conn, address string) (net.Conn, error) {
	if d.proxyURL.Scheme == "https" {
		tc := tls.Client(c, &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: d.proxyURL.Hostname(),
		})
		if err := tc.HandshakeContext(ctx); err != nil {
			return nil, fmt.Errorf("tls handshake: %w", err)
		}
		c = tc
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: address},
		Host:   address,
		Header: d.header.Clone(),
	}
	if err := req.Write(c); err != nil {
		return nil, fmt.Errorf("write connect: %w", err)
	}

	br := bufio.NewReader(c)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		return nil, fmt.Errorf("read connect response: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrProxyRefused, resp.Status)
	}

	return conn.WithReader(c, br), nil
}
