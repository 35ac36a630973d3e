package proxy

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/die-net/socksrelay/internal/conn"
	"github.com/die-net/socksrelay/internal/metrics"
	"github.com/die-net/socksrelay/internal/relay"
)

const frontendHTTP = "http"

// HTTPProxyServer serves HTTP CONNECT tunnels.
//
// A CONNECT request is answered once the upstream is dialed, after which the
// hijacked client connection and the upstream are handed to the relay engine.
// Other methods are refused with 405.
type HTTPProxyServer struct {
	ctx context.Context
	cfg Config
	srv *http.Server
}

// NewHTTPProxyServer constructs an HTTP CONNECT proxy with the given config.
//
// Serve starts accepting connections on a listener; Close stops the underlying
// http.Server.
func NewHTTPProxyServer(ctx context.Context, cfg Config) *HTTPProxyServer {
	if ctx == nil {
		ctx = context.Background()
	}
	h := &HTTPProxyServer{ctx: ctx, cfg: cfg}
	h.srv = &http.Server{
		Handler:           http.HandlerFunc(h.handle),
		ReadHeaderTimeout: cfg.NegotiationTimeout,
		BaseContext: func(net.Listener) context.Context {
			return h.ctx
		},
		ConnState: func(_ net.Conn, state http.ConnState) {
			if state == http.StateNew {
				metrics.Connections.WithLabelValues(frontendHTTP).Inc()
			}
		},
	}
	return h
}

// Serve serves HTTP proxy requests on ln.
func (s *HTTPProxyServer) Serve(ln net.Listener) error {
	return s.srv.Serve(ln)
}

// Close stops the HTTP server.
func (s *HTTPProxyServer) Close() error {
	return s.srv.Close()
}

func (s *HTTPProxyServer) handle(w http.ResponseWriter, r *http.Request) {
	if !strings.EqualFold(r.Method, http.MethodConnect) {
		metrics.NegotiationFailures.WithLabelValues(frontendHTTP, "method_not_allowed").Inc()
		w.Header().Set("Allow", http.MethodConnect)
		http.Error(w, "only CONNECT is supported", http.StatusMethodNotAllowed)
		return
	}
	s.handleConnect(w, r)
}

func (s *HTTPProxyServer) handleConnect(w http.ResponseWriter, r *http.Request) {
	log := s.cfg.Log.With().
		Str("conn_id", uuid.NewString()).
		Str("client", r.RemoteAddr).
		Logger()

	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "hijacking not supported", http.StatusInternalServerError)
		return
	}
	clientConn, brw, err := hj.Hijack()
	if err != nil {
		http.Error(w, "hijack failed", http.StatusInternalServerError)
		return
	}
	_ = brw.Flush()
	// Deadlines from header parsing carry over to the hijacked conn.
	_ = clientConn.SetDeadline(time.Time{})

	target := r.Host
	if _, _, err := net.SplitHostPort(target); err != nil {
		target = net.JoinHostPort(target, "443")
	}
	log = log.With().Str("target", target).Logger()
	log.Info().Msg("connecting upstream")

	ctx := r.Context()
	if s.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.DialTimeout)
		defer cancel()
	}

	serverConn, err := s.cfg.Dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		metrics.NegotiationFailures.WithLabelValues(frontendHTTP, "upstream_unreachable").Inc()
		log.Warn().Err(err).Msg("upstream connect failed")
		_, _ = writeError(brw, err, http.StatusBadGateway)
		_ = brw.Flush()
		_ = clientConn.Close()
		return
	}

	_, _ = brw.WriteString("HTTP/1.1 200 Connection Established\r\n\r\n")
	if err := brw.Flush(); err != nil {
		log.Warn().Err(err).Msg("write connect response")
		_ = clientConn.Close()
		_ = serverConn.Close()
		return
	}

	// The client may have pipelined payload behind its request.
	client := conn.WithReader(clientConn, brw.Reader)
	if err := relay.CopyBidirectional(s.ctx, log, client, serverConn); err != nil {
		log.Debug().Err(err).Msg("relay finished with error")
	}
	log.Info().Msg("connection closed")
}

// writeError simulates http.Error() for use on a hijacked connection.
func writeError(brw *bufio.ReadWriter, err error, code int) (int, error) {
	return fmt.Fprintf(brw, "HTTP/1.1 %d %s\r\nContent-Type: text/plain; charset=utf-8\r\nConnection: close\r\n\r\n%s\r\n", code, http.StatusText(code), err.Error())
}
