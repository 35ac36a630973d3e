package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/die-net/socksrelay/internal/conn"
	"github.com/die-net/socksrelay/internal/metrics"
	"github.com/die-net/socksrelay/internal/relay"
	"github.com/die-net/socksrelay/internal/socks5"
)

const frontendSOCKS5 = "socks5"

// SOCKS5Server serves SOCKS5 CONNECT requests without authentication.
//
// Every accepted connection is negotiated on its own goroutine; once the
// upstream is connected the pair is handed to a relay session and the
// goroutine returns. Canceling ctx closes all live sessions.
type SOCKS5Server struct {
	ctx context.Context
	cfg Config

	wg sync.WaitGroup
}

// NewSOCKS5Server returns a server that dials upstreams with cfg.Dialer.
func NewSOCKS5Server(ctx context.Context, cfg Config) *SOCKS5Server {
	if ctx == nil {
		ctx = context.Background()
	}
	return &SOCKS5Server{ctx: ctx, cfg: cfg}
}

// Serve accepts connections on ln until the listener is closed or fails
// permanently. Transient accept errors are retried.
func (s *SOCKS5Server) Serve(ln net.Listener) error {
	for {
		c, err := conn.Accept(ln, s.cfg.Log)
		if err != nil {
			return fmt.Errorf("accept: %w", err)
		}
		metrics.Connections.WithLabelValues(frontendSOCKS5).Inc()
		s.wg.Go(func() {
			s.handleConn(c)
		})
	}
}

// Wait blocks until every accepted connection has either been rejected or had
// its relay session torn down.
func (s *SOCKS5Server) Wait() {
	s.wg.Wait()
}

func (s *SOCKS5Server) handleConn(c net.Conn) {
	log := s.cfg.Log.With().
		Str("conn_id", uuid.NewString()).
		Stringer("client", c.RemoteAddr()).
		Logger()
	log.Debug().Msg("accepted connection")

	up, err := s.negotiate(log, c)
	if err != nil {
		_ = c.Close()
		logNegotiationError(log, err)
		return
	}

	session := relay.Start(log, c, up)
	stop := context.AfterFunc(s.ctx, session.Close)
	s.wg.Go(func() {
		<-session.Done()
		stop()
		st := session.Stats()
		log.Info().
			Int64("bytes_up", st.ClientToUpstream).
			Int64("bytes_down", st.UpstreamToClient).
			Msg("connection closed")
	})
}

// negotiate runs handshake, request and connect in order. The client has
// received whatever reply applies by the time it returns.
func (s *SOCKS5Server) negotiate(log zerolog.Logger, c net.Conn) (net.Conn, error) {
	_ = c.SetDeadline(deadline(s.cfg.NegotiationTimeout))

	if err := socks5.ServerNegotiate(c); err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}

	req, err := socks5.ServerReadRequest(c)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}

	target := req.Target()
	log.Info().Str("target", target).Msg("connecting upstream")

	// Leave room for the dial before the reply is written.
	_ = c.SetDeadline(deadline(s.cfg.DialTimeout + s.cfg.NegotiationTimeout))

	up, err := socks5.Connect(s.ctx, c, req, s.cfg.Dialer, s.cfg.DialTimeout)
	if err != nil {
		return nil, err
	}

	_ = c.SetDeadline(deadline(0))
	log.Info().Str("target", target).Msg("connected upstream")
	return up, nil
}

func logNegotiationError(log zerolog.Logger, err error) {
	reason, level := "io", zerolog.WarnLevel
	switch {
	case errors.Is(err, socks5.ErrUnsupportedCommand):
		reason = "unsupported_command"
	case errors.Is(err, socks5.ErrUnsupportedAddressType):
		reason = "unsupported_address_type"
	case errors.Is(err, socks5.ErrUpstreamUnreachable):
		reason = "upstream_unreachable"
	case errors.Is(err, socks5.ErrProtocolViolation):
		reason = "protocol_violation"
	case errors.Is(err, socks5.ErrTimeout):
		reason = "timeout"
	default:
		level = zerolog.ErrorLevel
	}
	metrics.NegotiationFailures.WithLabelValues(frontendSOCKS5, reason).Inc()
	log.WithLevel(level).Err(err).Str("reason", reason).Msg("negotiation failed")
}
