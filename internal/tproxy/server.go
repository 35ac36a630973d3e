package tproxy

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/die-net/socksrelay/internal/conn"
	"github.com/die-net/socksrelay/internal/metrics"
	"github.com/die-net/socksrelay/internal/proxy"
	"github.com/die-net/socksrelay/internal/relay"
)

const frontend = "tproxy"

var errNoOriginalDst = errors.New("original destination unavailable")

// Server relays redirected connections to their original destination.
type Server struct {
	ctx context.Context
	cfg proxy.Config

	// originalDst is swapped out by tests that run without a redirect.
	originalDst func(net.Conn) (*net.TCPAddr, bool)
}

func NewServer(ctx context.Context, cfg proxy.Config) *Server {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Server{ctx: ctx, cfg: cfg, originalDst: OriginalDst}
}

func (s *Server) Serve(ln net.Listener) error {
	for {
		c, err := conn.Accept(ln, s.cfg.Log)
		if err != nil {
			return fmt.Errorf("accept: %w", err)
		}
		metrics.Connections.WithLabelValues(frontend).Inc()
		go s.handle(c)
	}
}

func (s *Server) handle(c net.Conn) {
	log := s.cfg.Log.With().
		Str("conn_id", uuid.NewString()).
		Stringer("client", c.RemoteAddr()).
		Logger()

	up, err := s.dial(log, c)
	if err != nil {
		_ = c.Close()
		reason := "upstream_unreachable"
		if errors.Is(err, errNoOriginalDst) {
			reason = "no_original_dst"
		}
		metrics.NegotiationFailures.WithLabelValues(frontend, reason).Inc()
		log.Warn().Err(err).Str("reason", reason).Msg("connection dropped")
		return
	}

	if err := relay.CopyBidirectional(s.ctx, log, c, up); err != nil {
		log.Debug().Err(err).Msg("relay finished with error")
	}
	log.Info().Msg("connection closed")
}

func (s *Server) dial(log zerolog.Logger, c net.Conn) (net.Conn, error) {
	dst, ok := s.originalDst(c)
	if !ok {
		return nil, errNoOriginalDst
	}
	target := dst.String()
	log.Info().Str("target", target).Msg("connecting upstream")

	ctx := s.ctx
	if s.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.DialTimeout)
		defer cancel()
	}
	up, err := s.cfg.Dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return up, nil
}
