package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/socksrelay/internal/metrics"
)

// BufferSize is the most a pump reads before writing.
const BufferSize = 1024

var buffers = NewBufferPool(BufferSize)

// Stats reports bytes written in each direction.
type Stats struct {
	ClientToUpstream int64
	UpstreamToClient int64
}

// Session is a running relay between a client and an upstream connection.
//
// Each direction runs independently: when one side reaches EOF its pump
// half-closes the opposite connection and exits, leaving the other direction
// running until its own source ends or fails. Both connections are closed once
// both pumps have exited.
type Session struct {
	log      zerolog.Logger
	client   net.Conn
	upstream net.Conn

	c2u atomic.Int64
	u2c atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
	err       error
}

// Start begins relaying between client and upstream and returns immediately.
// The session owns both connections from this point on.
func Start(log zerolog.Logger, client, upstream net.Conn) *Session {
	s := &Session{
		log:      log,
		client:   client,
		upstream: upstream,
		done:     make(chan struct{}),
	}
	metrics.ActiveSessions.Inc()

	var g errgroup.Group
	g.Go(func() error {
		return s.pump(upstream, client, &s.c2u, metrics.ClientToUpstream)
	})
	g.Go(func() error {
		return s.pump(client, upstream, &s.u2c, metrics.UpstreamToClient)
	})

	go func() {
		s.err = g.Wait()
		s.Close()
		metrics.ActiveSessions.Dec()
		close(s.done)
	}()

	return s
}

// Done is closed once both directions have stopped and both connections are
// closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session is torn down and returns the first error
// either direction stopped with. EOF is not an error.
func (s *Session) Wait() error {
	<-s.done
	return s.err
}

// Stats returns the bytes relayed so far.
func (s *Session) Stats() Stats {
	return Stats{ClientToUpstream: s.c2u.Load(), UpstreamToClient: s.u2c.Load()}
}

// Close closes both connections, which stops both directions.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		_ = s.client.Close()
		_ = s.upstream.Close()
	})
}

func (s *Session) pump(dst, src net.Conn, written *atomic.Int64, direction string) error {
	log := s.log.With().Str("direction", direction).Logger()
	counter := metrics.RelayBytes.WithLabelValues(direction)

	// dst's write side belongs to this pump alone.
	defer closeWrite(dst)

	bp := buffers.Get()
	defer buffers.Put(bp)
	buf := *bp

	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written.Add(int64(nw))
			counter.Add(float64(nw))
			if werr == nil && nw != nr {
				werr = io.ErrShortWrite
			}
			if werr != nil {
				if errors.Is(werr, net.ErrClosed) {
					return nil
				}
				log.Error().Err(werr).Msg("relay write failed")
				return fmt.Errorf("%s write: %w", direction, werr)
			}
		}
		if rerr != nil {
			switch {
			case errors.Is(rerr, io.EOF):
				log.Debug().Int64("bytes", written.Load()).Msg("relay direction finished")
				return nil
			case errors.Is(rerr, net.ErrClosed):
				return nil
			}
			log.Error().Err(rerr).Msg("relay read failed")
			return fmt.Errorf("%s read: %w", direction, rerr)
		}
	}
}

type closeWriter interface {
	CloseWrite() error
}

// closeWrite signals EOF to the peer behind c without touching its read side.
// Connections that cannot half-close are left for Close.
func closeWrite(c net.Conn) {
	if cw, ok := c.(closeWriter); ok {
		_ = cw.CloseWrite()
	}
}

// CopyBidirectional relays between left and right until both directions
// finish or ctx is canceled, then closes both connections.
func CopyBidirectional(ctx context.Context, log zerolog.Logger, left, right net.Conn) error {
	s := Start(log, left, right)
	stop := context.AfterFunc(ctx, s.Close)
	defer stop()
	return s.Wait()
}
