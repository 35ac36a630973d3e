package socks5

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Dialer is the transport primitive used to reach a request's destination.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Connect makes a single connect attempt to req's destination and reports
// the outcome to the client.
//
// On success it writes RepSuccess and returns the upstream conn. On failure
// it writes RepHostUnreachable and returns ErrUpstreamUnreachable, also
// wrapping ErrTimeout if the attempt ran past timeout. A zero timeout leaves
// the attempt bounded only by ctx and the dialer.
func Connect(ctx context.Context, conn net.Conn, req *Request, d Dialer, timeout time.Duration) (net.Conn, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	target := req.Target()
	up, err := d.DialContext(ctx, "tcp", target)
	if err != nil {
		if werr := WriteReply(conn, RepHostUnreachable); werr != nil {
			return nil, fmt.Errorf("connect %s: %w: %w", target, ErrUpstreamUnreachable, werr)
		}
		if IsTimeout(err) {
			return nil, fmt.Errorf("connect %s: %w: %w: %w", target, ErrUpstreamUnreachable, ErrTimeout, err)
		}
		return nil, fmt.Errorf("connect %s: %w: %w", target, ErrUpstreamUnreachable, err)
	}

	if err := WriteReply(conn, RepSuccess); err != nil {
		_ = up.Close()
		return nil, err
	}
	return up, nil
}
