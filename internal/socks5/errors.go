package socks5

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
)

// Errors returned by the server-side stages. Callers match them with
// errors.Is; the returned errors wrap the underlying cause as well.
var (
	// ErrProtocolViolation reports malformed or unexpected bytes. No reply is
	// sent.
	ErrProtocolViolation = errors.New("socks5: protocol violation")
	// ErrUnsupportedCommand reports a request for anything but CONNECT.
	ErrUnsupportedCommand = errors.New("socks5: command not supported")
	// ErrUnsupportedAddressType reports an ATYP other than IPv4 or domain.
	ErrUnsupportedAddressType = errors.New("socks5: address type not supported")
	// ErrUpstreamUnreachable reports a failed connect to the destination.
	ErrUpstreamUnreachable = errors.New("socks5: upstream unreachable")
	// ErrTimeout reports an expired negotiation deadline or dial timeout.
	ErrTimeout = errors.New("socks5: timeout")
	// ErrIO reports any other read or write failure.
	ErrIO = errors.New("socks5: i/o failure")
)

// ReplyError is returned by the client side when a server answers a request
// with a reply code other than success.
type ReplyError struct {
	Rep byte
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("socks5 reply %#02x: %s", e.Rep, ReplyText(e.Rep))
}

// IsTimeout reports whether err is a deadline or timeout expiry.
func IsTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// ioError classifies a failed socket operation as ErrTimeout or ErrIO.
func ioError(op string, err error) error {
	if IsTimeout(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrIO, err)
}

// readFull fills buf from r. Running out of bytes once a message has started
// is a protocol violation; everything else is classified by ioError.
func readFull(r io.Reader, buf []byte, op string, started bool) error {
	n, err := io.ReadFull(r, buf)
	if err == nil {
		return nil
	}
	if (started || n > 0) && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
		return fmt.Errorf("%s: truncated message: %w", op, ErrProtocolViolation)
	}
	return ioError(op, err)
}
