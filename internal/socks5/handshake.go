package socks5

import (
	"fmt"
	"net"

	txsocks5 "github.com/txthinking/socks5"
)

// ServerNegotiate reads one client greeting and selects "no authentication".
//
// Only the version byte is checked; the offered method list is consumed and
// ignored. A wrong version returns ErrProtocolViolation without writing a
// reply.
func ServerNegotiate(conn net.Conn) error {
	var hdr [2]byte // VER NMETHODS
	if err := readFull(conn, hdr[:1], "read greeting", false); err != nil {
		return err
	}
	if hdr[0] != Version {
		return fmt.Errorf("greeting version %#02x: %w", hdr[0], ErrProtocolViolation)
	}
	if err := readFull(conn, hdr[1:], "read greeting", true); err != nil {
		return err
	}

	var methods [255]byte
	if err := readFull(conn, methods[:hdr[1]], "read greeting methods", true); err != nil {
		return err
	}

	if _, err := txsocks5.NewNegotiationReply(MethodNone).WriteTo(conn); err != nil {
		return ioError("write method selection", err)
	}
	return nil
}
