package socks5

import (
	"encoding/binary"
	"fmt"
	"net"
)

// maxRequestSize is VER CMD RSV ATYP, a length byte, a 255-byte domain and
// the port.
const maxRequestSize = 4 + 1 + MaxDomainLen + 2

// ServerReadRequest reads and validates one request.
//
// A request for any command but CONNECT is answered with
// RepCommandNotSupported and returns ErrUnsupportedCommand. Otherwise an
// address type other than IPv4 or domain is answered with
// RepAddressNotSupported and returns ErrUnsupportedAddressType. Malformed
// requests return ErrProtocolViolation without a reply.
func ServerReadRequest(conn net.Conn) (*Request, error) {
	var buf [maxRequestSize]byte

	hdr := buf[:4]
	if err := readFull(conn, hdr, "read request", false); err != nil {
		return nil, err
	}
	ver, cmd, atyp := hdr[0], hdr[1], hdr[3]
	if ver != Version {
		return nil, fmt.Errorf("request version %#02x: %w", ver, ErrProtocolViolation)
	}

	var (
		dst   Addr
		known = true
	)
	switch atyp {
	case ATYPIPv4:
		b := buf[4:10]
		if err := readFull(conn, b, "read ipv4 destination", true); err != nil {
			return nil, err
		}
		dst = IPv4Addr(b[0], b[1], b[2], b[3], binary.BigEndian.Uint16(b[4:]))
	case ATYPDomain:
		if err := readFull(conn, buf[4:5], "read domain length", true); err != nil {
			return nil, err
		}
		n := int(buf[4])
		if n == 0 {
			return nil, fmt.Errorf("empty domain: %w", ErrProtocolViolation)
		}
		b := buf[5 : 5+n+2]
		if err := readFull(conn, b, "read domain destination", true); err != nil {
			return nil, err
		}
		var err error
		dst, err = DomainAddr(string(b[:n]), binary.BigEndian.Uint16(b[n:]))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProtocolViolation, err)
		}
	case ATYPIPv6:
		// Refused like an unknown type, so its 18-byte body is left unread.
		fallthrough
	default:
		known = false
	}

	if cmd != CmdConnect {
		if err := WriteReply(conn, RepCommandNotSupported); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("command %#02x: %w", cmd, ErrUnsupportedCommand)
	}
	if !known {
		if err := WriteReply(conn, RepAddressNotSupported); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("address type %#02x: %w", atyp, ErrUnsupportedAddressType)
	}

	return &Request{Version: ver, Command: cmd, AddrType: atyp, Dst: dst}, nil
}
