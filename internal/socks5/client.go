package socks5

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"

	txsocks5 "github.com/txthinking/socks5"
)

// ErrAuthFailed is returned when an upstream server rejects the credentials.
var ErrAuthFailed = errors.New("socks5: authentication failed")

// Auth holds optional username/password credentials for an upstream server.
type Auth struct {
	Username string
	Password string
}

func (a Auth) methods() []byte {
	if a.Username == "" {
		return []byte{MethodNone}
	}
	return []byte{MethodNone, txsocks5.MethodUsernamePassword}
}

// ClientDial negotiates on conn and asks the server to CONNECT to address.
// The address is validated before anything is written. A non-success reply
// is returned as a *ReplyError.
func ClientDial(conn net.Conn, auth Auth, address string) error {
	req, err := connectRequest(address)
	if err != nil {
		return err
	}
	if err := ClientNegotiate(conn, auth); err != nil {
		return err
	}
	return sendRequest(conn, req)
}

// ClientNegotiate runs method selection, and the username/password exchange
// if the server picks it.
func ClientNegotiate(conn net.Conn, auth Auth) error {
	if _, err := txsocks5.NewNegotiationRequest(auth.methods()).WriteTo(conn); err != nil {
		return ioError("write greeting", err)
	}
	sel, err := txsocks5.NewNegotiationReplyFrom(conn)
	if err != nil {
		return ioError("read method selection", err)
	}

	switch {
	case sel.Method == MethodNone:
		return nil
	case sel.Method == txsocks5.MethodUsernamePassword && auth.Username != "":
		return auth.authenticate(conn)
	}
	return fmt.Errorf("server selected method %#02x: %w", sel.Method, ErrProtocolViolation)
}

func (a Auth) authenticate(conn net.Conn) error {
	req := txsocks5.NewUserPassNegotiationRequest([]byte(a.Username), []byte(a.Password))
	if _, err := req.WriteTo(conn); err != nil {
		return ioError("write credentials", err)
	}
	rep, err := txsocks5.NewUserPassNegotiationReplyFrom(conn)
	if err != nil {
		return ioError("read auth status", err)
	}
	if rep.Status != txsocks5.UserPassStatusSuccess {
		return fmt.Errorf("user %q: %w", a.Username, ErrAuthFailed)
	}
	return nil
}

// ClientConnect sends a CONNECT request for address and reads the reply.
func ClientConnect(conn net.Conn, address string) error {
	req, err := connectRequest(address)
	if err != nil {
		return err
	}
	return sendRequest(conn, req)
}

func sendRequest(conn net.Conn, req *txsocks5.Request) error {
	if _, err := req.WriteTo(conn); err != nil {
		return ioError("write request", err)
	}
	rep, err := txsocks5.NewReplyFrom(conn)
	if err != nil {
		return ioError("read reply", err)
	}
	if rep.Rep != RepSuccess {
		return &ReplyError{Rep: rep.Rep}
	}
	return nil
}

// connectRequest encodes host:port. IP literals are sent as such, anything
// else goes out as a domain for the server to resolve.
func connectRequest(address string) (*txsocks5.Request, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("target %q: %w", address, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("target %q port: %w", address, err)
	}
	dstPort := binary.BigEndian.AppendUint16(nil, uint16(port))

	if ip, err := netip.ParseAddr(host); err == nil {
		ip = ip.Unmap()
		if ip.Is4() {
			b := ip.As4()
			return txsocks5.NewRequest(CmdConnect, ATYPIPv4, b[:], dstPort), nil
		}
		b := ip.As16()
		return txsocks5.NewRequest(CmdConnect, ATYPIPv6, b[:], dstPort), nil
	}

	if _, err := DomainAddr(host, uint16(port)); err != nil {
		return nil, fmt.Errorf("target %q: %w", address, err)
	}
	return txsocks5.NewRequest(CmdConnect, ATYPDomain, []byte(host), dstPort), nil
}
