package socks5

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"unicode/utf8"
)

// MaxDomainLen is the longest domain a request can carry in its one-byte
// length field.
const MaxDomainLen = 255

var errInvalidDomain = errors.New("invalid domain")

// Addr is a request destination: either an IPv4 address or a domain name,
// with a port. The zero value is 0.0.0.0:0.
type Addr struct {
	ip     [4]byte
	domain string
	port   uint16
}

// IPv4Addr returns the destination a.b.c.d:port.
func IPv4Addr(a, b, c, d byte, port uint16) Addr {
	return Addr{ip: [4]byte{a, b, c, d}, port: port}
}

// DomainAddr returns the destination name:port. The name must be non-empty
// valid UTF-8 of at most MaxDomainLen bytes.
func DomainAddr(name string, port uint16) (Addr, error) {
	if name == "" || len(name) > MaxDomainLen || !utf8.ValidString(name) {
		return Addr{}, fmt.Errorf("%w: %q", errInvalidDomain, name)
	}
	return Addr{domain: name, port: port}, nil
}

// IsDomain reports whether a holds a domain name.
func (a Addr) IsDomain() bool {
	return a.domain != ""
}

// Type returns the ATYP code for a.
func (a Addr) Type() byte {
	if a.IsDomain() {
		return ATYPDomain
	}
	return ATYPIPv4
}

// Host returns the dotted-quad address or the domain name.
func (a Addr) Host() string {
	if a.IsDomain() {
		return a.domain
	}
	return netip.AddrFrom4(a.ip).String()
}

// Port returns the destination port.
func (a Addr) Port() uint16 {
	return a.port
}

// String renders a as a connect target. Domains are concatenated with the
// port as-is; no resolution or bracketing happens here.
func (a Addr) String() string {
	return a.Host() + ":" + strconv.Itoa(int(a.Port()))
}

// Request is a decoded CONNECT request.
type Request struct {
	Version  byte
	Command  byte
	AddrType byte
	Dst      Addr
}

// Target returns the host:port string to dial.
func (r *Request) Target() string {
	return r.Dst.String()
}
