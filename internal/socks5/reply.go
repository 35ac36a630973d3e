package socks5

import (
	"fmt"
	"net"

	txsocks5 "github.com/txthinking/socks5"

	"github.com/die-net/socksrelay/internal/metrics"
)

// Version is the SOCKS protocol version byte.
const Version byte = 0x05

const (
	// MethodNone is the "no authentication required" method.
	MethodNone = txsocks5.MethodNone

	// CmdConnect is the SOCKS5 CONNECT command value.
	CmdConnect = txsocks5.CmdConnect

	ATYPIPv4   = txsocks5.ATYPIPv4
	ATYPDomain = txsocks5.ATYPDomain
	ATYPIPv6   = txsocks5.ATYPIPv6
)

// Reply codes sent by the server.
const (
	RepSuccess             byte = 0x00
	RepHostUnreachable     byte = 0x04
	RepCommandNotSupported byte = 0x07
	RepAddressNotSupported byte = 0x08
)

var replyText = map[byte]string{
	0x00: "succeeded",
	0x01: "general SOCKS server failure",
	0x02: "connection not allowed by ruleset",
	0x03: "network unreachable",
	0x04: "host unreachable",
	0x05: "connection refused",
	0x06: "TTL expired",
	0x07: "command not supported",
	0x08: "address type not supported",
}

// ReplyText returns a human-readable description of a reply code.
func ReplyText(rep byte) string {
	if s, ok := replyText[rep]; ok {
		return s
	}
	return "unassigned"
}

// WriteReply writes a 10-byte reply carrying rep. The bound address and port
// are always zero.
func WriteReply(conn net.Conn, rep byte) error {
	if _, err := newZeroAddrReply(rep).WriteTo(conn); err != nil {
		return ioError(fmt.Sprintf("write reply %#02x", rep), err)
	}
	metrics.Replies.WithLabelValues(metrics.ReplyCode(rep)).Inc()
	return nil
}

func newZeroAddrReply(rep byte) *txsocks5.Reply {
	return txsocks5.NewReply(rep, ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00})
}
