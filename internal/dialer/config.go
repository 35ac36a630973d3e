package dialer

import (
	"net"
	"time"
)

// Config holds settings shared by all dialers.
type Config struct {
	// DialTimeout bounds DNS lookup and TCP connect. Zero leaves it to ctx.
	DialTimeout time.Duration
	// NegotiationTimeout bounds the handshake with an upstream proxy.
	NegotiationTimeout time.Duration
	KeepAlive          net.KeepAliveConfig
}
