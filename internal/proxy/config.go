package proxy

import (
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/die-net/socksrelay/internal/dialer"
)

// Config is shared by all front-ends.
type Config struct {
	// NegotiationTimeout bounds each client's handshake and request.
	NegotiationTimeout time.Duration
	// DialTimeout bounds the upstream connect attempt.
	DialTimeout time.Duration

	KeepAlive net.KeepAliveConfig

	Dialer dialer.Dialer
	Log    zerolog.Logger
}

func deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}
