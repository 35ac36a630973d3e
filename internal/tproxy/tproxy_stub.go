//go:build !linux && !freebsd && !openbsd

package tproxy

import (
	"context"
	"errors"
	"net"
)

// IsSupported is true on TPROXY-supporting OSes.
const IsSupported = false

func ListenTransparentTCP(context.Context, string, net.KeepAliveConfig) (net.Listener, error) {
	return nil, errors.New("transparent proxy is not supported on this platform")
}

func OriginalDst(net.Conn) (*net.TCPAddr, bool) {
	return nil, false
}
