//go:build linux || freebsd || openbsd

package tproxy

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"github.com/die-net/socksrelay/internal/conn"
)

// IsSupported is true on TPROXY-supporting OSes.
const IsSupported = true

// ListenTransparentTCP listens on addr with the platform's transparent-bind
// socket option so it can accept redirected connections. This usually needs
// root, and the firewall rules that redirect traffic are still up to the
// operator.
func ListenTransparentTCP(ctx context.Context, addr string, keepAliveConfig net.KeepAliveConfig) (net.Listener, error) {
	lc := net.ListenConfig{Control: func(network, _ string, c syscall.RawConn) error {
		var ctrlErr error
		err := c.Control(func(fd uintptr) {
			ctrlErr = setTransparent(network, int(fd))
		})
		if err != nil {
			return err
		}
		return ctrlErr
	}}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen tproxy %s: %w", addr, err)
	}
	return &conn.KeepAliveListener{Listener: ln, KeepAliveConfig: keepAliveConfig}, nil
}
