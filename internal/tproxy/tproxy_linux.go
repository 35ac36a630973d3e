//go:build linux

package tproxy

import (
	"net"

	"golang.org/x/sys/unix"
)

func setTransparent(_ string, fd int) error {
	return unix.SetsockoptInt(fd, unix.SOL_IP, unix.IP_TRANSPARENT, 1)
}

// OriginalDst returns the pre-redirect IPv4 destination of c.
func OriginalDst(c net.Conn) (*net.TCPAddr, bool) {
	tc, ok := c.(*net.TCPConn)
	if !ok {
		return nil, false
	}
	rc, err := tc.SyscallConn()
	if err != nil {
		return nil, false
	}

	var (
		addr  *net.TCPAddr
		found bool
	)
	_ = rc.Control(func(fd uintptr) {
		// SO_ORIGINAL_DST fills a sockaddr_in; IPv6Mreq is the
		// same size and x/sys exposes no better-typed getter.
		mreq, err := unix.GetsockoptIPv6Mreq(int(fd), unix.SOL_IP, unix.SO_ORIGINAL_DST)
		if err != nil {
			return
		}
		sa := mreq.Multiaddr
		addr = &net.TCPAddr{
			IP:   net.IPv4(sa[4], sa[5], sa[6], sa[7]),
			Port: int(sa[2])<<8 | int(sa[3]),
		}
		found = true
	})
	return addr, found
}
