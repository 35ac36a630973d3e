//go:build freebsd || openbsd

package tproxy

import "net"

// OriginalDst returns the destination c was originally addressed to. PF and
// IPFW keep it as the accepted socket's local address.
func OriginalDst(c net.Conn) (*net.TCPAddr, bool) {
	tc, ok := c.(*net.TCPConn)
	if !ok {
		return nil, false
	}
	addr, ok := tc.LocalAddr().(*net.TCPAddr)
	return addr, ok
}
