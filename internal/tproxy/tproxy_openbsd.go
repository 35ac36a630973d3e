//go:build openbsd

package tproxy

import "golang.org/x/sys/unix"

// OpenBSD's option is socket-level, unlike FreeBSD's.
func setTransparent(_ string, fd int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_BINDANY, 1)
}
