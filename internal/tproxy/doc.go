// Package tproxy implements transparent proxy listeners for Linux, FreeBSD,
// and OpenBSD.
//
// On Linux, it listens with IP_TRANSPARENT and retrieves the original
// destination of redirected TCP connections via SO_ORIGINAL_DST. This is
// designed for use with iptables/nftables TPROXY or REDIRECT rules.
//
// On FreeBSD (IP_BINDANY) and OpenBSD (SO_BINDANY), the original destination
// is the accepted socket's local address, which IPFW fwd and PF rdr-to
// preserve.
//
// On other platforms IsSupported is false and the listener returns an error.
package tproxy
