// Package dialer provides the outbound connect primitive used by socksrelay.
//
// Dialers implement a small interface (DialContext) and are used by every
// front-end to reach the destination a client asked for, either directly or
// via an upstream proxy (HTTP CONNECT or SOCKS5).
package dialer
