// Package socks5 implements the server side of the SOCKS5 subset served by
// socksrelay, plus a small client used for upstream SOCKS5 proxies and tests.
//
// The server side is split into the stages of a connection: ServerNegotiate
// handles the greeting and always selects "no authentication",
// ServerReadRequest decodes and validates a CONNECT request, and Connect dials
// the requested destination and reports the outcome. Each stage writes at
// most one reply and returns an error matching one of the sentinel errors in
// errors.go.
//
// Wire encoding of replies and the client-side handshake reuse the
// primitives in github.com/txthinking/socks5.
package socks5
