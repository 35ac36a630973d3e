// Package proxy implements the client-facing front-ends of socksrelay.
//
// SOCKS5Server runs the SOCKS5 negotiation pipeline on each accepted
// connection and HTTPProxyServer answers HTTP CONNECT requests. Both obtain an
// upstream connection through a dialer.Dialer and hand the pair to the relay
// engine.
package proxy
