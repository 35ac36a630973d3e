// Package relay pumps bytes between two established connections.
//
// It is protocol-agnostic: the SOCKS5, HTTP CONNECT and transparent proxy
// front-ends each negotiate their own way to a connected pair and then hand
// it to Start or CopyBidirectional.
package relay
