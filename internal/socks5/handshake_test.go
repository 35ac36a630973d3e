package socks5

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"
)

func TestServerNegotiate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		greeting []byte
		hangup   bool
		want     []byte
		wantErr  error
	}{
		{name: "no auth offered", greeting: []byte{0x05, 0x01, 0x00}, want: []byte{0x05, 0x00}},
		{name: "only userpass offered", greeting: []byte{0x05, 0x01, 0x02}, want: []byte{0x05, 0x00}},
		{name: "several methods", greeting: []byte{0x05, 0x03, 0x00, 0x01, 0x02}, want: []byte{0x05, 0x00}},
		{name: "empty method list", greeting: []byte{0x05, 0x00}, want: []byte{0x05, 0x00}},
		{name: "socks4", greeting: []byte{0x04, 0x01, 0x00, 0x50}, wantErr: ErrProtocolViolation},
		{name: "http", greeting: []byte("GET / HTTP/1.1\r\n\r\n"), wantErr: ErrProtocolViolation},
		{name: "truncated methods", greeting: []byte{0x05, 0x03, 0x00}, hangup: true, wantErr: ErrProtocolViolation},
		{name: "closed before greeting", greeting: nil, hangup: true, wantErr: ErrIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := runStage(t, tt.greeting, tt.hangup, ServerNegotiate)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got err %v want %v", err, tt.wantErr)
				}
				if len(reply) != 0 {
					t.Fatalf("expected no reply, got % x", reply)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(reply, tt.want) {
				t.Fatalf("got % x want % x", reply, tt.want)
			}
		})
	}
}

func TestServerNegotiateTimeout(t *testing.T) {
	t.Parallel()

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	_ = serverConn.SetDeadline(time.Now().Add(50 * time.Millisecond))

	err := ServerNegotiate(serverConn)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("got %v want %v", err, ErrTimeout)
	}
}
