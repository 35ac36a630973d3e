package socks5

import (
	"bytes"
	"context"
	"errors"
	"net"
	"syscall"
	"testing"
	"time"
)

type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

func (f dialFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

func TestConnect(t *testing.T) {
	t.Parallel()

	success := []byte{0x05, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	unreachable := []byte{0x05, 0x04, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

	refused := dialFunc(func(context.Context, string, string) (net.Conn, error) {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
	})
	hang := dialFunc(func(ctx context.Context, _, _ string) (net.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	tests := []struct {
		name      string
		dialer    Dialer
		timeout   time.Duration
		wantReply []byte
		wantErrs  []error
	}{
		{name: "refused", dialer: refused, wantReply: unreachable, wantErrs: []error{ErrUpstreamUnreachable}},
		{name: "timeout", dialer: hang, timeout: 20 * time.Millisecond, wantReply: unreachable, wantErrs: []error{ErrUpstreamUnreachable, ErrTimeout}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &Request{Version: Version, Command: CmdConnect, AddrType: ATYPIPv4, Dst: IPv4Addr(127, 0, 0, 1, 1)}
			reply, err := runStage(t, nil, false, func(c net.Conn) error {
				up, err := Connect(context.Background(), c, req, tt.dialer, tt.timeout)
				if up != nil {
					t.Error("unexpected upstream conn")
				}
				return err
			})
			if !bytes.Equal(reply, tt.wantReply) {
				t.Fatalf("reply % x want % x", reply, tt.wantReply)
			}
			for _, want := range tt.wantErrs {
				if !errors.Is(err, want) {
					t.Fatalf("got err %v, want %v", err, want)
				}
			}
		})
	}

	t.Run("success", func(t *testing.T) {
		upClient, upServer := net.Pipe()
		defer upServer.Close()

		var gotAddr string
		d := dialFunc(func(_ context.Context, network, address string) (net.Conn, error) {
			gotAddr = network + " " + address
			return upClient, nil
		})

		dom, err := DomainAddr("example.com", 443)
		if err != nil {
			t.Fatal(err)
		}
		req := &Request{Version: Version, Command: CmdConnect, AddrType: ATYPDomain, Dst: dom}

		reply, err := runStage(t, nil, false, func(c net.Conn) error {
			up, err := Connect(context.Background(), c, req, d, time.Second)
			if up != upClient {
				t.Error("expected dialed conn")
			}
			return err
		})
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(reply, success) {
			t.Fatalf("reply % x want % x", reply, success)
		}
		if gotAddr != "tcp example.com:443" {
			t.Fatalf("dialed %q", gotAddr)
		}
	})
}
