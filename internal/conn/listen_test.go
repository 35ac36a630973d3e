package conn

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestListenTCPAppliesKeepAlive(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ln, err := ListenTCP(ctx, "tcp", "127.0.0.1:0", net.KeepAliveConfig{Enable: true, Idle: 30 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	if _, ok := ln.(*KeepAliveListener); !ok {
		t.Fatalf("got %T", ln)
	}

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	sc, ok := <-accepted
	if !ok {
		t.Fatal("accept failed")
	}
	defer sc.Close()
	if _, ok := sc.(*net.TCPConn); !ok {
		t.Fatalf("accepted %T", sc)
	}
}

func TestListenTCPBadAddress(t *testing.T) {
	if _, err := ListenTCP(context.Background(), "tcp", "127.0.0.1:-1", net.KeepAliveConfig{}); err == nil {
		t.Fatal("expected error")
	}
}
