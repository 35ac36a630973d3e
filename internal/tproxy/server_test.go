package tproxy

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/die-net/socksrelay/internal/dialer"
	"github.com/die-net/socksrelay/internal/proxy"
	"github.com/die-net/socksrelay/internal/testutil"
)

func startServer(t *testing.T, ctx context.Context, originalDst func(net.Conn) (*net.TCPAddr, bool)) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	srv := NewServer(ctx, proxy.Config{
		DialTimeout: 2 * time.Second,
		Dialer:      dialer.NewDirectDialer(dialer.Config{DialTimeout: 2 * time.Second}),
		Log:         zerolog.Nop(),
	})
	srv.originalDst = originalDst
	go func() { _ = srv.Serve(ln) }()
	return ln.Addr().String()
}

func TestServerRelaysToOriginalDst(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	echo := testutil.StartEchoTCPServer(t, ctx)
	defer echo.Close()

	addr := startServer(t, ctx, func(net.Conn) (*net.TCPAddr, bool) {
		return echo.Addr().(*net.TCPAddr), true
	})

	c, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	_ = c.SetDeadline(time.Now().Add(5 * time.Second))

	testutil.AssertEcho(t, c, c, []byte("redirected"))
}

func TestServerDropsWithoutOriginalDst(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	addr := startServer(t, ctx, func(net.Conn) (*net.TCPAddr, bool) {
		return nil, false
	})

	c, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	_ = c.SetDeadline(time.Now().Add(5 * time.Second))

	got, _ := io.ReadAll(c)
	if len(got) != 0 {
		t.Fatalf("expected connection closed without data, got %q", got)
	}
}

func TestOriginalDstRejectsNonTCP(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	if _, ok := OriginalDst(a); ok {
		t.Fatal("expected no original destination for a pipe")
	}
}
