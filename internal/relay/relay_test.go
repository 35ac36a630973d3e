package relay

import (
	"bytes"
	"context"
	"io"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/die-net/socksrelay/internal/metrics"
	inttest "github.com/die-net/socksrelay/internal/testutil"
)

func randomPayload(n int) []byte {
	r := rand.New(rand.NewPCG(uint64(n), 42))
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(r.UintN(256))
	}
	return b
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session not torn down")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	clientApp, clientProxy := inttest.TCPPair(t)
	upstreamProxy, upstreamApp := inttest.TCPPair(t)

	before := testutil.ToFloat64(metrics.RelayBytes.WithLabelValues(metrics.ClientToUpstream))

	s := Start(zerolog.Nop(), clientProxy, upstreamProxy)

	up := randomPayload(10*BufferSize + 17)
	down := randomPayload(3*BufferSize + 1)

	go func() {
		_, _ = clientApp.Write(up)
		_ = clientApp.CloseWrite()
	}()
	got, err := io.ReadAll(upstreamApp)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, up) {
		t.Fatalf("upstream received %d bytes, want %d identical bytes", len(got), len(up))
	}

	go func() {
		_, _ = upstreamApp.Write(down)
		_ = upstreamApp.CloseWrite()
	}()
	got, err = io.ReadAll(clientApp)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, down) {
		t.Fatalf("client received %d bytes, want %d identical bytes", len(got), len(down))
	}

	waitDone(t, s)
	if err := s.Wait(); err != nil {
		t.Fatal(err)
	}

	stats := s.Stats()
	if stats.ClientToUpstream != int64(len(up)) || stats.UpstreamToClient != int64(len(down)) {
		t.Fatalf("unexpected stats %+v", stats)
	}
	after := testutil.ToFloat64(metrics.RelayBytes.WithLabelValues(metrics.ClientToUpstream))
	if after-before < float64(len(up)) {
		t.Fatalf("relay bytes metric grew by %v, want at least %d", after-before, len(up))
	}
}

func TestSessionDirectionsIndependent(t *testing.T) {
	clientApp, clientProxy := inttest.TCPPair(t)
	upstreamProxy, upstreamApp := inttest.TCPPair(t)

	s := Start(zerolog.Nop(), clientProxy, upstreamProxy)

	// Upstream finishes sending; the client sees EOF.
	if _, err := upstreamApp.Write([]byte("bye")); err != nil {
		t.Fatal(err)
	}
	if err := upstreamApp.CloseWrite(); err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(clientApp)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "bye" {
		t.Fatalf("got %q", got)
	}

	select {
	case <-s.Done():
		t.Fatal("session torn down while client to upstream still open")
	case <-time.After(50 * time.Millisecond):
	}

	// The other direction keeps working.
	inttest.AssertEcho(t, clientApp, io.LimitReader(upstreamApp, 4), []byte("late"))

	if err := clientApp.CloseWrite(); err != nil {
		t.Fatal(err)
	}
	waitDone(t, s)
	if err := s.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestSessionReadErrorStopsOneDirection(t *testing.T) {
	clientApp, clientProxy := inttest.TCPPair(t)
	upstreamProxy, upstreamApp := inttest.TCPPair(t)

	s := Start(zerolog.Nop(), clientProxy, upstreamProxy)

	// Reset the upstream so the proxy side reads ECONNRESET, not EOF.
	if err := upstreamApp.SetLinger(0); err != nil {
		t.Fatal(err)
	}
	if err := upstreamApp.Close(); err != nil {
		t.Fatal(err)
	}

	// The failed direction still half-closes toward the client.
	_ = clientApp.SetReadDeadline(time.Now().Add(5 * time.Second))
	got, err := io.ReadAll(clientApp)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("client got %q", got)
	}

	select {
	case <-s.Done():
		t.Fatal("session torn down while client to upstream still open")
	case <-time.After(50 * time.Millisecond):
	}

	// Client to upstream runs until its own EOF.
	if err := clientApp.CloseWrite(); err != nil {
		t.Fatal(err)
	}
	waitDone(t, s)

	err = s.Wait()
	if err == nil {
		t.Fatal("expected the reset to be reported")
	}
	if !strings.Contains(err.Error(), metrics.UpstreamToClient+" read") {
		t.Fatalf("error does not name the failed direction: %v", err)
	}
}

func TestSessionClose(t *testing.T) {
	_, clientProxy := inttest.TCPPair(t)
	upstreamProxy, _ := inttest.TCPPair(t)

	s := Start(zerolog.Nop(), clientProxy, upstreamProxy)
	s.Close()
	waitDone(t, s)
	if err := s.Wait(); err != nil {
		t.Fatalf("close should stop quietly, got %v", err)
	}
}

func TestCopyBidirectionalCancel(t *testing.T) {
	_, left := inttest.TCPPair(t)
	right, _ := inttest.TCPPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- CopyBidirectional(ctx, zerolog.Nop(), left, right)
	}()

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("CopyBidirectional did not return after cancel")
	}
}

func TestBufferPool(t *testing.T) {
	p := NewBufferPool(BufferSize)
	b := p.Get()
	if len(*b) != BufferSize {
		t.Fatalf("got len %d", len(*b))
	}
	p.Put(b)

	short := (*p.Get())[:10]
	p.Put(&short)
	p.Put(nil)
	for range 4 {
		if got := len(*p.Get()); got != BufferSize {
			t.Fatalf("pool returned a %d-byte buffer", got)
		}
	}
}
