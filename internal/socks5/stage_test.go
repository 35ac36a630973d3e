package socks5

import (
	"io"
	"net"
	"testing"
)

// runStage feeds input to stage on the server end of a pipe and returns what
// the server wrote back before closing. With hangup set the client closes
// after writing and no reply is collected.
func runStage(t *testing.T, input []byte, hangup bool, stage func(net.Conn) error) ([]byte, error) {
	t.Helper()

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	errc := make(chan error, 1)
	go func() {
		err := stage(serverConn)
		_ = serverConn.Close()
		errc <- err
	}()

	go func() {
		_, _ = clientConn.Write(input)
		if hangup {
			_ = clientConn.Close()
		}
	}()

	var reply []byte
	if !hangup {
		var err error
		reply, err = io.ReadAll(clientConn)
		if err != nil {
			t.Fatalf("read reply: %v", err)
		}
	}
	return reply, <-errc
}
