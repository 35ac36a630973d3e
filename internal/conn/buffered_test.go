package conn

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"
)

func TestWithReader(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	if got := WithReader(a, nil); got != a {
		t.Fatal("nil reader should return conn unchanged")
	}
	if got := WithReader(a, bufio.NewReader(a)); got != a {
		t.Fatal("empty reader should return conn unchanged")
	}

	br := bufio.NewReader(strings.NewReader("early"))
	if _, err := br.Peek(1); err != nil {
		t.Fatal(err)
	}
	c := WithReader(a, br)

	buf := make([]byte, 5)
	if _, err := io.ReadFull(c, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "early" {
		t.Fatalf("got %q", buf)
	}
}
