package conn

import (
	"errors"
	"net"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Accept returns the next connection from ln. Failures that clear up on their
// own, such as running out of file descriptors, are logged and retried with
// backoff; anything else, including a closed listener, is returned.
func Accept(ln net.Listener, log zerolog.Logger) (net.Conn, error) {
	var delay time.Duration
	for {
		c, err := ln.Accept()
		if err == nil {
			return c, nil
		}
		if !retryable(err) {
			return nil, err
		}

		delay = min(max(2*delay, minAcceptDelay), maxAcceptDelay)
		log.Warn().Err(err).Dur("retry_in", delay).Msg("accept failed")
		time.Sleep(delay)
	}
}

func retryable(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	for _, errno := range []syscall.Errno{
		syscall.EMFILE,
		syscall.ENFILE,
		syscall.ENOBUFS,
		syscall.ENOMEM,
		syscall.ECONNABORTED,
		syscall.ECONNRESET,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
