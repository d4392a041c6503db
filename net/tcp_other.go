//go:build !unix

package net

import (
	"errors"
	"net"
	"os"
	"time"
)

// pollWindow is how long a "non-blocking" operation may wait on platforms
// without raw socket access.
const pollWindow = time.Millisecond

func (t *tcpChannel) readNonBlocking(p []byte) (int, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(pollWindow)); err != nil {
		return 0, err
	}
	n, err := t.conn.Read(p)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		if n > 0 {
			return n, nil
		}
		return 0, ErrWouldBlock
	}
	return n, err
}

func (p *TCPProvider) acceptNonBlocking() (*net.TCPConn, error) {
	if err := p.ln.SetDeadline(time.Now().Add(pollWindow)); err != nil {
		return nil, err
	}
	c, err := p.ln.AcceptTCP()
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return nil, ErrWouldBlock
	}
	return c, err
}
