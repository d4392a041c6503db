//go:build unix

package net

import (
	"io"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

func (t *tcpChannel) readNonBlocking(p []byte) (int, error) {
	var (
		n    int
		rerr error
	)
	// 回调返回 true: 只尝试一次, 不等待可读
	err := t.raw.Read(func(fd uintptr) bool {
		n, rerr = unix.Read(int(fd), p)
		return true
	})
	if err != nil {
		return 0, err
	}
	switch {
	case rerr == unix.EAGAIN || rerr == unix.EWOULDBLOCK || rerr == unix.EINTR:
		return 0, ErrWouldBlock
	case rerr != nil:
		return 0, os.NewSyscallError("read", rerr)
	case n == 0 && len(p) > 0:
		return 0, io.EOF
	}
	return n, nil
}

func (p *TCPProvider) acceptNonBlocking() (*net.TCPConn, error) {
	var (
		nfd  int
		aerr error
	)
	// 监听 socket 的 RawConn 只支持 Control; fd 本身已是非阻塞
	err := p.raw.Control(func(fd uintptr) {
		nfd, _, aerr = unix.Accept(int(fd))
	})
	if err != nil {
		return nil, err
	}
	if aerr != nil {
		// EAGAIN 和 EWOULDBLOCK 在 linux 上是同一个值
		if aerr == unix.EAGAIN || aerr == unix.EWOULDBLOCK || aerr == unix.EINTR || aerr == unix.ECONNABORTED {
			return nil, ErrWouldBlock
		}
		return nil, os.NewSyscallError("accept", aerr)
	}

	unix.CloseOnExec(nfd)
	if err := unix.SetNonblock(nfd, true); err != nil {
		_ = unix.Close(nfd)
		return nil, os.NewSyscallError("setnonblock", err)
	}
	f := os.NewFile(uintptr(nfd), "tcp-accepted")
	defer f.Close()
	c, err := net.FileConn(f)
	if err != nil {
		return nil, err
	}
	tc, ok := c.(*net.TCPConn)
	if !ok {
		_ = c.Close()
		return nil, os.NewSyscallError("accept", unix.EPROTOTYPE)
	}
	return tc, nil
}
