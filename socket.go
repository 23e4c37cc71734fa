package forge

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// ListenKind classifies a bind failure so callers (and tests) don't have
// to pattern-match syscall errno strings.
type ListenKind int

const (
	ListenOK ListenKind = iota
	ListenErrPortInUse
	ListenErrPermission
	ListenErrOther
)

// Listen opens a TCP listener on the given port with SO_REUSEADDR set,
// so a restarted server doesn't have to wait out TIME_WAIT on the
// previous instance's socket.
func Listen(port uint16) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return ctrlErr
		},
	}
	ln, err := lc.Listen(context.Background(), "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	return ln, nil
}

// ClassifyListenError maps a Listen error to a ListenKind, for callers
// that need to decide exit codes or retry behavior.
func ClassifyListenError(err error) ListenKind {
	if err == nil {
		return ListenOK
	}
	if errno, ok := underlyingErrno(err); ok {
		switch errno {
		case unix.EADDRINUSE:
			return ListenErrPortInUse
		case unix.EACCES, unix.EPERM:
			return ListenErrPermission
		}
	}
	return ListenErrOther
}

func underlyingErrno(err error) (syscall.Errno, bool) {
	type syscallError interface {
		Unwrap() error
	}
	for err != nil {
		if errno, ok := err.(syscall.Errno); ok {
			return errno, true
		}
		u, ok := err.(syscallError)
		if !ok {
			return 0, false
		}
		err = u.Unwrap()
	}
	return 0, false
}
