//go:build unix

package transport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// controlReuseAddrPort sets SO_REUSEADDR and (where the OS exposes
// it) SO_REUSEPORT on the raw socket before bind, so multiple
// processes on one host can each bind Port and receive their own copy
// of every broadcast datagram, and so a restarted node doesn't hit
// "address already in use". SO_BROADCAST is also set here since the
// same socket is used for both sending and receiving.
func controlReuseAddrPort(network, address string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if opErr != nil {
			return
		}
		opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
		if opErr != nil {
			return
		}
		opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return opErr
}
