//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package multicast

import "syscall"

// reuseAddrControl is a no-op where x/sys/unix socket options are unavailable;
// the socket is bound exclusively.
func reuseAddrControl(network, address string, c syscall.RawConn) error {
	return nil
}
