// Package source defines where datagrams come from.
package source

import "firestige.xyz/mcdetect/internal/core"

// Source yields datagrams one at a time. Receive blocks until the next
// datagram is available; the sequence cannot be rewound.
//
// After Close, Receive returns an error matching net.ErrClosed. A finite
// source returns io.EOF once drained.
type Source interface {
	Receive() (core.Datagram, error)
	Close() error
}
