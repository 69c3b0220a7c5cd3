// Package core defines core types with zero external dependencies.
package core

import (
	"net/netip"
	"time"
)

// Datagram is one UDP payload as handed over by a source.
// Payload is owned by the datagram; sources copy it out of their read buffers.
type Datagram struct {
	Payload    []byte
	Source     netip.AddrPort // Sender address; zero value if unknown
	ReceivedAt time.Time      // Local receive time, or capture time for replayed traffic
}

// Len returns the payload length in bytes.
func (d Datagram) Len() int {
	return len(d.Payload)
}
