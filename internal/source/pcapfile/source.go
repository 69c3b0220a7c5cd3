// Package pcapfile replays multicast datagrams from a capture file.
package pcapfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/mcdetect/internal/core"
	"firestige.xyz/mcdetect/internal/log"
)

// Filter selects which UDP datagrams are replayed. Zero fields match anything.
type Filter struct {
	Group netip.Addr // Destination address
	Port  uint16     // Destination port
}

func (f Filter) match(dst netip.Addr, dstPort uint16) bool {
	if f.Group.IsValid() && f.Group != dst {
		return false
	}
	if f.Port != 0 && f.Port != dstPort {
		return false
	}
	return true
}

// packetReader is satisfied by both pcapgo.Reader and pcapgo.NgReader.
type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// pcapngMagic is the section header block type that starts a pcapng file.
var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// Source reads a pcap or pcapng file and yields matching UDP payloads in
// capture order. IP fragments are not reassembled.
type Source struct {
	path   string
	file   *os.File
	reader packetReader
	filter Filter

	mu     sync.Mutex
	closed bool

	skipped   uint64
	truncated bool
}

// Open opens path and prepares it for replay.
func Open(path string, filter Filter) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file %s: %w", path, err)
	}

	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read capture header %s: %w", path, err)
	}

	var r packetReader
	if bytes.Equal(magic, pcapngMagic) {
		r, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		r, err = pcapgo.NewReader(br)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to parse capture file %s: %w", path, err)
	}

	return &Source{path: path, file: f, reader: r, filter: filter}, nil
}

// Receive returns the next matching datagram, io.EOF at the end of the file,
// or an error matching net.ErrClosed after Close.
func (s *Source) Receive() (core.Datagram, error) {
	for {
		if s.isClosed() {
			return core.Datagram{}, net.ErrClosed
		}
		data, ci, err := s.reader.ReadPacketData()
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				// The last record was cut short, usually by a capture that
				// was still being written. Everything before it is kept.
				s.truncated = true
				log.GetLogger().WithField("file", s.path).Warn("capture file ends mid-packet, stopping replay")
				return core.Datagram{}, io.EOF
			}
			if errors.Is(err, io.EOF) {
				return core.Datagram{}, io.EOF
			}
			if s.isClosed() {
				return core.Datagram{}, net.ErrClosed
			}
			return core.Datagram{}, fmt.Errorf("failed to read packet: %w", err)
		}

		d, ok := s.extract(data, ci)
		if !ok {
			s.skipped++
			continue
		}
		return d, nil
	}
}

// extract pulls the UDP payload out of one captured frame.
func (s *Source) extract(data []byte, ci gopacket.CaptureInfo) (core.Datagram, bool) {
	pkt := gopacket.NewPacket(data, s.reader.LinkType(), gopacket.DecodeOptions{Lazy: true, NoCopy: true})

	ip4, _ := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	udp, _ := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
	if ip4 == nil || udp == nil {
		if errLayer := pkt.ErrorLayer(); errLayer != nil && log.GetLogger().IsTraceEnabled() {
			log.GetLogger().WithError(errLayer.Error()).Trace("skipping undecodable frame")
		}
		return core.Datagram{}, false
	}

	dst, _ := netip.AddrFromSlice(ip4.DstIP.To4())
	if !s.filter.match(dst, uint16(udp.DstPort)) {
		return core.Datagram{}, false
	}
	src, _ := netip.AddrFromSlice(ip4.SrcIP.To4())

	payload := make([]byte, len(udp.Payload))
	copy(payload, udp.Payload)
	return core.Datagram{
		Payload:    payload,
		Source:     netip.AddrPortFrom(src, uint16(udp.SrcPort)),
		ReceivedAt: ci.Timestamp,
	}, true
}

// Skipped reports how many frames did not match the filter or were not UDP/IPv4.
func (s *Source) Skipped() uint64 {
	return s.skipped
}

// Truncated reports whether replay stopped at a partial trailing record.
func (s *Source) Truncated() bool {
	return s.truncated
}

// Close releases the file. Safe to call more than once.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

func (s *Source) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
