package pcapfile

import (
	"errors"
	"io"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	src, dst         string
	srcPort, dstPort uint16
	payload          []byte
	at               time.Time
}

func udpFrame(t *testing.T, f frame) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x01, 0x00, 0x5e, 0x7f, 0x0a, 0x0a},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      32,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP(f.src).To4(),
		DstIP:    net.ParseIP(f.dst).To4(),
	}
	udp := &layers.UDP{SrcPort: layers.UDPPort(f.srcPort), DstPort: layers.UDPPort(f.dstPort)}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(f.payload)))
	return buf.Bytes()
}

func writeCapture(t *testing.T, frames []frame, extra ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.pcap")
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	w := pcapgo.NewWriter(out)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	for _, f := range frames {
		data := udpFrame(t, f)
		ci := gopacket.CaptureInfo{Timestamp: f.at, CaptureLength: len(data), Length: len(data)}
		require.NoError(t, w.WritePacket(ci, data))
	}
	for _, raw := range extra {
		ci := gopacket.CaptureInfo{Timestamp: time.Now(), CaptureLength: len(raw), Length: len(raw)}
		require.NoError(t, w.WritePacket(ci, raw))
	}
	return path
}

func TestReplayFiltersAndOrders(t *testing.T) {
	base := time.Date(2025, 10, 28, 14, 0, 0, 0, time.UTC)
	frames := []frame{
		{"10.0.0.5", "239.255.10.10", 40000, 6000, []byte("first"), base},
		{"10.0.0.5", "239.255.10.10", 40000, 7000, []byte("wrong-port"), base.Add(time.Millisecond)},
		{"10.0.0.6", "239.1.1.1", 40001, 6000, []byte("wrong-group"), base.Add(2 * time.Millisecond)},
		{"10.0.0.7", "239.255.10.10", 40002, 6000, []byte("second"), base.Add(3 * time.Millisecond)},
	}
	// A non-IP frame (ARP ethertype, junk body) must be skipped.
	arp := append([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 2, 0, 0, 0, 0, 1, 0x08, 0x06}, make([]byte, 28)...)

	src, err := Open(writeCapture(t, frames, arp), Filter{
		Group: netip.MustParseAddr("239.255.10.10"),
		Port:  6000,
	})
	require.NoError(t, err)
	defer src.Close()

	d, err := src.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), d.Payload)
	assert.Equal(t, netip.MustParseAddrPort("10.0.0.5:40000"), d.Source)
	assert.True(t, d.ReceivedAt.Equal(base))

	d, err = src.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), d.Payload)
	assert.Equal(t, netip.MustParseAddrPort("10.0.0.7:40002"), d.Source)

	_, err = src.Receive()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, uint64(3), src.Skipped())
}

func TestReplayEmptyFilterMatchesAll(t *testing.T) {
	now := time.Now().Truncate(time.Microsecond)
	frames := []frame{
		{"10.0.0.5", "239.255.10.10", 1, 6000, []byte("a"), now},
		{"10.0.0.5", "239.1.1.1", 1, 7000, []byte("b"), now},
	}
	src, err := Open(writeCapture(t, frames), Filter{})
	require.NoError(t, err)
	defer src.Close()

	var got []string
	for {
		d, err := src.Receive()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, string(d.Payload))
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestReceiveAfterClose(t *testing.T) {
	src, err := Open(writeCapture(t, []frame{{"10.0.0.5", "239.255.10.10", 1, 6000, []byte("a"), time.Now()}}), Filter{})
	require.NoError(t, err)
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	_, err = src.Receive()
	assert.ErrorIs(t, err, net.ErrClosed)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.pcap"), Filter{})
	assert.Error(t, err)

	junk := filepath.Join(t.TempDir(), "junk.pcap")
	require.NoError(t, os.WriteFile(junk, []byte("definitely not a capture file"), 0644))
	_, err = Open(junk, Filter{})
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.pcap")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	_, err = Open(empty, Filter{})
	assert.Error(t, err)
}

func TestReplayTruncatedCapture(t *testing.T) {
	now := time.Now().Truncate(time.Microsecond)
	path := writeCapture(t, []frame{
		{"10.0.0.5", "239.255.10.10", 1, 6000, []byte("whole"), now},
		{"10.0.0.5", "239.255.10.10", 1, 6000, []byte("cut-short"), now},
	})
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-4))

	src, err := Open(path, Filter{})
	require.NoError(t, err)
	defer src.Close()

	d, err := src.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte("whole"), d.Payload)
	assert.False(t, src.Truncated())

	_, err = src.Receive()
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, src.Truncated())
}

func TestReplayCleanEndIsNotTruncated(t *testing.T) {
	src, err := Open(writeCapture(t, []frame{{"10.0.0.5", "239.255.10.10", 1, 6000, []byte("a"), time.Now()}}), Filter{})
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Receive()
	require.NoError(t, err)
	_, err = src.Receive()
	assert.ErrorIs(t, err, io.EOF)
	assert.False(t, src.Truncated())
}
