// Package multicast implements the multicast channel source: one UDP socket
// bound to a port and joined to an IPv4 group.
package multicast

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"golang.org/x/net/ipv4"

	"firestige.xyz/mcdetect/internal/core"
	"firestige.xyz/mcdetect/internal/log"
)

// MaxDatagramSize bounds a single read. Larger datagrams are truncated by the
// transport.
const MaxDatagramSize = 2048

// BindMode selects the local address the socket binds to.
type BindMode int

const (
	// BindInterface binds to the interface address (wildcard if none given).
	BindInterface BindMode = iota
	// BindAny always binds to the wildcard address.
	BindAny
	// BindGroup binds to the group address, filtering out other traffic to the port.
	BindGroup
)

// ParseBindMode maps the config names iface/any/group to a BindMode.
func ParseBindMode(s string) (BindMode, error) {
	switch s {
	case "", "iface":
		return BindInterface, nil
	case "any":
		return BindAny, nil
	case "group":
		return BindGroup, nil
	default:
		return BindInterface, fmt.Errorf("unknown bind mode %q", s)
	}
}

// Options configures Open.
type Options struct {
	Group      netip.Addr // IPv4 multicast group
	Port       int
	Interface  string // "", "0.0.0.0", a local IPv4 address, or an interface name
	Bind       BindMode
	ReadBuffer int // SO_RCVBUF bytes; 0 keeps the OS default
}

// Channel is a joined multicast socket. It is meant to be read by a single
// goroutine; Close may be called from any goroutine to unblock Receive.
type Channel struct {
	conn  *net.UDPConn
	pconn *ipv4.PacketConn
	ifi   *net.Interface
	group *net.UDPAddr
	buf   []byte

	closeOnce sync.Once
	closeErr  error
}

// Open binds a UDP socket with address reuse enabled, then joins the group on
// the selected interface. Multicast loopback is enabled best-effort. Any
// failure closes the socket and returns an error matching core.ErrChannelOpen.
func Open(ctx context.Context, opts Options) (*Channel, error) {
	if !opts.Group.Is4() || !opts.Group.IsMulticast() {
		return nil, fmt.Errorf("%w: group %s is not an IPv4 multicast address", core.ErrChannelOpen, opts.Group)
	}
	if opts.Port <= 0 || opts.Port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", core.ErrChannelOpen, opts.Port)
	}

	ifaceAddr, ifi, err := resolveInterface(opts.Interface)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrChannelOpen, err)
	}

	bindAddr := ifaceAddr
	switch opts.Bind {
	case BindAny:
		bindAddr = netip.IPv4Unspecified()
	case BindGroup:
		bindAddr = opts.Group
	}
	laddr := net.JoinHostPort(bindAddr.String(), strconv.Itoa(opts.Port))

	// Bind first, join second: the join order is not portable the other way round.
	lc := net.ListenConfig{Control: reuseAddrControl}
	pc, err := lc.ListenPacket(ctx, "udp4", laddr)
	if err != nil {
		return nil, fmt.Errorf("%w: bind %s: %w", core.ErrChannelOpen, laddr, err)
	}
	conn := pc.(*net.UDPConn)

	logger := log.GetLogger().WithFields(log.Fields{"group": opts.Group, "bind": laddr})
	if opts.ReadBuffer > 0 {
		if err := conn.SetReadBuffer(opts.ReadBuffer); err != nil {
			logger.WithError(err).Warnf("failed to set UDP receive buffer to %d bytes", opts.ReadBuffer)
		}
	}

	p := ipv4.NewPacketConn(conn)
	group := &net.UDPAddr{IP: net.IP(opts.Group.AsSlice())}
	if err := p.JoinGroup(ifi, group); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: join group %s on %s: %w", core.ErrChannelOpen, opts.Group, ifaceName(ifi), err)
	}

	// Not every platform lets a receiving socket toggle this; ignore failures.
	_ = p.SetMulticastLoopback(true)

	logger.WithField("iface", ifaceName(ifi)).Debug("joined multicast group")

	return &Channel{
		conn:  conn,
		pconn: p,
		ifi:   ifi,
		group: group,
		buf:   make([]byte, MaxDatagramSize),
	}, nil
}

// Receive blocks until a datagram arrives, with no timeout. After Close it
// returns an error matching net.ErrClosed.
func (c *Channel) Receive() (core.Datagram, error) {
	n, from, err := c.conn.ReadFromUDPAddrPort(c.buf)
	if err != nil {
		return core.Datagram{}, err
	}
	payload := make([]byte, n)
	copy(payload, c.buf[:n])
	return core.Datagram{
		Payload:    payload,
		Source:     netip.AddrPortFrom(from.Addr().Unmap(), from.Port()),
		ReceivedAt: time.Now(),
	}, nil
}

// LocalAddr returns the bound address.
func (c *Channel) LocalAddr() netip.AddrPort {
	if ua, ok := c.conn.LocalAddr().(*net.UDPAddr); ok {
		return ua.AddrPort()
	}
	return netip.AddrPort{}
}

// Close leaves the group and closes the socket. UDP has no shutdown
// handshake, so this is immediate. Safe to call more than once.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		_ = c.pconn.LeaveGroup(c.ifi, c.group)
		c.closeErr = c.conn.Close()
		if errors.Is(c.closeErr, net.ErrClosed) {
			c.closeErr = nil
		}
	})
	return c.closeErr
}

func ifaceName(ifi *net.Interface) string {
	if ifi == nil {
		return "default"
	}
	return ifi.Name
}
