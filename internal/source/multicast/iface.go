package multicast

import (
	"fmt"
	"net"
	"net/netip"

	"firestige.xyz/mcdetect/internal/core"
)

// resolveInterface turns the user's interface choice into the address to bind
// and the interface to join on. An empty or unspecified address selects the
// system default (nil interface). An IPv4 address must belong to a local
// interface; anything else is looked up as an interface name, which binds the
// wildcard address.
func resolveInterface(spec string) (netip.Addr, *net.Interface, error) {
	if spec == "" {
		return netip.IPv4Unspecified(), nil, nil
	}

	if addr, err := netip.ParseAddr(spec); err == nil {
		addr = addr.Unmap()
		if !addr.Is4() {
			return netip.Addr{}, nil, fmt.Errorf("%w: %s is not an IPv4 address", core.ErrInterfaceNotFound, spec)
		}
		if addr.IsUnspecified() {
			return addr, nil, nil
		}
		ifi, err := interfaceByAddr(addr)
		if err != nil {
			return netip.Addr{}, nil, err
		}
		return addr, ifi, nil
	}

	ifi, err := net.InterfaceByName(spec)
	if err != nil {
		return netip.Addr{}, nil, fmt.Errorf("%w: %s: %v", core.ErrInterfaceNotFound, spec, err)
	}
	return netip.IPv4Unspecified(), ifi, nil
}

// interfaceByAddr finds the local interface carrying addr.
func interfaceByAddr(addr netip.Addr) (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}
	for i := range ifaces {
		addrs, err := ifaces[i].Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if ip, ok := netip.AddrFromSlice(ipNet.IP); ok && ip.Unmap() == addr {
				return &ifaces[i], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no interface has address %s", core.ErrInterfaceNotFound, addr)
}
