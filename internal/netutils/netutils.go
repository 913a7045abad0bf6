package netutils

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// LocalIPv4Addrs returns the IPv4 addresses of the local interfaces that are
// up, excluding loopback addresses.
func LocalIPv4Addrs() ([]netip.Addr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var res []netip.Addr
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip, ok := netip.AddrFromSlice(ipNet.IP)
			if !ok {
				continue
			}
			ip = ip.Unmap()
			if ip.Is4() && !ip.IsLoopback() {
				res = append(res, ip)
			}
		}
	}
	return res, nil
}

// ParsePort parses a UDP port number. Zero is not a valid port.
func ParsePort(s string) (uint16, error) {
	port, err := strconv.ParseUint(s, 10, 16)
	if err != nil || port == 0 {
		return 0, fmt.Errorf("`%s` is not a valid port", s)
	}
	return uint16(port), nil
}

// ResolveAddrPort resolves host (an IP address or a hostname) and port into
// an address suitable for dialing a UDP peer.
func ResolveAddrPort(host, port string) (netip.AddrPort, error) {
	p, err := ParsePort(port)
	if err != nil {
		return netip.AddrPort{}, err
	}

	// Remove the IPv6 zone from the host, if present. The zone prevents
	// ParseAddr from correctly parsing the IP address.
	if zoneIndex := strings.Index(host, "%"); zoneIndex != -1 {
		host = host[:zoneIndex]
	}

	if ip, err := netip.ParseAddr(host); err == nil {
		return netip.AddrPortFrom(ip.Unmap(), p), nil
	}

	udpAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, port))
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("unable to resolve `%s`: %w", host, err)
	}
	ap := udpAddr.AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
}
