package discovery

import (
	"net"
	"net/netip"
)

// Interface is the subset of a network interface used to pick a scan range.
type Interface struct {
	Name     string
	Up       bool
	Loopback bool
	Addrs    []netip.Prefix
}

// InterfaceSource lists the host's network interfaces in system order.
type InterfaceSource interface {
	Interfaces() ([]Interface, error)
}

// InterfaceSourceFunc adapts a function to the InterfaceSource interface
type InterfaceSourceFunc func() ([]Interface, error)

// Interfaces implements InterfaceSource
func (f InterfaceSourceFunc) Interfaces() ([]Interface, error) {
	return f()
}

// SystemInterfaces reads interfaces from the operating system.
type SystemInterfaces struct{}

// Interfaces implements InterfaceSource
func (SystemInterfaces) Interfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	out := make([]Interface, 0, len(ifaces))
	for _, ifi := range ifaces {
		addrs, err := ifi.Addrs()
		if err != nil {
			continue
		}
		iface := Interface{
			Name:     ifi.Name,
			Up:       ifi.Flags&net.FlagUp != 0,
			Loopback: ifi.Flags&net.FlagLoopback != 0,
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			addr, ok := netip.AddrFromSlice(ipnet.IP)
			if !ok {
				continue
			}
			ones, _ := ipnet.Mask.Size()
			iface.Addrs = append(iface.Addrs, netip.PrefixFrom(addr.Unmap(), ones))
		}
		out = append(out, iface)
	}
	return out, nil
}

// Subnet is the scan target: the first three octets of the local address,
// with the last octet enumerated over 1-254.
type Subnet struct {
	Interface string
	Local     netip.Addr
}

// LocalSubnet derives the scan target from the first up, non-loopback
// interface carrying an IPv4 address. It returns ErrNoInterface when none
// qualifies.
func LocalSubnet(src InterfaceSource) (Subnet, error) {
	ifaces, err := src.Interfaces()
	if err != nil {
		return Subnet{}, err
	}

	for _, ifi := range ifaces {
		if !ifi.Up || ifi.Loopback {
			continue
		}
		for _, p := range ifi.Addrs {
			a := p.Addr().Unmap()
			if a.Is4() && !a.IsLoopback() {
				return Subnet{Interface: ifi.Name, Local: a}, nil
			}
		}
	}
	return Subnet{}, ErrNoInterface
}

// Hosts returns the 254 candidate addresses x.y.z.1 through x.y.z.254.
func (s Subnet) Hosts() []netip.Addr {
	base := s.Local.As4()
	hosts := make([]netip.Addr, 0, 254)
	for i := 1; i <= 254; i++ {
		base[3] = byte(i)
		hosts = append(hosts, netip.AddrFrom4(base))
	}
	return hosts
}

// String returns the range in CIDR notation for display
func (s Subnet) String() string {
	p, _ := s.Local.Prefix(24)
	return p.String()
}
