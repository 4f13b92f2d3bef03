package discovery

import (
	"bufio"
	"net"
	"net/netip"
	"strings"
)

// Neighbor is one IP ↔ MAC association from the OS neighbor cache.
type Neighbor struct {
	IP  netip.Addr
	MAC net.HardwareAddr
}

// NeighborCacheParser knows how to list one OS family's neighbor cache and
// how to read that listing's grammar.
type NeighborCacheParser interface {
	// Name identifies the grammar in logs
	Name() string
	// Command returns the program and arguments that print the cache
	Command() []string
	// Parse extracts usable IPv4 neighbors from the command output
	Parse(output string) []Neighbor
}

// ParserFor selects the grammar for an OS family (a runtime.GOOS value).
func ParserFor(goos string) NeighborCacheParser {
	switch goos {
	case "windows":
		return HyphenParser{}
	case "linux", "android":
		return ColonParser{}
	default:
		// darwin, ios and the BSDs share the parenthesised arp -an format
		return ParenParser{}
	}
}

// ColonParser reads Linux listings where the address comes first and the
// hardware address is colon-delimited:
//
//	192.168.1.1 dev eth0 lladdr aa:bb:cc:dd:ee:ff REACHABLE
//	192.168.1.1  ether  aa:bb:cc:dd:ee:ff  C  eth0
type ColonParser struct{}

func (ColonParser) Name() string { return "colon" }

func (ColonParser) Command() []string { return []string{"ip", "-4", "neigh", "show"} }

func (ColonParser) Parse(output string) []Neighbor {
	var out []Neighbor
	scanLines(output, func(fields []string) {
		ip, ok := parseIPv4(fields[0])
		if !ok {
			return
		}
		for _, f := range fields[1:] {
			if !strings.Contains(f, ":") {
				continue
			}
			if hw, err := ParseMAC(f); err == nil && isUsableMAC(hw) {
				out = append(out, Neighbor{IP: ip, MAC: hw})
				return
			}
		}
	})
	return out
}

// HyphenParser reads Windows "arp -a" listings:
//
//	Interface: 192.168.1.100 --- 0x4
//	  Internet Address      Physical Address      Type
//	  192.168.1.1           aa-bb-cc-dd-ee-ff     dynamic
type HyphenParser struct{}

func (HyphenParser) Name() string { return "hyphen" }

func (HyphenParser) Command() []string { return []string{"arp", "-a"} }

func (HyphenParser) Parse(output string) []Neighbor {
	var out []Neighbor
	scanLines(output, func(fields []string) {
		if len(fields) < 2 {
			return
		}
		ip, ok := parseIPv4(fields[0])
		if !ok || !strings.Contains(fields[1], "-") {
			return
		}
		if hw, err := ParseMAC(fields[1]); err == nil && isUsableMAC(hw) {
			out = append(out, Neighbor{IP: ip, MAC: hw})
		}
	})
	return out
}

// ParenParser reads macOS/BSD "arp -an" listings:
//
//	? (192.168.1.1) at aa:bb:cc:dd:ee:ff on en0 ifscope [ethernet]
//	? (192.168.1.3) at (incomplete) on en0 ifscope [ethernet]
type ParenParser struct{}

func (ParenParser) Name() string { return "paren" }

func (ParenParser) Command() []string { return []string{"arp", "-an"} }

func (ParenParser) Parse(output string) []Neighbor {
	var out []Neighbor
	scanLines(output, func(fields []string) {
		// ? (ip) at mac ...
		if len(fields) < 4 || fields[2] != "at" {
			return
		}
		addr := strings.TrimSuffix(strings.TrimPrefix(fields[1], "("), ")")
		ip, ok := parseIPv4(addr)
		if !ok {
			return
		}
		if hw, err := ParseMAC(fields[3]); err == nil && isUsableMAC(hw) {
			out = append(out, Neighbor{IP: ip, MAC: hw})
		}
	})
	return out
}

func scanLines(output string, fn func(fields []string)) {
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		fn(fields)
	}
}

func parseIPv4(s string) (netip.Addr, bool) {
	ip, err := netip.ParseAddr(s)
	if err != nil || !ip.Is4() {
		return netip.Addr{}, false
	}
	return ip, true
}
