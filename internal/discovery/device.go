package discovery

import (
	"encoding/hex"
	"fmt"
	"net"
	"strings"
	"time"
)

// Device is one responsive host with a resolved hardware address.
type Device struct {
	// IP is the IPv4 address (e.g., "192.168.1.40")
	IP string

	// MAC is the hardware address, upper-case and colon-delimited
	// (e.g., "AA:BB:CC:DD:EE:01")
	MAC string

	// Vendor is the OUI manufacturer name, when a vendor database is configured
	Vendor string

	// Hostname is the mDNS host name, when mDNS enrichment is enabled
	Hostname string

	// DiscoveredAt is when the sweep that found the device completed
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	s := fmt.Sprintf("%s (%s)", d.IP, d.MAC)
	if d.Hostname != "" {
		s += " " + d.Hostname
	}
	if d.Vendor != "" {
		s += " [" + d.Vendor + "]"
	}
	return s
}

// ParseMAC parses a 6-byte hardware address written with ':' or '-'
// separators. Groups may be one or two hex digits, as BSD arp prints them
// ("0:1a:2b:3:4:5").
func ParseMAC(s string) (net.HardwareAddr, error) {
	s = strings.TrimSpace(s)
	sep := ":"
	if strings.Contains(s, "-") {
		sep = "-"
	}

	groups := strings.Split(s, sep)
	if len(groups) != 6 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
	}

	hw := make(net.HardwareAddr, 6)
	for i, g := range groups {
		if len(g) == 0 || len(g) > 2 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
		}
		if len(g) == 1 {
			g = "0" + g
		}
		b, err := hex.DecodeString(g)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
		}
		hw[i] = b[0]
	}
	return hw, nil
}

// FormatMAC renders a hardware address as upper-case colon-delimited pairs.
func FormatMAC(hw net.HardwareAddr) string {
	return strings.ToUpper(hw.String())
}

// NormalizeMAC parses s and returns its canonical form, or "" if s is not a
// hardware address.
func NormalizeMAC(s string) string {
	hw, err := ParseMAC(s)
	if err != nil {
		return ""
	}
	return FormatMAC(hw)
}

// isUsableMAC filters placeholder, broadcast and multicast entries out of
// neighbor tables.
func isUsableMAC(hw net.HardwareAddr) bool {
	allZero, allOnes := true, true
	for _, b := range hw {
		if b != 0x00 {
			allZero = false
		}
		if b != 0xff {
			allOnes = false
		}
	}
	if allZero || allOnes {
		return false
	}
	// Group bit set: multicast (01-00-5e-..., 33-33-...)
	return hw[0]&0x01 == 0
}
