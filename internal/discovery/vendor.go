package discovery

import (
	"fmt"
	"net"

	"github.com/klauspost/oui"
)

// VendorLookup names hardware manufacturers from an IEEE OUI database file
// (the oui.txt published by the IEEE registration authority).
type VendorLookup struct {
	db oui.OuiDB
}

// OpenVendorLookup loads the OUI database at path into memory.
func OpenVendorLookup(path string) (*VendorLookup, error) {
	db, err := oui.OpenStaticFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open OUI database: %w", err)
	}
	return &VendorLookup{db: db}, nil
}

// Vendor returns the manufacturer for mac, or "" when the prefix is unknown.
func (v *VendorLookup) Vendor(mac net.HardwareAddr) string {
	if v == nil || v.db == nil {
		return ""
	}
	entry, err := v.db.Query(mac.String())
	if err != nil {
		// oui.ErrNotFound for unregistered prefixes
		return ""
	}
	return entry.Manufacturer
}
