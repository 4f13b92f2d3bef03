package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Registry is the saved-device file. Devices are keyed by a user-chosen name
// so "lanlink connect amp" can find a device by hardware address.
type Registry struct {
	Version int                `yaml:"version"`
	Devices map[string]*Device `yaml:"devices,omitempty"`

	path string
}

// Device is one saved device.
type Device struct {
	MAC      string    `yaml:"mac"`                 // Hardware address, AA:BB:CC:DD:EE:FF
	LastIP   string    `yaml:"last_ip,omitempty"`   // Last known IP address
	Port     int       `yaml:"port"`                // TCP command port
	Nickname string    `yaml:"nickname,omitempty"`  // Display name
	LastSeen time.Time `yaml:"last_seen,omitempty"` // Last successful locate/connect
}

// NewRegistry creates an empty Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Devices: make(map[string]*Device),
	}
}

// Path returns the file the registry was loaded from, or "" for an in-memory
// registry.
func (r *Registry) Path() string {
	return r.path
}

// GetDevice retrieves a device by name.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(name string) *Device {
	return r.Devices[name]
}

// AddDevice saves d under name, replacing any existing entry.
func (r *Registry) AddDevice(name string, d *Device) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("device name must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		return fmt.Errorf("invalid port %d for device %q", d.Port, name)
	}
	r.Devices[name] = d
	return nil
}

// RemoveDevice deletes a device. It reports whether the device existed.
func (r *Registry) RemoveDevice(name string) bool {
	if _, ok := r.Devices[name]; !ok {
		return false
	}
	delete(r.Devices, name)
	return true
}

// Names returns the saved device names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Devices))
	for name := range r.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UpdateDeviceLastSeen records where and when a device was last reached.
func (r *Registry) UpdateDeviceLastSeen(name, ip string) {
	if d := r.Devices[name]; d != nil {
		d.LastIP = ip
		d.LastSeen = time.Now()
	}
}
