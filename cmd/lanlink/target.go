package main

import (
	"fmt"

	"github.com/muurk/lanlink/internal/config"
	"github.com/muurk/lanlink/internal/discovery"
)

// target is a device command argument after registry and MAC lookup. Host is
// empty until a hardware address has been located.
type target struct {
	Name   string // saved device name, "" for ad hoc targets
	MAC    string
	LastIP string
	Host   string
	Port   int
}

// Label names the target for display.
func (t target) Label() string {
	switch {
	case t.Name != "":
		return t.Name
	case t.MAC != "":
		return t.MAC
	default:
		return t.Host
	}
}

// resolveTarget interprets arg as a saved device name, then a hardware
// address, then a host. A non-zero port overrides the saved one.
func resolveTarget(arg string, reg *config.Registry, port int) (target, error) {
	var t target

	if d := reg.GetDevice(arg); d != nil {
		mac := discovery.NormalizeMAC(d.MAC)
		if mac == "" {
			return target{}, fmt.Errorf("saved device %q has an invalid hardware address %q", arg, d.MAC)
		}
		t = target{Name: arg, MAC: mac, LastIP: d.LastIP, Port: d.Port}
	} else if mac := discovery.NormalizeMAC(arg); mac != "" {
		t = target{MAC: mac}
	} else {
		t = target{Host: arg}
	}

	if port != 0 {
		t.Port = port
	}
	if t.Port == 0 {
		return target{}, fmt.Errorf("no port for %s; pass --port", t.Label())
	}
	return t, nil
}
