package discovery

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/muurk/lanlink/internal/metrics"
)

// fakeTable is an in-memory neighbor cache.
type fakeTable struct {
	entries map[string]string
	err     error
	calls   atomic.Int32
}

func (f *fakeTable) Table(context.Context) ([]Neighbor, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, &ResolutionError{Command: []string{"arp", "-a"}, Err: f.err}
	}
	var out []Neighbor
	for ip, mac := range f.entries {
		hw, _ := ParseMAC(mac)
		out = append(out, Neighbor{IP: netip.MustParseAddr(ip), MAC: hw})
	}
	return out, nil
}

// reachable answers probes for the listed addresses only.
func reachable(ips ...string) (Prober, *atomic.Int32) {
	up := make(map[netip.Addr]bool)
	for _, ip := range ips {
		up[netip.MustParseAddr(ip)] = true
	}
	var probes atomic.Int32
	return ProberFunc(func(_ context.Context, ip netip.Addr) bool {
		probes.Add(1)
		return up[ip]
	}), &probes
}

// orderedTable is a neighbor cache that lists entries in a fixed order.
type orderedTable []Neighbor

func (o orderedTable) Table(context.Context) ([]Neighbor, error) {
	return o, nil
}

func neighbor(ip, mac string) Neighbor {
	hw, _ := ParseMAC(mac)
	return Neighbor{IP: netip.MustParseAddr(ip), MAC: hw}
}

type fakeVendors map[string]string

func (f fakeVendors) Vendor(mac net.HardwareAddr) string {
	return f[FormatMAC(mac)]
}

type fakeHostnames map[netip.Addr]string

func (f fakeHostnames) Hostnames(context.Context) (map[netip.Addr]string, error) {
	return f, nil
}

var lanInterface = staticInterfaces(Interface{
	Name:  "eth0",
	Up:    true,
	Addrs: []netip.Prefix{netip.MustParsePrefix("10.0.0.42/24")},
})

// simulatedLAN has two reachable devices, one reachable host missing from
// the cache and one stale cache entry that no longer answers.
func simulatedLAN() (*fakeTable, Prober, *atomic.Int32) {
	table := &fakeTable{entries: map[string]string{
		"10.0.0.5":  "AA:BB:CC:DD:EE:01",
		"10.0.0.9":  "aa:bb:cc:dd:ee:02",
		"10.0.0.77": "AA:BB:CC:DD:EE:77",
	}}
	prober, probes := reachable("10.0.0.5", "10.0.0.9", "10.0.0.12")
	return table, prober, probes
}

func pairs(devices []Device) map[string]string {
	out := make(map[string]string, len(devices))
	for _, d := range devices {
		out[d.IP] = d.MAC
	}
	return out
}

func TestEngine_ScanAll(t *testing.T) {
	table, prober, probes := simulatedLAN()
	e := NewEngine(Config{Prober: prober, Neighbors: table, Interfaces: lanInterface, Logger: zap.NewNop()})

	devices, err := e.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll() error = %v", err)
	}

	want := map[string]string{
		"10.0.0.5": "AA:BB:CC:DD:EE:01",
		"10.0.0.9": "AA:BB:CC:DD:EE:02",
	}
	got := pairs(devices)
	if len(got) != len(want) || len(devices) != len(want) {
		t.Fatalf("ScanAll() = %v, want %v", got, want)
	}
	for ip, mac := range want {
		if got[ip] != mac {
			t.Errorf("device %s MAC = %q, want %q", ip, got[ip], mac)
		}
	}

	if n := probes.Load(); n != 254 {
		t.Errorf("probes = %d, want 254", n)
	}
	if n := table.calls.Load(); n != 1 {
		t.Errorf("neighbor cache listed %d times, want 1", n)
	}
}

func TestEngine_ScanAllNothingReachable(t *testing.T) {
	table := &fakeTable{entries: map[string]string{"10.0.0.5": "AA:BB:CC:DD:EE:01"}}
	prober, _ := reachable()
	e := NewEngine(Config{Prober: prober, Neighbors: table, Interfaces: lanInterface, Logger: zap.NewNop()})

	devices, err := e.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll() error = %v", err)
	}
	if devices == nil || len(devices) != 0 {
		t.Errorf("ScanAll() = %v, want empty non-nil result", devices)
	}
}

func TestEngine_ScanFor(t *testing.T) {
	table, prober, _ := simulatedLAN()
	e := NewEngine(Config{Prober: prober, Neighbors: table, Interfaces: lanInterface, Logger: zap.NewNop()})

	tests := []struct {
		name string
		mac  string
		want []Device
	}{
		{
			name: "present",
			mac:  "AA:BB:CC:DD:EE:02",
			want: []Device{{IP: "10.0.0.9", MAC: "AA:BB:CC:DD:EE:02"}},
		},
		{
			name: "case and separator insensitive",
			mac:  "aa-bb-cc-dd-ee-02",
			want: []Device{{IP: "10.0.0.9", MAC: "AA:BB:CC:DD:EE:02"}},
		},
		{
			name: "absent",
			mac:  "AA:BB:CC:DD:EE:99",
			want: nil,
		},
		{
			name: "cached but unreachable",
			mac:  "AA:BB:CC:DD:EE:77",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ScanFor(context.Background(), tt.mac)
			if err != nil {
				t.Fatalf("ScanFor() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ScanFor() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i].IP != tt.want[i].IP || got[i].MAC != tt.want[i].MAC {
					t.Errorf("ScanFor()[%d] = %s/%s, want %s/%s",
						i, got[i].IP, got[i].MAC, tt.want[i].IP, tt.want[i].MAC)
				}
			}
		})
	}
}

func TestEngine_ScanForInvalidMAC(t *testing.T) {
	prober, probes := reachable()
	e := NewEngine(Config{Prober: prober, Neighbors: &fakeTable{}, Interfaces: lanInterface, Logger: zap.NewNop()})

	if _, err := e.ScanFor(context.Background(), "AA:BB"); !errors.Is(err, ErrInvalidMAC) {
		t.Errorf("ScanFor() error = %v, want ErrInvalidMAC", err)
	}
	if probes.Load() != 0 {
		t.Error("an invalid target must not start a sweep")
	}
}

func TestEngine_NoInterface(t *testing.T) {
	prober, probes := reachable()
	loopbackOnly := staticInterfaces(Interface{
		Name: "lo", Up: true, Loopback: true,
		Addrs: []netip.Prefix{netip.MustParsePrefix("127.0.0.1/8")},
	})
	e := NewEngine(Config{Prober: prober, Neighbors: &fakeTable{}, Interfaces: loopbackOnly, Logger: zap.NewNop()})

	if _, err := e.ScanAll(context.Background()); !errors.Is(err, ErrNoInterface) {
		t.Errorf("ScanAll() error = %v, want ErrNoInterface", err)
	}
	if _, err := e.ScanFor(context.Background(), "AA:BB:CC:DD:EE:01"); !errors.Is(err, ErrNoInterface) {
		t.Errorf("ScanFor() error = %v, want ErrNoInterface", err)
	}
	if probes.Load() != 0 {
		t.Errorf("probes = %d, want 0", probes.Load())
	}
}

func TestEngine_ResolverFailureIsAbsorbed(t *testing.T) {
	prober, _ := reachable("10.0.0.5")
	table := &fakeTable{err: exec.ErrNotFound}
	e := NewEngine(Config{Prober: prober, Neighbors: table, Interfaces: lanInterface, Logger: zap.NewNop()})

	devices, err := e.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll() error = %v, want nil", err)
	}
	if len(devices) != 0 {
		t.Errorf("ScanAll() = %v, want empty", devices)
	}
}

func TestEngine_ProbesRunConcurrently(t *testing.T) {
	var (
		mu      sync.Mutex
		started int
		all     = make(chan struct{})
	)
	prober := ProberFunc(func(ctx context.Context, ip netip.Addr) bool {
		mu.Lock()
		started++
		if started == 254 {
			close(all)
		}
		mu.Unlock()

		// Every probe blocks until all 254 are in flight.
		select {
		case <-all:
			return true
		case <-time.After(5 * time.Second):
			return false
		}
	})

	table := &fakeTable{entries: map[string]string{"10.0.0.5": "AA:BB:CC:DD:EE:01"}}
	e := NewEngine(Config{Prober: prober, Neighbors: table, Interfaces: lanInterface, Logger: zap.NewNop()})

	done := make(chan []Device, 1)
	go func() {
		devices, _ := e.ScanAll(context.Background())
		done <- devices
	}()

	select {
	case devices := <-done:
		if len(devices) != 1 {
			t.Errorf("ScanAll() = %v, want one device", devices)
		}
	case <-time.After(4 * time.Second):
		t.Fatal("sweep did not issue all probes concurrently")
	}
}

func TestEngine_Enrichment(t *testing.T) {
	table, prober, _ := simulatedLAN()
	e := NewEngine(Config{
		Prober:     prober,
		Neighbors:  table,
		Interfaces: lanInterface,
		Hostnames:  fakeHostnames{netip.MustParseAddr("10.0.0.5"): "kitchen-amp"},
		Vendors:    fakeVendors{"AA:BB:CC:DD:EE:02": "Onkyo Corporation"},
		Logger:     zap.NewNop(),
	})

	devices, err := e.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("ScanAll() = %v, want 2 devices", devices)
	}

	// Results are ordered by address
	if devices[0].IP != "10.0.0.5" || devices[0].Hostname != "kitchen-amp" || devices[0].Vendor != "" {
		t.Errorf("devices[0] = %+v", devices[0])
	}
	if devices[1].IP != "10.0.0.9" || devices[1].Vendor != "Onkyo Corporation" || devices[1].Hostname != "" {
		t.Errorf("devices[1] = %+v", devices[1])
	}
	if s := devices[1].String(); s != "10.0.0.9 (AA:BB:CC:DD:EE:02) [Onkyo Corporation]" {
		t.Errorf("String() = %q", s)
	}
}

func TestEngine_Locate(t *testing.T) {
	t.Run("from neighbor cache", func(t *testing.T) {
		table, prober, probes := simulatedLAN()
		e := NewEngine(Config{Prober: prober, Neighbors: table, Interfaces: lanInterface, Logger: zap.NewNop()})

		d, err := e.Locate(context.Background(), "aa:bb:cc:dd:ee:01")
		if err != nil {
			t.Fatalf("Locate() error = %v", err)
		}
		if d == nil || d.IP != "10.0.0.5" {
			t.Fatalf("Locate() = %v, want 10.0.0.5", d)
		}
		if probes.Load() != 1 {
			t.Errorf("probes = %d, want 1 (no sweep)", probes.Load())
		}
	})

	t.Run("stale cache entry falls back to sweep", func(t *testing.T) {
		table, prober, probes := simulatedLAN()
		e := NewEngine(Config{Prober: prober, Neighbors: table, Interfaces: lanInterface, Logger: zap.NewNop()})

		d, err := e.Locate(context.Background(), "AA:BB:CC:DD:EE:77")
		if err != nil {
			t.Fatalf("Locate() error = %v", err)
		}
		if d != nil {
			t.Errorf("Locate() = %v, want nil", d)
		}
		if probes.Load() != 255 {
			t.Errorf("probes = %d, want 255", probes.Load())
		}
	})

	t.Run("stale entry before a live one", func(t *testing.T) {
		table := orderedTable{
			neighbor("10.0.0.3", "AA:BB:CC:DD:EE:01"),
			neighbor("10.0.0.30", "aa-bb-cc-dd-ee-01"),
		}
		prober, probes := reachable("10.0.0.30")
		e := NewEngine(Config{Prober: prober, Neighbors: table, Interfaces: lanInterface, Logger: zap.NewNop()})

		d, err := e.Locate(context.Background(), "AA:BB:CC:DD:EE:01")
		if err != nil {
			t.Fatalf("Locate() error = %v", err)
		}
		if d == nil || d.IP != "10.0.0.30" {
			t.Fatalf("Locate() = %v, want 10.0.0.30", d)
		}
		if probes.Load() != 2 {
			t.Errorf("probes = %d, want 2 (no sweep)", probes.Load())
		}
	})

	t.Run("not cached", func(t *testing.T) {
		table := &fakeTable{entries: map[string]string{}}
		prober, probes := reachable("10.0.0.9")
		e := NewEngine(Config{Prober: prober, Neighbors: table, Interfaces: lanInterface, Logger: zap.NewNop()})

		d, err := e.Locate(context.Background(), "AA:BB:CC:DD:EE:02")
		if err != nil || d != nil {
			t.Errorf("Locate() = %v, %v, want nil, nil", d, err)
		}
		if probes.Load() != 254 {
			t.Errorf("probes = %d, want 254", probes.Load())
		}
	})
}

func TestEngine_RecordsSweepMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	table, prober, _ := simulatedLAN()
	e := NewEngine(Config{
		Prober: prober, Neighbors: table, Interfaces: lanInterface,
		Logger: zap.NewNop(), Metrics: metrics.New(reg),
	})

	if _, err := e.ScanAll(context.Background()); err != nil {
		t.Fatalf("ScanAll() error = %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	values := make(map[string]float64)
	for _, mf := range families {
		m := mf.GetMetric()[0]
		switch {
		case m.GetGauge() != nil:
			values[mf.GetName()] = m.GetGauge().GetValue()
		case m.GetCounter() != nil:
			values[mf.GetName()] = m.GetCounter().GetValue()
		}
	}

	if values["lanlink_discovery_sweeps_total"] != 1 {
		t.Errorf("sweeps_total = %v, want 1", values["lanlink_discovery_sweeps_total"])
	}
	if values["lanlink_discovery_hosts_alive"] != 3 {
		t.Errorf("hosts_alive = %v, want 3", values["lanlink_discovery_hosts_alive"])
	}
	if values["lanlink_discovery_hosts_resolved"] != 2 {
		t.Errorf("hosts_resolved = %v, want 2", values["lanlink_discovery_hosts_resolved"])
	}
}
