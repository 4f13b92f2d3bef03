package discovery

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/lanlink/internal/logging"
	"github.com/muurk/lanlink/internal/metrics"
)

// NeighborTable lists IP ↔ MAC associations. *Resolver implements it.
type NeighborTable interface {
	Table(ctx context.Context) ([]Neighbor, error)
}

// HostnameSource maps IPv4 addresses to host names. *MDNSBrowser implements it.
type HostnameSource interface {
	Hostnames(ctx context.Context) (map[netip.Addr]string, error)
}

// VendorSource names the manufacturer of a hardware address, or "".
// *VendorLookup implements it.
type VendorSource interface {
	Vendor(mac net.HardwareAddr) string
}

// Config holds Engine dependencies. Prober, Neighbors and Interfaces default
// to the system implementations; Hostnames and Vendors are optional.
type Config struct {
	Prober     Prober
	Neighbors  NeighborTable
	Interfaces InterfaceSource
	Hostnames  HostnameSource
	Vendors    VendorSource

	Logger  *zap.Logger
	Metrics *metrics.Collectors
}

// Engine is the network discovery engine. Every scan is computed fresh; no
// results are kept between calls.
type Engine struct {
	config Config
	logger *zap.Logger
}

// NewEngine creates an Engine
func NewEngine(config Config) *Engine {
	logger := logging.Or(config.Logger).Named("discovery")
	if config.Prober == nil {
		config.Prober = NewICMPProber(DefaultProbeTimeout)
	}
	if config.Neighbors == nil {
		config.Neighbors = NewResolver(WithResolverLogger(logger))
	}
	if config.Interfaces == nil {
		config.Interfaces = SystemInterfaces{}
	}
	return &Engine{config: config, logger: logger}
}

// ScanAll sweeps the local /24 and returns every host that answered a probe
// and has a hardware address in the neighbor cache. Hosts that answered but
// did not resolve are left out.
func (e *Engine) ScanAll(ctx context.Context) ([]Device, error) {
	return e.scan(ctx, nil)
}

// ScanFor sweeps the local /24 and returns the hosts whose hardware address
// equals mac, ignoring case and separator style. The result is empty, not an
// error, when no host matches.
func (e *Engine) ScanFor(ctx context.Context, mac string) ([]Device, error) {
	want, err := ParseMAC(mac)
	if err != nil {
		return nil, err
	}
	return e.scan(ctx, want)
}

// Locate finds the device with the given hardware address. Every neighbor
// cache entry for the address is probed and the first that answers is
// returned without sweeping; otherwise Locate falls back to ScanFor. It returns nil when the device is not found.
func (e *Engine) Locate(ctx context.Context, mac string) (*Device, error) {
	want, err := ParseMAC(mac)
	if err != nil {
		return nil, err
	}

	table, err := e.config.Neighbors.Table(ctx)
	if err != nil {
		e.logger.Debug("Neighbor cache unavailable, sweeping", zap.Error(err))
	}
	for _, n := range table {
		if n.MAC.String() != want.String() {
			continue
		}
		if e.config.Prober.Probe(ctx, n.IP) {
			d := e.device(n.IP, n.MAC, nil)
			e.logger.Debug("Located device from neighbor cache", zap.String("ip", d.IP))
			return &d, nil
		}
		e.logger.Debug("Cached address did not answer", zap.String("ip", n.IP.String()))
	}

	found, err := e.scan(ctx, want)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return &found[0], nil
}

func (e *Engine) scan(ctx context.Context, target net.HardwareAddr) ([]Device, error) {
	subnet, err := LocalSubnet(e.config.Interfaces)
	if err != nil {
		return nil, fmt.Errorf("failed to determine scan range: %w", err)
	}

	start := time.Now()
	e.logger.Debug("Sweep started",
		zap.String("subnet", subnet.String()),
		zap.String("interface", subnet.Interface),
	)

	var hostnames map[netip.Addr]string
	alive := e.sweep(ctx, subnet.Hosts(), func(g *errgroup.Group) {
		if e.config.Hostnames == nil {
			return
		}
		g.Go(func() error {
			names, err := e.config.Hostnames.Hostnames(ctx)
			if err != nil {
				e.logger.Debug("Hostname lookup failed", zap.Error(err))
				return nil
			}
			hostnames = names
			return nil
		})
	})

	devices := make([]Device, 0, len(alive))
	if len(alive) > 0 {
		devices = e.join(ctx, alive, target, hostnames)
	}

	e.config.Metrics.SweepCompleted(time.Since(start), len(alive), len(devices))
	e.logger.Debug("Sweep completed",
		zap.Int("alive", len(alive)),
		zap.Int("resolved", len(devices)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return devices, nil
}

// sweep probes every host concurrently and waits for all probes to settle.
// extra may add goroutines that run alongside the probes.
func (e *Engine) sweep(ctx context.Context, hosts []netip.Addr, extra func(g *errgroup.Group)) []netip.Addr {
	var (
		g     errgroup.Group
		mu    sync.Mutex
		alive []netip.Addr
	)

	for _, ip := range hosts {
		g.Go(func() error {
			if e.config.Prober.Probe(ctx, ip) {
				mu.Lock()
				alive = append(alive, ip)
				mu.Unlock()
			}
			return nil
		})
	}
	if extra != nil {
		extra(&g)
	}
	_ = g.Wait()
	return alive
}

// join lists the neighbor cache once and pairs it with the responsive hosts.
func (e *Engine) join(ctx context.Context, alive []netip.Addr, target net.HardwareAddr, hostnames map[netip.Addr]string) []Device {
	table, err := e.config.Neighbors.Table(ctx)
	if err != nil {
		e.logger.Warn("Neighbor cache unavailable, no addresses resolved", zap.Error(err))
		return []Device{}
	}

	macs := make(map[netip.Addr]net.HardwareAddr, len(table))
	for _, n := range table {
		macs[n.IP] = n.MAC
	}

	devices := make([]Device, 0, len(alive))
	for _, ip := range alive {
		mac, ok := macs[ip]
		if !ok {
			continue
		}
		if target != nil && mac.String() != target.String() {
			continue
		}
		devices = append(devices, e.device(ip, mac, hostnames))
	}

	sort.Slice(devices, func(i, j int) bool {
		a, _ := netip.ParseAddr(devices[i].IP)
		b, _ := netip.ParseAddr(devices[j].IP)
		return a.Less(b)
	})
	return devices
}

func (e *Engine) device(ip netip.Addr, mac net.HardwareAddr, hostnames map[netip.Addr]string) Device {
	d := Device{
		IP:           ip.String(),
		MAC:          FormatMAC(mac),
		Hostname:     hostnames[ip],
		DiscoveredAt: time.Now(),
	}
	if e.config.Vendors != nil {
		d.Vendor = e.config.Vendors.Vendor(mac)
	}
	return d
}
