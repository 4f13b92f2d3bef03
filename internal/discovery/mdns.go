package discovery

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/lanlink/internal/logging"
)

const (
	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultMDNSTimeout is how long a hostname browse listens for answers
	DefaultMDNSTimeout = 2 * time.Second
)

// DefaultServiceTypes are the service types browsed for host names. Most
// hosts announce at least one of them.
var DefaultServiceTypes = []string{
	"_workstation._tcp",
	"_device-info._tcp",
	"_http._tcp",
	"_airplay._tcp",
	"_googlecast._tcp",
}

// MDNSBrowser collects host names announced over multicast DNS.
type MDNSBrowser struct {
	// Timeout is how long to listen for announcements
	Timeout time.Duration

	// Services are the service types to browse
	Services []string

	logger *zap.Logger
}

// NewMDNSBrowser creates a browser with default settings
func NewMDNSBrowser(timeout time.Duration, logger *zap.Logger) *MDNSBrowser {
	if timeout <= 0 {
		timeout = DefaultMDNSTimeout
	}
	return &MDNSBrowser{
		Timeout:  timeout,
		Services: DefaultServiceTypes,
		logger:   logging.Or(logger).Named("mdns"),
	}
}

// Hostnames browses every configured service type until Timeout and returns
// the host names seen, keyed by IPv4 address.
func (b *MDNSBrowser) Hostnames(ctx context.Context) (map[netip.Addr]string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()

	var (
		mu    sync.Mutex
		names = make(map[netip.Addr]string)
	)

	for _, service := range b.Services {
		// One resolver per service: a resolver closes its sockets when its
		// browse context ends.
		resolver, err := zeroconf.NewResolver(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
		}

		entries := make(chan *zeroconf.ServiceEntry)
		go func() {
			for entry := range entries {
				mu.Lock()
				for ip, host := range hostnamesFromEntry(entry) {
					if _, seen := names[ip]; !seen {
						names[ip] = host
					}
				}
				mu.Unlock()
			}
		}()

		if err := resolver.Browse(ctx, service, ServiceDomain, entries); err != nil {
			b.logger.Debug("mDNS browse failed", zap.String("service", service), zap.Error(err))
		}
	}

	<-ctx.Done()

	// Late entries may still arrive while the resolvers shut down.
	mu.Lock()
	out := make(map[netip.Addr]string, len(names))
	for ip, host := range names {
		out[ip] = host
	}
	mu.Unlock()

	b.logger.Debug("mDNS browse finished", zap.Int("hosts", len(out)))
	return out, nil
}

// hostnamesFromEntry maps each IPv4 address of a service entry to its host
// name, without the ".local." suffix.
func hostnamesFromEntry(entry *zeroconf.ServiceEntry) map[netip.Addr]string {
	if entry == nil {
		return nil
	}
	host := strings.TrimSuffix(strings.TrimSuffix(entry.HostName, "."), ".local")
	if host == "" {
		return nil
	}

	out := make(map[netip.Addr]string, len(entry.AddrIPv4))
	for _, ip := range entry.AddrIPv4 {
		addr, ok := netip.AddrFromSlice(ip)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		if addr.Is4() {
			out[addr] = host
		}
	}
	return out
}
