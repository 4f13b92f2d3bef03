package discovery

import (
	"context"
	"net/netip"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"go.uber.org/zap"

	"github.com/muurk/lanlink/internal/logging"
)

// DefaultProbeTimeout bounds one reachability probe
const DefaultProbeTimeout = time.Second

// Prober reports whether a host answers a reachability check. Any failure is
// reported as unreachable.
type Prober interface {
	Probe(ctx context.Context, ip netip.Addr) bool
}

// ProberFunc adapts a function to the Prober interface
type ProberFunc func(ctx context.Context, ip netip.Addr) bool

// Probe implements Prober
func (f ProberFunc) Probe(ctx context.Context, ip netip.Addr) bool {
	return f(ctx, ip)
}

// ICMPProber sends a single ICMP echo per probe.
type ICMPProber struct {
	Timeout time.Duration

	// Privileged selects raw ICMP sockets instead of unprivileged UDP pings.
	// Windows only supports the privileged mode.
	Privileged bool

	Logger *zap.Logger
}

// NewICMPProber creates a prober with the platform's default socket mode.
func NewICMPProber(timeout time.Duration) *ICMPProber {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &ICMPProber{
		Timeout:    timeout,
		Privileged: runtime.GOOS == "windows",
	}
}

// Probe implements Prober
func (p *ICMPProber) Probe(ctx context.Context, ip netip.Addr) bool {
	pinger, err := probing.NewPinger(ip.String())
	if err != nil {
		p.logFailure(ip, err)
		return false
	}

	pinger.Count = 1
	pinger.Timeout = p.Timeout
	pinger.SetPrivileged(p.Privileged)

	// Run pinger in a goroutine for context cancellation.
	done := make(chan error, 1)
	go func() {
		done <- pinger.Run()
	}()

	select {
	case err := <-done:
		if err != nil {
			p.logFailure(ip, err)
			return false
		}
		return pinger.Statistics().PacketsRecv > 0
	case <-ctx.Done():
		pinger.Stop()
		<-done
		return false
	}
}

// logFailure records why a probe could not run.
func (p *ICMPProber) logFailure(ip netip.Addr, err error) {
	logging.Or(p.Logger).Debug("Probe failed",
		zap.String("ip", ip.String()),
		zap.Bool("privileged", p.Privileged),
		zap.Error(err),
	)
}
