package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os/exec"
	"runtime"

	"go.uber.org/zap"

	"github.com/muurk/lanlink/internal/logging"
)

// CommandRunner runs an OS command and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec. A non-zero exit status still yields
// the captured output: arp exits 1 on an empty cache on some systems.
type ExecRunner struct{}

// Run implements CommandRunner
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, nil
	}
	return out, err
}

// Resolver is the address resolver: it lists the OS neighbor cache and
// answers IP → MAC and MAC → IP queries from that listing. Each query lists the
// cache once.
type Resolver struct {
	parser  NeighborCacheParser
	runner  CommandRunner
	command []string
	logger  *zap.Logger
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithParser overrides the grammar selected from runtime.GOOS.
func WithParser(p NeighborCacheParser) ResolverOption {
	return func(r *Resolver) { r.parser = p }
}

// WithRunner replaces the command runner.
func WithRunner(cr CommandRunner) ResolverOption {
	return func(r *Resolver) { r.runner = cr }
}

// WithCommand overrides the listing command. The output must still follow the
// selected parser's grammar.
func WithCommand(argv []string) ResolverOption {
	return func(r *Resolver) {
		if len(argv) > 0 {
			r.command = argv
		}
	}
}

// WithResolverLogger sets the logger.
func WithResolverLogger(l *zap.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a Resolver for the running OS family.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		parser: ParserFor(runtime.GOOS),
		runner: ExecRunner{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.command == nil {
		r.command = r.parser.Command()
	}
	r.logger = logging.Or(r.logger).Named("resolver")
	return r
}

// Table lists the neighbor cache and returns every usable IPv4 entry.
func (r *Resolver) Table(ctx context.Context) ([]Neighbor, error) {
	out, err := r.runner.Run(ctx, r.command[0], r.command[1:]...)
	if err != nil {
		return nil, &ResolutionError{Command: r.command, Err: err}
	}

	neighbors := r.parser.Parse(string(out))
	r.logger.Debug("Neighbor cache listed",
		zap.String("grammar", r.parser.Name()),
		zap.Int("entries", len(neighbors)),
	)
	return neighbors, nil
}

// ResolveMACForIP returns the hardware address cached for ip, or "" when the
// cache has no entry for it.
func (r *Resolver) ResolveMACForIP(ctx context.Context, ip string) (string, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() {
		return "", fmt.Errorf("invalid IPv4 address %q", ip)
	}

	table, err := r.Table(ctx)
	if err != nil {
		return "", err
	}
	for _, n := range table {
		if n.IP == addr {
			return FormatMAC(n.MAC), nil
		}
	}
	return "", nil
}

// ResolveIPForMAC returns the IPv4 address cached for mac, or "" when no entry
// matches. Matching ignores case and separator style.
func (r *Resolver) ResolveIPForMAC(ctx context.Context, mac string) (string, error) {
	want, err := ParseMAC(mac)
	if err != nil {
		return "", err
	}

	table, err := r.Table(ctx)
	if err != nil {
		return "", err
	}
	for _, n := range table {
		if n.MAC.String() == want.String() {
			return n.IP.String(), nil
		}
	}
	return "", nil
}
