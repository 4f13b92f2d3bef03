// Lanlink talks to line-oriented LAN devices over a raw TCP command port.
//
// It finds devices on the local /24 by hardware address, keeps a paced
// command queue in front of the connection, and offers an interactive
// console, one-shot sends and a WebSocket bridge for browser front-ends.
//
// Usage:
//
//	lanlink [command] [flags]
//
// See 'lanlink --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/muurk/lanlink/internal/config"
	"github.com/muurk/lanlink/internal/discovery"
	"github.com/muurk/lanlink/internal/link"
	"github.com/muurk/lanlink/internal/logging"
	"github.com/muurk/lanlink/internal/metrics"
	"github.com/muurk/lanlink/internal/ui"
	"github.com/muurk/lanlink/internal/version"
)

// Shared state, populated by the root PersistentPreRunE
var (
	settings        *config.Settings
	metricsRegistry = prometheus.NewRegistry()
	collectors      = metrics.New(metricsRegistry)
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		logging.Error("Command failed", zap.Error(err))
		logging.Sync()
		printer := ui.NewPrinter(os.Stderr)
		printer.PrintError("Error", err, link.Hint(err))
		os.Exit(1)
	}
	logging.Sync()
}

var rootCmd = &cobra.Command{
	Use:   "lanlink",
	Short: "LAN device command link",
	Long: `A utility for controlling line-oriented devices on the local network.

Devices are reached over a raw TCP command port. They can be addressed by
IP, by hardware (MAC) address, or by a name saved with 'lanlink devices add'.
Commands are framed (default "!7<cmd>\r") and written one at a time with a
minimum spacing between writes.`,
	Version:           version.Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadSettings,
}

// flagKeys maps persistent flag names to setting keys
var flagKeys = map[string]string{
	"log-level":        config.KeyLogLevel,
	"interval":         config.KeyCommandInterval,
	"dial-timeout":     config.KeyDialTimeout,
	"probe-timeout":    config.KeyProbeTimeout,
	"privileged":       config.KeyProbePrivileged,
	"neighbor-command": config.KeyNeighborCommand,
	"oui-db":           config.KeyOUIDatabase,
	"mdns":             config.KeyMDNS,
	"mdns-timeout":     config.KeyMDNSTimeout,
	"prefix":           config.KeyCommandPrefix,
	"terminator":       config.KeyCommandTerminator,
	"listen":           config.KeyBridgeAddr,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "", "Log level (debug, info, warn, error); logs go to stderr")
	flags.Duration("interval", link.DefaultCommandInterval, "Minimum spacing between command writes")
	flags.Duration("dial-timeout", link.DefaultDialTimeout, "Connect timeout")
	flags.Duration("probe-timeout", discovery.DefaultProbeTimeout, "Per-host ICMP probe timeout")
	flags.Bool("privileged", false, "Use raw ICMP sockets for probes (needs root or CAP_NET_RAW)")
	flags.String("neighbor-command", "", `Override the neighbor cache command (e.g. "arp -an")`)
	flags.String("oui-db", "", "Path to an IEEE oui.txt file for vendor names")
	flags.Bool("mdns", false, "Browse mDNS for host names during scans")
	flags.Duration("mdns-timeout", discovery.DefaultMDNSTimeout, "How long to browse mDNS")
	flags.String("prefix", link.DefaultPrefix, "Command prefix")
	flags.String("terminator", `\r`, `Command terminator (\r, \n and \t escapes allowed)`)

	rootCmd.AddCommand(versionCmd)
}

// loadSettings resolves settings from defaults, settings.yaml, LANLINK_*
// and any flags the user set, then initializes logging.
func loadSettings(cmd *cobra.Command, args []string) error {
	v, err := config.NewViper()
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}

	s, err := config.LoadSettings(v)
	if err != nil {
		return err
	}
	settings = s

	if err := logging.Initialize(s.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logging.Debug("Settings loaded",
		zap.String("command", cmd.CommandPath()),
		zap.Duration("interval", s.CommandInterval),
		zap.Duration("probe_timeout", s.ProbeTimeout),
		zap.Bool("privileged", s.ProbePrivileged),
		zap.Strings("neighbor_command", s.NeighborCommand),
	)
	return nil
}

// bindFlags binds every mapped flag present on fs. Only flags the user set
// override the other sources.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lanlink %s, %s\n", version.Full(), version.Platform())
	},
}

// newEngine builds a discovery engine from the loaded settings.
func newEngine() *discovery.Engine {
	logger := logging.GetLogger()

	prober := discovery.NewICMPProber(settings.ProbeTimeout)
	prober.Privileged = settings.ProbePrivileged
	prober.Logger = logger

	cfg := discovery.Config{
		Prober: prober,
		Neighbors: discovery.NewResolver(
			discovery.WithCommand(settings.NeighborCommand),
			discovery.WithResolverLogger(logger),
		),
		Logger:  logger,
		Metrics: collectors,
	}

	if settings.MDNS {
		cfg.Hostnames = discovery.NewMDNSBrowser(settings.MDNSTimeout, logger)
	}
	if settings.OUIDatabase != "" {
		vendors, err := discovery.OpenVendorLookup(settings.OUIDatabase)
		if err != nil {
			logger.Warn("Vendor lookup disabled", zap.String("path", settings.OUIDatabase), zap.Error(err))
		} else {
			cfg.Vendors = vendors
		}
	}

	return discovery.NewEngine(cfg)
}

// newResolver builds a stand-alone neighbor cache resolver.
func newResolver() *discovery.Resolver {
	return discovery.NewResolver(
		discovery.WithCommand(settings.NeighborCommand),
		discovery.WithResolverLogger(logging.GetLogger()),
	)
}

// newManager builds a disconnected connection manager.
func newManager() *link.Manager {
	return link.NewManager(link.Config{
		CommandInterval: settings.CommandInterval,
		DialTimeout:     settings.DialTimeout,
		Logger:          logging.GetLogger(),
		Metrics:         collectors,
	})
}

// framer returns the configured command framing.
func framer() link.Framer {
	return link.Framer{Prefix: settings.CommandPrefix, Terminator: settings.CommandTerminator}
}
