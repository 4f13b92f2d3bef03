package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/lanlink/internal/bridge"
	"github.com/muurk/lanlink/internal/config"
	"github.com/muurk/lanlink/internal/discovery"
	"github.com/muurk/lanlink/internal/link"
	"github.com/muurk/lanlink/internal/logging"
	"github.com/muurk/lanlink/internal/ui"
)

// Command flags
var (
	targetPort int
	scanJSON   bool
	sendRaw    bool
	sendWait   time.Duration
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(bridgeCmd)
}

// scanCmd lists every responsive host on the local subnet
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the local subnet for devices",
	Long: `Probe every host of the local /24 with ICMP echo and list the hosts that
answered and have a neighbor cache entry.

ICMP probes use unprivileged datagram sockets by default. On Linux this needs
net.ipv4.ping_group_range to include your group; otherwise pass --privileged
and run as root.`,
	Example: `  # Scan and show a table
  lanlink scan

  # Machine-readable output with mDNS host names
  lanlink scan --mdns --json`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print results as JSON")
}

func runScan(cmd *cobra.Command, args []string) error {
	engine := newEngine()

	var devices []discovery.Device
	err := ui.RunWithSpinner(cmd.Context(), "Scanning local subnet", func(ctx context.Context) error {
		var err error
		devices, err = engine.ScanAll(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if scanJSON {
		return writeJSON(devices)
	}

	printer := ui.NewPrinter(nil)
	if len(devices) == 0 {
		printer.Println("No devices found.")
		printer.Println("\nTroubleshooting:")
		printer.Println("  - Check that this machine is on the device's network")
		printer.Println("  - Unprivileged ICMP may be disabled; try --privileged as root")
		printer.Println("  - Some devices ignore ping; connect by IP instead")
		return nil
	}
	printer.PrintSuccess(fmt.Sprintf("Found %d device(s)", len(devices)))
	printer.PrintDevices(devices)
	return nil
}

// deviceJSON is the --json shape of a discovered device
type deviceJSON struct {
	IP           string    `json:"ip"`
	MAC          string    `json:"mac"`
	Vendor       string    `json:"vendor,omitempty"`
	Hostname     string    `json:"hostname,omitempty"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

func writeJSON(devices []discovery.Device) error {
	out := make([]deviceJSON, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceJSON{
			IP:           d.IP,
			MAC:          d.MAC,
			Vendor:       d.Vendor,
			Hostname:     d.Hostname,
			DiscoveredAt: d.DiscoveredAt,
		})
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// findCmd sweeps for one hardware address
var findCmd = &cobra.Command{
	Use:   "find <mac>",
	Short: "Find a device by hardware address",
	Long: `Sweep the local subnet and report the host whose hardware address matches.
Letter case and ':' or '-' separators are ignored.`,
	Example: `  lanlink find aa:bb:cc:dd:ee:01
  lanlink find AA-BB-CC-DD-EE-01`,
	Args: cobra.ExactArgs(1),
	RunE: runFind,
}

func runFind(cmd *cobra.Command, args []string) error {
	engine := newEngine()

	var devices []discovery.Device
	err := ui.RunWithSpinner(cmd.Context(), "Searching for "+args[0], func(ctx context.Context) error {
		var err error
		devices, err = engine.ScanFor(ctx, args[0])
		return err
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(devices) == 0 {
		return fmt.Errorf("no responsive host with hardware address %s", args[0])
	}

	ui.NewPrinter(nil).PrintDevices(devices)
	return nil
}

// resolveCmd consults the neighbor cache without probing
var resolveCmd = &cobra.Command{
	Use:   "resolve <ip|mac>",
	Short: "Look up an address in the neighbor cache",
	Long: `Look up the hardware address for an IPv4 address, or the IPv4 address for a
hardware address, in the operating system's neighbor cache. No packets are
sent, so a host only appears after this machine has talked to it.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	resolver := newResolver()
	query := args[0]

	var (
		answer string
		err    error
	)
	if discovery.NormalizeMAC(query) != "" {
		answer, err = resolver.ResolveIPForMAC(cmd.Context(), query)
	} else {
		answer, err = resolver.ResolveMACForIP(cmd.Context(), query)
	}
	if err != nil {
		return err
	}
	if answer == "" {
		return fmt.Errorf("no neighbor cache entry for %s (try 'lanlink find' or 'lanlink scan')", query)
	}

	fmt.Println(answer)
	return nil
}

// sendCmd connects, sends commands and disconnects
var sendCmd = &cobra.Command{
	Use:   "send <target> <command>...",
	Short: "Send one or more commands to a device",
	Long: `Connect to a device, queue each command, wait until all of them have been
written and disconnect.

The target is a saved device name, a hardware address or a host. Commands are
framed with the configured prefix and terminator unless --raw is given, in
which case \r, \n and \t escapes are expanded and the bytes are sent as is.
With --wait, device output is printed to stdout for that long after the last
write.`,
	Example: `  # Power on, then select input 2
  lanlink send 192.168.1.40 --port 4999 PWR01 SLI02

  # Saved device, show the reply
  lanlink send amp PWRQSTN --wait 500ms

  # Unframed bytes
  lanlink send amp --raw 'PING\r\n'`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().IntVar(&targetPort, "port", 0, "Device command port")
	sendCmd.Flags().BoolVar(&sendRaw, "raw", false, "Send commands without framing")
	sendCmd.Flags().DurationVar(&sendWait, "wait", 0, "Print device output for this long after sending")
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	t, err := prepareTarget(ctx, args[0], targetPort)
	if err != nil {
		return err
	}

	mgr := newManager()
	if sendWait > 0 {
		mgr.SetListener(func(data []byte) {
			_, _ = os.Stdout.Write(data)
		})
	}
	if err := mgr.Connect(ctx, t.Host, t.Port); err != nil {
		return err
	}
	defer mgr.Disconnect()

	f := framer()
	for _, c := range args[1:] {
		payload := f.Frame(c)
		if sendRaw {
			payload = []byte(config.Unescape(c))
		}
		if !mgr.Send(payload) {
			return fmt.Errorf("command %q was not accepted: %w", c, link.ErrNotConnected)
		}
	}

	if err := mgr.Flush(ctx); err != nil {
		return fmt.Errorf("failed waiting for commands to be written: %w", err)
	}

	if sendWait > 0 {
		select {
		case <-time.After(sendWait):
		case <-mgr.Done():
		case <-ctx.Done():
		}
		return nil
	}

	ui.NewPrinter(os.Stderr).PrintSuccess("Sent",
		ui.Field{Key: "Device", Value: mgr.RemoteAddr()},
		ui.Field{Key: "Commands", Value: strconv.Itoa(len(args) - 1)},
	)
	return nil
}

// connectCmd opens the interactive console
var connectCmd = &cobra.Command{
	Use:   "connect <target>",
	Short: "Open an interactive console to a device",
	Long: `Connect to a device and open a full-screen console. Each line typed is
framed and queued; device output scrolls above the input. Press Ctrl+C or Esc
to disconnect.`,
	Example: `  lanlink connect 192.168.1.40 --port 4999
  lanlink connect aa:bb:cc:dd:ee:01 --port 4999
  lanlink connect amp`,
	Args: cobra.ExactArgs(1),
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().IntVar(&targetPort, "port", 0, "Device command port")
}

func runConnect(cmd *cobra.Command, args []string) error {
	if !ui.IsTerminal() {
		return errors.New("connect needs an interactive terminal; use 'lanlink send' instead")
	}
	ctx := cmd.Context()

	t, err := prepareTarget(ctx, args[0], targetPort)
	if err != nil {
		return err
	}

	mgr := newManager()
	if err := mgr.Connect(ctx, t.Host, t.Port); err != nil {
		return err
	}
	defer mgr.Disconnect()

	f := framer()
	console := ui.NewConsole(ui.ConsoleConfig{
		Title: fmt.Sprintf("%s (%s)", t.Label(), mgr.RemoteAddr()),
		Send: func(line string) bool {
			return mgr.Send(f.Frame(line))
		},
	})
	mgr.SetListener(console.Deliver)
	defer mgr.RemoveListener()

	done := mgr.Done()
	go func() {
		<-done
		console.Closed("connection closed")
	}()

	return console.Run()
}

// bridgeCmd relays between a device and WebSocket clients
var bridgeCmd = &cobra.Command{
	Use:   "bridge <target>",
	Short: "Relay a device connection to WebSocket clients",
	Long: `Connect to a device and serve it to browser or script front-ends.

Clients connect to ws://<listen>/ws and exchange JSON messages:

  {"type":"send","id":"1","command":"PWR01"}   framed and queued
  {"type":"raw","id":"2","data":"PING\r"}      queued as is
  {"type":"status","id":"3"}                   connection state

Device output is broadcast to every client as {"type":"data",...}. Prometheus
metrics are served on /metrics. The bridge stops when the device disconnects.`,
	Example: `  lanlink bridge amp
  lanlink bridge 192.168.1.40 --port 4999 --listen 0.0.0.0:8765`,
	Args: cobra.ExactArgs(1),
	RunE: runBridge,
}

func init() {
	bridgeCmd.Flags().IntVar(&targetPort, "port", 0, "Device command port")
	bridgeCmd.Flags().String("listen", "127.0.0.1:8765", "Bridge listen address")
}

func runBridge(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	t, err := prepareTarget(ctx, args[0], targetPort)
	if err != nil {
		return err
	}

	mgr := newManager()
	if err := mgr.Connect(ctx, t.Host, t.Port); err != nil {
		return err
	}
	defer mgr.Disconnect()

	srv := bridge.New(mgr, bridge.Config{
		Addr:     settings.BridgeAddr,
		Framer:   framer(),
		Gatherer: metricsRegistry,
		Logger:   logging.GetLogger(),
	})

	ui.NewPrinter(os.Stderr).PrintHeader("Bridge",
		ui.Field{Key: "Device", Value: mgr.RemoteAddr()},
		ui.Field{Key: "WebSocket", Value: "ws://" + settings.BridgeAddr + "/ws"},
		ui.Field{Key: "Metrics", Value: "http://" + settings.BridgeAddr + "/metrics"},
	)

	return srv.ListenAndServe(ctx)
}

// prepareTarget resolves arg to a host and port, locating hardware addresses
// on the subnet. Saved devices get their last IP and sighting recorded.
func prepareTarget(ctx context.Context, arg string, port int) (target, error) {
	reg, err := config.LoadRegistry()
	if err != nil {
		return target{}, err
	}

	t, err := resolveTarget(arg, reg, port)
	if err != nil {
		return target{}, err
	}
	if t.Host != "" {
		return t, nil
	}

	engine := newEngine()
	var found *discovery.Device
	err = ui.RunWithSpinner(ctx, "Locating "+t.MAC, func(ctx context.Context) error {
		var err error
		found, err = engine.Locate(ctx, t.MAC)
		return err
	})
	if err != nil {
		return target{}, fmt.Errorf("failed to locate %s: %w", t.MAC, err)
	}

	if found == nil {
		if t.LastIP == "" {
			return target{}, fmt.Errorf("no responsive host with hardware address %s", t.MAC)
		}
		logging.Warn("Device not found on the subnet, trying its last known address",
			zap.String("mac", t.MAC), zap.String("ip", t.LastIP))
		t.Host = t.LastIP
		return t, nil
	}

	t.Host = found.IP
	logging.Info("Located device", zap.String("mac", t.MAC), zap.String("ip", found.IP))
	if t.Name != "" {
		reg.UpdateDeviceLastSeen(t.Name, found.IP)
		if err := reg.Save(); err != nil {
			logging.Warn("Failed to save device registry", zap.Error(err))
		}
	}
	return t, nil
}
