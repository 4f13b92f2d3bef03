package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/muurk/lanlink/internal/config"
	"github.com/muurk/lanlink/internal/discovery"
	"github.com/muurk/lanlink/internal/ui"
)

var (
	addPort     int
	addIP       string
	addNickname string
	removeYes   bool
)

func init() {
	devicesCmd.AddCommand(devicesListCmd)
	devicesCmd.AddCommand(devicesAddCmd)
	devicesCmd.AddCommand(devicesRemoveCmd)
	rootCmd.AddCommand(devicesCmd)

	devicesAddCmd.Flags().IntVar(&addPort, "port", 0, "Device command port (required)")
	devicesAddCmd.Flags().StringVar(&addIP, "ip", "", "Last known IP address")
	devicesAddCmd.Flags().StringVar(&addNickname, "nickname", "", "Display name")
	_ = devicesAddCmd.MarkFlagRequired("port")

	devicesRemoveCmd.Flags().BoolVarP(&removeYes, "yes", "y", false, "Do not ask for confirmation")
}

// devicesCmd manages the saved device registry
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Manage saved devices",
	Long: `Save devices under a name so they can be reached by hardware address even
when their IP changes. The registry lives in devices.yaml in the config
directory.`,
}

var devicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved devices",
	Args:  cobra.NoArgs,
	RunE:  runDevicesList,
}

var devicesAddCmd = &cobra.Command{
	Use:     "add <name> <mac>",
	Short:   "Save a device",
	Example: `  lanlink devices add amp aa:bb:cc:dd:ee:01 --port 4999 --nickname "Living room"`,
	Args:    cobra.ExactArgs(2),
	RunE:    runDevicesAdd,
}

var devicesRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Forget a saved device",
	Args:  cobra.ExactArgs(1),
	RunE:  runDevicesRemove,
}

func runDevicesList(cmd *cobra.Command, args []string) error {
	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	printer := ui.NewPrinter(nil)
	if len(reg.Devices) == 0 {
		printer.Println("No saved devices. Add one with 'lanlink devices add <name> <mac> --port <port>'.")
		return nil
	}
	printer.Println(renderRegistry(reg))
	return nil
}

// renderRegistry lays the saved devices out as a table.
func renderRegistry(reg *config.Registry) string {
	header := []string{"NAME", "MAC", "PORT", "LAST IP", "LAST SEEN", "NICKNAME"}
	rows := make([][]string, 0, len(reg.Devices))
	for _, name := range reg.Names() {
		d := reg.GetDevice(name)
		seen := ""
		if !d.LastSeen.IsZero() {
			seen = d.LastSeen.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{name, d.MAC, strconv.Itoa(d.Port), d.LastIP, seen, d.Nickname})
	}
	return ui.RenderTable(header, rows)
}

func runDevicesAdd(cmd *cobra.Command, args []string) error {
	name, rawMAC := args[0], args[1]

	mac := discovery.NormalizeMAC(rawMAC)
	if mac == "" {
		return fmt.Errorf("%w: %q", discovery.ErrInvalidMAC, rawMAC)
	}

	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	if err := reg.AddDevice(name, &config.Device{
		MAC:      mac,
		LastIP:   addIP,
		Port:     addPort,
		Nickname: addNickname,
	}); err != nil {
		return err
	}
	if err := reg.Save(); err != nil {
		return err
	}

	ui.NewPrinter(nil).PrintSuccess("Device saved",
		ui.Field{Key: "Name", Value: name},
		ui.Field{Key: "MAC", Value: mac},
		ui.Field{Key: "Port", Value: strconv.Itoa(addPort)},
	)
	return nil
}

func runDevicesRemove(cmd *cobra.Command, args []string) error {
	name := args[0]

	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	if reg.GetDevice(name) == nil {
		return fmt.Errorf("no saved device named %q", name)
	}

	if !removeYes && !ui.Confirm(os.Stdin, os.Stdout, fmt.Sprintf("Remove %q?", name)) {
		fmt.Println("Cancelled.")
		return nil
	}

	reg.RemoveDevice(name)
	if err := reg.Save(); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", name)
	return nil
}
