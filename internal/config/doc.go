// Package config loads lanlink's runtime settings and its saved-device file.
//
// # Settings
//
// Settings are resolved by viper in this order, later sources winning:
//  1. Built-in defaults (SetDefaults)
//  2. settings.yaml in the configuration directory, if present
//  3. LANLINK_<KEY> environment variables (e.g., LANLINK_COMMAND_INTERVAL=50ms)
//  4. Command-line flags bound by the CLI
//
// command_prefix and command_terminator accept \r, \n and \t escapes.
//
// # Saved Devices
//
// devices.yaml maps a user-chosen name to a device's hardware address and
// command port, so a device can be found again after its address changes:
//
//	version: 1
//	devices:
//	  amp:
//	    mac: AA:BB:CC:DD:EE:01
//	    last_ip: 192.168.1.40
//	    port: 60128
//
// # Configuration File Location
//
// Both files live in a platform-appropriate directory:
//   - Linux: $XDG_CONFIG_HOME/lanlink or $HOME/.config/lanlink
//   - macOS: $HOME/.config/lanlink
//   - Windows: %LOCALAPPDATA%\lanlink
//
// Registry writes go to a temporary file that is renamed into place.
package config
