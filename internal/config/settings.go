package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Setting keys, also the settings.yaml field names. Each can be overridden
// by LANLINK_<KEY> in the environment.
const (
	KeyLogLevel          = "log_level"
	KeyCommandInterval   = "command_interval"
	KeyDialTimeout       = "dial_timeout"
	KeyProbeTimeout      = "probe_timeout"
	KeyProbePrivileged   = "probe_privileged"
	KeyNeighborCommand   = "neighbor_command"
	KeyOUIDatabase       = "oui_database"
	KeyMDNS              = "mdns"
	KeyMDNSTimeout       = "mdns_timeout"
	KeyCommandPrefix     = "command_prefix"
	KeyCommandTerminator = "command_terminator"
	KeyBridgeAddr        = "bridge_addr"
)

const envPrefix = "LANLINK"

// Settings are the runtime settings shared by every command.
type Settings struct {
	LogLevel        string
	CommandInterval time.Duration
	DialTimeout     time.Duration

	ProbeTimeout    time.Duration
	ProbePrivileged bool
	NeighborCommand []string
	OUIDatabase     string
	MDNS            bool
	MDNSTimeout     time.Duration

	CommandPrefix     string
	CommandTerminator string

	BridgeAddr string
}

// SetDefaults registers the default value of every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyLogLevel, "")
	v.SetDefault(KeyCommandInterval, "30ms")
	v.SetDefault(KeyDialTimeout, "5s")
	v.SetDefault(KeyProbeTimeout, "1s")
	v.SetDefault(KeyProbePrivileged, runtime.GOOS == "windows")
	v.SetDefault(KeyNeighborCommand, "")
	v.SetDefault(KeyOUIDatabase, "")
	v.SetDefault(KeyMDNS, false)
	v.SetDefault(KeyMDNSTimeout, "2s")
	v.SetDefault(KeyCommandPrefix, "!7")
	v.SetDefault(KeyCommandTerminator, `\r`)
	v.SetDefault(KeyBridgeAddr, "127.0.0.1:8765")
}

// NewViper returns a viper instance with defaults, the optional settings.yaml
// from the config directory, and LANLINK_* environment overrides. Flags are
// bound by the caller.
func NewViper() (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetConfigName(settingsName)
	v.SetConfigType("yaml")
	if dir, err := GetConfigDir(); err == nil {
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
	}
	return v, nil
}

// LoadSettings reads and validates the settings held by v.
func LoadSettings(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		LogLevel:          strings.ToLower(v.GetString(KeyLogLevel)),
		CommandInterval:   v.GetDuration(KeyCommandInterval),
		DialTimeout:       v.GetDuration(KeyDialTimeout),
		ProbeTimeout:      v.GetDuration(KeyProbeTimeout),
		ProbePrivileged:   v.GetBool(KeyProbePrivileged),
		OUIDatabase:       v.GetString(KeyOUIDatabase),
		MDNS:              v.GetBool(KeyMDNS),
		MDNSTimeout:       v.GetDuration(KeyMDNSTimeout),
		CommandPrefix:     Unescape(v.GetString(KeyCommandPrefix)),
		CommandTerminator: Unescape(v.GetString(KeyCommandTerminator)),
		BridgeAddr:        v.GetString(KeyBridgeAddr),
	}

	if argv := strings.Fields(v.GetString(KeyNeighborCommand)); len(argv) > 0 {
		s.NeighborCommand = argv
	}

	switch s.LogLevel {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return nil, fmt.Errorf("invalid %s %q (expected debug, info, warn or error)", KeyLogLevel, s.LogLevel)
	}

	durations := []struct {
		key string
		d   time.Duration
	}{
		{KeyCommandInterval, s.CommandInterval},
		{KeyDialTimeout, s.DialTimeout},
		{KeyProbeTimeout, s.ProbeTimeout},
		{KeyMDNSTimeout, s.MDNSTimeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration, got %q", d.key, v.GetString(d.key))
		}
	}

	return s, nil
}

var escapes = strings.NewReplacer(`\r`, "\r", `\n`, "\n", `\t`, "\t", `\\`, `\`)

// Unescape turns the \r, \n, \t and \\ escapes used in settings files and
// flags into the characters they name.
func Unescape(s string) string {
	return escapes.Replace(s)
}
