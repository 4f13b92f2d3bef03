package main

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/muurk/lanlink/internal/config"
)

func TestResolveTarget(t *testing.T) {
	reg := config.NewRegistry()
	reg.Devices["amp"] = &config.Device{MAC: "aa-bb-cc-dd-ee-01", LastIP: "10.0.0.5", Port: 4999}
	reg.Devices["broken"] = &config.Device{MAC: "not-a-mac", Port: 23}

	tests := []struct {
		name    string
		arg     string
		port    int
		want    target
		wantErr string
	}{
		{
			name: "saved device",
			arg:  "amp",
			want: target{Name: "amp", MAC: "AA:BB:CC:DD:EE:01", LastIP: "10.0.0.5", Port: 4999},
		},
		{
			name: "saved device with port override",
			arg:  "amp",
			port: 23,
			want: target{Name: "amp", MAC: "AA:BB:CC:DD:EE:01", LastIP: "10.0.0.5", Port: 23},
		},
		{
			name: "hardware address",
			arg:  "aa:bb:cc:dd:ee:02",
			port: 4999,
			want: target{MAC: "AA:BB:CC:DD:EE:02", Port: 4999},
		},
		{
			name: "host",
			arg:  "192.168.1.40",
			port: 4999,
			want: target{Host: "192.168.1.40", Port: 4999},
		},
		{
			name:    "host without port",
			arg:     "receiver.local",
			wantErr: "no port for receiver.local",
		},
		{
			name:    "saved device with bad address",
			arg:     "broken",
			wantErr: "invalid hardware address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveTarget(tt.arg, reg, tt.port)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("resolveTarget() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveTarget() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("resolveTarget() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTargetLabel(t *testing.T) {
	tests := []struct {
		t    target
		want string
	}{
		{target{Name: "amp", MAC: "AA:BB:CC:DD:EE:01"}, "amp"},
		{target{MAC: "AA:BB:CC:DD:EE:01"}, "AA:BB:CC:DD:EE:01"},
		{target{Host: "10.0.0.5"}, "10.0.0.5"},
	}
	for _, tt := range tests {
		if got := tt.t.Label(); got != tt.want {
			t.Errorf("Label() = %q, want %q", got, tt.want)
		}
	}
}

func TestBindFlags_OnlyChangedFlagsOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Duration("interval", 30*time.Millisecond, "")
	fs.String("prefix", "!7", "")
	fs.String("terminator", `\r`, "")
	if err := fs.Parse([]string{"--interval=50ms", `--terminator=\n`}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	v, err := config.NewViper()
	if err != nil {
		t.Fatalf("NewViper() error = %v", err)
	}
	v.Set(config.KeyCommandPrefix, "#")
	if err := bindFlags(v, fs); err != nil {
		t.Fatalf("bindFlags() error = %v", err)
	}

	s, err := config.LoadSettings(v)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if s.CommandInterval != 50*time.Millisecond {
		t.Errorf("CommandInterval = %v, want 50ms", s.CommandInterval)
	}
	if s.CommandTerminator != "\n" {
		t.Errorf("CommandTerminator = %q, want newline", s.CommandTerminator)
	}
	// An unset flag must not mask a value from another source.
	if s.CommandPrefix != "#" {
		t.Errorf("CommandPrefix = %q, want %q", s.CommandPrefix, "#")
	}
}

func TestRenderRegistry(t *testing.T) {
	reg := config.NewRegistry()
	reg.Devices["tv"] = &config.Device{MAC: "AA:BB:CC:DD:EE:02", Port: 23, Nickname: "Lounge"}
	reg.Devices["amp"] = &config.Device{MAC: "AA:BB:CC:DD:EE:01", Port: 4999, LastIP: "10.0.0.5"}

	out := renderRegistry(reg)
	for _, want := range []string{"NAME", "amp", "tv", "4999", "10.0.0.5", "Lounge"} {
		if !strings.Contains(out, want) {
			t.Errorf("renderRegistry() missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "amp") > strings.Index(out, "tv") {
		t.Errorf("renderRegistry() rows not sorted by name:\n%s", out)
	}
}
