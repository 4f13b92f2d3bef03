package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/lanlink/internal/discovery"
)

func TestFormatChunk(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"!1PWR01\r", "!1PWR01"},
		{"line\r\n", "line"},
		{"\x1a\xffok", `\x1a\xffok`},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FormatChunk([]byte(tt.in)); got != tt.want {
			t.Errorf("FormatChunk(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"y", true}, // no trailing newline
	}
	for _, tt := range tests {
		var out bytes.Buffer
		if got := Confirm(strings.NewReader(tt.input), &out, "Remove amp?"); got != tt.want {
			t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "Remove amp?") {
			t.Errorf("prompt not written: %q", out.String())
		}
	}
}

func TestRenderDeviceTable(t *testing.T) {
	if got := RenderDeviceTable(nil); !strings.Contains(got, "No devices found") {
		t.Errorf("empty table = %q", got)
	}

	plain := RenderDeviceTable([]discovery.Device{
		{IP: "10.0.0.5", MAC: "AA:BB:CC:DD:EE:01"},
	})
	if !strings.Contains(plain, "10.0.0.5") || !strings.Contains(plain, "AA:BB:CC:DD:EE:01") {
		t.Errorf("table missing device:\n%s", plain)
	}
	if strings.Contains(plain, "VENDOR") || strings.Contains(plain, "HOSTNAME") {
		t.Errorf("table has empty enrichment columns:\n%s", plain)
	}

	enriched := RenderDeviceTable([]discovery.Device{
		{IP: "10.0.0.5", MAC: "AA:BB:CC:DD:EE:01", Vendor: "Onkyo Corporation"},
		{IP: "10.0.0.9", MAC: "AA:BB:CC:DD:EE:02", Hostname: "nas"},
	})
	for _, want := range []string{"VENDOR", "HOSTNAME", "Onkyo Corporation", "nas"} {
		if !strings.Contains(enriched, want) {
			t.Errorf("table missing %q:\n%s", want, enriched)
		}
	}
}

func TestPrinter(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out)

	p.PrintHeader("Network scan", Field{"Subnet", "10.0.0.0/24"})
	p.PrintSuccess("Connected", Field{"Session", "abc"})
	p.PrintError("Connect failed", errors.New("connection refused"), "Is the device powered on?")

	for _, want := range []string{"NETWORK SCAN", "10.0.0.0/24", "Connected", "abc", "connection refused", "powered on"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestConsoleModel(t *testing.T) {
	var sent []string
	accept := true
	m := newConsoleModel(ConsoleConfig{
		Title: "10.0.0.5:60128",
		Send: func(line string) bool {
			if accept {
				sent = append(sent, line)
			}
			return accept
		},
	})

	typeLine := func(m consoleModel, line string) consoleModel {
		m.input.SetValue(line)
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		return next.(consoleModel)
	}

	m = typeLine(m, " PWR01 ")
	m = typeLine(m, "   ")
	if len(sent) != 1 || sent[0] != "PWR01" {
		t.Fatalf("sent = %q, want [PWR01]", sent)
	}
	if m.input.Value() != "" {
		t.Errorf("input not reset: %q", m.input.Value())
	}

	next, _ := m.Update(inboundMsg("!1PWR01\r"))
	m = next.(consoleModel)
	if n := len(m.lines); n != 2 {
		t.Fatalf("lines = %d, want 2", n)
	}
	if !strings.Contains(m.lines[1], "!1PWR01") {
		t.Errorf("inbound line = %q", m.lines[1])
	}

	accept = false
	m = typeLine(m, "MVLUP")
	if !strings.Contains(m.lines[2], "not sent") {
		t.Errorf("rejected line = %q", m.lines[2])
	}

	next, _ = m.Update(closedMsg{reason: "remote_closed"})
	m = next.(consoleModel)
	if !m.closed {
		t.Error("closed not set")
	}
	accept = true
	m = typeLine(m, "PWR00")
	if len(sent) != 1 {
		t.Errorf("line sent after close: %q", sent)
	}

	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC}); cmd == nil {
		t.Error("Ctrl+C should quit")
	}
}

func TestSpinnerModel(t *testing.T) {
	m := newSpinnerModel("Scanning")
	if !strings.Contains(m.View(), "Scanning") {
		t.Errorf("View() = %q", m.View())
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil || !next.(spinnerModel).interrupted {
		t.Error("Ctrl+C should interrupt and quit")
	}

	next, cmd = m.Update(workDoneMsg{})
	if cmd == nil || next.(spinnerModel).interrupted {
		t.Error("workDoneMsg should quit without interrupt")
	}
}
