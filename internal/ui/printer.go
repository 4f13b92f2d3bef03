package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/lanlink/internal/discovery"
)

// Field is one key/value line in a header or result box. A slice keeps the
// order stable, unlike a map.
type Field struct {
	Key   string
	Value string
}

// Printer provides methods for printing UI components to a writer.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title string, params ...Field) {
	p.Println(RenderHeader(title, params, p.width))
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details ...Field) {
	p.Println(RenderSuccessBox(title, details, p.width))
}

// PrintError prints an error result box with an optional hint line
func (p *Printer) PrintError(title string, err error, hint string) {
	p.Println(RenderErrorBox(title, err, hint, p.width))
}

// PrintDevices prints discovered devices as a table
func (p *Printer) PrintDevices(devices []discovery.Device) {
	p.Println(RenderDeviceTable(devices))
}

// RenderHeader renders a command header box
func RenderHeader(title string, params []Field, width int) string {
	titleLine := HeaderTitleStyle.Render(strings.ToUpper(title))
	if len(params) == 0 {
		return HeaderBorderStyle(width).Render(titleLine)
	}

	paramLines := make([]string, 0, len(params))
	for _, f := range params {
		paramLines = append(paramLines, HeaderParamKeyStyle.Render(f.Key+":")+" "+HeaderParamValueStyle.Render(f.Value))
	}

	dividerWidth := width - 6 // Account for border and padding
	if dividerWidth < 10 {
		dividerWidth = 10
	}
	divider := RenderHorizontalDivider(dividerWidth, "─")

	content := lipgloss.JoinVertical(lipgloss.Left, titleLine, divider, strings.Join(paramLines, "\n"))
	return HeaderBorderStyle(width).Render(content)
}

// RenderSuccessBox renders a success result box
func RenderSuccessBox(title string, details []Field, width int) string {
	lines := []string{"", SuccessTitleStyle.Render(SuccessMarker + "  " + title), ""}
	for _, f := range details {
		lines = append(lines, ResultKeyStyle.Render(f.Key+":")+" "+ResultValueStyle.Render(f.Value))
	}
	if len(details) > 0 {
		lines = append(lines, "")
	}
	return SuccessBoxStyle(width).Render(strings.Join(lines, "\n"))
}

// RenderErrorBox renders an error result box
func RenderErrorBox(title string, err error, hint string, width int) string {
	lines := []string{"", ErrorTitleStyle.Render(FailureMarker + "  " + title), ""}
	if err != nil {
		lines = append(lines, ErrorMessageStyle.Render("Error: "+err.Error()), "")
	}
	if hint != "" {
		lines = append(lines, HintStyle.Render(hint), "")
	}
	return ErrorBoxStyle(width).Render(strings.Join(lines, "\n"))
}

// RenderDeviceTable lays devices out in aligned columns. Vendor and hostname
// columns appear only when some device has them.
func RenderDeviceTable(devices []discovery.Device) string {
	if len(devices) == 0 {
		return HintStyle.Render("  No devices found.")
	}

	var hasVendor, hasHost bool
	for _, d := range devices {
		hasVendor = hasVendor || d.Vendor != ""
		hasHost = hasHost || d.Hostname != ""
	}

	header := []string{"IP ADDRESS", "MAC ADDRESS"}
	if hasHost {
		header = append(header, "HOSTNAME")
	}
	if hasVendor {
		header = append(header, "VENDOR")
	}

	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		row := []string{d.IP, d.MAC}
		if hasHost {
			row = append(row, d.Hostname)
		}
		if hasVendor {
			row = append(row, d.Vendor)
		}
		rows = append(rows, row)
	}

	return RenderTable(header, rows)
}

// RenderTable lays rows out in aligned columns under a styled header row.
func RenderTable(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); i < len(widths) && w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	b.WriteString(renderRow(header, widths, TableHeaderStyle))
	for _, row := range rows {
		b.WriteString("\n")
		b.WriteString(renderRow(row, widths, TableCellStyle))
	}
	return b.String()
}

func renderRow(cells []string, widths []int, style lipgloss.Style) string {
	parts := make([]string, len(widths))
	for i := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		parts[i] = style.Width(widths[i]).Render(cell)
	}
	return "  " + strings.Join(parts, "  ")
}
