package link

// Default framing used by the controller protocol: a fixed "!7" prefix and a
// carriage return terminator.
const (
	DefaultPrefix     = "!7"
	DefaultTerminator = "\r"
)

// Framer wraps caller text in the device's command framing. The dispatcher
// never frames; callers frame before Send.
type Framer struct {
	Prefix     string
	Terminator string
}

// DefaultFramer returns the "!7<cmd>\r" framer.
func DefaultFramer() Framer {
	return Framer{Prefix: DefaultPrefix, Terminator: DefaultTerminator}
}

// Frame returns the framed payload for cmd.
func (f Framer) Frame(cmd string) []byte {
	b := make([]byte, 0, len(f.Prefix)+len(cmd)+len(f.Terminator))
	b = append(b, f.Prefix...)
	b = append(b, cmd...)
	b = append(b, f.Terminator...)
	return b
}
