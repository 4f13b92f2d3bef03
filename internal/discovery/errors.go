package discovery

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoInterface is returned when no up, non-loopback IPv4 interface exists
	// to derive a scan range from.
	ErrNoInterface = errors.New("no usable IPv4 network interface")

	// ErrInvalidMAC is returned for malformed hardware addresses.
	ErrInvalidMAC = errors.New("invalid MAC address")
)

// ResolutionError is returned when the OS neighbor-cache tool cannot be run.
// An empty or unmatched listing is not an error.
type ResolutionError struct {
	Command []string
	Err     error
}

// Error implements the error interface
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("neighbor cache unavailable (%s): %v", strings.Join(e.Command, " "), e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// IsResolutionError reports whether err is (or wraps) a ResolutionError
func IsResolutionError(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}
