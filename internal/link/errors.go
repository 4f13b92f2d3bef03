package link

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
)

// Sentinel errors for Manager state violations.
var (
	// ErrAlreadyConnected is returned by Connect when a connection exists or is being established.
	ErrAlreadyConnected = errors.New("already connected")
	// ErrNotConnected is returned by operations that need an open connection.
	ErrNotConnected = errors.New("not connected")
)

// ErrorKind represents the category of a connection failure
type ErrorKind int

const (
	// KindOther indicates an unclassified dial failure
	KindOther ErrorKind = iota
	// KindInvalidPort indicates the port was outside 1-65535
	KindInvalidPort
	// KindRefused indicates the device refused the connection
	KindRefused
	// KindTimeout indicates the dial did not complete in time
	KindTimeout
	// KindDNS indicates the host name could not be resolved
	KindDNS
	// KindUnreachable indicates the host or network is unreachable
	KindUnreachable
	// KindCancelled indicates Disconnect (or the caller's context) aborted the dial
	KindCancelled
)

// String returns a human-readable name for the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindOther:
		return "Connection Error"
	case KindInvalidPort:
		return "Invalid Port"
	case KindRefused:
		return "Connection Refused"
	case KindTimeout:
		return "Timeout"
	case KindDNS:
		return "DNS Error"
	case KindUnreachable:
		return "Unreachable"
	case KindCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// ConnectionError is returned by Manager.Connect when the stream connection
// cannot be established. The Manager is Disconnected whenever one is returned.
type ConnectionError struct {
	Kind ErrorKind
	Host string
	Port int
	Err  error
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	addr := net.JoinHostPort(e.Host, fmt.Sprint(e.Port))
	if e.Err != nil {
		return fmt.Sprintf("%s: connect %s: %v", e.Kind, addr, e.Err)
	}
	return fmt.Sprintf("%s: connect %s", e.Kind, addr)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ClassifyDialError wraps a dial failure in a ConnectionError of the matching kind.
func ClassifyDialError(err error, host string, port int) *ConnectionError {
	if err == nil {
		return nil
	}

	ce := &ConnectionError{Kind: KindOther, Host: host, Port: port, Err: err}

	if errors.Is(err, context.Canceled) {
		ce.Kind = KindCancelled
		return ce
	}

	if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		ce.Kind = KindTimeout
		return ce
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		ce.Kind = KindDNS
		return ce
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		ce.Kind = KindRefused
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		ce.Kind = KindUnreachable
	}
	return ce
}

// IsConnectionError reports whether err is (or wraps) a ConnectionError
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// Hint returns user-facing troubleshooting advice for a connect failure.
func Hint(err error) string {
	var ce *ConnectionError
	if !errors.As(err, &ce) {
		return ""
	}

	switch ce.Kind {
	case KindInvalidPort:
		return "Ports must be between 1 and 65535."
	case KindRefused:
		return strings.Join([]string{
			"The device refused the connection.",
			"  • Check the port number",
			"  • The device may only accept one client at a time - close other sessions",
		}, "\n")
	case KindTimeout:
		return strings.Join([]string{
			"The device did not answer in time.",
			"  • Check that the device is powered on",
			"  • Run 'lanlink scan' to confirm it is on this subnet",
		}, "\n")
	case KindDNS:
		return "Could not resolve the host name. Use the IP address, or 'lanlink find <mac>'."
	case KindUnreachable:
		return "No route to the device. Check that you are on the same network."
	default:
		return ""
	}
}
