package link

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muurk/lanlink/internal/logging"
	"github.com/muurk/lanlink/internal/metrics"
)

const (
	// DefaultDialTimeout bounds a single connect attempt
	DefaultDialTimeout = 5 * time.Second

	// readBufferSize is the largest chunk handed to the listener at once
	readBufferSize = 4096
)

// State is the lifecycle state of the managed connection
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Listener receives every inbound chunk verbatim, in arrival order. It runs on
// the connection's reader goroutine and must not block for long.
type Listener func(data []byte)

// Config holds Manager settings. Zero values select the defaults.
type Config struct {
	// CommandInterval is the minimum spacing between writes (default 30ms)
	CommandInterval time.Duration

	// DialTimeout bounds each connect attempt (default 5s)
	DialTimeout time.Duration

	Logger  *zap.Logger
	Metrics *metrics.Collectors
}

// Manager owns the stream connection to one device, its dispatch queue and
// the inbound listener. Only one connection exists at a time.
type Manager struct {
	config Config
	logger *zap.Logger
	dial   func(ctx context.Context, network, address string) (net.Conn, error)

	mu         sync.Mutex
	state      State
	session    *session
	cancelDial context.CancelFunc
	attempt    uint64
	listener   Listener
}

// session is the per-connection state: socket, queue and teardown guard.
type session struct {
	id        string
	host      string
	port      int
	conn      net.Conn
	queue     *Dispatcher
	done      chan struct{}
	closeOnce sync.Once
}

// NewManager creates a disconnected Manager.
func NewManager(config Config) *Manager {
	if config.CommandInterval <= 0 {
		config.CommandInterval = DefaultCommandInterval
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = DefaultDialTimeout
	}
	dialer := &net.Dialer{Timeout: config.DialTimeout}
	return &Manager{
		config: config,
		logger: logging.Or(config.Logger).Named("link"),
		dial:   dialer.DialContext,
	}
}

// Connect establishes the stream connection and starts the dispatch queue.
// Failures are returned as *ConnectionError and leave the Manager Disconnected.
// Disconnect aborts an attempt in progress.
func (m *Manager) Connect(ctx context.Context, host string, port int) error {
	if port < 1 || port > 65535 {
		return &ConnectionError{Kind: KindInvalidPort, Host: host, Port: port}
	}

	m.mu.Lock()
	if m.state != Disconnected {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	dialCtx, cancel := context.WithCancel(ctx)
	m.state = Connecting
	m.cancelDial = cancel
	m.attempt++
	attempt := m.attempt
	m.mu.Unlock()
	defer cancel()

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	logging.LogConnection(m.logger, addr, "connecting")

	conn, err := m.dial(dialCtx, "tcp", addr)

	m.mu.Lock()
	aborted := m.state != Connecting || m.attempt != attempt
	if !aborted {
		m.cancelDial = nil
	}
	if err != nil || aborted {
		if !aborted {
			m.state = Disconnected
		}
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		if err == nil {
			err = context.Canceled
		}
		ce := ClassifyDialError(err, host, port)
		logging.LogConnection(m.logger, addr, "connect_failed",
			zap.String("kind", ce.Kind.String()), zap.Error(err))
		return ce
	}

	s := &session{
		id:    uuid.NewString(),
		host:  host,
		port:  port,
		conn:  conn,
		queue: NewDispatcher(conn, m.config.CommandInterval, m.logger, m.config.Metrics),
		done:  make(chan struct{}),
	}
	s.queue.Start()
	m.session = s
	m.state = Connected
	m.mu.Unlock()

	logging.LogConnection(m.logger, addr, "connected", zap.String("session", s.id))
	go m.readLoop(s)
	return nil
}

// Disconnect tears down the connection: the dial is aborted or the socket is
// closed, the queue is stopped and pending commands are dropped. Calling it
// while disconnected is a no-op.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.state == Connecting && m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
		m.state = Disconnected
	}
	s := m.session
	m.mu.Unlock()

	if s != nil {
		m.teardown(s, "disconnect")
	}
}

// Send admits an already framed command into the dispatch queue. It returns
// false, without queuing, when the connection is not sendable. Acceptance does
// not guarantee delivery.
func (m *Manager) Send(cmd []byte) bool {
	m.mu.Lock()
	s := m.session
	ok := m.state == Connected && s != nil
	m.mu.Unlock()

	if !ok {
		m.config.Metrics.CommandRejected()
		return false
	}
	return s.queue.Enqueue(cmd)
}

// SendString is Send for text payloads.
func (m *Manager) SendString(cmd string) bool {
	return m.Send([]byte(cmd))
}

// IsSendable reports whether Send would currently accept a command.
func (m *Manager) IsSendable() bool {
	m.mu.Lock()
	s := m.session
	ok := m.state == Connected && s != nil
	m.mu.Unlock()
	return ok && s.queue.Running()
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Pending returns the number of queued commands (0 when disconnected).
func (m *Manager) Pending() int {
	m.mu.Lock()
	s := m.session
	m.mu.Unlock()
	if s == nil {
		return 0
	}
	return s.queue.Len()
}

// Flush waits until every accepted command has been written (or dropped).
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	s := m.session
	m.mu.Unlock()
	if s == nil {
		return ErrNotConnected
	}
	return s.queue.Flush(ctx)
}

// SessionID returns the identifier of the current connection, or "".
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ""
	}
	return m.session.id
}

// RemoteAddr returns host:port of the current connection, or "".
func (m *Manager) RemoteAddr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ""
	}
	return net.JoinHostPort(m.session.host, strconv.Itoa(m.session.port))
}

// Done returns a channel closed when the current connection ends. When
// disconnected the returned channel is already closed.
func (m *Manager) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return m.session.done
}

// SetListener registers the single inbound data listener, replacing any
// previous one.
func (m *Manager) SetListener(l Listener) {
	m.mu.Lock()
	m.listener = l
	m.mu.Unlock()
}

// RemoveListener unregisters the inbound data listener.
func (m *Manager) RemoveListener() {
	m.SetListener(nil)
}

func (m *Manager) readLoop(s *session) {
	buf := make([]byte, readBufferSize)
	reason := "remote_closed"

	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			m.config.Metrics.Inbound(n)
			logging.LogRawBytes(m.logger, "Data received", chunk)

			m.mu.Lock()
			l := m.listener
			m.mu.Unlock()
			if l != nil {
				l(chunk)
			}
		}
		if err != nil {
			if !errors.Is(err, net.ErrClosed) && !isEOF(err) {
				reason = "read_error"
				m.logger.Info("Read failed", zap.String("session", s.id), zap.Error(err))
			}
			break
		}
	}

	m.teardown(s, reason)
}

// teardown is the single exit path for both local and remote closure.
func (m *Manager) teardown(s *session, reason string) {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
		s.queue.Stop()

		m.mu.Lock()
		if m.session == s {
			m.session = nil
			m.state = Disconnected
		}
		m.mu.Unlock()

		close(s.done)
		logging.LogConnection(m.logger, net.JoinHostPort(s.host, strconv.Itoa(s.port)), "closed",
			zap.String("session", s.id), zap.String("reason", reason))
	})
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe)
}
