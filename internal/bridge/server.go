package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/muurk/lanlink/internal/link"
	"github.com/muurk/lanlink/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Outbound envelopes buffered per client before it is dropped as too slow
	clientBuffer = 256
)

// Link is the device connection the bridge relays for. *link.Manager
// implements it.
type Link interface {
	Send(cmd []byte) bool
	SetListener(l link.Listener)
	RemoveListener()
	State() link.State
	Pending() int
	SessionID() string
	RemoteAddr() string
	Done() <-chan struct{}
}

// Config holds the bridge configuration
type Config struct {
	// Addr is the listen address (e.g., "127.0.0.1:8765")
	Addr string

	// Framer wraps "send" commands; "raw" requests bypass it
	Framer link.Framer

	// Gatherer backs /metrics; nil disables the endpoint
	Gatherer prometheus.Gatherer

	Logger *zap.Logger
}

// Server relays between one device connection and any number of WebSocket
// clients. Inbound device chunks are broadcast to every client; client
// requests are queued on the device link.
type Server struct {
	config   Config
	link     Link
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// client is one WebSocket peer.
type client struct {
	id   string
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
	send   chan Envelope
}

// New creates a bridge for l. Call Handler or ListenAndServe to start relaying.
func New(l Link, config Config) *Server {
	if config.Framer.Prefix == "" && config.Framer.Terminator == "" {
		config.Framer = link.DefaultFramer()
	}
	return &Server{
		config: config,
		link:   l,
		logger: logging.Or(config.Logger).Named("bridge"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
	}
}

// Handler returns the HTTP routes: /ws for clients and /metrics.
// It registers the bridge as the link's inbound listener.
func (s *Server) Handler() http.Handler {
	s.link.SetListener(s.broadcastChunk)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	if s.config.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// ListenAndServe serves until ctx ends or the device connection closes.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: writeWait,
	}

	s.logger.Info("Bridge listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("device", s.link.RemoteAddr()),
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutdown requested, stopping bridge")
	case <-s.link.Done():
		s.logger.Info("Device connection closed, stopping bridge")
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			s.Close()
			return err
		}
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close sends a closed envelope to every client, disconnects them and
// detaches from the link.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()

	s.link.RemoveListener()
	for _, c := range clients {
		c.deliver(Envelope{Type: TypeClosed})
		c.close()
	}
}

// Clients returns the number of connected WebSocket clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan Envelope, clientBuffer),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	logging.LogConnection(s.logger, r.RemoteAddr, "client_connected", zap.String("client", c.id))

	go s.writePump(c)
	s.readPump(c)

	s.remove(c)
	logging.LogConnection(s.logger, r.RemoteAddr, "client_closed", zap.String("client", c.id))
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.close()
}

// readPump handles client requests until the connection fails.
func (s *Server) readPump(c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Info("Client read failed", zap.String("client", c.id), zap.Error(err))
			}
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			c.deliver(errorEnvelope("", "invalid JSON request"))
			continue
		}
		c.deliver(s.handle(req))
	}
}

func (s *Server) handle(req Request) Envelope {
	switch req.Type {
	case TypeSend:
		if req.Command == "" {
			return errorEnvelope(req.ID, "send requires a command")
		}
		return ackEnvelope(req.ID, s.link.Send(s.config.Framer.Frame(req.Command)))

	case TypeRaw:
		if req.Data == "" {
			return errorEnvelope(req.ID, "raw requires data")
		}
		return ackEnvelope(req.ID, s.link.Send([]byte(req.Data)))

	case TypeStatus:
		pending := s.link.Pending()
		return Envelope{
			Type:    TypeStatus,
			ID:      req.ID,
			Session: s.link.SessionID(),
			State:   s.link.State().String(),
			Remote:  s.link.RemoteAddr(),
			Pending: &pending,
		}

	default:
		return errorEnvelope(req.ID, fmt.Sprintf("unknown request type %q", req.Type))
	}
}

// writePump is the only writer on the client connection.
func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				s.logger.Debug("Client write failed", zap.String("client", c.id), zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// broadcastChunk is the link listener. It runs on the link's reader
// goroutine and never blocks: a client whose buffer is full is dropped.
func (s *Server) broadcastChunk(chunk []byte) {
	env := dataEnvelope(chunk)

	s.mu.Lock()
	var slow []*client
	for c := range s.clients {
		if !c.deliver(env) {
			slow = append(slow, c)
			delete(s.clients, c)
		}
	}
	s.mu.Unlock()

	for _, c := range slow {
		s.logger.Warn("Dropping slow client", zap.String("client", c.id))
		c.close()
	}
}

// deliver queues env without blocking. It reports false when the buffer is
// full or the client is closed.
func (c *client) deliver(env Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// close ends the write pump after it drains what is already queued.
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
