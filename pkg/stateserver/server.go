// Package stateserver exposes the arm's state over HTTP and WebSocket.
// Clients push targets as JSON frames and receive the solved joint
// angles and elbow/effector positions, either on demand (GET /state) or
// streamed (/ws).
package stateserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"armhost/pkg/log"
)

// Server serves the arm state API.
type Server struct {
	arm  *ArmTracker
	addr string

	httpServer *http.Server
	logger     *log.Logger

	wsUpgrader websocket.Upgrader
	wsClients  map[int64]*wsClient
	wsClientMu sync.RWMutex
	nextWSID   int64

	updatePeriod time.Duration

	running atomic.Bool
}

// Config holds server configuration.
type Config struct {
	// Addr is the HTTP listen address (e.g. ":8137").
	Addr string

	// Arm is the tracked arm state.
	Arm *ArmTracker

	// UpdateRate is the broadcast rate in Hz (default 20).
	UpdateRate float64
}

// New creates a state server.
func New(cfg Config) *Server {
	rate := cfg.UpdateRate
	if rate <= 0 {
		rate = 20
	}
	s := &Server{
		arm:          cfg.Arm,
		addr:         cfg.Addr,
		logger:       log.GetLogger("stateserver"),
		wsClients:    make(map[int64]*wsClient),
		updatePeriod: time.Duration(float64(time.Second) / rate),
	}
	s.wsUpgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// Browser UIs are served from other origins.
			return true
		},
	}
	return s
}

// Handler returns the HTTP handler. Exposed so tests can mount it on an
// httptest server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Start runs the server. It blocks until Stop or a listen error.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}
	s.running.Store(true)
	s.logger.WithField("addr", s.addr).Info("state server listening")

	go s.broadcastLoop()

	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down and disconnects all clients.
func (s *Server) Stop() error {
	s.running.Store(false)

	s.wsClientMu.Lock()
	for _, client := range s.wsClients {
		client.close()
	}
	s.wsClients = make(map[int64]*wsClient)
	s.wsClientMu.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// handleState answers GET /state with the current arm state.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.arm.State())
}

// targetRequest is the inbound WebSocket frame.
type targetRequest struct {
	Target *Vec `json:"target"`
}

// errorFrame is sent for frames the server cannot act on.
type errorFrame struct {
	Error string `json:"error"`
}

// handleWebSocket upgrades the connection and runs the client's pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := s.newClient(conn)
	s.wsClientMu.Lock()
	s.wsClients[client.id] = client
	s.wsClientMu.Unlock()
	s.logger.WithField("client", client.id).Info("client connected")

	go client.writePump()

	// The current state goes out immediately so the client does not have
	// to wait for the next broadcast tick.
	client.send(s.arm.State())

	client.readPump()
}

func (s *Server) removeClient(client *wsClient) {
	s.wsClientMu.Lock()
	delete(s.wsClients, client.id)
	s.wsClientMu.Unlock()
	s.logger.WithField("client", client.id).Info("client disconnected")
}

// broadcast sends the current state to every connected client.
func (s *Server) broadcast() {
	state := s.arm.State()

	s.wsClientMu.RLock()
	defer s.wsClientMu.RUnlock()
	for _, client := range s.wsClients {
		client.send(state)
	}
}

// broadcastLoop streams state at the configured rate while any client is
// connected.
func (s *Server) broadcastLoop() {
	ticker := time.NewTicker(s.updatePeriod)
	defer ticker.Stop()

	for s.running.Load() {
		<-ticker.C

		s.wsClientMu.RLock()
		n := len(s.wsClients)
		s.wsClientMu.RUnlock()
		if n > 0 {
			s.broadcast()
		}
	}
}

// wsClient is one WebSocket connection.
type wsClient struct {
	id     int64
	conn   *websocket.Conn
	server *Server
	sendCh chan any
	done   chan struct{}
	mu     sync.Mutex
}

func (s *Server) newClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		id:     atomic.AddInt64(&s.nextWSID, 1),
		conn:   conn,
		server: s,
		sendCh: make(chan any, 64),
		done:   make(chan struct{}),
	}
}

// send queues a message for the client. Slow clients drop frames rather
// than stall the broadcaster.
func (c *wsClient) send(msg any) {
	select {
	case c.sendCh <- msg:
	case <-c.done:
	default:
		c.server.logger.WithField("client", c.id).Debug("dropping frame (send queue full)")
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
		close(c.done)
	}
	c.conn.Close()
}

// readPump reads target frames until the connection closes.
func (c *wsClient) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.close()
	}()

	c.conn.SetReadLimit(4 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.WithError(err).Warn("websocket read error")
			}
			return
		}
		c.handleMessage(message)
	}
}

// writePump drains the send queue and keeps the connection alive with
// pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// handleMessage applies one inbound target frame. The resulting state
// goes to every client, so all observers see the move, not just the one
// that requested it.
func (c *wsClient) handleMessage(data []byte) {
	var req targetRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.send(errorFrame{Error: "invalid frame: " + err.Error()})
		return
	}
	if req.Target == nil {
		c.send(errorFrame{Error: "missing target"})
		return
	}

	c.server.arm.MoveTo(req.Target.Point())
	c.server.broadcast()
}
