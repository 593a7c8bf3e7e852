// Package dashboard provides a real-time WebSocket server for task
// monitoring.
//
// The server broadcasts store sync events and collection statistics to
// connected WebSocket clients, enabling live monitoring of the task
// list as it is generated, expanded, and re-linked.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/steveyegge/loom/internal/cache"
)

// MessageType defines the type of dashboard message.
type MessageType string

const (
	// MessageTypeSyncComplete indicates the cache was rebuilt from the
	// task store.
	MessageTypeSyncComplete MessageType = "sync_complete"

	// MessageTypeStats carries updated collection statistics.
	MessageTypeStats MessageType = "stats"
)

// Message is a dashboard broadcast envelope.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// SyncCompleteData describes a completed store-to-cache sync.
type SyncCompleteData struct {
	Entries  int           `json:"entries"`
	Deps     int           `json:"deps"`
	Duration time.Duration `json:"duration"`
}

// StatsData mirrors cache.Stats for the wire.
type StatsData struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
	Blocked  int            `json:"blocked"`
	Ready    int            `json:"ready"`
}

// Server manages WebSocket connections and broadcasts messages.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server
	db       *cache.DB

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration.
type Config struct {
	// Port to listen on (0 = random available port).
	Port int

	// Cache serves the /api/stats endpoint (optional).
	Cache *cache.DB

	// Logger for server activity (default stderr).
	Logger *log.Logger
}

// New creates a dashboard server. Call Start to begin listening.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "dashboard: ", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      fmt.Sprintf("127.0.0.1:%d", cfg.Port),
		db:        cfg.Cache,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 64),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}
}

// Start binds the listener and serves until Stop is called.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/stats", s.handleStats)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.logger.Printf("dashboard listening on http://%s", s.addr)
	if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard server failed: %w", err)
	}
	return nil
}

// Stop shuts the server down and disconnects all clients.
func (s *Server) Stop() error {
	s.cancel()

	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down dashboard: %w", err)
		}
	}

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	s.clients = make(map[*websocket.Conn]bool)
	s.clientsMu.Unlock()

	s.wg.Wait()
	return nil
}

// Addr returns the bound address (valid after Start).
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Broadcast queues a message for delivery to all connected clients.
// Messages are dropped when the queue is full.
func (s *Server) Broadcast(msgType MessageType, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		s.logger.Printf("warning: failed to marshal %s broadcast: %v", msgType, err)
		return
	}

	msg := Message{Type: msgType, Timestamp: time.Now(), Data: payload}
	select {
	case s.broadcast <- msg:
	default:
		s.logger.Printf("warning: broadcast queue full, dropping %s message", msgType)
	}
}

// broadcastLoop fans queued messages out to every connected client.
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("warning: failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			conns := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				conns = append(conns, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range conns {
				writeCtx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
				if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
					s.removeClient(conn)
				}
				cancel()
			}
		}
	}
}

// handleWebSocket upgrades the connection and registers the client.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Printf("warning: websocket accept failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	count := len(s.clients)
	s.clientsMu.Unlock()
	s.logger.Printf("client connected (%d total)", count)

	// Hold the connection open; clients only receive.
	ctx := conn.CloseRead(s.ctx)
	<-ctx.Done()
	s.removeClient(conn)
}

// handleStats serves current collection statistics as JSON.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		http.Error(w, "cache not attached", http.StatusServiceUnavailable)
		return
	}

	stats, err := s.db.GetStats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(StatsData{
		Total:    stats.Total,
		ByStatus: stats.ByStatus,
		Blocked:  stats.Blocked,
		Ready:    stats.Ready,
	})
}

// removeClient unregisters and closes a client connection.
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, ok := s.clients[conn]; ok {
		delete(s.clients, conn)
		s.logger.Printf("client disconnected (%d total)", len(s.clients))
	}
	s.clientsMu.Unlock()
	_ = conn.Close(websocket.StatusNormalClosure, "")
}
