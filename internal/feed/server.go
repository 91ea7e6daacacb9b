package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"smart-energy/internal/config"
	"smart-energy/internal/models"
	"smart-energy/internal/simulation"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	MessageSnapshot = "snapshot"
	MessageRefresh  = "refresh"

	writeTimeout = 5 * time.Second
	clientBuffer = 8
)

// Message is exchanged with display clients over the websocket.
type Message struct {
	Type     string               `json:"type"`
	ClientID string               `json:"client_id,omitempty"`
	Snapshot *simulation.Snapshot `json:"snapshot,omitempty"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Server streams snapshots of the energy system to local display clients.
// Clients can only ask for a refresh; they never write simulation state.
type Server struct {
	server   *http.Server
	upgrader websocket.Upgrader
	system   *simulation.EnergySystem
	config   *config.Config
	logger   *logrus.Logger

	mutex   sync.RWMutex
	clients map[string]*client

	changed chan struct{}

	lifecycle   sync.Mutex
	unsubscribe []func()
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewServer(cfg *config.Config, system *simulation.EnergySystem, logger *logrus.Logger) *Server {
	return &Server{
		system:  system,
		config:  cfg,
		logger:  logger,
		clients: make(map[string]*client),
		changed: make(chan struct{}, 1),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/status", s.handleStatus)
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	s.lifecycle.Lock()
	s.server = server
	s.lifecycle.Unlock()

	s.watch(ctx)

	s.logger.Infof("Starting display feed on ws://%s/ws", addr)

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down display feed...")
		server.Close()
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("feed server failed: %w", err)
	}

	return nil
}

func (s *Server) Stop() {
	s.lifecycle.Lock()
	server := s.server
	s.lifecycle.Unlock()

	if server != nil {
		s.logger.Info("Stopping display feed")
		server.Close()
	}
	s.unwatch()

	s.mutex.Lock()
	for id, c := range s.clients {
		delete(s.clients, id)
		close(c.send)
	}
	s.mutex.Unlock()
}

// watch subscribes to the system and starts the broadcaster.
func (s *Server) watch(ctx context.Context) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.unsubscribe = append(s.unsubscribe, s.system.Subscribe(s.onChange))
	for _, p := range s.system.SecurityParameters() {
		s.unsubscribe = append(s.unsubscribe, p.Subscribe(s.onChange))
	}

	go s.broadcast(ctx, s.done)
}

func (s *Server) unwatch() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.cancel == nil {
		return
	}
	for _, unsubscribe := range s.unsubscribe {
		unsubscribe()
	}
	s.unsubscribe = nil
	s.cancel()
	<-s.done
	s.cancel = nil
}

// onChange runs inside the tick dispatch; it only flags that a fresh
// snapshot is due so bursts of field changes collapse into one message.
func (s *Server) onChange(models.Field) {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *Server) broadcast(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.changed:
			payload, err := s.snapshotMessage("")
			if err != nil {
				s.logger.Errorf("Failed to encode snapshot: %v", err)
				continue
			}

			s.mutex.RLock()
			for _, c := range s.clients {
				select {
				case c.send <- payload:
				default:
					s.logger.Warnf("Client %s is not keeping up, dropping snapshot", c.id)
				}
			}
			s.mutex.RUnlock()
		}
	}
}

func (s *Server) snapshotMessage(clientID string) ([]byte, error) {
	snapshot := s.system.Snapshot()
	return json.Marshal(Message{Type: MessageSnapshot, ClientID: clientID, Snapshot: &snapshot})
}

func (s *Server) ClientCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.clients)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"clients":  s.ClientCount(),
		"snapshot": s.system.Snapshot(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Errorf("Failed to write status: %v", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientBuffer),
	}

	hello, err := s.snapshotMessage(c.id)
	if err != nil {
		s.logger.Errorf("Failed to encode snapshot: %v", err)
		return
	}
	c.send <- hello

	s.mutex.Lock()
	s.clients[c.id] = c
	s.mutex.Unlock()

	s.logger.Infof("Display client %s connected", c.id)
	go s.writeLoop(c)

	defer func() {
		s.removeClient(c)
		s.logger.Infof("Display client %s disconnected", c.id)
	}()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Errorf("Read message error for %s: %v", c.id, err)
			}
			break
		}

		if messageType == websocket.TextMessage {
			s.handleMessage(c, message)
		}
	}
}

func (s *Server) handleMessage(c *client, message []byte) {
	s.logger.Debugf("Received from %s: %s", c.id, string(message))

	var msg Message
	if err := json.Unmarshal(message, &msg); err != nil {
		s.logger.Warnf("Invalid message from %s: %v", c.id, err)
		return
	}

	switch msg.Type {
	case MessageRefresh:
		s.system.Refresh()
	default:
		s.logger.Warnf("Unknown message type from %s: %q", c.id, msg.Type)
	}
}

func (s *Server) writeLoop(c *client) {
	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.logger.Errorf("Write message error for %s: %v", c.id, err)
			c.conn.Close()
			return
		}
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.conn.Close()
}

func (s *Server) removeClient(c *client) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.clients[c.id]; exists {
		delete(s.clients, c.id)
		close(c.send)
	}
}
