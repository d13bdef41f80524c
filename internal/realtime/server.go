package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"stringstack/internal/logger"
	"stringstack/internal/protocol"
	"stringstack/internal/session"
	"stringstack/internal/stack"
)

const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow localhost origins for dev.
	},
}

// Server manages WebSocket connections and routes messages between clients
// and the session manager.
type Server struct {
	sessionMgr *session.Manager
	clients    map[*client]bool
	clientsMu  sync.RWMutex
	log        *zap.SugaredLogger

	// subscriptions tracks which event subscriptions exist per client.
	// key: client, value: map[sessionID]subscriptionID
	subscriptions   map[*client]map[string]string
	subscriptionsMu sync.Mutex
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server

	mu     sync.Mutex // guards send against use after close
	closed bool
}

// New creates a new realtime server.
func New(sessionMgr *session.Manager) *Server {
	return &Server{
		sessionMgr:    sessionMgr,
		clients:       make(map[*client]bool),
		subscriptions: make(map[*client]map[string]string),
		log:           logger.Named("realtime"),
	}
}

// Handler returns an http.Handler with all routes configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint.
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API endpoints.
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /sessions/{id}/push", s.handlePush)
	mux.HandleFunc("POST /sessions/{id}/stop", s.handleStop)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleWebSocket upgrades an HTTP connection to WebSocket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("websocket upgrade error", "error", err)
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, 256),
		server: s,
	}

	s.clientsMu.Lock()
	s.clients[c] = true
	s.clientsMu.Unlock()

	s.subscriptionsMu.Lock()
	s.subscriptions[c] = make(map[string]string)
	s.subscriptionsMu.Unlock()

	// Send current session list to new client.
	s.sendSessionList(c)

	// Subscribe new client to sessions that are still reading, so it sees
	// pushes made by other clients.
	s.subscribeClientToActiveSessions(c)

	go c.writePump()
	go c.readPump()
}

// sendSessionList sends the current session state to a client.
func (s *Server) sendSessionList(c *client) {
	for _, sess := range s.sessionMgr.List() {
		msg, err := newSessionUpdate(sess)
		if err != nil {
			continue
		}
		c.sendMessage(msg)
	}
}

// readPump reads messages from the WebSocket connection.
func (c *client) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.log.Warnw("websocket read error", "error", err)
			}
			return
		}

		c.server.handleMessage(c, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendMessage queues a message for the client, dropping it if the client's
// buffer is full.
func (c *client) sendMessage(msg *protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// removeClient cleans up a disconnected client.
func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	delete(s.clients, c)
	s.clientsMu.Unlock()

	// Unsubscribe from all session events.
	s.subscriptionsMu.Lock()
	subs := s.subscriptions[c]
	delete(s.subscriptions, c)
	s.subscriptionsMu.Unlock()

	for sessionID, subID := range subs {
		s.sessionMgr.Unsubscribe(sessionID, subID)
	}

	c.close()
}

// handleMessage processes a validated client message.
func (s *Server) handleMessage(c *client, raw []byte) {
	msg, err := protocol.ValidateClientMessage(raw)
	if err != nil {
		s.sendError(c, protocol.ErrInvalidMessage, err.Error())
		return
	}

	switch msg.Type {
	case protocol.TypeSessionCreate:
		s.handleWSCreateSession(c, msg)
	case protocol.TypeSessionPush:
		s.handleWSPush(c, msg)
	case protocol.TypeSessionStop:
		s.handleWSStop(c, msg)
	case protocol.TypeSessionKill:
		s.handleWSKill(c, msg)
	}
}

func (s *Server) handleWSCreateSession(c *client, msg *protocol.Message) {
	var payload protocol.SessionCreatePayload
	json.Unmarshal(msg.Payload, &payload)

	sess, err := s.sessionMgr.Create(*payload.Capacity, payload.Label)
	if err != nil {
		s.sendError(c, errorCode(err), err.Error())
		return
	}

	// Subscribe all clients before anyone can push, then announce it.
	s.subscribeAllClients(sess.ID)
	s.broadcastSessionUpdate(sess)
}

func (s *Server) handleWSPush(c *client, msg *protocol.Message) {
	var payload protocol.SessionPushPayload
	json.Unmarshal(msg.Payload, &payload)

	res, err := s.sessionMgr.Push(payload.SessionID, payload.Value)
	if err != nil {
		s.sendError(c, errorCode(err), err.Error())
		return
	}
	s.broadcastSessionUpdate(&res.Session)
}

func (s *Server) handleWSStop(c *client, msg *protocol.Message) {
	var payload protocol.SessionIDPayload
	json.Unmarshal(msg.Payload, &payload)

	res, err := s.sessionMgr.Stop(payload.SessionID)
	if err != nil {
		s.sendError(c, errorCode(err), err.Error())
		return
	}
	s.broadcastSessionUpdate(&res.Session)
}

func (s *Server) handleWSKill(c *client, msg *protocol.Message) {
	var payload protocol.SessionIDPayload
	json.Unmarshal(msg.Payload, &payload)

	if err := s.sessionMgr.Kill(payload.SessionID); err != nil {
		s.sendError(c, errorCode(err), err.Error())
		return
	}
	if sess, err := s.sessionMgr.Get(payload.SessionID); err == nil {
		s.broadcastSessionUpdate(sess)
	}
}

// errorCode maps a manager error to a protocol error code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return protocol.ErrSessionNotFound
	case errors.Is(err, session.ErrTerminated):
		return protocol.ErrSessionTerminated
	case errors.Is(err, session.ErrInvalidState):
		return protocol.ErrInvalidState
	case errors.Is(err, session.ErrMaxSessions):
		return protocol.ErrMaxSessions
	case errors.Is(err, stack.ErrInvalidCapacity):
		return protocol.ErrInvalidCapacity
	default:
		return protocol.ErrInternal
	}
}

func newSessionUpdate(sess *session.Session) (*protocol.Message, error) {
	return protocol.NewMessage(protocol.TypeSessionUpdate, protocol.SessionUpdatePayload{
		ID:        sess.ID,
		State:     string(sess.State),
		Capacity:  sess.Capacity,
		Length:    sess.Length,
		Remaining: sess.Remaining,
		Label:     sess.Label,
		CreatedAt: sess.CreatedAt.Format(time.RFC3339Nano),
	})
}

// broadcastSessionUpdate sends a session update to all connected clients.
func (s *Server) broadcastSessionUpdate(sess *session.Session) {
	msg, err := newSessionUpdate(sess)
	if err != nil {
		return
	}
	s.broadcast(msg)
}

// broadcast sends a message to all connected clients.
func (s *Server) broadcast(msg *protocol.Message) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for c := range s.clients {
		c.sendMessage(msg)
	}
}

// subscribeAllClients subscribes all connected clients to a session's events.
func (s *Server) subscribeAllClients(sessionID string) {
	s.clientsMu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.RUnlock()

	for _, c := range clients {
		s.subscribeClient(c, sessionID)
	}
}

// subscribeClientToActiveSessions subscribes a single client to all
// non-terminated sessions.
func (s *Server) subscribeClientToActiveSessions(c *client) {
	for _, sess := range s.sessionMgr.List() {
		if sess.State != session.StateTerminated {
			s.subscribeClient(c, sess.ID)
		}
	}
}

// subscribeClient subscribes a single client to a session's events.
func (s *Server) subscribeClient(c *client, sessionID string) {
	s.subscriptionsMu.Lock()
	subs, connected := s.subscriptions[c]
	if !connected {
		s.subscriptionsMu.Unlock()
		return // Client already removed.
	}
	if _, exists := subs[sessionID]; exists {
		s.subscriptionsMu.Unlock()
		return // Already subscribed.
	}
	s.subscriptionsMu.Unlock()

	subID, ch, history, err := s.sessionMgr.Subscribe(sessionID)
	if err != nil {
		return
	}

	s.subscriptionsMu.Lock()
	if subs, connected := s.subscriptions[c]; connected {
		subs[sessionID] = subID
	} else {
		// The client left while subscribing.
		s.subscriptionsMu.Unlock()
		s.sessionMgr.Unsubscribe(sessionID, subID)
		return
	}
	s.subscriptionsMu.Unlock()

	// Send history.
	for _, event := range history {
		s.sendEvent(c, event)
	}

	// Forward new events.
	go func() {
		for event := range ch {
			s.sendEvent(c, event)
		}
	}()
}

// sendEvent forwards a session event to a client. Termination after a drain
// also carries the drained values.
func (s *Server) sendEvent(c *client, event session.Event) {
	msg, err := protocol.NewMessage(protocol.TypeSessionEvent, protocol.SessionEventPayload{
		SessionID: event.SessionID,
		Event:     string(event.Type),
		Data:      event.Data,
	})
	if err != nil {
		return
	}
	c.sendMessage(msg)

	if event.Type == session.EventTerminated && event.Data == "" {
		values := event.Values
		if values == nil {
			values = []string{}
		}
		msg, err := protocol.NewMessage(protocol.TypeSessionDrained, protocol.SessionDrainedPayload{
			SessionID: event.SessionID,
			Values:    values,
		})
		if err != nil {
			return
		}
		c.sendMessage(msg)
	}
}

func (s *Server) sendError(c *client, code, message string) {
	msg, err := protocol.NewErrorMessage(code, message)
	if err != nil {
		return
	}
	c.sendMessage(msg)
}

// OnScriptResult is the callback for the script watcher.
func (s *Server) OnScriptResult(result protocol.ScriptResultPayload) {
	msg, err := protocol.NewMessage(protocol.TypeScriptResult, result)
	if err != nil {
		return
	}
	s.broadcast(msg)
}
