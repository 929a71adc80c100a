package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"projectd/internal/registry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// the CORS policy on the router is the access control surface; the
	// upgrade itself accepts any origin
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub tracks live WebSocket connections and fans broadcasts out to them.
type Hub struct {
	mu    sync.Mutex
	conns map[string]*wsConn
	log   zerolog.Logger
}

type wsConn struct {
	id string
	mu sync.Mutex // serializes writes per connection
	c  *websocket.Conn
}

// NewHub returns an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		conns: make(map[string]*wsConn),
		log:   log.With().Str("component", "ws").Logger(),
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Broadcast sends msg to every connection and returns how many received it.
// Connections that fail the write are dropped.
func (h *Hub) Broadcast(msg any) int {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Warn().Err(err).Msg("broadcast payload not serializable")
		return 0
	}
	h.mu.Lock()
	conns := make([]*wsConn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	sent := 0
	for _, c := range conns {
		c.mu.Lock()
		err := c.c.WriteMessage(websocket.TextMessage, data)
		c.mu.Unlock()
		if err != nil {
			h.remove(c.id)
			_ = c.c.Close()
			continue
		}
		sent++
	}
	wsBroadcasts.Inc()
	return sent
}

func (h *Hub) add(conn *websocket.Conn) *wsConn {
	c := &wsConn{id: uuid.NewString(), c: conn}
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
	wsConnections.Inc()
	return c
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	_, ok := h.conns[id]
	delete(h.conns, id)
	h.mu.Unlock()
	if ok {
		wsConnections.Dec()
	}
}

type wsMessage struct {
	Type     string         `json:"type"`
	Function string         `json:"function,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := s.hub.add(conn)
	s.log.Info().Str("conn", c.id).Int("active", s.hub.Count()).Msg("websocket connected")
	defer func() {
		s.hub.remove(c.id)
		_ = conn.Close()
		s.log.Info().Str("conn", c.id).Int("active", s.hub.Count()).Msg("websocket disconnected")
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wsMessage
		var reply map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			reply = map[string]any{"type": "error", "error": "invalid JSON message"}
		} else {
			reply = s.handleWSMessage(r.Context(), msg)
		}
		c.mu.Lock()
		err = conn.WriteJSON(reply)
		c.mu.Unlock()
		if err != nil {
			return
		}
	}
}

func (s *Server) handleWSMessage(ctx context.Context, msg wsMessage) map[string]any {
	switch msg.Type {
	case "", "ping":
		return map[string]any{
			"type":      "pong",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
	case "function_call":
		spec, ok := s.reg.Spec(msg.Function)
		if !ok || spec.Scope == registry.ScopeInternal {
			return map[string]any{
				"type":     "function_result",
				"function": msg.Function,
				"success":  false,
				"error":    "function not registered: " + msg.Function,
			}
		}
		result, err := s.reg.Call(ctx, msg.Function, msg.Params)
		if err != nil {
			return map[string]any{
				"type":     "function_result",
				"function": msg.Function,
				"success":  false,
				"error":    err.Error(),
			}
		}
		return map[string]any{
			"type":     "function_result",
			"function": msg.Function,
			"success":  true,
			"result":   result,
		}
	default:
		return map[string]any{
			"type":  "error",
			"error": fmt.Sprintf("unsupported message type: %q", msg.Type),
		}
	}
}
