// Package terminal serves the interactive run WebSocket.
package terminal

import (
	"net/http"
	"strings"
	"sync"

	"github.com/antibyte/chayakada/pkg/auth"
	"github.com/antibyte/chayakada/pkg/configuration"
	"github.com/antibyte/chayakada/pkg/interpreter"
	"github.com/antibyte/chayakada/pkg/logger"

	"github.com/gorilla/websocket"
)

// RunHandler manages WebSocket connections that run scripts
type RunHandler struct {
	interp        *interpreter.Interpreter
	clients       map[*Client]bool
	pending       int // upgrades in progress, counted against max_clients
	mutex         sync.RWMutex
	upgrader      websocket.Upgrader
	clientManager *ClientManager

	maxSourceBytes  int
	normalizeSource bool
}

// NewRunHandler creates a handler that executes requests with interp
func NewRunHandler(interp *interpreter.Interpreter) *RunHandler {
	h := &RunHandler{
		interp:          interp,
		clients:         make(map[*Client]bool),
		clientManager:   NewClientManager(getMaxRunsPerMinute()),
		maxSourceBytes:  configuration.GetInt("Interpreter", "max_source_kb", 64) * 1024,
		normalizeSource: configuration.GetBool("Interpreter", "normalize_source", true),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     checkOrigin,
	}
	return h
}

// checkOrigin accepts requests without an Origin header (non-browser
// clients) and origins listed in [Server] allowed_origins. "*" allows all.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	allowed := configuration.GetString("Server", "allowed_origins", "*")
	for _, candidate := range strings.Split(allowed, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.EqualFold(candidate, origin) {
			return true
		}
	}

	logger.SecurityWarn("WebSocket request from disallowed origin rejected: %s", origin)
	return false
}

// HandleWebSocket upgrades the request and serves run messages until the
// client disconnects
func (h *RunHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ipAddress := clientIP(r)

	if !h.reserveSlot() {
		logger.Warn(logger.AreaWebSocket, "Maximum number of clients reached, rejecting %s", ipAddress)
		http.Error(w, "Server overloaded", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.releaseSlot()
		logger.Error(logger.AreaWebSocket, "WebSocket upgrade failed for %s: %v", ipAddress, err)
		return
	}

	client := &Client{
		conn:      conn,
		send:      make(chan []byte, getMaxChannelBuffer()),
		handler:   h,
		ipAddress: ipAddress,
		sessionID: auth.SessionIDFromContext(r.Context()),
		shutdown:  make(chan struct{}),
	}

	h.mutex.Lock()
	h.pending--
	h.clients[client] = true
	total := len(h.clients)
	h.mutex.Unlock()

	logger.Info(logger.AreaWebSocket, "Client %s connected (session %q, %d total)", ipAddress, client.sessionID, total)

	go client.writePump()
	go client.readPump()
}

// reserveSlot claims room for one more client, or reports that the server
// is full. Registered clients and upgrades in flight both count.
func (h *RunHandler) reserveSlot() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if len(h.clients)+h.pending >= getMaxClients() {
		return false
	}
	h.pending++
	return true
}

func (h *RunHandler) releaseSlot() {
	h.mutex.Lock()
	h.pending--
	h.mutex.Unlock()
}

// ClientCount returns the number of connected clients
func (h *RunHandler) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Shutdown closes every client connection
func (h *RunHandler) Shutdown() {
	h.mutex.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mutex.RUnlock()

	for _, c := range clients {
		h.cleanupClient(c)
	}
}

func (h *RunHandler) cleanupClient(c *Client) {
	h.mutex.Lock()
	_, exists := h.clients[c]
	delete(h.clients, c)
	h.mutex.Unlock()

	if !exists {
		return
	}
	c.closeOnce.Do(func() { close(c.shutdown) })
	c.conn.Close()
	h.clientManager.Prune()
	logger.Info(logger.AreaWebSocket, "Client %s disconnected", c.ipAddress)
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
