package terminal

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/antibyte/chayakada/pkg/configuration"
	"github.com/antibyte/chayakada/pkg/interpreter"
	"github.com/antibyte/chayakada/pkg/logger"
	"github.com/antibyte/chayakada/pkg/shared"

	"github.com/gorilla/websocket"
)

// WebSocket settings, see the [Network] section of settings.cfg

func getWriteWait() time.Duration {
	return configuration.GetDuration("Network", "write_wait_timeout", 10*time.Second)
}

func getPongWait() time.Duration {
	return configuration.GetDuration("Network", "pong_timeout", 90*time.Second)
}

func getPingPeriod() time.Duration {
	return (getPongWait() * 9) / 10
}

func getMaxMessageSize() int64 {
	return int64(configuration.GetInt("Network", "max_message_size_kb", 128) * 1024)
}

func getMaxChannelBuffer() int {
	return configuration.GetInt("Network", "max_channel_buffer", 64)
}

func getMaxClients() int {
	return configuration.GetInt("Network", "max_clients", 100)
}

func getMaxRunsPerMinute() int {
	return configuration.GetInt("Network", "max_runs_per_minute", 120)
}

var errBusy = errors.New("a program is already running on this connection")

// Client is one connected WebSocket
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	handler   *RunHandler
	ipAddress string
	sessionID string
	running   atomic.Bool
	shutdown  chan struct{}
	closeOnce sync.Once
}

// sendResponse queues resp for the write pump. A client whose buffer is full
// is disconnected.
func (c *Client) sendResponse(resp shared.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Error(logger.AreaWebSocket, "Failed to encode response: %v", err)
		return
	}

	select {
	case <-c.shutdown:
	case c.send <- data:
	default:
		logger.Warn(logger.AreaWebSocket, "Send buffer full for client %s, disconnecting", c.ipAddress)
		go c.handler.cleanupClient(c)
	}
}

// readPump reads requests until the connection fails
func (c *Client) readPump() {
	defer c.handler.cleanupClient(c)

	c.conn.SetReadLimit(getMaxMessageSize())
	c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Warn(logger.AreaWebSocket, "Unexpected close error for client %s: %v", c.ipAddress, err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(getPongWait()))

		if messageType != websocket.TextMessage {
			c.sendResponse(shared.NewError("", "only text messages are supported"))
			continue
		}

		var req shared.Request
		if err := json.Unmarshal(message, &req); err != nil {
			logger.Debug(logger.AreaWebSocket, "Invalid JSON from %s: %v", c.ipAddress, err)
			c.sendResponse(shared.NewError("", "invalid JSON message"))
			continue
		}

		c.handleRequest(req)
	}
}

func (c *Client) handleRequest(req shared.Request) {
	switch req.Type {
	case shared.MessageTypeKeepalive:
		logger.Debug(logger.AreaWebSocket, "Keepalive from %s", c.ipAddress)
	case shared.MessageTypeRun:
		if err := c.handler.clientManager.CheckRateLimit(c.ipAddress); err != nil {
			c.sendResponse(shared.NewError(req.ID, err.Error()))
			return
		}
		if !c.running.CompareAndSwap(false, true) {
			c.sendResponse(shared.NewError(req.ID, errBusy.Error()))
			return
		}
		// Pauses block the run, so it must not hold up the read loop
		go func() {
			defer c.running.Store(false)
			c.run(req)
		}()
	default:
		c.sendResponse(shared.NewError(req.ID, "unknown message type: "+string(req.Type)))
	}
}

func (c *Client) run(req shared.Request) {
	code := req.Code
	if err := interpreter.CheckSourceSize(code, c.handler.maxSourceBytes); err != nil {
		c.sendResponse(shared.NewError(req.ID, err.Error()))
		return
	}
	if c.handler.normalizeSource {
		code = interpreter.NormalizeSource(code)
	}

	result := c.handler.interp.Execute(code)
	logger.Info(logger.AreaWebSocket, "Run for %s: %d statements, %d errors", c.ipAddress, result.Dispatched, len(result.Errors))
	c.sendResponse(shared.NewOutput(req.ID, result.Output))
}

// writePump writes queued responses and pings the client
func (c *Client) writePump() {
	ticker := time.NewTicker(getPingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug(logger.AreaWebSocket, "Write to %s failed: %v", c.ipAddress, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug(logger.AreaWebSocket, "Failed to send ping to client %s: %v", c.ipAddress, err)
				return
			}
		case <-c.shutdown:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
