package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	readLimit  = 64 * 1024
	pongWait   = 60 * time.Second
	sendBuffer = 64
)

// Connection is one kiosk page.
type Connection struct {
	id           string
	ws           *websocket.Conn
	send         chan []byte
	logger       *zap.Logger
	handler      IntentHandler
	writeTimeout time.Duration
	pingInterval time.Duration
	onClose      func(id string)

	closeOnce sync.Once
	closed    chan struct{}
}

// NewConnection wraps an upgraded websocket.
func NewConnection(id string, ws *websocket.Conn, writeTimeout, pingInterval time.Duration, logger *zap.Logger, onClose func(string)) *Connection {
	return &Connection{
		id:           id,
		ws:           ws,
		send:         make(chan []byte, sendBuffer),
		logger:       logger.With(zap.String("client_id", id)),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		onClose:      onClose,
		closed:       make(chan struct{}),
	}
}

// ID returns the connection id.
func (c *Connection) ID() string {
	return c.id
}

// SetHandler installs the intent handler; call before Start.
func (c *Connection) SetHandler(h IntentHandler) {
	c.handler = h
}

// Start runs the write pump in the background and the read pump until the peer
// goes away or ctx ends.
func (c *Connection) Start(ctx context.Context) {
	go c.writePump(ctx)
	c.readPump(ctx)
}

func (c *Connection) readPump(ctx context.Context) {
	defer c.cleanup()
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := c.ws.ReadMessage()
		if err != nil {
			c.logger.Info("connection read closed", zap.Error(err))
			return
		}

		intent, err := ParseIntent(message)
		if err != nil {
			c.logger.Warn("dropping malformed intent", zap.Error(err))
			c.sendError(err.Error())
			continue
		}
		if c.handler == nil {
			continue
		}
		if err := c.handler.HandleIntent(ctx, intent); err != nil {
			c.logger.Info("intent rejected", zap.String("type", intent.Type), zap.Error(err))
			c.sendError(err.Error())
		}
	}
}

func (c *Connection) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			_ = c.ws.Close()
			return
		case <-c.closed:
			_ = c.write(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.Ping(); err != nil {
				return
			}
		}
	}
}

// Send enqueues a message; it never blocks the caller.
func (c *Connection) Send(msg []byte) {
	select {
	case <-c.closed:
		return
	default:
	}
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("dropping outgoing message, buffer full")
	}
}

func (c *Connection) sendError(text string) {
	data, err := json.Marshal(map[string]string{"type": "error", "text": text})
	if err != nil {
		return
	}
	c.Send(data)
}

// Ping sends a websocket ping.
func (c *Connection) Ping() error {
	return c.write(websocket.PingMessage, []byte("ping"))
}

func (c *Connection) write(messageType int, data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}

func (c *Connection) cleanup() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
		if c.onClose != nil {
			c.onClose(c.id)
		}
	})
}
