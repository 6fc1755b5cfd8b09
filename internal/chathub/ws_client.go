package chathub

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBuffer     = 256
)

// WebSocketClient implements Client over a gorilla/websocket connection.
type WebSocketClient struct {
	UserID   uint
	Username string
	ConnID   string
	Conn     *websocket.Conn
	Hub      *ManagerService

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	log       *zap.Logger
}

func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn, userID uint, username string, log *zap.Logger) *WebSocketClient {
	connID := uuid.NewString()
	return &WebSocketClient{
		UserID:   userID,
		Username: username,
		ConnID:   connID,
		Conn:     conn,
		Hub:      hub,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		log:      log.With(zap.Uint("user_id", userID), zap.String("conn_id", connID)),
	}
}

func (c *WebSocketClient) GetUserID() uint     { return c.UserID }
func (c *WebSocketClient) GetUsername() string { return c.Username }
func (c *WebSocketClient) GetConnID() string   { return c.ConnID }

// Send queues frame for the write pump. A full buffer means the peer is not reading, and
// the connection is closed rather than allowed to hold up the sender.
func (c *WebSocketClient) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		c.log.Warn("Send buffer full, closing connection")
		c.Close()
		return false
	}
}

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close stops the write pump, which closes the socket and in turn ends the read pump.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.OnDisconnect(c)
		c.Close()
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("Error reading message", zap.Error(err))
			}
			return
		}

		// The frame is processed to the end even if the socket closes meanwhile, so an
		// accepted message is always stored.
		ctx, cancel := context.WithTimeout(context.Background(), c.Hub.opts.HandleTimeout)
		c.Hub.HandleInbound(ctx, c, message)
		cancel()
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Debug("Error writing message", zap.Error(err))
				c.Close()
				return
			}

		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
			c.Hub.Refresh(c)
		}
	}
}
