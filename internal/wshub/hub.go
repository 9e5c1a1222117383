package wshub

import (
	"context"
	"errors"
	"sync"
	"time"

	"canvassync/internal/protocol"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second
)

// Client represents a single WebSocket connection in the hub.
type Client struct {
	ConnID string
	Conn   *websocket.Conn
	Send   chan []byte
	// cancel tears the connection down; set by NewClient.
	cancel context.CancelFunc
}

// NewClient wraps an accepted connection. Cancelling ctx's child, which the
// hub does when the client cannot keep up, closes the connection.
func NewClient(ctx context.Context, connID string, conn *websocket.Conn, buffer int) (*Client, context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	return &Client{
		ConnID: connID,
		Conn:   conn,
		Send:   make(chan []byte, buffer),
		cancel: cancel,
	}, ctx
}

// WritePump reads from the Send channel and writes to the WebSocket connection.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	log := logrus.WithFields(logrus.Fields{"component": "wshub", "conn_id": c.ConnID})

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.Send:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.Conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				log.WithError(err).Debug("write failed")
				c.Close()
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.Conn.Ping(pctx)
			cancel()
			if err != nil {
				log.WithError(err).Debug("ping failed")
				c.Close()
				return
			}
		}
	}
}

// ReadPump hands every text frame to onMessage until the connection closes.
// It returns nil on a normal close.
func (c *Client) ReadPump(ctx context.Context, onMessage func([]byte)) error {
	for {
		typ, data, err := c.Conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		onMessage(data)
	}
}

// Close cancels the client's context, which closes its connection.
func (c *Client) Close() {
	if c.cancel != nil {
		c.cancel()
	}
}

// Hub manages WebSocket connections keyed by connection id and delivers
// protocol notifications to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	log     *logrus.Entry
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		log:     logrus.WithField("component", "wshub"),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ConnID] = c
}

// Unregister removes a client and closes its Send channel.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if ok {
		close(c.Send)
		delete(h.clients, connID)
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send encodes msg and queues it for connID. It never blocks: a client whose
// queue is full has fallen behind the room's order, so it is disconnected and
// resynchronizes from a fresh snapshot when it rejoins.
func (h *Hub) Send(connID string, msg protocol.ServerMessage) {
	data, err := protocol.Encode(msg)
	if err != nil {
		h.log.WithError(err).Error("encode failed")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	select {
	case c.Send <- data:
	default:
		h.log.WithFields(logrus.Fields{"conn_id": connID, "type": msg.Kind()}).Warn("send queue full, closing connection")
		c.Close()
	}
}
