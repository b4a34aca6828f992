package server

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pefman/tower-duel/internal/match"
	"github.com/pefman/tower-duel/internal/models"
)

const (
	sendBuffer   = 64
	writeWait    = 10 * time.Second
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second // must be less than readTimeout
	maxFrameSize = 8192
)

var errNameTaken = errors.New("name already connected")

// client is one connected player.
type client struct {
	name  string
	codec Codec
	conn  *websocket.Conn
	send  chan []byte

	closeOnce sync.Once
}

// close stops the write pump; the read pump then fails and unwinds. Only
// the hub calls it, after removing c from its map.
func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// Hub routes events to connected players by username.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	log     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{clients: make(map[string]*client), log: logger.Named("hub")}
}

func (h *Hub) register(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.name]; ok {
		return errNameTaken
	}
	h.clients[c.name] = c
	return nil
}

// unregister removes c if it is still the client registered under its name.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if h.clients[c.name] == c {
		delete(h.clients, c.name)
	}
	h.mu.Unlock()
	c.close()
}

// Connected reports whether username has a live connection.
func (h *Hub) Connected(username string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[username]
	return ok
}

// Publish delivers ev to its recipients without blocking. A client whose
// buffer is full is dropped.
func (h *Hub) Publish(ev match.Event) {
	msg := models.WsMsg{Type: string(ev.Type), Data: ev.Data}
	var slow []*client
	h.mu.RLock()
	for _, name := range ev.To {
		c, ok := h.clients[name]
		if !ok {
			continue
		}
		if !h.enqueue(c, msg) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range slow {
		h.log.Warn("send buffer full, dropping client", zap.String("player", c.name))
		h.unregister(c)
	}
}

// sendTo delivers one message to a single registered client.
func (h *Hub) sendTo(c *client, msg models.WsMsg) {
	h.mu.RLock()
	ok := true
	if h.clients[c.name] == c {
		ok = h.enqueue(c, msg)
	}
	h.mu.RUnlock()
	if !ok {
		h.unregister(c)
	}
}

// enqueue reports false only when c's buffer is full. Callers hold h.mu
// and c is registered, so c.send is open.
func (h *Hub) enqueue(c *client, msg models.WsMsg) bool {
	frame, err := c.codec.Encode(msg)
	if err != nil {
		h.log.Error("encode message", zap.String("type", msg.Type), zap.Error(err))
		return true
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// writePump sends queued frames and keeps the connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(c.codec.FrameType(), frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
