package websockets

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewWebSocketManager initializes a WebSocketManager
func NewWebSocketManager(log logrus.FieldLogger) *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[*websocket.Conn]*Client),
		register:   make(chan *Client),
		unregister: make(chan *websocket.Conn),
		stopped:    make(chan struct{}),
		log:        log,
	}
}

// Run tracks connected clients until the context is cancelled, then closes them all.
func (manager *WebSocketManager) Run(ctx context.Context) {
	defer close(manager.stopped)
	for {
		select {
		case client := <-manager.register:
			manager.mu.Lock()
			manager.clients[client.Conn] = client
			manager.mu.Unlock()

		case conn := <-manager.unregister:
			manager.mu.Lock()
			if client, exists := manager.clients[conn]; exists {
				delete(manager.clients, conn)
				conn.Close()
				manager.log.WithField("session_id", client.Key).Debug("websocket client disconnected")
			}
			manager.mu.Unlock()

		case <-ctx.Done():
			manager.mu.Lock()
			for conn := range manager.clients {
				conn.Close()
				delete(manager.clients, conn)
			}
			manager.mu.Unlock()
			return
		}
	}
}

// Count returns how many clients watch the key.
func (manager *WebSocketManager) Count(key string) int {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	n := 0
	for _, client := range manager.clients {
		if client.Key == key {
			n++
		}
	}
	return n
}

// Serve upgrades the request and streams the source's snapshots until either side goes away.
// The first snapshot is sent immediately.
func Serve[T any](manager *WebSocketManager, w http.ResponseWriter, r *http.Request, key string, src Source[T]) {
	signals, unsubscribe := src.Subscribe()
	defer unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		manager.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &Client{Conn: conn, Key: key, refresh: make(chan struct{}, 1)}
	select {
	case manager.register <- client:
	case <-manager.stopped:
		conn.Close()
		return
	}
	defer func() {
		select {
		case manager.unregister <- conn:
		case <-manager.stopped:
		}
	}()

	done := make(chan struct{})
	go client.readLoop(manager.log, done)

	send := func() bool {
		return client.write(Envelope{Type: MsgTypeSnapshot, Data: src.Snapshot()}) == nil
	}
	if !send() {
		return
	}

	for {
		select {
		case _, ok := <-signals:
			if !ok {
				_ = client.write(Envelope{Type: MsgTypeEnded})
				_ = client.writeClose(websocket.CloseNormalClosure, "session ended")
				return
			}
			if !send() {
				return
			}
		case <-client.refresh:
			if !send() {
				return
			}
		case <-done:
			return
		}
	}
}

// readLoop handles control frames and refresh requests. It closes done when the peer
// disconnects.
func (c *Client) readLoop(log logrus.FieldLogger, done chan<- struct{}) {
	defer close(done)
	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			return
		}

		var message Message
		if err := json.Unmarshal(msg, &message); err != nil {
			log.WithError(err).Debug("invalid websocket message")
			continue
		}

		switch message.Type {
		case MsgTypeRefresh:
			select {
			case c.refresh <- struct{}{}:
			default:
			}
		}
	}
}

func (c *Client) write(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteJSON(v)
}

func (c *Client) writeClose(code int, text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text),
		time.Now().Add(writeWait))
}
