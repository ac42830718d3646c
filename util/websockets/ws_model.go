package websockets

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Message types
const (
	MsgTypeSnapshot = "snapshot"
	MsgTypeEnded    = "session_ended"
	MsgTypeRefresh  = "refresh"
)

// Source is a live value that signals when it may have changed. Signals coalesce and the
// channel is closed when the source goes away.
type Source[T any] interface {
	Subscribe() (<-chan struct{}, func())
	Snapshot() T
}

// Client represents a connected WebSocket viewer
type Client struct {
	Conn *websocket.Conn
	Key  string

	writeMu sync.Mutex
	refresh chan struct{}
}

type WebSocketManager struct {
	clients    map[*websocket.Conn]*Client
	register   chan *Client
	unregister chan *websocket.Conn
	stopped    chan struct{}
	mu         sync.Mutex
	log        logrus.FieldLogger
}

// Envelope wraps every outgoing message
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Message struct for incoming WebSocket messages
type Message struct {
	Type string `json:"type"`
}
