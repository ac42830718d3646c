package websockets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwise1/lookaround/util/logging"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterSource struct {
	value  atomic.Int64
	mu     sync.Mutex
	signal chan struct{}
}

func newCounterSource() *counterSource {
	return &counterSource{signal: make(chan struct{}, 1)}
}

func (s *counterSource) Subscribe() (<-chan struct{}, func()) { return s.signal, func() {} }

func (s *counterSource) Snapshot() int64 { return s.value.Load() }

func (s *counterSource) bump() {
	s.value.Add(1)
	s.signal <- struct{}{}
}

func (s *counterSource) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.signal)
}

type received struct {
	Type string `json:"type"`
	Data *int64 `json:"data"`
}

func dial(t *testing.T, src *counterSource) (*websocket.Conn, *WebSocketManager) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	manager := NewWebSocketManager(logging.Discard())
	go manager.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Serve[int64](manager, w, r, "session-1", src)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn, manager
}

func TestServeStreamsSnapshots(t *testing.T) {
	src := newCounterSource()
	conn, manager := dial(t, src)

	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MsgTypeSnapshot, msg.Type)
	require.NotNil(t, msg.Data)
	assert.Equal(t, int64(0), *msg.Data)
	assert.Equal(t, 1, manager.Count("session-1"))

	src.bump()
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, int64(1), *msg.Data)

	require.NoError(t, conn.WriteJSON(Message{Type: MsgTypeRefresh}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MsgTypeSnapshot, msg.Type)
	assert.Equal(t, int64(1), *msg.Data)
}

func TestServeSendsEndedAndCloses(t *testing.T) {
	src := newCounterSource()
	conn, _ := dial(t, src)

	var msg received
	require.NoError(t, conn.ReadJSON(&msg))

	src.end()
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MsgTypeEnded, msg.Type)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
