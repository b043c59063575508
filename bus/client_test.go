package bus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBus mimics the message bus service: every message is broadcast to all
// connected clients, and gui.status.request gets an answer.
type testBus struct {
	mu    sync.Mutex
	conns []*websocket.Conn
}

func (b *testBus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := &websocket.Upgrader{}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	b.mu.Lock()
	b.conns = append(b.conns, conn)
	b.mu.Unlock()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		b.broadcast(payload)

		msg, err := Deserialize(payload)
		if err == nil && msg.Type == "gui.status.request" {
			reply, _ := msg.Reply("gui.status.request.response", map[string]interface{}{
				"connected": true,
			}).Serialize()
			b.broadcast(reply)
		}
	}
}

func (b *testBus) broadcast(payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, conn := range b.conns {
		_ = conn.WriteMessage(websocket.TextMessage, payload)
	}
}

func startClient(t *testing.T) *Client {
	srv := httptest.NewServer(&testBus{})
	t.Cleanup(srv.Close)

	client := NewClient(&Config{
		Url:            "ws" + strings.TrimPrefix(srv.URL, "http"),
		ReconnectDelay: 10 * time.Millisecond,
	})
	require.NoError(t, client.Start())
	t.Cleanup(func() { _ = client.Stop() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.WaitConnected(ctx))

	return client
}

func TestClient_EmitAndOn(t *testing.T) {
	client := startClient(t)

	received := make(chan *Message, 1)
	client.On("ovos.phal.nm.is.connected", func(msg *Message) {
		received <- msg
	})

	err := client.Emit(NewMessage("ovos.phal.nm.is.connected", map[string]interface{}{
		"connection_name": "home-network",
	}))
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, "home-network", msg.String("connection_name"))
	case <-time.After(5 * time.Second):
		t.Fatal("message was not dispatched")
	}
}

func TestClient_CancelledSubscription(t *testing.T) {
	client := startClient(t)

	cancelled := make(chan *Message, 1)
	sub := client.On("ping", func(msg *Message) { cancelled <- msg })
	sub.Cancel()

	received := make(chan *Message, 1)
	client.On("ping", func(msg *Message) { received <- msg })

	require.NoError(t, client.Emit(NewMessage("ping", nil)))

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("message was not dispatched")
	}

	assert.Empty(t, cancelled)
}

func TestClient_WaitForResponse(t *testing.T) {
	client := startClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reply, err := client.WaitForResponse(ctx, NewMessage("gui.status.request", nil), "gui.status.request.response")
	require.NoError(t, err)
	assert.True(t, reply.Bool("connected"))
}

func TestClient_WaitForResponse_Timeout(t *testing.T) {
	client := startClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.WaitForResponse(ctx, NewMessage("nobody.listens", nil), "nobody.answers")
	assert.Equal(t, ErrTimeout, err)
}

func TestClient_EmitNotConnected(t *testing.T) {
	client := NewClient(&Config{Url: "ws://127.0.0.1:1/core"})

	err := client.Emit(NewMessage("ping", nil))
	assert.Equal(t, ErrNotConnected, err)
}

func TestDeserialize(t *testing.T) {
	msg, err := Deserialize([]byte(`{"type":"ovos.phal.nm.set.active.client","data":{"client":"gui"}}`))
	require.NoError(t, err)
	assert.Equal(t, "gui", msg.String("client"))
	assert.NotNil(t, msg.Context)

	_, err = Deserialize([]byte(`{"data":{}}`))
	assert.Error(t, err)

	_, err = Deserialize([]byte(`not json`))
	assert.Error(t, err)
}
