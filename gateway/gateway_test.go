package gateway_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chatapp-client/gateway"
)

var upgrader = websocket.Upgrader{}

// startServer runs a websocket endpoint that hands every accepted
// connection to handle.
func startServer(t *testing.T, handle func(conn *websocket.Conn, r *http.Request)) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handle(conn, r)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnectDeliversNotifications(t *testing.T) {
	t.Parallel()

	url := startServer(t, func(conn *websocket.Conn, r *http.Request) {
		assert.Equal(t, "tok", r.URL.Query().Get("token"))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"event":"ready","data":{"id":"10"}}`)))
	})

	c := gateway.NewWithURL(url, "tok", zap.NewNop().Sugar())
	t.Cleanup(func() { c.Close() })

	require.NoError(t, c.Connect(context.Background()))

	select {
	case n := <-c.Notifications():
		assert.Equal(t, "ready", n.Event)
		assert.JSONEq(t, `{"id":"10"}`, string(n.Data))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestSendBeforeConnect(t *testing.T) {
	t.Parallel()

	c := gateway.NewWithURL("ws://127.0.0.1:0/ws", "tok", zap.NewNop().Sugar())
	require.ErrorIs(t, c.Send("typingStart", nil), gateway.ErrNotConnected)
}

func TestSendWritesEnvelope(t *testing.T) {
	t.Parallel()

	frames := make(chan []byte, 1)
	url := startServer(t, func(conn *websocket.Conn, r *http.Request) {
		_, raw, err := conn.ReadMessage()
		if err == nil {
			frames <- raw
		}
	})

	c := gateway.NewWithURL(url, "tok", zap.NewNop().Sugar())
	t.Cleanup(func() { c.Close() })

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Send("typingStart", map[string]string{"channel": "200"}))

	select {
	case raw := <-frames:
		assert.JSONEq(t, `{"event":"typingStart","data":{"channel":"200"}}`, string(raw))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestUndecodableFramesSkipped(t *testing.T) {
	t.Parallel()

	url := startServer(t, func(conn *websocket.Conn, r *http.Request) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{broken`)))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"event":"message","data":{}}`)))
	})

	c := gateway.NewWithURL(url, "tok", zap.NewNop().Sugar())
	t.Cleanup(func() { c.Close() })

	require.NoError(t, c.Connect(context.Background()))

	select {
	case n := <-c.Notifications():
		assert.Equal(t, "message", n.Event)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	t.Parallel()

	url := startServer(t, func(conn *websocket.Conn, r *http.Request) {
		// Hold the connection open until the client hangs up.
		conn.ReadMessage()
	})

	c := gateway.NewWithURL(url, "tok", zap.NewNop().Sugar())
	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Close())

	select {
	case _, ok := <-c.Notifications():
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}

	// Close is idempotent.
	require.NoError(t, c.Close())
}

func TestConnectFailsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := gateway.NewWithURL("ws://127.0.0.1:0/ws", "tok", zap.NewNop().Sugar())
	require.Error(t, c.Connect(ctx))
}
