// Package gateway is the push-channel collaborator: a persistent websocket
// connection that delivers named notifications in per-connection order.
// Reconnection and backoff live here, not in the core.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Notification is the wire envelope for every push event.
type Notification struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// PushClient is the contract the core consumes notifications through.
type PushClient interface {
	// Connect performs the handshake and starts delivery. The server sends a
	// ready notification once the handshake completes.
	Connect(ctx context.Context) error
	// Notifications delivers events in per-connection order. The channel is
	// closed after Close or when reconnecting is abandoned.
	Notifications() <-chan Notification
	// Send emits a client-originated event (typing toggles).
	Send(event string, payload any) error
	Close() error
}

// ErrNotConnected is returned by Send before Connect succeeds.
var ErrNotConnected = errors.New("gateway is not connected")

// Client is the default PushClient on gorilla/websocket.
type Client struct {
	url       string
	token     string
	sugar     *zap.SugaredLogger
	sessionID string

	writeMu sync.Mutex
	conn    *websocket.Conn

	notif     chan Notification
	done      chan struct{}
	closeOnce sync.Once
}

// New returns a push client for wss://host/ws. The session ID only exists
// for log correlation across reconnects.
func New(host, token string, sugar *zap.SugaredLogger) *Client {
	return NewWithURL("wss://"+host+"/ws", token, sugar)
}

// NewWithURL is New with a fully spelled websocket URL, which the tests use
// to point at a local server.
func NewWithURL(url, token string, sugar *zap.SugaredLogger) *Client {
	return &Client{
		url:       url,
		token:     token,
		sugar:     sugar,
		sessionID: uuid.NewString(),
		notif:     make(chan Notification),
		done:      make(chan struct{}),
	}
}

// Connect dials the gateway, retrying with exponential backoff until ctx is
// cancelled, then starts the read pump.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.dial(ctx); err != nil {
		return err
	}
	go c.readPump(ctx)
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	op := func() error {
		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, _, err := dialer.DialContext(ctx, c.url+"?token="+c.token, nil)
		if err != nil {
			c.sugar.Warnf("Gateway dial failed for session [%s]: %v", c.sessionID, err)
			return err
		}

		c.writeMu.Lock()
		c.conn = conn
		c.writeMu.Unlock()

		c.sugar.Debugf("Gateway session [%s] connected", c.sessionID)
		return nil
	}

	return backoff.Retry(op, backoff.WithContext(backoff.NewExponentialBackOff(), ctx))
}

// readPump reads until the connection fails, then reconnects. Notifications
// of one connection are always delivered in read order before any from the
// next connection.
func (c *Client) readPump(ctx context.Context) {
	defer close(c.notif)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			case <-ctx.Done():
				return
			default:
			}

			c.sugar.Warnf("Gateway session [%s] read failed, reconnecting: %v", c.sessionID, err)
			if err := c.dial(ctx); err != nil {
				c.sugar.Errorf("Gateway session [%s] reconnect abandoned: %v", c.sessionID, err)
				return
			}
			continue
		}

		var n Notification
		if err := sonic.Unmarshal(raw, &n); err != nil {
			c.sugar.Warnf("Gateway session [%s] dropped undecodable frame: %v", c.sessionID, err)
			continue
		}

		select {
		case c.notif <- n:
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Notifications implements PushClient.
func (c *Client) Notifications() <-chan Notification {
	return c.notif
}

// Send emits a client-originated event on the current connection.
func (c *Client) Send(event string, payload any) error {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := sonic.Marshal(Notification{Event: event, Data: data})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Close terminates the connection and stops delivery.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.writeMu.Lock()
		if c.conn != nil {
			err = c.conn.Close()
		}
		c.writeMu.Unlock()
	})
	return err
}
