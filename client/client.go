// Package client maintains an in-memory, referentially consistent mirror of
// the chat service: it hydrates the viewer's servers over REST, then applies
// push notifications to the entity registry while publishing consistent
// before/after snapshots on the event feed.
package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"chatapp-client/emitter"
	"chatapp-client/events"
	"chatapp-client/gateway"
	"chatapp-client/models"
	"chatapp-client/pagecache"
	"chatapp-client/registry"
	"chatapp-client/rest"
)

// Config replaces the service-level constants of the API: everything the
// core needs is passed in explicitly at construction.
type Config struct {
	// Host of the chat service, without scheme.
	Host string `validate:"required"`
	// APIPath is the path prefix of the REST API, usually empty.
	APIPath string
	// Token authorizes both the REST and the push channel. Opaque to the
	// client.
	Token string `validate:"required"`
	// MessageQueryLimit is the default page size for message fetches.
	// Defaults to 150.
	MessageQueryLimit int
	// DefaultIconURL is served for users and servers without a custom
	// icon. Derived from Host when empty.
	DefaultIconURL string
}

func (c *Config) withDefaults() {
	if c.MessageQueryLimit <= 0 {
		c.MessageQueryLimit = 150
	}
	if c.DefaultIconURL == "" {
		c.DefaultIconURL = "https://" + c.Host + "/avatars/default"
	}
}

// Stats counts conditions that are deliberately tolerated but should stay
// observable: notifications for entities the client never cached, payloads
// that could not be decoded, and references that degraded to a bare ID.
type Stats struct {
	DroppedNotifications uint64
	UnresolvedRefs       uint64
}

// Client is the cache-and-event core.
type Client struct {
	cfg   Config
	sugar *zap.SugaredLogger

	rest rest.Doer
	push gateway.PushClient

	registry *registry.Registry
	pages    *pagecache.Cache
	feed     *emitter.Emitter
	validate *validator.Validate

	me *models.ClientUser

	// mu serializes every registry mutation: push reconciliation and fetch
	// folds never interleave.
	mu sync.Mutex

	dropped    atomic.Uint64
	unresolved atomic.Uint64

	runDone chan struct{}
}

// New builds a client from its collaborators. The returned client does
// nothing until Start.
func New(cfg Config, doer rest.Doer, push gateway.PushClient, sugar *zap.SugaredLogger) (*Client, error) {
	v := validator.New()
	if err := v.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.withDefaults()

	return &Client{
		cfg:      cfg,
		sugar:    sugar,
		rest:     doer,
		push:     push,
		registry: registry.New(),
		pages:    pagecache.New(),
		feed:     emitter.New(sugar),
		validate: v,
		runDone:  make(chan struct{}),
	}, nil
}

// Start hydrates the viewer's identity and every known server, then connects
// the push channel and begins consuming notifications. Push events are never
// reconciled before the baseline graph exists.
func (c *Client) Start(ctx context.Context) error {
	res, err := c.rest.Do(ctx, "GET", "/users/me", nil, nil)
	if err != nil {
		return fmt.Errorf("fetching identity: %w", err)
	}

	var p clientUserPayload
	if err := res.Decode(&p); err != nil {
		return fmt.Errorf("decoding identity: %w", err)
	}
	me := &models.ClientUser{User: p.User, ServerIDs: p.ServerIDs, Settings: p.Settings}
	me.AvatarURL = c.avatarURL(&p.User, p.DefaultAvatar)

	c.mu.Lock()
	c.me = me
	for _, id := range me.ServerIDs {
		if _, err := c.fetchServer(ctx, id); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("hydrating server %s: %w", id, err)
		}
	}
	c.mu.Unlock()

	if err := c.push.Connect(ctx); err != nil {
		return fmt.Errorf("connecting push channel: %w", err)
	}

	go c.run()
	return nil
}

// run consumes the push channel on a single goroutine, so notifications are
// reconciled strictly in delivery order.
func (c *Client) run() {
	defer close(c.runDone)

	for n := range c.push.Notifications() {
		c.dispatch(n)
	}
}

// Close disconnects the push channel and waits for the run loop to drain.
func (c *Client) Close() error {
	err := c.push.Close()
	<-c.runDone
	return err
}

// Me returns the viewer's identity. Nil before Start.
func (c *Client) Me() *models.ClientUser {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.me
}

// On registers a handler for the named event and returns its unsubscribe.
func (c *Client) On(event string, fn func(payload any)) (off func()) {
	return c.feed.On(event, fn)
}

// Once registers a handler that fires for at most one emission of event.
func (c *Client) Once(event string, fn func(payload any)) (off func()) {
	return c.feed.Once(event, fn)
}

// Stats returns the drop/degrade counters.
func (c *Client) Stats() Stats {
	return Stats{
		DroppedNotifications: c.dropped.Load(),
		UnresolvedRefs:       c.unresolved.Load(),
	}
}

// Server returns the cached server, if any.
func (c *Client) Server(id string) (*models.Server, bool) { return c.registry.Servers.Get(id) }

// Channel returns the cached channel, if any.
func (c *Client) Channel(id string) (*models.Channel, bool) { return c.registry.Channels.Get(id) }

// User returns the cached user, if any.
func (c *Client) User(id string) (*models.User, bool) { return c.registry.Users.Get(id) }

// Invite returns the cached invite, if any.
func (c *Client) Invite(id string) (*models.Invite, bool) { return c.registry.Invites.Get(id) }

// MutualServers lists every cached server whose member set contains the
// user. Computed from the registry at call time, so it cannot go stale.
func (c *Client) MutualServers(userID string) []*models.Server {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mutualServersLocked(userID)
}

// StartTyping turns the viewer's typing indicator on in a channel. A no-op
// when the indicator is already on.
func (c *Client) StartTyping(channelID string) error {
	ch, ok := c.registry.Channels.Get(channelID)
	if !ok {
		return ErrUnknownChannel
	}

	c.mu.Lock()
	already := ch.ClientTyping
	ch.ClientTyping = true
	c.mu.Unlock()

	if already {
		return nil
	}
	return c.push.Send(events.TypingStart, typingPayload{ChannelID: channelID})
}

// StopTyping turns the viewer's typing indicator off. A no-op when the
// indicator is not on.
func (c *Client) StopTyping(channelID string) error {
	ch, ok := c.registry.Channels.Get(channelID)
	if !ok {
		return ErrUnknownChannel
	}

	c.mu.Lock()
	wasTyping := ch.ClientTyping
	ch.ClientTyping = false
	c.mu.Unlock()

	if !wasTyping {
		return nil
	}
	return c.push.Send(events.TypingStop, typingPayload{ChannelID: channelID})
}

func (c *Client) dropStale(event, id string) {
	c.dropped.Add(1)
	c.sugar.Warnf("Dropped [%s] for unknown ID [%s]", event, id)
}

func (c *Client) dropMalformed(event string, err error) {
	c.dropped.Add(1)
	c.sugar.Warnf("Dropped malformed [%s] payload: %v", event, err)
}
