package client

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chatapp-client/gateway"
	"chatapp-client/rest"
)

// fakeDoer serves canned responses keyed by "METHOD path" and records every
// request it sees. Unrouted requests come back as 404.
type fakeDoer struct {
	mu        sync.Mutex
	responses map[string]string
	calls     []string
	bodies    map[string]any
}

func newFakeDoer() *fakeDoer {
	return &fakeDoer{
		responses: make(map[string]string),
		bodies:    make(map[string]any),
	}
}

func (d *fakeDoer) route(method, path, body string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.responses[method+" "+path] = body
}

func (d *fakeDoer) Do(ctx context.Context, method, path string, headers map[string]string, body any) (*rest.Response, error) {
	key := method + " " + path

	d.mu.Lock()
	d.calls = append(d.calls, key)
	d.bodies[key] = body
	raw, ok := d.responses[key]
	d.mu.Unlock()

	if !ok {
		return nil, &rest.StatusError{Status: http.StatusNotFound, StatusLine: "404 Not Found"}
	}
	return &rest.Response{Status: http.StatusOK, Body: []byte(raw)}, nil
}

func (d *fakeDoer) count(method, path string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, call := range d.calls {
		if call == method+" "+path {
			n++
		}
	}
	return n
}

func (d *fakeDoer) lastBody(method, path string) any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bodies[method+" "+path]
}

// fakePush satisfies gateway.PushClient without a connection. Tests drive
// reconciliation by calling dispatch directly, so the notification channel
// stays idle until Close.
type fakePush struct {
	mu        sync.Mutex
	notif     chan gateway.Notification
	sent      []gateway.Notification
	closeOnce sync.Once
}

func newFakePush() *fakePush {
	return &fakePush{notif: make(chan gateway.Notification, 16)}
}

func (p *fakePush) Connect(ctx context.Context) error { return nil }

func (p *fakePush) Notifications() <-chan gateway.Notification { return p.notif }

func (p *fakePush) Send(event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, gateway.Notification{Event: event, Data: raw})
	return nil
}

func (p *fakePush) Close() error {
	p.closeOnce.Do(func() { close(p.notif) })
	return nil
}

func (p *fakePush) sentEvents() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, len(p.sent))
	for i, n := range p.sent {
		out[i] = n.Event
	}
	return out
}

func notify(event, data string) gateway.Notification {
	return gateway.Notification{Event: event, Data: json.RawMessage(data)}
}

// newTestClient starts a client against a one-server fixture: the viewer
// (10, alice) owns server 100 with text channel 200 and member bob (11).
func newTestClient(t *testing.T) (*Client, *fakeDoer, *fakePush) {
	t.Helper()

	doer := newFakeDoer()
	doer.route("GET", "/users/me", `{"id":"10","username":"alice","servers":["100"],"settings":{}}`)
	doer.route("GET", "/servers/100", `{"id":"100","name":"home","owner":"10","defaultIcon":true,"channels":["200"],"members":["10","11"]}`)
	doer.route("GET", "/channels/200", `{"id":"200","name":"general","type":"text","server":"100"}`)
	doer.route("GET", "/users/10", `{"id":"10","username":"alice"}`)
	doer.route("GET", "/users/11", `{"id":"11","username":"bob"}`)
	doer.route("GET", "/servers/100/members",
		`[{"id":"10","user":"10","server":"100"},{"id":"11","user":"11","server":"100","nickname":"bobby"}]`)

	push := newFakePush()
	c, err := New(Config{Host: "chat.example.com", Token: "tok"}, doer, push, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { c.Close() })

	return c, doer, push
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Host: "chat.example.com"}, newFakeDoer(), newFakePush(), zap.NewNop().Sugar())
	require.Error(t, err)

	_, err = New(Config{Token: "tok"}, newFakeDoer(), newFakePush(), zap.NewNop().Sugar())
	require.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	c, err := New(Config{Host: "chat.example.com", Token: "tok"}, newFakeDoer(), newFakePush(), zap.NewNop().Sugar())
	require.NoError(t, err)

	assert.Equal(t, 150, c.cfg.MessageQueryLimit)
	assert.Equal(t, "https://chat.example.com/avatars/default", c.cfg.DefaultIconURL)
}

func TestStartHydratesGraph(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestClient(t)

	me := c.Me()
	require.NotNil(t, me)
	assert.Equal(t, "10", me.ID)
	assert.Equal(t, []string{"100"}, me.ServerIDs)

	s, ok := c.Server("100")
	require.True(t, ok)
	assert.Equal(t, "home", s.Name)
	assert.Equal(t, "https://chat.example.com/avatars/default", s.IconURL)
	assert.True(t, s.MembersCached)

	ch, ok := c.Channel("200")
	require.True(t, ok)
	assert.Same(t, s, ch.Server)
	assert.Same(t, ch, s.Channels["200"])

	// The viewer owns the server, so its channels are manageable.
	assert.True(t, ch.Editable)
	assert.True(t, ch.Deletable)

	require.Len(t, s.Members, 2)
	bob := s.Members["11"]
	require.NotNil(t, bob)
	assert.Equal(t, "bobby", bob.Nickname)
	require.NotNil(t, bob.User)
	assert.Equal(t, "bob", bob.User.Username)
	assert.Same(t, s, bob.Server)

	require.NotNil(t, s.Owner)
	assert.Equal(t, "10", s.Owner.ID)
}

func TestStartFailsWhenIdentityUnavailable(t *testing.T) {
	t.Parallel()

	doer := newFakeDoer()
	c, err := New(Config{Host: "chat.example.com", Token: "tok"}, doer, newFakePush(), zap.NewNop().Sugar())
	require.NoError(t, err)

	err = c.Start(context.Background())
	require.Error(t, err)
	assert.Nil(t, c.Me())
}

func TestFetchServerCacheHit(t *testing.T) {
	t.Parallel()

	c, doer, _ := newTestClient(t)
	before := doer.count("GET", "/servers/100")

	s, err := c.FetchServer(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, "100", s.ID)
	assert.Equal(t, before, doer.count("GET", "/servers/100"))
}

func TestFetchUserTombstone(t *testing.T) {
	t.Parallel()

	c, doer, _ := newTestClient(t)
	doer.route("GET", "/users/99", `{"id":"99","username":"ghost","deletedAt":5}`)

	u, err := c.FetchUser(context.Background(), "99")
	require.NoError(t, err)
	assert.True(t, u.Deleted())
	assert.Equal(t, "Deleted User 99", u.Username)
	assert.Equal(t, "https://chat.example.com/avatars/default", u.AvatarURL)
}

func TestFetchMembersServedFromMemory(t *testing.T) {
	t.Parallel()

	c, doer, _ := newTestClient(t)
	before := doer.count("GET", "/servers/100/members")

	members, err := c.FetchMembers(context.Background(), "100")
	require.NoError(t, err)
	assert.Len(t, members, 2)
	assert.Equal(t, before, doer.count("GET", "/servers/100/members"))

	_, err = c.FetchMembers(context.Background(), "404")
	require.ErrorIs(t, err, ErrUnknownServer)
}

func TestMutualServers(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestClient(t)

	mutual := c.MutualServers("11")
	require.Len(t, mutual, 1)
	assert.Equal(t, "100", mutual[0].ID)

	assert.Empty(t, c.MutualServers("404"))
}

func TestTypingToggleSendsOnce(t *testing.T) {
	t.Parallel()

	c, _, push := newTestClient(t)

	require.NoError(t, c.StartTyping("200"))
	require.NoError(t, c.StartTyping("200"))
	require.NoError(t, c.StopTyping("200"))
	require.NoError(t, c.StopTyping("200"))

	assert.Equal(t, []string{"typingStart", "typingStop"}, push.sentEvents())
	require.ErrorIs(t, c.StartTyping("404"), ErrUnknownChannel)
}

func TestStatsCountDrops(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestClient(t)

	c.dispatch(notify("serverEdit", `{"id":"404","name":"ghost"}`))
	c.dispatch(notify("message", `{broken`))
	c.dispatch(notify("somethingNew", `{}`))

	assert.Equal(t, uint64(3), c.Stats().DroppedNotifications)
}
