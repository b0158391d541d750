// Package pagecache tracks message pagination state per channel: the true
// channel order of cached message IDs, whether the full history has been
// reached, and completed page results keyed by the exact normalized query.
// Identical in-flight queries are coalesced so only one fetch goes out.
package pagecache

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Query is a normalized message page request. At most one of Before, After
// and Around is expected to be set.
type Query struct {
	Limit  int
	Before string
	After  string
	Around string
}

// Anchored reports whether the query has a directional anchor.
func (q Query) Anchored() bool {
	return q.Before != "" || q.After != "" || q.Around != ""
}

// Key renders the query as its canonical cache key. Parameter order is
// fixed so equivalent queries always collide.
func (q Query) Key() string {
	var b strings.Builder
	fmt.Fprintf(&b, "limit=%d", q.Limit)
	if q.Before != "" {
		fmt.Fprintf(&b, "&before=%s", q.Before)
	}
	if q.After != "" {
		fmt.Fprintf(&b, "&after=%s", q.After)
	}
	if q.Around != "" {
		fmt.Fprintf(&b, "&around=%s", q.Around)
	}
	return b.String()
}

// Page is a completed query result: message IDs in channel order, oldest
// first.
type Page struct {
	IDs []string
}

type channelState struct {
	fullyCached bool
	order       []string            // oldest -> newest
	present     map[string]struct{} // ids already in order
	queries     map[string]Page
}

// Cache holds pagination state for every channel the client has touched.
type Cache struct {
	mu       sync.Mutex
	channels map[string]*channelState
	group    singleflight.Group
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{channels: make(map[string]*channelState)}
}

func (c *Cache) state(channelID string) *channelState {
	st, ok := c.channels[channelID]
	if !ok {
		st = &channelState{
			present: make(map[string]struct{}),
			queries: make(map[string]Page),
		}
		c.channels[channelID] = st
	}
	return st
}

// FullyCached reports whether the channel's complete history is in memory.
func (c *Cache) FullyCached(channelID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.channels[channelID]
	return ok && st.fullyCached
}

// MarkFullyCached records that the boundary of history was reached.
func (c *Cache) MarkFullyCached(channelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state(channelID).fullyCached = true
}

// Append adds id at the newest end of the channel order. Duplicates are
// ignored so overlapping pages cannot double-insert.
func (c *Cache) Append(channelID, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state(channelID)
	if _, dup := st.present[id]; dup {
		return
	}
	st.order = append(st.order, id)
	st.present[id] = struct{}{}
}

// Prepend adds id at the historical (oldest) end of the channel order.
// Duplicates are ignored.
func (c *Cache) Prepend(channelID, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state(channelID)
	if _, dup := st.present[id]; dup {
		return
	}
	st.order = append([]string{id}, st.order...)
	st.present[id] = struct{}{}
}

// Remove drops id from the channel order.
func (c *Cache) Remove(channelID, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.channels[channelID]
	if !ok {
		return
	}
	if _, exists := st.present[id]; !exists {
		return
	}
	delete(st.present, id)
	for i, cur := range st.order {
		if cur == id {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
}

// Order returns a copy of the channel's cached order, oldest first.
func (c *Cache) Order(channelID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.channels[channelID]
	if !ok {
		return nil
	}
	return append([]string(nil), st.order...)
}

// Tail returns the newest n IDs in channel order.
func (c *Cache) Tail(channelID string, n int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.channels[channelID]
	if !ok {
		return nil
	}
	start := len(st.order) - n
	if start < 0 {
		start = 0
	}
	return append([]string(nil), st.order[start:]...)
}

// CachedPage returns the completed result for key, if any.
func (c *Cache) CachedPage(channelID, key string) (Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.channels[channelID]
	if !ok {
		return Page{}, false
	}
	p, ok := st.queries[key]
	return p, ok
}

// Fetch returns the cached page for key, or runs fetch exactly once across
// all concurrent identical queries. Only a successful fetch populates the
// query cache; failures leave no trace.
func (c *Cache) Fetch(channelID, key string, fetch func() (Page, error)) (Page, error) {
	if p, ok := c.CachedPage(channelID, key); ok {
		return p, nil
	}

	v, err, _ := c.group.Do(channelID+"\x00"+key, func() (any, error) {
		if p, ok := c.CachedPage(channelID, key); ok {
			return p, nil
		}

		p, err := fetch()
		if err != nil {
			return Page{}, err
		}

		c.mu.Lock()
		c.state(channelID).queries[key] = p
		c.mu.Unlock()

		return p, nil
	})
	if err != nil {
		return Page{}, err
	}
	return v.(Page), nil
}

// DropChannel discards all pagination state of a deleted channel.
func (c *Cache) DropChannel(channelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.channels, channelID)
}
