package client

import (
	"context"
	"fmt"

	"chatapp-client/models"
)

// Fetch methods are cache-first: a cached entity is returned without a
// network call. Misses are fetched, folded into the registry and wired to
// their parents before being returned.

// FetchServer returns the server, hydrating it (channels, users, members)
// on a cache miss.
func (c *Client) FetchServer(ctx context.Context, id string) (*models.Server, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchServer(ctx, id)
}

func (c *Client) fetchServer(ctx context.Context, id string) (*models.Server, error) {
	if s, ok := c.registry.Servers.Get(id); ok {
		return s, nil
	}

	res, err := c.rest.Do(ctx, "GET", "/servers/"+id, nil, nil)
	if err != nil {
		return nil, err
	}

	var p serverPayload
	if err := res.Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding server %s: %w", id, err)
	}
	return c.foldServer(ctx, &p)
}

// foldServer builds a server and its dependents from a full payload.
func (c *Client) foldServer(ctx context.Context, p *serverPayload) (*models.Server, error) {
	s := p.Server
	if s.CreatedAt == 0 {
		s.CreatedAt = models.IDTimestamp(s.ID)
	}
	s.IconURL = c.iconURL(&s, p.DefaultIcon)
	s.Channels = make(map[string]*models.Channel)
	s.Members = make(map[string]*models.Member)

	for _, chID := range p.ChannelIDs {
		ch, err := c.fetchChannel(ctx, chID)
		if err != nil {
			return nil, err
		}
		// The channel may predate the server in the registry; repair the
		// back-reference now that the parent exists.
		ch.Server = &s
		ch.ServerID = s.ID
		s.Channels[ch.ID] = ch
	}

	for _, userID := range p.MemberIDs {
		if _, err := c.fetchUser(ctx, userID); err != nil {
			return nil, err
		}
	}

	if err := c.fetchMembers(ctx, &s); err != nil {
		return nil, err
	}

	if owner, ok := s.Members[s.OwnerID]; ok {
		s.Owner = owner
	} else {
		c.unresolved.Add(1)
	}

	if c.me != nil {
		editable := s.OwnerID == c.me.ID
		for _, ch := range s.Channels {
			ch.Editable = editable
			ch.Deletable = editable
		}
	}

	c.registry.Servers.Set(s.ID, &s)
	return &s, nil
}

// FetchChannel returns the channel, fetching it on a cache miss.
func (c *Client) FetchChannel(ctx context.Context, id string) (*models.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchChannel(ctx, id)
}

func (c *Client) fetchChannel(ctx context.Context, id string) (*models.Channel, error) {
	if ch, ok := c.registry.Channels.Get(id); ok {
		return ch, nil
	}

	res, err := c.rest.Do(ctx, "GET", "/channels/"+id, nil, nil)
	if err != nil {
		return nil, err
	}

	var p models.Channel
	if err := res.Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding channel %s: %w", id, err)
	}

	switch p.Kind {
	case models.ChannelText:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannelKind, p.Kind)
	}

	ch := c.buildChannel(p)
	c.registry.Channels.Set(ch.ID, ch)
	return ch, nil
}

// FetchUser returns the user, fetching it on a cache miss. Deleted accounts
// come back as tombstones.
func (c *Client) FetchUser(ctx context.Context, id string) (*models.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchUser(ctx, id)
}

func (c *Client) fetchUser(ctx context.Context, id string) (*models.User, error) {
	if u, ok := c.registry.Users.Get(id); ok {
		return u, nil
	}

	res, err := c.rest.Do(ctx, "GET", "/users/"+id, nil, nil)
	if err != nil {
		return nil, err
	}

	var p userPayload
	if err := res.Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding user %s: %w", id, err)
	}

	u := c.buildUser(p)
	c.registry.Users.Set(u.ID, u)
	return u, nil
}

// FetchInvite returns the invite, fetching it on a cache miss.
func (c *Client) FetchInvite(ctx context.Context, id string) (*models.Invite, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchInvite(ctx, id)
}

func (c *Client) fetchInvite(ctx context.Context, id string) (*models.Invite, error) {
	if inv, ok := c.registry.Invites.Get(id); ok {
		return inv, nil
	}

	res, err := c.rest.Do(ctx, "GET", "/invites/"+id, nil, nil)
	if err != nil {
		return nil, err
	}

	var p models.Invite
	if err := res.Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding invite %s: %w", id, err)
	}

	inv := c.buildInvite(p)
	c.registry.Invites.Set(inv.ID, inv)
	if inv.Channel != nil {
		inv.Channel.Invites[inv.ID] = inv
	}
	return inv, nil
}

// FetchMembers returns the server's complete member list, fetching it once;
// afterwards the member set is served from memory.
func (c *Client) FetchMembers(ctx context.Context, serverID string) (map[string]*models.Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.registry.Servers.Get(serverID)
	if !ok {
		return nil, ErrUnknownServer
	}
	if err := c.fetchMembers(ctx, s); err != nil {
		return nil, err
	}
	return s.Members, nil
}

func (c *Client) fetchMembers(ctx context.Context, s *models.Server) error {
	if s.MembersCached {
		return nil
	}

	res, err := c.rest.Do(ctx, "GET", "/servers/"+s.ID+"/members", nil, nil)
	if err != nil {
		return err
	}

	var payloads []models.Member
	if err := res.Decode(&payloads); err != nil {
		return fmt.Errorf("decoding members of %s: %w", s.ID, err)
	}

	for _, p := range payloads {
		m := c.buildMember(p)
		m.Server = s
		m.ServerID = s.ID
		s.Members[m.ID] = m
	}
	s.MembersCached = true
	return nil
}

// FetchMember returns one member of a server, fetching it on a cache miss.
func (c *Client) FetchMember(ctx context.Context, serverID, userID string) (*models.Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.registry.Servers.Get(serverID)
	if !ok {
		return nil, ErrUnknownServer
	}
	if m, ok := s.Members[userID]; ok {
		return m, nil
	}

	res, err := c.rest.Do(ctx, "GET", "/servers/"+serverID+"/members/"+userID, nil, nil)
	if err != nil {
		return nil, err
	}

	var p models.Member
	if err := res.Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding member %s: %w", userID, err)
	}

	m := c.buildMember(p)
	m.Server = s
	m.ServerID = s.ID
	s.Members[m.ID] = m
	return m, nil
}
