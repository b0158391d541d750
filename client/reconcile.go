package client

import (
	"time"

	"github.com/bytedance/sonic"

	"chatapp-client/events"
	"chatapp-client/gateway"
	"chatapp-client/models"
)

// emitted is one event queued for the feed while the registry lock is held.
type emitted struct {
	event   string
	payload any
}

// dispatch applies one push notification under the registry lock, then
// publishes the resulting events after the lock is released so handlers can
// call back into the client.
func (c *Client) dispatch(n gateway.Notification) {
	c.mu.Lock()
	out := c.reconcile(n)
	c.mu.Unlock()

	for _, e := range out {
		c.feed.Emit(e.event, e.payload)
	}
}

// reconcile routes a notification to its handler. Malformed payloads and
// stale targets degrade to a counted no-op; nothing on this path is ever
// raised into the event feed.
func (c *Client) reconcile(n gateway.Notification) []emitted {
	switch n.Event {
	case events.Ready:
		return []emitted{{events.Ready, c.me}}
	case events.ServerJoin:
		return decode(c, n, c.handleServerJoin)
	case events.ServerEdit:
		return decode(c, n, c.handleServerEdit)
	case events.ServerDelete:
		return decode(c, n, c.handleServerDelete)
	case events.ChannelCreate:
		return decode(c, n, c.handleChannelCreate)
	case events.ChannelEdit:
		return decode(c, n, c.handleChannelEdit)
	case events.ChannelDelete:
		return decode(c, n, c.handleChannelDelete)
	case events.TypingStart:
		return decode(c, n, c.handleTypingStart)
	case events.TypingStop:
		return decode(c, n, c.handleTypingStop)
	case events.UserEdit:
		return decode(c, n, c.handleUserEdit)
	case events.UserDelete:
		return decode(c, n, c.handleUserDelete)
	case events.InviteCreate:
		return decode(c, n, c.handleInviteCreate)
	case events.InviteEdit:
		return decode(c, n, c.handleInviteEdit)
	case events.InviteDelete:
		return decode(c, n, c.handleInviteDelete)
	case events.MessageCreate:
		return decode(c, n, c.handleMessageCreate)
	case events.MessageEdit:
		return decode(c, n, c.handleMessageEdit)
	case events.MessageDelete:
		return decode(c, n, c.handleMessageDelete)
	default:
		c.dropped.Add(1)
		c.sugar.Warnf("Dropped unknown notification [%s]", n.Event)
		return nil
	}
}

// decode unmarshals the payload for a handler, degrading decode failures to
// a counted drop.
func decode[T any](c *Client, n gateway.Notification, handle func(T) []emitted) []emitted {
	var p T
	if err := sonic.Unmarshal(n.Data, &p); err != nil {
		c.dropMalformed(n.Event, err)
		return nil
	}
	return handle(p)
}

func (c *Client) handleServerJoin(p models.Member) []emitted {
	m := c.buildMember(p)

	if m.Server != nil && (c.me == nil || m.ID != c.me.ID) {
		m.Server.Members[m.ID] = m
	}

	return []emitted{{events.ServerJoin, m}}
}

func (c *Client) handleServerEdit(p serverEditPayload) []emitted {
	old, ok := c.registry.Servers.Get(p.ID)
	if !ok {
		c.dropStale(events.ServerEdit, p.ID)
		return nil
	}

	next := old.Clone()
	if p.Name != nil {
		next.Name = *p.Name
	}
	if p.OwnerID != nil {
		next.OwnerID = *p.OwnerID
		if owner, ok := next.Members[*p.OwnerID]; ok {
			next.Owner = owner
		} else {
			c.unresolved.Add(1)
		}
	}
	if p.DefaultIcon != nil && *p.DefaultIcon {
		next.IconURL = c.cfg.DefaultIconURL
	}

	c.registry.Servers.Set(next.ID, next)

	// The clone replaced the canonical instance; repoint every dependent
	// back-reference so channel.Server and member.Server keep tracking
	// server-level mutation.
	for _, ch := range next.Channels {
		ch.Server = next
	}
	for _, m := range next.Members {
		m.Server = next
	}

	return []emitted{{events.ServerEdit, events.ServerEditEvent{Old: old, New: next}}}
}

func (c *Client) handleServerDelete(p idPayload) []emitted {
	s, ok := c.registry.Servers.Get(p.ID)
	if !ok {
		c.dropStale(events.ServerDelete, p.ID)
		return nil
	}

	c.registry.Servers.Delete(s.ID)
	for chID := range s.Channels {
		c.registry.Channels.Delete(chID)
		c.pages.DropChannel(chID)
	}
	for _, invID := range c.registry.Invites.IDs() {
		if inv, ok := c.registry.Invites.Get(invID); ok && inv.ServerID == s.ID {
			c.registry.Invites.Delete(invID)
		}
	}

	return []emitted{{events.ServerDelete, s}}
}

func (c *Client) handleChannelCreate(p models.Channel) []emitted {
	switch p.Kind {
	case models.ChannelText:
	default:
		c.dropped.Add(1)
		c.sugar.Warnf("Dropped channelCreate with unknown kind [%s]", p.Kind)
		return nil
	}

	ch := c.buildChannel(p)
	c.registry.Channels.Set(ch.ID, ch)
	if ch.Server != nil {
		ch.Server.Channels[ch.ID] = ch
	}

	return []emitted{{events.ChannelCreate, ch}}
}

func (c *Client) handleChannelEdit(p channelEditPayload) []emitted {
	old, ok := c.registry.Channels.Get(p.ID)
	if !ok {
		c.dropStale(events.ChannelEdit, p.ID)
		return nil
	}

	next := old.Clone()
	if p.Name != nil {
		next.Name = *p.Name
	}
	if p.Position != nil {
		next.Position = *p.Position
	}

	c.registry.Channels.Set(next.ID, next)
	if next.Server != nil {
		next.Server.Channels[next.ID] = next
	}
	for _, m := range next.Messages {
		m.Channel = next
	}

	return []emitted{{events.ChannelEdit, events.ChannelEditEvent{Old: old, New: next}}}
}

func (c *Client) handleChannelDelete(p idPayload) []emitted {
	ch, ok := c.registry.Channels.Get(p.ID)
	if !ok {
		c.dropStale(events.ChannelDelete, p.ID)
		return nil
	}

	c.registry.Channels.Delete(ch.ID)
	if ch.Server != nil {
		delete(ch.Server.Channels, ch.ID)
	}
	for invID := range ch.Invites {
		c.registry.Invites.Delete(invID)
	}
	c.pages.DropChannel(ch.ID)

	return []emitted{{events.ChannelDelete, ch}}
}

func (c *Client) handleTypingStart(p typingPayload) []emitted {
	ch, ok := c.registry.Channels.Get(p.ChannelID)
	if !ok {
		c.dropStale(events.TypingStart, p.ChannelID)
		return nil
	}

	if (c.me == nil || p.UserID != c.me.ID) && !ch.IsTyping(p.UserID) {
		ch.UsersTyping = append(ch.UsersTyping, p.UserID)
	}

	user, _ := c.registry.Users.Get(p.UserID)
	return []emitted{{events.TypingStart, events.TypingEvent{UserID: p.UserID, User: user, Channel: ch}}}
}

func (c *Client) handleTypingStop(p typingPayload) []emitted {
	ch, ok := c.registry.Channels.Get(p.ChannelID)
	if !ok {
		c.dropStale(events.TypingStop, p.ChannelID)
		return nil
	}

	for i, id := range ch.UsersTyping {
		if id == p.UserID {
			ch.UsersTyping = append(ch.UsersTyping[:i], ch.UsersTyping[i+1:]...)
			break
		}
	}

	user, _ := c.registry.Users.Get(p.UserID)
	return []emitted{{events.TypingStop, events.TypingEvent{UserID: p.UserID, User: user, Channel: ch}}}
}

func (c *Client) handleUserEdit(p userPayload) []emitted {
	old, ok := c.registry.Users.Get(p.ID)
	if !ok {
		c.dropStale(events.UserEdit, p.ID)
		return nil
	}

	// Mutable user fields are replaced wholesale; identity is kept.
	next := c.buildUser(p)
	if next.CreatedAt == 0 {
		next.CreatedAt = old.CreatedAt
	}
	c.registry.Users.Set(next.ID, next)

	// User is referenced by pointer from members and historical messages
	// scattered across every mutual server; repair them all.
	for _, s := range c.mutualServersLocked(next.ID) {
		if s.OwnerID == next.ID && s.Owner != nil {
			s.Owner.User = next
		}
		if m, ok := s.Members[next.ID]; ok {
			m.User = next
		}
		for _, ch := range s.Channels {
			for _, msg := range ch.Messages {
				if msg.AuthorID == next.ID {
					msg.Author = next
				}
			}
		}
	}

	return []emitted{{events.UserEdit, events.UserEditEvent{Old: old, New: next}}}
}

func (c *Client) handleUserDelete(p userDeletePayload) []emitted {
	user, ok := c.registry.Users.Get(p.ID)
	if !ok {
		c.dropStale(events.UserDelete, p.ID)
		return nil
	}

	deletedAt := p.DeletedAt
	if deletedAt == 0 {
		deletedAt = time.Now().UnixMilli()
	}

	// Historical messages stay attributable: rewrite every message this user
	// authored to a tombstone before the live user leaves the registry.
	tombstone := models.NewDeletedUser(user, deletedAt, c.cfg.DefaultIconURL)
	for _, s := range c.mutualServersLocked(user.ID) {
		for _, ch := range s.Channels {
			for _, msg := range ch.Messages {
				if msg.AuthorID == user.ID {
					msg.Author = tombstone
				}
			}
		}
	}

	c.registry.Users.Delete(user.ID)

	return []emitted{{events.UserDelete, user}}
}

func (c *Client) handleInviteCreate(p models.Invite) []emitted {
	inv := c.buildInvite(p)
	c.registry.Invites.Set(inv.ID, inv)
	if inv.Channel != nil {
		inv.Channel.Invites[inv.ID] = inv
	}

	return []emitted{{events.InviteCreate, inv}}
}

func (c *Client) handleInviteEdit(p invitePayload) []emitted {
	key := p.OldID
	if key == "" {
		key = p.ID
	}

	old, ok := c.registry.Invites.Get(key)
	if !ok {
		c.dropStale(events.InviteEdit, key)
		return nil
	}

	next := c.buildInvite(p.Invite)

	// Invite edits may rename the invite; reindex under the new ID.
	if old.ID != next.ID {
		c.registry.Invites.Delete(old.ID)
		if old.Channel != nil {
			delete(old.Channel.Invites, old.ID)
		}
	}
	c.registry.Invites.Set(next.ID, next)
	if next.Channel != nil {
		next.Channel.Invites[next.ID] = next
	}

	return []emitted{{events.InviteEdit, events.InviteEditEvent{Old: old, New: next}}}
}

func (c *Client) handleInviteDelete(p idPayload) []emitted {
	inv, ok := c.registry.Invites.Get(p.ID)
	if !ok {
		c.dropStale(events.InviteDelete, p.ID)
		return nil
	}

	c.registry.Invites.Delete(inv.ID)
	if inv.Channel != nil {
		delete(inv.Channel.Invites, inv.ID)
	}

	return []emitted{{events.InviteDelete, inv}}
}

func (c *Client) handleMessageCreate(p models.Message) []emitted {
	msg := c.buildMessage(p)
	if msg.Channel != nil {
		msg.Channel.Messages[msg.ID] = msg
		c.pages.Append(msg.ChannelID, msg.ID)
	}

	return []emitted{{events.MessageCreate, msg}}
}

func (c *Client) handleMessageEdit(p messageEditPayload) []emitted {
	ch, ok := c.registry.Channels.Get(p.ChannelID)
	if !ok {
		c.dropStale(events.MessageEdit, p.ChannelID)
		return nil
	}
	old, ok := ch.Messages[p.ID]
	if !ok {
		c.dropStale(events.MessageEdit, p.ID)
		return nil
	}

	next := old.Clone()
	next.Content = p.Content
	next.Edited = true
	next.ResetInviteScan()

	ch.Messages[next.ID] = next

	return []emitted{{events.MessageEdit, events.MessageEditEvent{Old: old, New: next}}}
}

func (c *Client) handleMessageDelete(p messageRefPayload) []emitted {
	ch, ok := c.registry.Channels.Get(p.ChannelID)
	if !ok {
		c.dropStale(events.MessageDelete, p.ChannelID)
		return nil
	}
	msg, ok := ch.Messages[p.ID]
	if !ok {
		c.dropStale(events.MessageDelete, p.ID)
		return nil
	}

	delete(ch.Messages, msg.ID)
	c.pages.Remove(p.ChannelID, p.ID)

	return []emitted{{events.MessageDelete, msg}}
}

// mutualServersLocked is MutualServers for callers already holding c.mu.
func (c *Client) mutualServersLocked(userID string) []*models.Server {
	var out []*models.Server
	c.registry.Servers.ForEach(func(_ string, s *models.Server) bool {
		if _, ok := s.Members[userID]; ok {
			out = append(out, s)
		}
		return true
	})
	return out
}
