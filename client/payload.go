package client

import (
	"fmt"

	"chatapp-client/models"
)

// Wire payloads. Entities on the wire reference each other by raw ID; the
// reconciler resolves those against the registry and falls back to the bare
// ID when the target is not cached.

type clientUserPayload struct {
	models.User

	ServerIDs     []string        `json:"servers"`
	Settings      models.Settings `json:"settings"`
	DefaultAvatar bool            `json:"defaultAvatar"`
}

type userPayload struct {
	models.User

	DefaultAvatar bool `json:"defaultAvatar"`
	// AvatarUpdated marks edits that replaced the avatar, which busts the
	// avatar URL with the update timestamp.
	AvatarUpdated bool `json:"avatarUpdated"`
}

type serverPayload struct {
	models.Server

	DefaultIcon bool     `json:"defaultIcon"`
	ChannelIDs  []string `json:"channels"`
	MemberIDs   []string `json:"members"`
}

// Edit payloads carry only the fields the server declares as changed;
// pointers distinguish "absent" from zero values.
type serverEditPayload struct {
	ID          string  `json:"id"`
	Name        *string `json:"name"`
	OwnerID     *string `json:"owner"`
	DefaultIcon *bool   `json:"defaultIcon"`
}

type channelEditPayload struct {
	ID       string  `json:"id"`
	Name     *string `json:"name"`
	Position *int    `json:"position"`
}

type messageEditPayload struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel"`
	Content   string `json:"content"`
}

type messageRefPayload struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel"`
}

type idPayload struct {
	ID string `json:"id"`
}

type userDeletePayload struct {
	ID        string `json:"id"`
	DeletedAt int64  `json:"deletedAt"`
}

type invitePayload struct {
	models.Invite

	// OldID is set when an edit renamed the invite.
	OldID string `json:"oldID"`
}

type typingPayload struct {
	UserID    string `json:"user"`
	ChannelID string `json:"channel"`
}

// avatarURL derives the image URL for a user payload.
func (c *Client) avatarURL(u *models.User, defaultAvatar bool) string {
	if defaultAvatar {
		return c.cfg.DefaultIconURL
	}
	url := fmt.Sprintf("https://%s%s/avatars/%s", c.cfg.Host, c.cfg.APIPath, u.ID)
	if u.AvatarLastUpdated != 0 {
		url = fmt.Sprintf("%s?lastmod=%d", url, u.AvatarLastUpdated)
	}
	return url
}

// iconURL derives the image URL for a server payload.
func (c *Client) iconURL(s *models.Server, defaultIcon bool) string {
	if defaultIcon {
		return c.cfg.DefaultIconURL
	}
	return fmt.Sprintf("https://%s%s/servers/%s/icon", c.cfg.Host, c.cfg.APIPath, s.ID)
}

// resolveUser looks a user up in the registry, counting the degrade when the
// reference stays a bare ID.
func (c *Client) resolveUser(id string) *models.User {
	if id == "" {
		return nil
	}
	u, ok := c.registry.Users.Get(id)
	if !ok {
		c.unresolved.Add(1)
		return nil
	}
	return u
}

// resolveServer looks a server up in the registry.
func (c *Client) resolveServer(id string) *models.Server {
	if id == "" {
		return nil
	}
	s, ok := c.registry.Servers.Get(id)
	if !ok {
		c.unresolved.Add(1)
		return nil
	}
	return s
}

// resolveChannel looks a channel up in the registry.
func (c *Client) resolveChannel(id string) *models.Channel {
	if id == "" {
		return nil
	}
	ch, ok := c.registry.Channels.Get(id)
	if !ok {
		c.unresolved.Add(1)
		return nil
	}
	return ch
}

// buildMember constructs a member from wire data, resolving its references.
func (c *Client) buildMember(m models.Member) *models.Member {
	if m.CreatedAt == 0 {
		m.CreatedAt = models.IDTimestamp(m.ID)
	}
	m.Server = c.resolveServer(m.ServerID)
	m.User = c.resolveUser(m.UserID)
	if m.Nickname == "" && m.User != nil {
		m.Nickname = m.User.Username
	}
	return &m
}

// buildInvite constructs an invite from wire data, resolving its references.
func (c *Client) buildInvite(inv models.Invite) *models.Invite {
	if inv.CreatedAt == 0 {
		inv.CreatedAt = models.IDTimestamp(inv.ID)
	}
	inv.CreatedBy = c.resolveUser(inv.CreatedByID)
	inv.Server = c.resolveServer(inv.ServerID)
	inv.Channel = c.resolveChannel(inv.ChannelID)
	return &inv
}

// buildMessage constructs a message from wire data. The editable and
// deletable flags are computed once, here, from the viewer's identity.
func (c *Client) buildMessage(m models.Message) *models.Message {
	if m.CreatedAt == 0 {
		m.CreatedAt = models.IDTimestamp(m.ID)
	}
	m.Author = c.resolveUser(m.AuthorID)
	m.Server = c.resolveServer(m.ServerID)
	m.Channel = c.resolveChannel(m.ChannelID)

	if m.Author != nil && m.Server != nil {
		m.Member = m.Server.Members[m.Author.ID]
	}

	if c.me != nil && m.AuthorID != "" {
		m.Editable = m.AuthorID == c.me.ID
		m.Deletable = m.Editable || (m.Server != nil && m.Server.OwnerID == c.me.ID)
	}
	return &m
}

// buildChannel constructs a channel from wire data. Capability flags are
// derived from the viewer's identity relative to the owning server.
func (c *Client) buildChannel(ch models.Channel) *models.Channel {
	if ch.CreatedAt == 0 {
		ch.CreatedAt = models.IDTimestamp(ch.ID)
	}
	ch.Invites = make(map[string]*models.Invite)
	ch.Messages = make(map[string]*models.Message)
	ch.CreatedBy = c.resolveUser(ch.CreatedByID)
	ch.Server = c.resolveServer(ch.ServerID)

	if c.me != nil && ch.Server != nil {
		ch.Editable = ch.Server.OwnerID == c.me.ID
		ch.Deletable = ch.Editable
	}
	return &ch
}

// buildUser constructs a user from wire data.
func (c *Client) buildUser(p userPayload) *models.User {
	u := p.User
	if u.CreatedAt == 0 {
		u.CreatedAt = models.IDTimestamp(u.ID)
	}
	u.AvatarURL = c.avatarURL(&u, p.DefaultAvatar)
	if u.Deleted() {
		return models.NewDeletedUser(&u, u.DeletedAt, c.cfg.DefaultIconURL)
	}
	return &u
}
