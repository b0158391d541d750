package models

// ChannelKind is the closed set of channel variants. Only text channels
// exist today; reconciliation dispatches on this tag exhaustively and drops
// unknown kinds.
type ChannelKind string

const (
	// ChannelText is a standard text channel.
	ChannelText ChannelKind = "text"
)

// Channel is a single channel inside a server.
type Channel struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`

	Name string      `json:"name"`
	Kind ChannelKind `json:"type"`

	// Position is a dense ordering index among sibling channels, starting
	// from 0 at the top. It is not globally unique.
	Position int `json:"position"`

	// Editable and Deletable are computed against the viewer's identity when
	// the channel is cached.
	Editable  bool `json:"-"`
	Deletable bool `json:"-"`

	CreatedByID string `json:"createdBy"`
	CreatedBy   *User  `json:"-"`

	ServerID string  `json:"server"`
	Server   *Server `json:"-"`

	// Invites holds shared references to the registry-owned invites that
	// lead to this channel.
	Invites map[string]*Invite `json:"-"`

	// Messages holds every cached message of this channel, keyed by ID.
	// Channel order is tracked separately by the pagination cache.
	Messages map[string]*Message `json:"-"`

	// UsersTyping lists the IDs of users currently typing. Ephemeral state,
	// toggled idempotently and never carried through edit snapshots.
	UsersTyping []string `json:"-"`

	// ClientTyping tracks whether the viewer's own typing indicator is on.
	ClientTyping bool `json:"-"`
}

// IsTyping reports whether the given user ID is in the typing list.
func (ch *Channel) IsTyping(userID string) bool {
	for _, id := range ch.UsersTyping {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns an independent snapshot of the channel. Containers are
// copied; entries still point at the canonical entities.
func (ch *Channel) Clone() *Channel {
	c := *ch
	c.Invites = make(map[string]*Invite, len(ch.Invites))
	for id, inv := range ch.Invites {
		c.Invites[id] = inv
	}
	c.Messages = make(map[string]*Message, len(ch.Messages))
	for id, m := range ch.Messages {
		c.Messages[id] = m
	}
	c.UsersTyping = append([]string(nil), ch.UsersTyping...)
	return &c
}
