package models

// Message is a single message in a channel.
type Message struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`

	Content string `json:"content"`
	Edited  bool   `json:"edited"`

	// Editable and Deletable are computed once at construction from the
	// viewer's identity relative to the author and the server owner. They
	// are not re-derived after ownership changes.
	Editable  bool `json:"-"`
	Deletable bool `json:"-"`

	ServerID string  `json:"server"`
	Server   *Server `json:"-"`

	ChannelID string   `json:"channel"`
	Channel   *Channel `json:"-"`

	// AuthorID is empty for system messages. Author is nil until resolved,
	// and points at a tombstone once the author's account is deleted.
	AuthorID string `json:"author"`
	Author   *User  `json:"-"`

	// Member is the author's membership in the message's server, when both
	// are resolvable.
	Member *Member `json:"-"`

	// Invites and InvalidInviteIDs are populated lazily by scanning the
	// content for invite links. invitesScanned guards the scan.
	Invites          map[string]*Invite `json:"-"`
	InvalidInviteIDs []string           `json:"-"`

	invitesScanned bool
}

// InvitesScanned reports whether the content has already been scanned for
// invite links.
func (m *Message) InvitesScanned() bool {
	return m.invitesScanned
}

// SetInviteScan records the result of an invite-link scan.
func (m *Message) SetInviteScan(invites map[string]*Invite, invalid []string) {
	m.Invites = invites
	m.InvalidInviteIDs = invalid
	m.invitesScanned = true
}

// ResetInviteScan discards the scan result, forcing a re-scan after the
// content changed.
func (m *Message) ResetInviteScan() {
	m.Invites = nil
	m.InvalidInviteIDs = nil
	m.invitesScanned = false
}

// Clone returns an independent snapshot of the message.
func (m *Message) Clone() *Message {
	c := *m
	if m.Invites != nil {
		c.Invites = make(map[string]*Invite, len(m.Invites))
		for id, inv := range m.Invites {
			c.Invites[id] = inv
		}
	}
	c.InvalidInviteIDs = append([]string(nil), m.InvalidInviteIDs...)
	return &c
}
