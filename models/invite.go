package models

// UnlimitedUses is the MaxUses sentinel for invites without a use limit.
const UnlimitedUses = 0

// Invite lets users join a server through one of its channels.
type Invite struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`

	Uses    int `json:"uses"`
	MaxUses int `json:"maxUses"`

	// Expires is the unix millisecond timestamp after which the invite is no
	// longer usable.
	Expires int64 `json:"expires"`

	// InvitedUserIDs restricts who may use the invite; empty means anyone.
	InvitedUserIDs []string `json:"invitedUsers"`

	CreatedByID string `json:"createdBy"`
	CreatedBy   *User  `json:"-"`

	ServerID string  `json:"server"`
	Server   *Server `json:"-"`

	ChannelID string   `json:"channel"`
	Channel   *Channel `json:"-"`
}

// Clone returns an independent copy of the invite.
func (i *Invite) Clone() *Invite {
	c := *i
	c.InvitedUserIDs = append([]string(nil), i.InvitedUserIDs...)
	return &c
}
