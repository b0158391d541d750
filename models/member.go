package models

// Member is a user's presence inside one server. Its ID equals the
// underlying user's ID.
type Member struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`

	// Nickname falls back to the user's username when unset.
	Nickname string `json:"nickname"`

	ServerID string  `json:"server"`
	Server   *Server `json:"-"`

	// User is nil while the reference is a dangling stub; UserID always
	// carries the raw identifier.
	UserID string `json:"user"`
	User   *User  `json:"-"`
}

// DisplayName is the nickname if set, otherwise the resolved username.
func (m *Member) DisplayName() string {
	if m.Nickname != "" {
		return m.Nickname
	}
	if m.User != nil {
		return m.User.Username
	}
	return m.UserID
}

// Clone returns an independent copy of the member.
func (m *Member) Clone() *Member {
	c := *m
	return &c
}
