package models

import "fmt"

// User is a person or bot known to the client. Identity (ID, CreatedAt) is
// immutable; mutable fields are replaced wholesale when an edit arrives.
type User struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`

	Username          string `json:"username"`
	AvatarURL         string `json:"avatarURL"`
	AvatarLastUpdated int64  `json:"avatarLastUpdated"`
	Bot               bool   `json:"bot"`

	// DeletedAt is zero for live users. A non-zero value marks this record as
	// a tombstone substituted into historical references after the account
	// was deleted.
	DeletedAt int64 `json:"deletedAt"`
}

// Deleted reports whether this user record is a tombstone.
func (u *User) Deleted() bool {
	return u.DeletedAt != 0
}

// NewDeletedUser builds the tombstone that replaces a removed user in
// historical records. The username is derived from the ID and never reverts.
func NewDeletedUser(from *User, deletedAt int64, defaultAvatarURL string) *User {
	return &User{
		ID:        from.ID,
		CreatedAt: from.CreatedAt,
		Username:  fmt.Sprintf("Deleted User %s", from.ID),
		AvatarURL: defaultAvatarURL,
		Bot:       from.Bot,
		DeletedAt: deletedAt,
	}
}

// Clone returns an independent copy of the user.
func (u *User) Clone() *User {
	c := *u
	return &c
}

// Settings holds the viewer's account-level preferences. Always empty for
// bot accounts.
type Settings struct {
	BackgroundURL string `json:"backgroundURL,omitempty"`
}

// ClientUser is the identity the client is logged in as.
type ClientUser struct {
	User

	// ServerIDs lists the servers this account is a member of, as reported
	// by the identity endpoint during bootstrap.
	ServerIDs []string `json:"servers"`
	Settings  Settings `json:"settings"`
}

// Clone returns an independent copy of the client user.
func (u *ClientUser) Clone() *ClientUser {
	c := *u
	c.ServerIDs = append([]string(nil), u.ServerIDs...)
	return &c
}
