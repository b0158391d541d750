// Package events names the notifications carried on the client's event feed
// and defines the typed payloads for events that carry more than a single
// entity.
package events

import "chatapp-client/models"

// Event names. Create and delete events carry the affected entity pointer;
// edit events carry an Old/New pair; typing events carry a Typing payload.
const (
	Ready = "ready"

	ServerJoin   = "serverJoin"
	ServerEdit   = "serverEdit"
	ServerDelete = "serverDelete"

	ChannelCreate = "channelCreate"
	ChannelEdit   = "channelEdit"
	ChannelDelete = "channelDelete"

	TypingStart = "typingStart"
	TypingStop  = "typingStop"

	UserEdit   = "userEdit"
	UserDelete = "userDelete"

	InviteCreate = "inviteCreate"
	InviteEdit   = "inviteEdit"
	InviteDelete = "inviteDelete"

	MessageCreate = "message"
	MessageEdit   = "messageEdit"
	MessageDelete = "messageDelete"
)

// ServerEditEvent carries the pre-mutation snapshot and the live replacement.
type ServerEditEvent struct {
	Old *models.Server
	New *models.Server
}

// ChannelEditEvent carries the pre-mutation snapshot and the live replacement.
type ChannelEditEvent struct {
	Old *models.Channel
	New *models.Channel
}

// UserEditEvent carries the pre-mutation snapshot and the live replacement.
type UserEditEvent struct {
	Old *models.User
	New *models.User
}

// InviteEditEvent carries the pre-mutation snapshot and the live replacement.
// The invite's ID itself may have changed between the two.
type InviteEditEvent struct {
	Old *models.Invite
	New *models.Invite
}

// MessageEditEvent carries the pre-mutation snapshot and the live replacement.
type MessageEditEvent struct {
	Old *models.Message
	New *models.Message
}

// TypingEvent reports a typing toggle in a channel. User is nil when the
// typing user is not cached; UserID is always set.
type TypingEvent struct {
	UserID  string
	User    *models.User
	Channel *models.Channel
}
