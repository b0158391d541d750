package client

import "errors"

// Mutation requests are validated before any network call; these are the
// rejection categories surfaced to the caller. Nothing on this list ever
// reaches the reconciler.
var (
	ErrEmptyContent            = errors.New("message content cannot be empty")
	ErrNotEditable             = errors.New("message was not sent by the client")
	ErrNotDeletable            = errors.New("insufficient permissions to delete message")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	ErrPasswordRequired        = errors.New("password required")
	ErrBotRestricted           = errors.New("not available to bot accounts")
	ErrNoData                  = errors.New("no data provided")
	ErrExpiryTooSoon           = errors.New("expiry has passed or is under the one minute minimum")
	ErrMaxUsesTooLow           = errors.New("maxUses cannot be less than or equal to current uses")
	ErrUnknownChannelKind      = errors.New("unknown channel kind")
	ErrUnknownChannel          = errors.New("channel is not cached")
	ErrUnknownServer           = errors.New("server is not cached")
)
