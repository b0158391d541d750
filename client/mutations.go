package client

import (
	"context"
	"fmt"
	"time"

	"chatapp-client/models"
)

// Thin mutation methods: each validates locally, serializes one REST call
// and lets the resulting push notification reconcile the cache.

// ServerEdit describes a server mutation. Transferring ownership requires
// the account password.
type ServerEdit struct {
	Name    string `json:"name,omitempty"`
	OwnerID string `json:"owner,omitempty"`
}

// AccountEdit describes a viewer account mutation.
type AccountEdit struct {
	Username string           `json:"username,omitempty"`
	Password string           `json:"password,omitempty"`
	Settings *models.Settings `json:"settings,omitempty"`
}

// InviteEdit describes an invite mutation.
type InviteEdit struct {
	ID             string   `json:"id,omitempty"`
	MaxUses        int      `json:"maxUses,omitempty"`
	Expires        int64    `json:"expires,omitempty"`
	ExpiresAfter   int64    `json:"expiresAfter,omitempty"`
	InvitedUserIDs []string `json:"invitedUsers,omitempty"`
}

// CreateServer makes a new server owned by the viewer and hydrates it. Every
// server starts with a general text channel. Not available to bots.
func (c *Client) CreateServer(ctx context.Context, name string) (*models.Server, error) {
	if c.Me() != nil && c.Me().Bot {
		return nil, fmt.Errorf("%w: bots cannot create servers", ErrBotRestricted)
	}

	body := struct {
		Name string `json:"name,omitempty"`
	}{Name: name}
	res, err := c.rest.Do(ctx, "POST", "/servers", nil, body)
	if err != nil {
		return nil, err
	}

	var id string
	if err := res.Decode(&id); err != nil {
		return nil, fmt.Errorf("decoding created server id: %w", err)
	}
	return c.FetchServer(ctx, id)
}

// EditServer renames a server or transfers its ownership. Owner only;
// ownership transfer additionally requires the password.
func (c *Client) EditServer(ctx context.Context, s *models.Server, edit ServerEdit, password string) error {
	if me := c.Me(); me == nil || s.OwnerID != me.ID {
		return ErrInsufficientPermissions
	}
	if edit.Name == "" && edit.OwnerID == "" {
		return ErrNoData
	}
	if edit.OwnerID != "" && password == "" {
		return fmt.Errorf("%w: transferring ownership requires the password", ErrPasswordRequired)
	}

	body := struct {
		ServerEdit
		Password string `json:"password,omitempty"`
	}{ServerEdit: edit, Password: password}
	_, err := c.rest.Do(ctx, "PUT", "/servers/"+s.ID, nil, body)
	return err
}

// DeleteServer destroys a server. Owner only, password required.
func (c *Client) DeleteServer(ctx context.Context, s *models.Server, password string) error {
	if me := c.Me(); me == nil || s.OwnerID != me.ID {
		return ErrInsufficientPermissions
	}
	if password == "" {
		return ErrPasswordRequired
	}

	body := struct {
		Password string `json:"password"`
	}{Password: password}
	_, err := c.rest.Do(ctx, "DELETE", "/servers/"+s.ID, nil, body)
	return err
}

// DeleteServerIcon resets a server's icon to the default. Owner only.
func (c *Client) DeleteServerIcon(ctx context.Context, s *models.Server) error {
	if me := c.Me(); me == nil || s.OwnerID != me.ID {
		return ErrInsufficientPermissions
	}

	_, err := c.rest.Do(ctx, "DELETE", "/servers/"+s.ID+"/icon", nil, nil)
	return err
}

// CreateChannel adds a channel to a server and folds it into the cache
// immediately; the kind defaults to text.
func (c *Client) CreateChannel(ctx context.Context, s *models.Server, name string, kind models.ChannelKind) (*models.Channel, error) {
	if kind == "" {
		kind = models.ChannelText
	}
	switch kind {
	case models.ChannelText:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannelKind, kind)
	}

	body := struct {
		Name string             `json:"name"`
		Kind models.ChannelKind `json:"type"`
	}{Name: name, Kind: kind}
	res, err := c.rest.Do(ctx, "POST", "/servers/"+s.ID+"/channels", nil, body)
	if err != nil {
		return nil, err
	}

	var p models.Channel
	if err := res.Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding created channel: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p.ServerID = s.ID
	ch := c.buildChannel(p)
	c.registry.Channels.Set(ch.ID, ch)
	s.Channels[ch.ID] = ch
	return ch, nil
}

// CreateInvite makes a new invite to a channel and folds it into the cache
// immediately.
func (c *Client) CreateInvite(ctx context.Context, ch *models.Channel, edit InviteEdit) (*models.Invite, error) {
	now := time.Now().UnixMilli()
	if edit.Expires != 0 && edit.Expires < now+time.Minute.Milliseconds() {
		return nil, ErrExpiryTooSoon
	}
	if edit.ExpiresAfter != 0 && edit.ExpiresAfter < time.Minute.Milliseconds() {
		return nil, ErrExpiryTooSoon
	}

	res, err := c.rest.Do(ctx, "POST", "/channels/"+ch.ID+"/invites", nil, edit)
	if err != nil {
		return nil, err
	}

	var p models.Invite
	if err := res.Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding created invite: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	inv := c.buildInvite(p)
	c.registry.Invites.Set(inv.ID, inv)
	if inv.Channel != nil {
		inv.Channel.Invites[inv.ID] = inv
	}
	return inv, nil
}

// EditInvite changes an invite's id, limits, expiry or allow-list. Only the
// invite's creator or the server owner may edit it.
func (c *Client) EditInvite(ctx context.Context, inv *models.Invite, edit InviteEdit) error {
	now := time.Now().UnixMilli()
	if edit.Expires != 0 && edit.Expires < now+time.Minute.Milliseconds() {
		return ErrExpiryTooSoon
	}
	if edit.ExpiresAfter != 0 && edit.ExpiresAfter < time.Minute.Milliseconds() {
		return ErrExpiryTooSoon
	}
	if edit.MaxUses != models.UnlimitedUses && edit.MaxUses <= inv.Uses {
		return ErrMaxUsesTooLow
	}
	if !c.mayManageInvite(inv) {
		return ErrInsufficientPermissions
	}

	_, err := c.rest.Do(ctx, "PUT", "/channels/"+inv.ChannelID+"/invites/"+inv.ID, nil, edit)
	return err
}

// DeleteInvite permanently removes an invite. Only the invite's creator or
// the server owner may delete it.
func (c *Client) DeleteInvite(ctx context.Context, inv *models.Invite) error {
	if !c.mayManageInvite(inv) {
		return ErrInsufficientPermissions
	}

	_, err := c.rest.Do(ctx, "DELETE", "/channels/"+inv.ChannelID+"/invites/"+inv.ID, nil, nil)
	return err
}

func (c *Client) mayManageInvite(inv *models.Invite) bool {
	me := c.Me()
	if me == nil {
		return false
	}
	if inv.CreatedByID == me.ID {
		return true
	}
	return inv.Server != nil && inv.Server.OwnerID == me.ID
}

// EditAccount updates the viewer's account. Changing the password requires
// the old one; bots cannot change password or settings.
func (c *Client) EditAccount(ctx context.Context, edit AccountEdit, oldPassword string) error {
	me := c.Me()
	if me == nil {
		return ErrInsufficientPermissions
	}
	if me.Bot && (edit.Password != "" || edit.Settings != nil) {
		return fmt.Errorf("%w: bots cannot edit password or settings", ErrBotRestricted)
	}
	if edit.Password != "" && oldPassword == "" {
		return fmt.Errorf("%w: cannot change password without the old password", ErrPasswordRequired)
	}

	body := struct {
		AccountEdit
		OldPassword string `json:"oldPassword,omitempty"`
	}{AccountEdit: edit, OldPassword: oldPassword}
	if _, err := c.rest.Do(ctx, "PUT", "/accounts/me", nil, body); err != nil {
		return err
	}

	if edit.Settings != nil {
		c.mu.Lock()
		me.Settings = *edit.Settings
		c.mu.Unlock()
	}
	return nil
}

// DeleteAvatar resets the viewer's avatar to the default.
func (c *Client) DeleteAvatar(ctx context.Context) error {
	_, err := c.rest.Do(ctx, "DELETE", "/avatars", nil, nil)
	return err
}

// DeleteAccount permanently deletes the viewer's account and disconnects.
// deleteServers destroys owned servers instead of transferring them.
func (c *Client) DeleteAccount(ctx context.Context, password string, deleteServers bool) error {
	if password == "" {
		return ErrPasswordRequired
	}

	body := struct {
		Password      string `json:"password"`
		DeleteServers bool   `json:"deleteServers"`
	}{Password: password, DeleteServers: deleteServers}
	if _, err := c.rest.Do(ctx, "DELETE", "/accounts/me", nil, body); err != nil {
		return err
	}
	return c.Close()
}

// Logout invalidates the token and disconnects. Not available to bots.
func (c *Client) Logout(ctx context.Context) error {
	if me := c.Me(); me != nil && me.Bot {
		return fmt.Errorf("%w: bots cannot log out", ErrBotRestricted)
	}

	if _, err := c.rest.Do(ctx, "POST", "/logout", nil, nil); err != nil {
		return err
	}
	return c.Close()
}
