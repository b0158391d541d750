package client

import (
	"context"
	"fmt"
	"strings"

	"chatapp-client/models"
	"chatapp-client/pagecache"
)

// FetchMessages returns a page of a channel's history in channel order,
// oldest first.
//
// A request without an anchor against a fully cached channel is synthesized
// from the in-memory order without a network call. Identical queries share
// one fetch: completed pages are served from the query cache and concurrent
// duplicates are coalesced. A page shorter than the requested limit marks
// the channel fully cached.
func (c *Client) FetchMessages(ctx context.Context, channelID string, q pagecache.Query) ([]*models.Message, error) {
	if q.Limit <= 0 {
		q.Limit = c.cfg.MessageQueryLimit
	}

	if !q.Anchored() && c.pages.FullyCached(channelID) {
		return c.messagesByID(channelID, c.pages.Tail(channelID, q.Limit)), nil
	}

	key := q.Key()
	page, err := c.pages.Fetch(channelID, key, func() (pagecache.Page, error) {
		// The canonical cache key doubles as the query string.
		res, err := c.rest.Do(ctx, "GET", "/channels/"+channelID+"/messages?"+key, nil, nil)
		if err != nil {
			return pagecache.Page{}, err
		}

		var payloads []models.Message
		if err := res.Decode(&payloads); err != nil {
			return pagecache.Page{}, fmt.Errorf("decoding messages of %s: %w", channelID, err)
		}

		c.mu.Lock()
		defer c.mu.Unlock()

		ids := make([]string, 0, len(payloads))
		for _, p := range payloads {
			// Authors are hydrated on the fold path so message events can
			// resolve them later without a fetch.
			if p.AuthorID != "" {
				if _, err := c.fetchUser(ctx, p.AuthorID); err != nil {
					return pagecache.Page{}, err
				}
			}

			msg := c.buildMessage(p)
			if msg.Channel != nil {
				msg.Channel.Messages[msg.ID] = msg
			}

			if q.Before != "" {
				// Before-pages arrive newest first; inserting each at the
				// historical end rebuilds channel order.
				c.pages.Prepend(channelID, msg.ID)
			} else {
				c.pages.Append(channelID, msg.ID)
			}
			ids = append(ids, msg.ID)
		}

		if q.Before != "" {
			reverse(ids)
		}
		if len(payloads) < q.Limit {
			c.pages.MarkFullyCached(channelID)
		}

		return pagecache.Page{IDs: ids}, nil
	})
	if err != nil {
		return nil, err
	}

	return c.messagesByID(channelID, page.IDs), nil
}

// FetchMessage returns a single message, fetching it on a cache miss.
func (c *Client) FetchMessage(ctx context.Context, channelID, id string) (*models.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.registry.Channels.Get(channelID)
	if !ok {
		return nil, ErrUnknownChannel
	}
	if msg, ok := ch.Messages[id]; ok {
		return msg, nil
	}

	res, err := c.rest.Do(ctx, "GET", "/channels/"+channelID+"/messages/"+id, nil, nil)
	if err != nil {
		return nil, err
	}

	var p models.Message
	if err := res.Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding message %s: %w", id, err)
	}
	if p.AuthorID != "" {
		if _, err := c.fetchUser(ctx, p.AuthorID); err != nil {
			return nil, err
		}
	}

	msg := c.buildMessage(p)
	ch.Messages[msg.ID] = msg
	return msg, nil
}

// SendMessage posts a message to a channel; the viewer's typing indicator is
// turned off first. The created message is announced back through the push
// channel, which is what folds it into the cache.
func (c *Client) SendMessage(ctx context.Context, channelID, content string) (*models.Message, error) {
	req := struct {
		Content string `json:"content" validate:"required"`
	}{Content: content}
	if err := c.validate.Struct(&req); err != nil {
		return nil, ErrEmptyContent
	}

	if err := c.StopTyping(channelID); err != nil {
		c.sugar.Debugf("Could not stop typing before send: %v", err)
	}

	res, err := c.rest.Do(ctx, "POST", "/channels/"+channelID, nil, req)
	if err != nil {
		return nil, err
	}

	var p models.Message
	if err := res.Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding sent message: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buildMessage(p), nil
}

// EditMessage replaces a message's content. Editing another user's message
// is rejected locally; editing to the identical content is a no-op.
func (c *Client) EditMessage(ctx context.Context, msg *models.Message, content string) error {
	if content == "" {
		return ErrEmptyContent
	}
	if !msg.Editable {
		return ErrNotEditable
	}
	if msg.Content == content {
		return nil
	}

	body := struct {
		Content string `json:"content"`
	}{Content: content}
	_, err := c.rest.Do(ctx, "PUT", "/channels/"+msg.ChannelID+"/messages/"+msg.ID, nil, body)
	return err
}

// DeleteMessage removes a message the viewer may delete.
func (c *Client) DeleteMessage(ctx context.Context, msg *models.Message) error {
	if !msg.Deletable {
		return ErrNotDeletable
	}

	_, err := c.rest.Do(ctx, "DELETE", "/channels/"+msg.ChannelID+"/messages/"+msg.ID, nil, nil)
	return err
}

// MessageInvites scans the message content for invite links and resolves
// each to a cached invite. The scan runs once per content version; IDs that
// do not resolve are remembered as invalid.
func (c *Client) MessageInvites(ctx context.Context, msg *models.Message) (map[string]*models.Invite, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if msg.InvitesScanned() {
		return msg.Invites, nil
	}

	invites := make(map[string]*models.Invite)
	var invalid []string

	prefix := "https://" + c.cfg.Host + "/invite/"
	content := msg.Content
	for {
		idx := strings.Index(content, prefix)
		if idx < 0 {
			break
		}
		content = content[idx+len(prefix):]

		end := strings.IndexAny(content, " \n")
		id := content
		if end >= 0 {
			id = content[:end]
		}
		if id == "" {
			continue
		}

		inv, err := c.fetchInvite(ctx, id)
		if err != nil {
			invalid = append(invalid, id)
			continue
		}
		invites[id] = inv
	}

	msg.SetInviteScan(invites, invalid)
	return invites, nil
}

func (c *Client) messagesByID(channelID string, ids []string) []*models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.registry.Channels.Get(channelID)
	if !ok {
		return nil
	}

	out := make([]*models.Message, 0, len(ids))
	for _, id := range ids {
		if msg, ok := ch.Messages[id]; ok {
			out = append(out, msg)
		}
	}
	return out
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
