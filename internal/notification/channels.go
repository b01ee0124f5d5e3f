package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"spotter_portal_backend/internal/email"
	"spotter_portal_backend/internal/identity"
	"spotter_portal_backend/internal/notification/sse"
	"spotter_portal_backend/internal/notification/updates"
)

// Channel delivers a stored update to its recipient.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, u updates.Update) error
}

// InAppPublisher pushes an event to the recipient's open streams, locally
// or through a relay.
type InAppPublisher interface {
	PublishUpdate(ctx context.Context, userID int64, event sse.Event) error
}

// InAppChannel announces the update on the recipient's live stream. The
// update itself is already readable through the API once stored.
type InAppChannel struct {
	publisher InAppPublisher
}

func NewInAppChannel(publisher InAppPublisher) *InAppChannel {
	return &InAppChannel{publisher: publisher}
}

func (c *InAppChannel) Name() string { return "in_app" }

func (c *InAppChannel) Deliver(ctx context.Context, u updates.Update) error {
	return c.publisher.PublishUpdate(ctx, u.RecipientID, sse.Event{
		Type:     sse.EventUpdateCreated,
		UpdateID: u.ID,
		LeadID:   u.LeadID,
		Title:    u.Title,
		Message:  u.Message,
		Data:     map[string]string{"update_type": u.UpdateType},
	})
}

// UserReader resolves recipients to their contact details.
type UserReader interface {
	GetUser(ctx context.Context, id int64) (identity.User, error)
}

// EmailChannel mails the update to the recipient's address.
type EmailChannel struct {
	sender  email.Sender
	users   UserReader
	baseURL string
}

func NewEmailChannel(sender email.Sender, users UserReader, baseURL string) *EmailChannel {
	return &EmailChannel{sender: sender, users: users, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *EmailChannel) Name() string { return "email" }

// Deliver skips recipients without an address or who were deactivated.
func (c *EmailChannel) Deliver(ctx context.Context, u updates.Update) error {
	user, err := c.users.GetUser(ctx, u.RecipientID)
	if errors.Is(err, identity.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load recipient %d: %w", u.RecipientID, err)
	}
	if !user.IsActive || strings.TrimSpace(user.Email) == "" {
		return nil
	}

	msg := email.UpdateEmail{
		Subject: u.Title,
		Heading: u.Title,
		Message: u.Message,
	}
	if u.LeadID != nil && c.baseURL != "" {
		msg.CTALabel = email.CTAViewLead
		msg.CTAURL = fmt.Sprintf("%s/leads/%d", c.baseURL, *u.LeadID)
	}
	return c.sender.SendUpdateEmail(ctx, user.Email, msg)
}

// DefaultChannels returns the in-app and email channels in delivery order.
func DefaultChannels(publisher InAppPublisher, sender email.Sender, users UserReader, baseURL string) []Channel {
	return []Channel{
		NewInAppChannel(publisher),
		NewEmailChannel(sender, users, baseURL),
	}
}
