package ports

import (
	"context"
	"time"
)

// NotifyRequest asks the notification module to render and send a template.
type NotifyRequest struct {
	RecipientID  int64
	LeadID       *int64
	TemplateName string
	Variables    map[string]interface{}
}

// SentNotification is the stored update returned by a send.
type SentNotification struct {
	ID             int64
	RecipientID    int64
	LeadID         *int64
	UpdateType     string
	TemplateName   string
	Title          string
	Message        string
	DeliveryStatus string
	CreatedAt      time.Time
}

// Notifier sends a single notification synchronously up to persistence;
// delivery itself happens asynchronously.
type Notifier interface {
	Send(ctx context.Context, req NotifyRequest) (SentNotification, error)
}
