// Package updates stores the notifications ("updates") sent to users and
// their delivery state.
package updates

import (
	"context"
	"time"
)

// Delivery states.
const (
	StatusPending   = "pending"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

const maxErrorLength = 1000

type Update struct {
	ID               int64
	RecipientID      int64
	LeadID           *int64
	UpdateType       string
	TemplateName     string
	Title            string
	Message          string
	DeliveryStatus   string
	DeliveryAttempts int
	LastAttemptAt    *time.Time
	LastError        *string
	CreatedAt        time.Time
	DeliveredAt      *time.Time
	ReadAt           *time.Time
}

// IsRead reports whether the recipient has marked the update read.
func (u Update) IsRead() bool {
	return u.ReadAt != nil
}

type CreateParams struct {
	RecipientID  int64
	LeadID       *int64
	UpdateType   string
	TemplateName string
	Title        string
	Message      string
}

// Store is implemented by Repository and MemoryStore.
type Store interface {
	Create(ctx context.Context, p CreateParams) (Update, error)
	GetByID(ctx context.Context, id int64) (Update, error)
	ListForRecipient(ctx context.Context, recipientID int64, limit, offset int) ([]Update, int, error)
	MarkRead(ctx context.Context, id, recipientID int64) (Update, error)
	// RecordAttempt counts one delivery attempt. A nil deliveryErr marks the
	// update delivered; otherwise it is failed with the error text kept.
	RecordAttempt(ctx context.Context, id int64, at time.Time, deliveryErr error) (Update, error)
	// ListRedeliverable returns ids of failed updates with attempts left and
	// of pending updates created before pendingBefore, oldest first.
	ListRedeliverable(ctx context.Context, maxAttempts int, pendingBefore time.Time, limit int) ([]int64, error)
}

func errorText(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if len(msg) > maxErrorLength {
		msg = msg[:maxErrorLength]
	}
	return &msg
}
