package adapters

import (
	"context"

	"spotter_portal_backend/internal/leads/ports"
	"spotter_portal_backend/internal/notification"
)

// NotifierAdapter implements ports.Notifier using the notification dispatcher.
type NotifierAdapter struct {
	dispatcher *notification.Dispatcher
}

func NewNotifierAdapter(dispatcher *notification.Dispatcher) *NotifierAdapter {
	return &NotifierAdapter{dispatcher: dispatcher}
}

func (a *NotifierAdapter) Send(ctx context.Context, req ports.NotifyRequest) (ports.SentNotification, error) {
	u, err := a.dispatcher.Send(ctx, notification.SendParams{
		RecipientID:  req.RecipientID,
		LeadID:       req.LeadID,
		TemplateName: req.TemplateName,
		Variables:    req.Variables,
	})
	if err != nil {
		return ports.SentNotification{}, err
	}
	return ports.SentNotification{
		ID:             u.ID,
		RecipientID:    u.RecipientID,
		LeadID:         u.LeadID,
		UpdateType:     u.UpdateType,
		TemplateName:   u.TemplateName,
		Title:          u.Title,
		Message:        u.Message,
		DeliveryStatus: u.DeliveryStatus,
		CreatedAt:      u.CreatedAt,
	}, nil
}
