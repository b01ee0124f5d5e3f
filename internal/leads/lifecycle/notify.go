package lifecycle

import (
	"context"
	"errors"
	"strings"

	"spotter_portal_backend/internal/leads/domain"
	"spotter_portal_backend/internal/leads/ports"
	"spotter_portal_backend/platform/apperr"
)

// NotifyInput is an explicit notification about a lead. RecipientID
// defaults to the lead's spotter.
type NotifyInput struct {
	TemplateName string
	Variables    map[string]interface{}
	RecipientID  *int64
}

// Notify sends a templated notification about a lead to one of its parties.
func (e *Engine) Notify(ctx context.Context, actor domain.Actor, leadID int64, in NotifyInput) (ports.SentNotification, error) {
	lead, err := e.loadForWrite(ctx, leadID)
	if err != nil {
		return ports.SentNotification{}, err
	}
	if !lead.IsParty(actor) {
		return ports.SentNotification{}, apperr.Forbidden("you are not a party to this lead")
	}

	name := strings.TrimSpace(in.TemplateName)
	if name == "" {
		return ports.SentNotification{}, apperr.FieldValidation("template_name", "template_name is required")
	}

	recipient := lead.SpotterID
	if in.RecipientID != nil {
		recipient = *in.RecipientID
		ok, err := e.isParty(ctx, lead, recipient)
		if err != nil {
			return ports.SentNotification{}, err
		}
		if !ok {
			return ports.SentNotification{}, apperr.FieldValidation("recipient_id", "recipient is not a party to this lead")
		}
	}

	vars := make(map[string]interface{}, len(in.Variables)+1)
	for k, v := range in.Variables {
		vars[k] = v
	}
	if _, ok := vars["lead_id"]; !ok {
		vars["lead_id"] = lead.ID
	}

	id := lead.ID
	sent, err := e.notifier.Send(ctx, ports.NotifyRequest{
		RecipientID:  recipient,
		LeadID:       &id,
		TemplateName: name,
		Variables:    vars,
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return ports.SentNotification{}, err
		}
		return ports.SentNotification{}, apperr.Wrap(apperr.KindInternal, "could not record notification", err)
	}
	return sent, nil
}

// isParty checks userID against the lead's spotter, its agent and the
// admins of its agency.
func (e *Engine) isParty(ctx context.Context, lead domain.Lead, userID int64) (bool, error) {
	if userID == lead.SpotterID || lead.IsAssignedTo(userID) {
		return true, nil
	}

	user, err := e.users.GetUser(ctx, userID)
	if errors.Is(err, ports.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Unavailable("could not verify recipient", err)
	}
	return user.IsActive && user.Role == domain.RoleAgencyAdmin && user.InAgency(lead.AgencyID), nil
}
