// Package notification provides the notification bounded context: the
// template registry, the updates store, the delivery dispatcher and the
// handlers that turn lead lifecycle events into updates.
package notification

import (
	"context"
	"errors"
	"fmt"

	"spotter_portal_backend/internal/events"
	apphttp "spotter_portal_backend/internal/http"
	"spotter_portal_backend/internal/identity"
	leadsdomain "spotter_portal_backend/internal/leads/domain"
	"spotter_portal_backend/internal/notification/handler"
	"spotter_portal_backend/internal/notification/sse"
	"spotter_portal_backend/internal/notification/templates"
	"spotter_portal_backend/internal/notification/updates"
	"spotter_portal_backend/platform/httpkit"
	"spotter_portal_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// Directory resolves the people an event concerns.
type Directory interface {
	GetUser(ctx context.Context, id int64) (identity.User, error)
	ListAgencyAdmins(ctx context.Context, agencyID int64) ([]identity.User, error)
}

// Module is the notification module. It subscribes to lead lifecycle
// events and serves the updates API.
type Module struct {
	dispatcher *Dispatcher
	directory  Directory
	handler    *handler.HTTPHandler
	log        *logger.Logger
}

// NewModule wires the module. stream may be nil when this process does
// not hold live connections.
func NewModule(dispatcher *Dispatcher, inbox handler.Inbox, stream *sse.Service, directory Directory, log *logger.Logger) *Module {
	if log == nil {
		log = logger.Nop()
	}

	var streamHandler gin.HandlerFunc
	if stream != nil {
		streamHandler = stream.Handler(func(c *gin.Context) (int64, bool) {
			identity := httpkit.GetIdentity(c)
			if identity == nil || !identity.IsAuthenticated() {
				return 0, false
			}
			return identity.UserID(), true
		})
	}

	return &Module{
		dispatcher: dispatcher,
		directory:  directory,
		handler:    handler.NewHTTPHandler(inbox, streamHandler),
		log:        log,
	}
}

func (m *Module) Name() string { return "notification" }

// Dispatcher exposes the dispatcher for other modules and the worker.
func (m *Module) Dispatcher() *Dispatcher { return m.dispatcher }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/updates"), ctx.WriteMiddleware...)
}

// RegisterHandlers subscribes the module to the lead lifecycle events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadAssigned{}.EventName(), m)
	bus.Subscribe(events.LeadAccepted{}.EventName(), m)
	bus.Subscribe(events.LeadRejected{}.EventName(), m)
	bus.Subscribe(events.LeadCompleted{}.EventName(), m)
	bus.Subscribe(events.LeadFailed{}.EventName(), m)
}

// Handle implements events.Handler.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadAssigned:
		return m.handleLeadAssigned(ctx, e)
	case events.LeadAccepted:
		return m.handleLeadAccepted(ctx, e)
	case events.LeadRejected:
		return m.handleLeadRejected(ctx, e)
	case events.LeadCompleted:
		return m.handleLeadCompleted(ctx, e)
	case events.LeadFailed:
		return m.handleLeadFailed(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleLeadAssigned(ctx context.Context, e events.LeadAssigned) error {
	return m.send(ctx, e.AgentID, e.LeadID, templates.LeadAssigned, map[string]interface{}{
		"lead_id":    e.LeadID,
		"agency_id":  e.AgencyID,
		"reassigned": e.Reassigned,
		"notes":      e.Notes,
	})
}

func (m *Module) handleLeadAccepted(ctx context.Context, e events.LeadAccepted) error {
	return m.send(ctx, e.SpotterID, e.LeadID, templates.LeadAccepted, map[string]interface{}{
		"lead_id":    e.LeadID,
		"agent_id":   e.AgentID,
		"agent_name": m.userName(ctx, e.AgentID),
		"notes":      e.Notes,
	})
}

// handleLeadRejected tells the agency admins so they can reassign.
func (m *Module) handleLeadRejected(ctx context.Context, e events.LeadRejected) error {
	return m.sendToAdmins(ctx, e.AgencyID, e.LeadID, templates.LeadRejected, map[string]interface{}{
		"lead_id":    e.LeadID,
		"agent_id":   e.AgentID,
		"agent_name": m.userName(ctx, e.AgentID),
		"new_status": e.NewStatus,
		"notes":      e.Notes,
	})
}

func (m *Module) handleLeadCompleted(ctx context.Context, e events.LeadCompleted) error {
	return m.send(ctx, e.SpotterID, e.LeadID, templates.LeadCompleted, map[string]interface{}{
		"lead_id":            e.LeadID,
		"final_price":        leadsdomain.FormatCents(e.FinalPriceCents),
		"agreed_commission":  leadsdomain.FormatCents(e.AgreedCommissionCents),
		"spotter_commission": leadsdomain.FormatCents(e.SpotterCommissionCents),
	})
}

func (m *Module) handleLeadFailed(ctx context.Context, e events.LeadFailed) error {
	return m.sendToAdmins(ctx, e.AgencyID, e.LeadID, templates.LeadFailed, map[string]interface{}{
		"lead_id":    e.LeadID,
		"agent_id":   e.AgentID,
		"agent_name": m.userName(ctx, e.AgentID),
		"reason":     e.Reason,
		"notes":      e.Notes,
	})
}

func (m *Module) send(ctx context.Context, recipientID, leadID int64, template string, vars map[string]interface{}) error {
	_, err := m.dispatcher.Send(ctx, SendParams{
		RecipientID:  recipientID,
		LeadID:       &leadID,
		TemplateName: template,
		Variables:    vars,
	})
	if err != nil {
		return fmt.Errorf("send %s to %d: %w", template, recipientID, err)
	}
	return nil
}

func (m *Module) sendToAdmins(ctx context.Context, agencyID, leadID int64, template string, vars map[string]interface{}) error {
	admins, err := m.directory.ListAgencyAdmins(ctx, agencyID)
	if err != nil {
		return fmt.Errorf("list admins of agency %d: %w", agencyID, err)
	}
	if len(admins) == 0 {
		m.log.Warn("agency has no active admins to notify", "agency_id", agencyID, "lead_id", leadID)
		return nil
	}

	var errs []error
	for _, admin := range admins {
		if err := m.send(ctx, admin.ID, leadID, template, vars); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// userName falls back to a generic label when the user cannot be loaded.
func (m *Module) userName(ctx context.Context, userID int64) string {
	u, err := m.directory.GetUser(ctx, userID)
	if err != nil || u.Name == "" {
		return fmt.Sprintf("Agent #%d", userID)
	}
	return u.Name
}

var (
	_ apphttp.Module = (*Module)(nil)
	_ events.Handler = (*Module)(nil)
	_ handler.Inbox  = (updates.Store)(nil)
)
