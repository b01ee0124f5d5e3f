package lifecycle

import (
	"context"
	"errors"
	"strings"

	"spotter_portal_backend/internal/events"
	"spotter_portal_backend/internal/leads/domain"
	"spotter_portal_backend/internal/leads/ports"
	"spotter_portal_backend/internal/leads/repository"
	"spotter_portal_backend/platform/apperr"
)

// SubmitInput is a spotter's new lead.
type SubmitInput struct {
	AgencyID         int64
	RequestedAgentID *int64
	NotesText        string
	Images           []string
}

// AssignInput names the agent an admin hands the lead to.
type AssignInput struct {
	AgentID int64
	Notes   string
}

// RespondInput is the assigned agent's answer.
type RespondInput struct {
	Action domain.Action
	Notes  string
}

// CompleteInput closes a sale.
type CompleteInput struct {
	FinalPriceCents int64
	Notes           string
}

// FailInput gives up on a lead.
type FailInput struct {
	Reason string
	Notes  string
}

// Submit records a new lead for a spotter.
func (e *Engine) Submit(ctx context.Context, actor domain.Actor, in SubmitInput) (domain.Lead, error) {
	if actor.Role != domain.RoleSpotter {
		return domain.Lead{}, apperr.Forbidden("only spotters can submit leads")
	}

	if in.AgencyID <= 0 {
		return domain.Lead{}, apperr.FieldValidation("agency_id", "agency_id is required")
	}
	exists, err := e.users.AgencyExists(ctx, in.AgencyID)
	if err != nil {
		return domain.Lead{}, apperr.Unavailable("could not verify agency", err)
	}
	if !exists {
		return domain.Lead{}, apperr.FieldValidation("agency_id", "agency does not exist")
	}

	if in.RequestedAgentID != nil {
		if _, err := e.agentOf(ctx, in.AgencyID, *in.RequestedAgentID, "requested_agent_id"); err != nil {
			return domain.Lead{}, err
		}
	}

	lead, err := e.store.Create(ctx, repository.CreateLeadParams{
		SpotterID:        actor.ID,
		AgencyID:         in.AgencyID,
		RequestedAgentID: in.RequestedAgentID,
		NotesText:        strings.TrimSpace(in.NotesText),
		Images:           in.Images,
		CreatedAt:        e.timestamp(),
	})
	if err != nil {
		e.log.WithContext(ctx).DatabaseError("create_lead", err)
		return domain.Lead{}, apperr.Wrap(apperr.KindInternal, "could not save lead", err)
	}

	e.log.WithContext(ctx).Transition(lead.ID, string(domain.ActionSubmit), "", string(lead.Status), actor.ID)
	return lead, nil
}

// agentOf loads userID and checks that it is an active agent of agencyID.
// Failures are reported against field.
func (e *Engine) agentOf(ctx context.Context, agencyID, userID int64, field string) (ports.User, error) {
	if userID <= 0 {
		return ports.User{}, apperr.FieldValidation(field, field+" is required")
	}

	user, err := e.users.GetUser(ctx, userID)
	if errors.Is(err, ports.ErrUserNotFound) {
		return ports.User{}, apperr.FieldValidation(field, "agent does not exist")
	}
	if err != nil {
		return ports.User{}, apperr.Unavailable("could not verify agent", err)
	}

	switch {
	case user.Role != domain.RoleAgent:
		return ports.User{}, apperr.FieldValidation(field, "user is not an agent")
	case !user.IsActive:
		return ports.User{}, apperr.FieldValidation(field, "agent is not active")
	case !user.InAgency(agencyID):
		return ports.User{}, apperr.FieldValidation(field, "agent does not belong to this agency")
	}
	return user, nil
}

// Assign gives a new or assigned lead to an agent of the lead's agency.
// Assigning an already assigned lead is a reassignment and refreshes
// assigned_at, even when the agent does not change.
func (e *Engine) Assign(ctx context.Context, actor domain.Actor, leadID int64, in AssignInput) (domain.Lead, error) {
	lead, err := e.loadForWrite(ctx, leadID)
	if err != nil {
		return domain.Lead{}, err
	}

	if !actor.IsAdminOf(lead.AgencyID) {
		return domain.Lead{}, apperr.Forbidden("only admins of the lead's agency can assign it")
	}

	action := domain.AssignAction(lead.Status)
	to, ok := domain.NextStatus(lead.Status, action, e.rejectPolicy)
	if !ok {
		if lead.Status == domain.StatusInProgress {
			return domain.Lead{}, apperr.InvalidTransition("lead has already been accepted and is in progress").
				WithCode(apperr.CodeLeadAlreadyInProgress)
		}
		return domain.Lead{}, invalidTransition(action, lead.Status)
	}

	agent, err := e.agentOf(ctx, lead.AgencyID, in.AgentID, "agent_id")
	if err != nil {
		return domain.Lead{}, err
	}

	now := e.timestamp()
	from := lead.Status
	next := lead
	next.Status = to
	next.AgentID = &agent.ID
	next.AssignedAt = &now

	notes := strings.TrimSpace(in.Notes)
	updated, err := e.commit(ctx, repository.TransitionParams{
		Lead:       next,
		Action:     action,
		FromStatus: from,
		ActorID:    actor.ID,
		Notes:      notes,
		At:         now,
		NewAssignment: &domain.Assignment{
			AgentID:      agent.ID,
			AssignedByID: actor.ID,
			Notes:        notes,
		},
	})
	if err != nil {
		return domain.Lead{}, err
	}

	e.publish(ctx, events.LeadAssigned{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       updated.ID,
		AgencyID:     updated.AgencyID,
		SpotterID:    updated.SpotterID,
		AgentID:      agent.ID,
		AssignedByID: actor.ID,
		Reassigned:   action == domain.ActionReassign,
		Notes:        notes,
	})
	return updated, nil
}

// requireAssignedAgent is the actor check shared by the agent-side actions.
func requireAssignedAgent(actor domain.Actor, lead domain.Lead) error {
	if actor.Role != domain.RoleAgent || !lead.IsAssignedTo(actor.ID) {
		return apperr.Forbidden("only the assigned agent can act on this lead")
	}
	return nil
}

// Respond accepts or rejects an assigned lead.
func (e *Engine) Respond(ctx context.Context, actor domain.Actor, leadID int64, in RespondInput) (domain.Lead, error) {
	lead, err := e.loadForWrite(ctx, leadID)
	if err != nil {
		return domain.Lead{}, err
	}
	if err := requireAssignedAgent(actor, lead); err != nil {
		return domain.Lead{}, err
	}

	if lead.Status != domain.StatusAssigned || lead.IsAccepted {
		action := in.Action
		if action != domain.ActionReject {
			action = domain.ActionAccept
		}
		return domain.Lead{}, invalidTransition(action, lead.Status)
	}

	if in.Action != domain.ActionAccept && in.Action != domain.ActionReject {
		return domain.Lead{}, apperr.FieldValidation("action", "action must be accept or reject")
	}

	to, _ := domain.NextStatus(lead.Status, in.Action, e.rejectPolicy)
	now := e.timestamp()
	notes := strings.TrimSpace(in.Notes)
	agentID := *lead.AgentID

	next := lead
	next.Status = to
	params := repository.TransitionParams{
		Action:     in.Action,
		FromStatus: lead.Status,
		ActorID:    actor.ID,
		Notes:      notes,
		At:         now,
	}

	if in.Action == domain.ActionAccept {
		next.IsAccepted = true
		next.AcceptedAt = &now
	} else {
		next.AgentID = nil
		if to == domain.StatusClosed {
			next.ClosedAt = &now
		}
		params.SupersedeAssignment = true
	}
	params.Lead = next

	updated, err := e.commit(ctx, params)
	if err != nil {
		return domain.Lead{}, err
	}

	if in.Action == domain.ActionAccept {
		e.publish(ctx, events.LeadAccepted{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    updated.ID,
			AgencyID:  updated.AgencyID,
			SpotterID: updated.SpotterID,
			AgentID:   agentID,
			Notes:     notes,
		})
	} else {
		e.publish(ctx, events.LeadRejected{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    updated.ID,
			AgencyID:  updated.AgencyID,
			SpotterID: updated.SpotterID,
			AgentID:   agentID,
			NewStatus: string(updated.Status),
			Notes:     notes,
		})
	}
	return updated, nil
}

// Complete records the sale price, fixes the commission and closes the lead
// as completed. The commission is computed once, before the write.
func (e *Engine) Complete(ctx context.Context, actor domain.Actor, leadID int64, in CompleteInput) (domain.Lead, error) {
	lead, err := e.loadForWrite(ctx, leadID)
	if err != nil {
		return domain.Lead{}, err
	}
	if err := requireAssignedAgent(actor, lead); err != nil {
		return domain.Lead{}, err
	}

	to, ok := domain.NextStatus(lead.Status, domain.ActionComplete, e.rejectPolicy)
	if !ok {
		return domain.Lead{}, invalidTransition(domain.ActionComplete, lead.Status)
	}

	if in.FinalPriceCents <= 0 {
		return domain.Lead{}, apperr.FieldValidation("final_price", "final_price must be a positive amount")
	}
	if in.FinalPriceCents > domain.MaxPriceCents {
		return domain.Lead{}, apperr.FieldValidation("final_price", "final_price is too large")
	}

	result, err := e.policy.Compute(in.FinalPriceCents)
	if err != nil {
		return domain.Lead{}, apperr.FieldValidation("final_price", err.Error())
	}

	now := e.timestamp()
	price := in.FinalPriceCents
	next := lead
	next.Status = to
	next.FinalPriceCents = &price
	next.AgreedCommissionAmountCents = &result.AgreedCents
	next.SpotterCommissionAmountCents = &result.SpotterCents
	next.ClosedAt = &now

	updated, err := e.commit(ctx, repository.TransitionParams{
		Lead:       next,
		Action:     domain.ActionComplete,
		FromStatus: lead.Status,
		ActorID:    actor.ID,
		Notes:      strings.TrimSpace(in.Notes),
		At:         now,
	})
	if err != nil {
		return domain.Lead{}, err
	}

	e.publish(ctx, events.LeadCompleted{
		BaseEvent:              events.NewBaseEvent(),
		LeadID:                 updated.ID,
		AgencyID:               updated.AgencyID,
		SpotterID:              updated.SpotterID,
		AgentID:                actor.ID,
		FinalPriceCents:        price,
		AgreedCommissionCents:  result.AgreedCents,
		SpotterCommissionCents: result.SpotterCents,
	})
	return updated, nil
}

// Fail closes an in-progress lead without a sale.
func (e *Engine) Fail(ctx context.Context, actor domain.Actor, leadID int64, in FailInput) (domain.Lead, error) {
	lead, err := e.loadForWrite(ctx, leadID)
	if err != nil {
		return domain.Lead{}, err
	}
	if err := requireAssignedAgent(actor, lead); err != nil {
		return domain.Lead{}, err
	}

	to, ok := domain.NextStatus(lead.Status, domain.ActionFail, e.rejectPolicy)
	if !ok {
		return domain.Lead{}, invalidTransition(domain.ActionFail, lead.Status)
	}

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return domain.Lead{}, apperr.FieldValidation("reason", "reason is required")
	}

	now := e.timestamp()
	notes := strings.TrimSpace(in.Notes)
	next := lead
	next.Status = to
	next.FailureReason = &reason
	next.ClosedAt = &now

	updated, err := e.commit(ctx, repository.TransitionParams{
		Lead:       next,
		Action:     domain.ActionFail,
		FromStatus: lead.Status,
		ActorID:    actor.ID,
		Notes:      notes,
		At:         now,
	})
	if err != nil {
		return domain.Lead{}, err
	}

	e.publish(ctx, events.LeadFailed{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    updated.ID,
		AgencyID:  updated.AgencyID,
		SpotterID: updated.SpotterID,
		AgentID:   actor.ID,
		Reason:    reason,
		Notes:     notes,
	})
	return updated, nil
}
