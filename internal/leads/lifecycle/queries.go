package lifecycle

import (
	"context"
	"errors"

	"spotter_portal_backend/internal/leads/domain"
	"spotter_portal_backend/internal/leads/ports"
	"spotter_portal_backend/internal/leads/repository"
	"spotter_portal_backend/internal/leads/stats"
	"spotter_portal_backend/platform/apperr"
)

// ListQuery selects one page of a scope's leads.
type ListQuery struct {
	Scope     stats.Scope
	SubjectID int64
	// ShowAll includes terminal leads in agent listings, which by default
	// only show work that is still open.
	ShowAll bool
	Limit   int
	Offset  int
}

var openAgentStatuses = []domain.Status{domain.StatusAssigned, domain.StatusInProgress}

// Get returns a lead visible to actor.
func (e *Engine) Get(ctx context.Context, actor domain.Actor, leadID int64) (domain.Lead, error) {
	lead, err := e.loadForRead(ctx, leadID)
	if err != nil {
		return domain.Lead{}, err
	}
	if !lead.IsParty(actor) {
		return domain.Lead{}, apperr.Forbidden("you are not a party to this lead")
	}
	return lead, nil
}

// History returns the transition log of a lead visible to actor.
func (e *Engine) History(ctx context.Context, actor domain.Actor, leadID int64) ([]domain.HistoryEntry, error) {
	if _, err := e.Get(ctx, actor, leadID); err != nil {
		return nil, err
	}
	entries, err := e.store.ListHistory(ctx, leadID)
	if err != nil {
		return nil, apperr.Unavailable("could not fetch lead history", err)
	}
	return entries, nil
}

// scopeFilter authorises actor for scope/subjectID and returns the matching
// store filter.
func (e *Engine) scopeFilter(ctx context.Context, actor domain.Actor, scope stats.Scope, subjectID int64) (repository.Filter, error) {
	id := subjectID
	switch scope {
	case stats.ScopeSpotter:
		if actor.Role != domain.RoleSpotter || actor.ID != subjectID {
			return repository.Filter{}, apperr.Forbidden("spotters can only see their own leads")
		}
		return repository.Filter{SpotterID: &id}, nil

	case stats.ScopeAgency:
		if !actor.IsAdminOf(subjectID) {
			return repository.Filter{}, apperr.Forbidden("only admins of this agency can see its leads")
		}
		return repository.Filter{AgencyID: &id}, nil

	case stats.ScopeAgent:
		if actor.Role == domain.RoleAgent && actor.ID == subjectID {
			return repository.Filter{AgentID: &id}, nil
		}
		if actor.Role != domain.RoleAgencyAdmin || actor.AgencyID == nil {
			return repository.Filter{}, apperr.Forbidden("agents can only see their own leads")
		}
		agent, err := e.users.GetUser(ctx, subjectID)
		if errors.Is(err, ports.ErrUserNotFound) {
			return repository.Filter{}, apperr.NotFound("agent not found")
		}
		if err != nil {
			return repository.Filter{}, apperr.Unavailable("could not fetch agent", err)
		}
		if agent.Role != domain.RoleAgent || !agent.InAgency(*actor.AgencyID) {
			return repository.Filter{}, apperr.Forbidden("agent does not belong to your agency")
		}
		agencyID := *actor.AgencyID
		return repository.Filter{AgentID: &id, AgencyID: &agencyID}, nil

	default:
		return repository.Filter{}, apperr.FieldValidation("scope", "scope must be spotter, agent or agency")
	}
}

// List returns one page of leads for a scope together with the total count.
func (e *Engine) List(ctx context.Context, actor domain.Actor, q ListQuery) ([]domain.Lead, int, error) {
	filter, err := e.scopeFilter(ctx, actor, q.Scope, q.SubjectID)
	if err != nil {
		return nil, 0, err
	}
	if q.Scope == stats.ScopeAgent && !q.ShowAll {
		filter.Statuses = openAgentStatuses
	}

	leads, total, err := e.store.List(ctx, repository.ListParams{Filter: filter, Limit: q.Limit, Offset: q.Offset})
	if err != nil {
		return nil, 0, apperr.Unavailable("could not fetch leads", err)
	}
	return leads, total, nil
}

// Stats counts every lead of a scope by status.
func (e *Engine) Stats(ctx context.Context, actor domain.Actor, scope stats.Scope, subjectID int64) (stats.Stats, error) {
	filter, err := e.scopeFilter(ctx, actor, scope, subjectID)
	if err != nil {
		return stats.Stats{}, err
	}

	leads, err := e.store.ListAll(ctx, filter)
	if err != nil {
		return stats.Stats{}, apperr.Unavailable("could not fetch leads", err)
	}
	return stats.Compute(leads), nil
}
