// Package lifecycle applies lead state transitions. It is the only writer of
// lead status: every change goes through the transition table in the domain
// package, is persisted with an optimistic version check and is announced on
// the event bus after commit.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spotter_portal_backend/internal/events"
	"spotter_portal_backend/internal/leads/commission"
	"spotter_portal_backend/internal/leads/domain"
	"spotter_portal_backend/internal/leads/ports"
	"spotter_portal_backend/internal/leads/repository"
	"spotter_portal_backend/platform/apperr"
	"spotter_portal_backend/platform/logger"
)

// Engine validates and applies lifecycle operations.
type Engine struct {
	store        repository.Store
	users        ports.UserDirectory
	notifier     ports.Notifier
	policy       commission.Policy
	bus          events.Bus
	rejectPolicy domain.RejectPolicy
	log          *logger.Logger
	now          func() time.Time
}

// Deps are the collaborators of the engine. Bus and Log may be nil.
type Deps struct {
	Store        repository.Store
	Users        ports.UserDirectory
	Notifier     ports.Notifier
	Policy       commission.Policy
	Bus          events.Bus
	RejectPolicy domain.RejectPolicy
	Log          *logger.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(deps Deps, opts ...Option) *Engine {
	e := &Engine{
		store:        deps.Store,
		users:        deps.Users,
		notifier:     deps.Notifier,
		policy:       deps.Policy,
		bus:          deps.Bus,
		rejectPolicy: deps.RejectPolicy,
		log:          deps.Log,
		now:          time.Now,
	}
	if e.rejectPolicy == "" {
		e.rejectPolicy = domain.RejectClose
	}
	if e.log == nil {
		e.log = logger.Nop()
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// timestamp matches the precision Postgres stores.
func (e *Engine) timestamp() time.Time {
	return e.now().UTC().Truncate(time.Microsecond)
}

// loadForWrite reads the lead a transition starts from.
func (e *Engine) loadForWrite(ctx context.Context, id int64) (domain.Lead, error) {
	lead, err := e.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return domain.Lead{}, apperr.Wrap(apperr.KindInternal, "could not load lead", err)
	}
	return lead, nil
}

// loadForRead is loadForWrite for read endpoints, where storage trouble is
// reported as retryable.
func (e *Engine) loadForRead(ctx context.Context, id int64) (domain.Lead, error) {
	lead, err := e.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return domain.Lead{}, apperr.Unavailable("could not fetch lead", err)
	}
	return lead, nil
}

func invalidTransition(action domain.Action, status domain.Status) *apperr.Error {
	return apperr.InvalidTransition(fmt.Sprintf("cannot %s a lead that is %s", action, status))
}

// commit persists a transition and reports it.
func (e *Engine) commit(ctx context.Context, params repository.TransitionParams) (domain.Lead, error) {
	updated, err := e.store.ApplyTransition(ctx, params)
	switch {
	case errors.Is(err, repository.ErrVersionConflict):
		return domain.Lead{}, apperr.Conflict("lead was changed by another request, reload and try again")
	case errors.Is(err, repository.ErrNotFound):
		return domain.Lead{}, apperr.NotFound("lead not found")
	case err != nil:
		e.log.WithContext(ctx).DatabaseError("apply_transition", err)
		return domain.Lead{}, apperr.Wrap(apperr.KindInternal, "could not save lead", err)
	}

	e.log.WithContext(ctx).Transition(updated.ID, string(params.Action), string(params.FromStatus), string(updated.Status), params.ActorID)
	return updated, nil
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(ctx, event)
}
