package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"spotter_portal_backend/internal/leads/domain"
)

func TestMemoryStoreVersionGuard(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	lead, _ := store.Create(ctx, CreateLeadParams{SpotterID: 1, AgencyID: 3, CreatedAt: time.Now()})

	agent := int64(7)
	next := lead
	next.Status = domain.StatusAssigned
	next.AgentID = &agent

	updated, err := store.ApplyTransition(ctx, TransitionParams{Lead: next, Action: domain.ActionAssign, FromStatus: domain.StatusNew, ActorID: 9})
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	if updated.Version != lead.Version+1 {
		t.Fatalf("expected version %d, got %d", lead.Version+1, updated.Version)
	}

	// Same stale version again.
	if _, err := store.ApplyTransition(ctx, TransitionParams{Lead: next, Action: domain.ActionAssign, FromStatus: domain.StatusNew, ActorID: 9}); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	if _, err := store.ApplyTransition(ctx, TransitionParams{Lead: domain.Lead{ID: 999, Version: 1}}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreSingleActiveAssignment(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	lead, _ := store.Create(ctx, CreateLeadParams{SpotterID: 1, AgencyID: 3, CreatedAt: time.Now()})

	for _, agentID := range []int64{7, 8} {
		current, _ := store.GetByID(ctx, lead.ID)
		current.Status = domain.StatusAssigned
		current.AgentID = &agentID
		if _, err := store.ApplyTransition(ctx, TransitionParams{
			Lead:          current,
			Action:        domain.ActionAssign,
			NewAssignment: &domain.Assignment{AgentID: agentID, AssignedByID: 9},
			At:            time.Now(),
		}); err != nil {
			t.Fatalf("assign %d: %v", agentID, err)
		}
	}

	active := 0
	for _, a := range store.Assignments(lead.ID) {
		if a.IsActive {
			active++
			if a.AgentID != 8 {
				t.Fatalf("expected latest agent to be active, got %d", a.AgentID)
			}
		} else if a.SupersededAt == nil {
			t.Fatal("expected superseded assignment to carry superseded_at")
		}
	}
	if active != 1 {
		t.Fatalf("expected exactly one active assignment, got %d", active)
	}
}

func TestMemoryStoreListFilterAndPaging(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		store.Create(ctx, CreateLeadParams{SpotterID: 1, AgencyID: 3, CreatedAt: base.Add(time.Duration(i) * time.Hour)})
	}
	store.Create(ctx, CreateLeadParams{SpotterID: 2, AgencyID: 3, CreatedAt: base})

	spotter := int64(1)
	page, total, err := store.List(ctx, ListParams{Filter: Filter{SpotterID: &spotter}, Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 || len(page) != 2 {
		t.Fatalf("expected 2 of 5, got %d of %d", len(page), total)
	}
	if !page[0].CreatedAt.After(page[1].CreatedAt) {
		t.Fatal("expected newest first")
	}

	statusFiltered, _ := store.ListAll(ctx, Filter{Statuses: []domain.Status{domain.StatusClosed}})
	if len(statusFiltered) != 0 {
		t.Fatalf("expected no closed leads, got %d", len(statusFiltered))
	}
}

func TestMemoryStoreCreateRecordsSubmitHistory(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	lead, _ := store.Create(ctx, CreateLeadParams{SpotterID: 1, AgencyID: 3, CreatedAt: time.Now()})

	history, _ := store.ListHistory(ctx, lead.ID)
	if len(history) != 1 || history[0].Action != domain.ActionSubmit || history[0].FromStatus != nil {
		t.Fatalf("unexpected history %+v", history)
	}
}
