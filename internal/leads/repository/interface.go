package repository

import (
	"context"
	"errors"
	"time"

	"spotter_portal_backend/internal/leads/domain"
)

var (
	ErrNotFound = errors.New("lead not found")
	// ErrVersionConflict means the lead changed between read and write.
	ErrVersionConflict = errors.New("lead was modified concurrently")
)

// Filter narrows lead listings. Nil fields are ignored; an empty Statuses
// slice matches every status.
type Filter struct {
	SpotterID *int64
	AgencyID  *int64
	AgentID   *int64
	Statuses  []domain.Status
}

type ListParams struct {
	Filter
	Limit  int
	Offset int
}

type CreateLeadParams struct {
	SpotterID        int64
	AgencyID         int64
	RequestedAgentID *int64
	NotesText        string
	Images           []string
	CreatedAt        time.Time
}

// TransitionParams carries the full post-transition state of a lead.
// Lead.Version must be the version that was read; the write succeeds only
// if the stored row still has it.
type TransitionParams struct {
	Lead       domain.Lead
	Action     domain.Action
	FromStatus domain.Status
	ActorID    int64
	Notes      string
	At         time.Time

	// SupersedeAssignment deactivates the current active assignment.
	SupersedeAssignment bool
	// NewAssignment, when set, becomes the lead's active assignment.
	NewAssignment *domain.Assignment
}

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// LeadReader provides lock-free read access to leads.
type LeadReader interface {
	GetByID(ctx context.Context, id int64) (domain.Lead, error)
	List(ctx context.Context, params ListParams) ([]domain.Lead, int, error)
	ListAll(ctx context.Context, filter Filter) ([]domain.Lead, error)
}

// HistoryReader exposes the append-only transition log.
type HistoryReader interface {
	ListHistory(ctx context.Context, leadID int64) ([]domain.HistoryEntry, error)
	ActiveAssignment(ctx context.Context, leadID int64) (domain.Assignment, error)
}

// LeadWriter persists submissions and transitions atomically together with
// their history and assignment rows.
type LeadWriter interface {
	Create(ctx context.Context, params CreateLeadParams) (domain.Lead, error)
	ApplyTransition(ctx context.Context, params TransitionParams) (domain.Lead, error)
}

// Store is the full lead store.
type Store interface {
	LeadReader
	HistoryReader
	LeadWriter
}
