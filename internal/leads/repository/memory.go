package repository

import (
	"context"
	"sort"
	"sync"

	"spotter_portal_backend/internal/leads/domain"
)

// MemoryStore is an in-process Store with the same version and atomicity
// semantics as Repository.
type MemoryStore struct {
	mu          sync.RWMutex
	leads       map[int64]domain.Lead
	history     map[int64][]domain.HistoryEntry
	assignments map[int64][]domain.Assignment
	nextLeadID  int64
	nextRowID   int64
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		leads:       make(map[int64]domain.Lead),
		history:     make(map[int64][]domain.HistoryEntry),
		assignments: make(map[int64][]domain.Assignment),
	}
}

func cloneLead(l domain.Lead) domain.Lead {
	if l.Images != nil {
		l.Images = append([]string(nil), l.Images...)
	}
	return l
}

// Seed stores lead as-is, keeping its ID. Tests use it to start from a
// particular state.
func (m *MemoryStore) Seed(lead domain.Lead) domain.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lead.ID == 0 {
		m.nextLeadID++
		lead.ID = m.nextLeadID
	} else if lead.ID > m.nextLeadID {
		m.nextLeadID = lead.ID
	}
	if lead.Version == 0 {
		lead.Version = 1
	}
	m.leads[lead.ID] = cloneLead(lead)
	return cloneLead(lead)
}

func (m *MemoryStore) GetByID(_ context.Context, id int64) (domain.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lead, ok := m.leads[id]
	if !ok {
		return domain.Lead{}, ErrNotFound
	}
	return cloneLead(lead), nil
}

func matches(l domain.Lead, f Filter) bool {
	if f.SpotterID != nil && l.SpotterID != *f.SpotterID {
		return false
	}
	if f.AgencyID != nil && l.AgencyID != *f.AgencyID {
		return false
	}
	if f.AgentID != nil && !l.IsAssignedTo(*f.AgentID) {
		return false
	}
	if len(f.Statuses) > 0 {
		for _, s := range f.Statuses {
			if l.Status == s {
				return true
			}
		}
		return false
	}
	return true
}

func (m *MemoryStore) ListAll(_ context.Context, filter Filter) ([]domain.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Lead, 0)
	for _, l := range m.leads {
		if matches(l, filter) {
			out = append(out, cloneLead(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) List(ctx context.Context, params ListParams) ([]domain.Lead, int, error) {
	all, _ := m.ListAll(ctx, params.Filter)
	total := len(all)

	start := params.Offset
	if start > total {
		start = total
	}
	end := total
	if params.Limit > 0 && start+params.Limit < total {
		end = start + params.Limit
	}
	return all[start:end], total, nil
}

func (m *MemoryStore) Create(_ context.Context, params CreateLeadParams) (domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextLeadID++
	lead := domain.Lead{
		ID:               m.nextLeadID,
		Status:           domain.StatusNew,
		SpotterID:        params.SpotterID,
		AgencyID:         params.AgencyID,
		RequestedAgentID: params.RequestedAgentID,
		NotesText:        params.NotesText,
		Images:           append([]string{}, params.Images...),
		Version:          1,
		CreatedAt:        params.CreatedAt,
	}
	m.leads[lead.ID] = lead

	m.nextRowID++
	m.history[lead.ID] = append(m.history[lead.ID], domain.HistoryEntry{
		ID:        m.nextRowID,
		LeadID:    lead.ID,
		Action:    domain.ActionSubmit,
		ToStatus:  domain.StatusNew,
		ActorID:   params.SpotterID,
		CreatedAt: params.CreatedAt,
	})
	return cloneLead(lead), nil
}

func (m *MemoryStore) ApplyTransition(_ context.Context, params TransitionParams) (domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.leads[params.Lead.ID]
	if !ok {
		return domain.Lead{}, ErrNotFound
	}
	if current.Version != params.Lead.Version {
		return domain.Lead{}, ErrVersionConflict
	}

	next := cloneLead(params.Lead)
	// Immutable columns are never rewritten.
	next.SpotterID = current.SpotterID
	next.AgencyID = current.AgencyID
	next.RequestedAgentID = current.RequestedAgentID
	next.NotesText = current.NotesText
	next.Images = current.Images
	next.CreatedAt = current.CreatedAt
	next.Version = current.Version + 1
	m.leads[next.ID] = next

	from := params.FromStatus
	m.nextRowID++
	m.history[next.ID] = append(m.history[next.ID], domain.HistoryEntry{
		ID:         m.nextRowID,
		LeadID:     next.ID,
		Action:     params.Action,
		FromStatus: &from,
		ToStatus:   next.Status,
		ActorID:    params.ActorID,
		Notes:      params.Notes,
		CreatedAt:  params.At,
	})

	if params.SupersedeAssignment || params.NewAssignment != nil {
		rows := m.assignments[next.ID]
		for i := range rows {
			if rows[i].IsActive {
				at := params.At
				rows[i].IsActive = false
				rows[i].SupersededAt = &at
			}
		}
	}
	if a := params.NewAssignment; a != nil {
		m.nextRowID++
		m.assignments[next.ID] = append(m.assignments[next.ID], domain.Assignment{
			ID:           m.nextRowID,
			LeadID:       next.ID,
			AgentID:      a.AgentID,
			AssignedByID: a.AssignedByID,
			Notes:        a.Notes,
			IsActive:     true,
			AssignedAt:   params.At,
		})
	}

	return cloneLead(next), nil
}

func (m *MemoryStore) ListHistory(_ context.Context, leadID int64) ([]domain.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.HistoryEntry{}, m.history[leadID]...), nil
}

func (m *MemoryStore) ActiveAssignment(_ context.Context, leadID int64) (domain.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.assignments[leadID] {
		if a.IsActive {
			return a, nil
		}
	}
	return domain.Assignment{}, ErrNotFound
}

// Assignments returns every assignment row for leadID, oldest first.
func (m *MemoryStore) Assignments(leadID int64) []domain.Assignment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Assignment{}, m.assignments[leadID]...)
}
