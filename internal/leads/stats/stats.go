// Package stats aggregates lead sets into per-status counts for dashboards.
package stats

import "spotter_portal_backend/internal/leads/domain"

// Scope names whose leads are being counted.
type Scope string

const (
	ScopeSpotter Scope = "spotter"
	ScopeAgent   Scope = "agent"
	ScopeAgency  Scope = "agency"
)

// Stats counts leads by status. The buckets partition Total.
type Stats struct {
	Total      int `json:"total"`
	New        int `json:"new"`
	Assigned   int `json:"assigned"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Closed     int `json:"closed"`
}

// Compute counts leads. It has no side effects and reads nothing but its input.
func Compute(leads []domain.Lead) Stats {
	var s Stats
	for _, lead := range leads {
		s.add(lead.Status)
	}
	return s
}

func (s *Stats) add(status domain.Status) {
	s.Total++
	switch status {
	case domain.StatusNew:
		s.New++
	case domain.StatusAssigned:
		s.Assigned++
	case domain.StatusInProgress:
		s.InProgress++
	case domain.StatusCompleted:
		s.Completed++
	case domain.StatusClosed:
		s.Closed++
	}
}
