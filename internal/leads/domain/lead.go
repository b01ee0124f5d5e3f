// Package domain holds the lead aggregate and its state machine. It has no
// knowledge of storage or transport.
package domain

import "time"

// Role is a marketplace user role.
type Role string

const (
	RoleSpotter     Role = "spotter"
	RoleAgent       Role = "agent"
	RoleAgencyAdmin Role = "agency_admin"
)

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID       int64
	Role     Role
	AgencyID *int64
}

// IsAdminOf reports whether the actor administers agencyID.
func (a Actor) IsAdminOf(agencyID int64) bool {
	return a.Role == RoleAgencyAdmin && a.AgencyID != nil && *a.AgencyID == agencyID
}

// Lead is a property reported by a spotter and worked by an agent.
type Lead struct {
	ID               int64
	Status           Status
	IsAccepted       bool
	SpotterID        int64
	AgencyID         int64
	AgentID          *int64
	RequestedAgentID *int64

	FinalPriceCents              *int64
	AgreedCommissionAmountCents  *int64
	SpotterCommissionAmountCents *int64
	FailureReason                *string

	NotesText string
	Images    []string
	Version   int64

	CreatedAt  time.Time
	AssignedAt *time.Time
	AcceptedAt *time.Time
	ClosedAt   *time.Time
}

// IsAssignedTo reports whether userID is the lead's current agent.
func (l Lead) IsAssignedTo(userID int64) bool {
	return l.AgentID != nil && *l.AgentID == userID
}

// IsParty reports whether actor may see the lead: its spotter, its current
// agent, or an admin of its agency.
func (l Lead) IsParty(actor Actor) bool {
	switch actor.Role {
	case RoleSpotter:
		return l.SpotterID == actor.ID
	case RoleAgent:
		return l.IsAssignedTo(actor.ID)
	case RoleAgencyAdmin:
		return actor.IsAdminOf(l.AgencyID)
	default:
		return false
	}
}

// HistoryEntry is one applied transition.
type HistoryEntry struct {
	ID         int64
	LeadID     int64
	Action     Action
	FromStatus *Status
	ToStatus   Status
	ActorID    int64
	Notes      string
	CreatedAt  time.Time
}

// Assignment records which agent a lead was given to and by whom.
type Assignment struct {
	ID           int64
	LeadID       int64
	AgentID      int64
	AssignedByID int64
	Notes        string
	IsActive     bool
	AssignedAt   time.Time
	SupersededAt *time.Time
}
