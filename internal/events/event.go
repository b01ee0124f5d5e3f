// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"spotter_portal_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Lifecycle Events
// =============================================================================

// LeadAssigned is published when an agency admin assigns or reassigns a lead.
type LeadAssigned struct {
	BaseEvent
	LeadID       int64  `json:"leadId"`
	AgencyID     int64  `json:"agencyId"`
	SpotterID    int64  `json:"spotterId"`
	AgentID      int64  `json:"agentId"`
	AssignedByID int64  `json:"assignedById"`
	Reassigned   bool   `json:"reassigned"`
	Notes        string `json:"notes,omitempty"`
}

func (e LeadAssigned) EventName() string { return "leads.lead.assigned" }

// LeadAccepted is published when the assigned agent accepts a lead.
type LeadAccepted struct {
	BaseEvent
	LeadID    int64  `json:"leadId"`
	AgencyID  int64  `json:"agencyId"`
	SpotterID int64  `json:"spotterId"`
	AgentID   int64  `json:"agentId"`
	Notes     string `json:"notes,omitempty"`
}

func (e LeadAccepted) EventName() string { return "leads.lead.accepted" }

// LeadRejected is published when the assigned agent rejects a lead.
type LeadRejected struct {
	BaseEvent
	LeadID    int64  `json:"leadId"`
	AgencyID  int64  `json:"agencyId"`
	SpotterID int64  `json:"spotterId"`
	AgentID   int64  `json:"agentId"`
	NewStatus string `json:"newStatus"`
	Notes     string `json:"notes,omitempty"`
}

func (e LeadRejected) EventName() string { return "leads.lead.rejected" }

// LeadCompleted is published when a lead is sold and commission is fixed.
type LeadCompleted struct {
	BaseEvent
	LeadID                 int64 `json:"leadId"`
	AgencyID               int64 `json:"agencyId"`
	SpotterID              int64 `json:"spotterId"`
	AgentID                int64 `json:"agentId"`
	FinalPriceCents        int64 `json:"finalPriceCents"`
	AgreedCommissionCents  int64 `json:"agreedCommissionCents"`
	SpotterCommissionCents int64 `json:"spotterCommissionCents"`
}

func (e LeadCompleted) EventName() string { return "leads.lead.completed" }

// LeadFailed is published when the assigned agent gives up on a lead.
type LeadFailed struct {
	BaseEvent
	LeadID    int64  `json:"leadId"`
	AgencyID  int64  `json:"agencyId"`
	SpotterID int64  `json:"spotterId"`
	AgentID   int64  `json:"agentId"`
	Reason    string `json:"reason"`
	Notes     string `json:"notes,omitempty"`
}

func (e LeadFailed) EventName() string { return "leads.lead.failed" }
