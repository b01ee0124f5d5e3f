package domain

import "strings"

// Status is the lifecycle state of a lead.
type Status string

const (
	StatusNew        Status = "new"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusClosed     Status = "closed"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{StatusNew, StatusAssigned, StatusInProgress, StatusCompleted, StatusClosed}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusClosed
}

// Action is a lifecycle operation recorded in lead history.
type Action string

const (
	ActionSubmit   Action = "submit"
	ActionAssign   Action = "assign"
	ActionReassign Action = "reassign"
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionComplete Action = "complete"
	ActionFail     Action = "fail"
)

// RejectPolicy decides where a rejected lead goes.
type RejectPolicy string

const (
	// RejectClose closes the lead for good.
	RejectClose RejectPolicy = "close"
	// RejectReopen returns the lead to new so the agency can assign it again.
	RejectReopen RejectPolicy = "reopen"
)

// ParseRejectPolicy falls back to RejectClose for anything unrecognised.
func ParseRejectPolicy(raw string) RejectPolicy {
	if RejectPolicy(strings.ToLower(strings.TrimSpace(raw))) == RejectReopen {
		return RejectReopen
	}
	return RejectClose
}

var transitions = map[Status]map[Action]Status{
	StatusNew: {
		ActionAssign: StatusAssigned,
	},
	StatusAssigned: {
		ActionReassign: StatusAssigned,
		ActionAccept:   StatusInProgress,
		ActionReject:   StatusClosed,
	},
	StatusInProgress: {
		ActionComplete: StatusCompleted,
		ActionFail:     StatusClosed,
	},
}

// NextStatus returns the status reached by applying action in from, and
// false when the table has no such edge.
func NextStatus(from Status, action Action, policy RejectPolicy) (Status, bool) {
	to, ok := transitions[from][action]
	if !ok {
		return "", false
	}
	if action == ActionReject && policy == RejectReopen {
		return StatusNew, true
	}
	return to, true
}

// AssignAction picks assign or reassign for a lead currently in from.
func AssignAction(from Status) Action {
	if from == StatusAssigned {
		return ActionReassign
	}
	return ActionAssign
}
