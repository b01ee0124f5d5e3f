package domain

import "testing"

func TestNextStatusFollowsTable(t *testing.T) {
	type edge struct {
		from   Status
		action Action
		want   Status
	}
	allowed := []edge{
		{StatusNew, ActionAssign, StatusAssigned},
		{StatusAssigned, ActionReassign, StatusAssigned},
		{StatusAssigned, ActionAccept, StatusInProgress},
		{StatusAssigned, ActionReject, StatusClosed},
		{StatusInProgress, ActionComplete, StatusCompleted},
		{StatusInProgress, ActionFail, StatusClosed},
	}
	isAllowed := func(from Status, action Action) (Status, bool) {
		for _, e := range allowed {
			if e.from == from && e.action == action {
				return e.want, true
			}
		}
		return "", false
	}

	actions := []Action{ActionAssign, ActionReassign, ActionAccept, ActionReject, ActionComplete, ActionFail}
	for _, from := range AllStatuses {
		for _, action := range actions {
			got, ok := NextStatus(from, action, RejectClose)
			want, wantOK := isAllowed(from, action)
			if ok != wantOK || got != want {
				t.Errorf("%s --%s--> got (%q, %v), want (%q, %v)", from, action, got, ok, want, wantOK)
			}
		}
	}
}

func TestTerminalStatusesHaveNoEdges(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusClosed} {
		if !s.IsTerminal() {
			t.Fatalf("%s should be terminal", s)
		}
		if len(transitions[s]) != 0 {
			t.Fatalf("%s must not have outgoing transitions", s)
		}
	}
}

func TestRejectPolicyReopen(t *testing.T) {
	got, ok := NextStatus(StatusAssigned, ActionReject, RejectReopen)
	if !ok || got != StatusNew {
		t.Fatalf("expected reopen to return lead to new, got %q (%v)", got, ok)
	}
}

func TestParseRejectPolicy(t *testing.T) {
	if ParseRejectPolicy(" Reopen ") != RejectReopen {
		t.Fatal("expected reopen")
	}
	if ParseRejectPolicy("") != RejectClose || ParseRejectPolicy("archive") != RejectClose {
		t.Fatal("expected close fallback")
	}
}

func TestIsParty(t *testing.T) {
	agency := int64(3)
	other := int64(4)
	agent := int64(7)
	lead := Lead{SpotterID: 1, AgencyID: agency, AgentID: &agent}

	tests := []struct {
		name  string
		actor Actor
		want  bool
	}{
		{"spotter", Actor{ID: 1, Role: RoleSpotter}, true},
		{"other spotter", Actor{ID: 2, Role: RoleSpotter}, false},
		{"assigned agent", Actor{ID: 7, Role: RoleAgent, AgencyID: &agency}, true},
		{"other agent", Actor{ID: 8, Role: RoleAgent, AgencyID: &agency}, false},
		{"agency admin", Actor{ID: 9, Role: RoleAgencyAdmin, AgencyID: &agency}, true},
		{"foreign admin", Actor{ID: 10, Role: RoleAgencyAdmin, AgencyID: &other}, false},
	}

	for _, tc := range tests {
		if got := lead.IsParty(tc.actor); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}
