package assignment

import "testing"

func TestAssignAndLookup(t *testing.T) {
	tr := New()
	tr.Assign("agent-1", "t-1")
	tr.Assign("agent-1", "t-2")

	if got := tr.GetAgentTicketCount("agent-1"); got != 2 {
		t.Fatalf("expected 2 tickets for agent-1, got %d", got)
	}
	owner, ok := tr.FindTicketAgent("t-1")
	if !ok || owner != "agent-1" {
		t.Fatalf("expected agent-1 to own t-1, got %q ok=%v", owner, ok)
	}
}

func TestReassignMovesOwnership(t *testing.T) {
	tr := New()
	tr.Assign("agent-1", "t-1")
	tr.Assign("agent-2", "t-1")

	if tr.GetAgentTicketCount("agent-1") != 0 {
		t.Fatalf("expected agent-1 to lose ownership after reassignment")
	}
	owner, _ := tr.FindTicketAgent("t-1")
	if owner != "agent-2" {
		t.Fatalf("expected agent-2 to own t-1, got %q", owner)
	}
}

func TestUnassign(t *testing.T) {
	tr := New()
	tr.Assign("agent-1", "t-1")
	tr.Unassign("t-1")
	if _, ok := tr.FindTicketAgent("t-1"); ok {
		t.Fatalf("expected no owner after unassign")
	}
}
