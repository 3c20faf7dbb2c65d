package ticket

import "testing"

func TestMoveToQueueLegalTransition(t *testing.T) {
	tk := New(SourceEmail, &EmailContent{From: "a@x", Subject: "s", Body: "b"}, PriorityMedium, "", "")
	if err := tk.MoveToQueue(QueueTriage); err != nil {
		t.Fatalf("INBOX -> TRIAGE should be legal, got %v", err)
	}
	if tk.Status != StatusTriagePending || tk.CurrentQueue != QueueTriage {
		t.Fatalf("expected TRIAGE_PENDING/TRIAGE, got %s/%s", tk.Status, tk.CurrentQueue)
	}
}

func TestMoveToQueueIllegalTransition(t *testing.T) {
	// INBOX's legal target set is {TRIAGING, TRIAGE_PENDING}; ASSIGNMENT
	// (status ASSIGNED) is reached only through Assign/SetStatusAssignedDirect,
	// never through the generic table-checked MoveToQueue.
	tk := New(SourceEmail, &EmailContent{}, PriorityMedium, "", "")
	if err := tk.MoveToQueue(QueueAssignment); err == nil {
		t.Fatalf("expected INBOX -> ASSIGNMENT via MoveToQueue to be illegal")
	}
}

func TestMoveToInboxAlwaysLegal(t *testing.T) {
	tk := New(SourceEmail, &EmailContent{}, PriorityHigh, "", "")
	_ = tk.MoveToQueue(QueueAssignment)
	tk.Status = StatusInProgress
	if err := tk.MoveToQueue(QueueInbox); err != nil {
		t.Fatalf("move to INBOX must always be legal, got %v", err)
	}
	if tk.Status != StatusInbox {
		t.Fatalf("expected INBOX, got %s", tk.Status)
	}
}

func TestCloseRequiresResolved(t *testing.T) {
	tk := New(SourceEmail, &EmailContent{}, PriorityLow, "", "")
	if err := tk.Close(); err == nil {
		t.Fatalf("expected error closing a non-RESOLVED ticket")
	}
	// INBOX cannot go straight to RESOLVED; TRIAGE_PENDING -> RESOLVED is legal.
	if err := tk.MoveToQueue(QueueTriage); err != nil {
		t.Fatalf("unexpected error moving to TRIAGE: %v", err)
	}
	if err := tk.MarkResolved(ResolutionManual); err != nil {
		t.Fatalf("unexpected error resolving: %v", err)
	}
	if err := tk.Close(); err != nil {
		t.Fatalf("expected close to succeed from RESOLVED: %v", err)
	}
	if tk.Status != StatusClosed {
		t.Fatalf("expected CLOSED, got %s", tk.Status)
	}
}

func TestAssignPromotesOnlyFromInboxOrTriagePending(t *testing.T) {
	tk := New(SourceEmail, &EmailContent{}, PriorityLow, "", "")
	_ = tk.Assign("agent-1")
	if tk.Status != StatusAssigned || tk.CurrentQueue != QueueAssignment {
		t.Fatalf("expected promotion to ASSIGNED/ASSIGNMENT, got %s/%s", tk.Status, tk.CurrentQueue)
	}

	tk2 := New(SourceEmail, &EmailContent{}, PriorityLow, "", "")
	_ = tk2.Assign("agent-1")
	tk2.Status = StatusInProgress
	tk2.CurrentQueue = QueueActive
	_ = tk2.Assign("agent-2")
	if tk2.Status != StatusInProgress || tk2.CurrentQueue != QueueActive {
		t.Fatalf("reassignment within ACTIVE must not change status/queue, got %s/%s", tk2.Status, tk2.CurrentQueue)
	}
	if tk2.AssigneeID != "agent-2" {
		t.Fatalf("expected assignee updated to agent-2, got %s", tk2.AssigneeID)
	}
}

func TestUnassignAlwaysResetsToInbox(t *testing.T) {
	tk := New(SourceEmail, &EmailContent{}, PriorityLow, "", "")
	_ = tk.Assign("agent-1")
	tk.Status = StatusInProgress
	tk.CurrentQueue = QueueActive
	tk.Unassign()
	if tk.Status != StatusInbox || tk.CurrentQueue != QueueInbox || tk.AssigneeID != "" {
		t.Fatalf("expected reset to INBOX/INBOX with no assignee, got %s/%s/%s", tk.Status, tk.CurrentQueue, tk.AssigneeID)
	}
}

func TestClearAIDataWipesTriageFields(t *testing.T) {
	tk := New(SourceEmail, &EmailContent{}, PriorityLow, "", "")
	tk.SetCategory(CategoryBilling)
	tk.SetPriority(PriorityCritical)
	tk.SetSuggestedAssignee("agent-9")
	tk.SetAIReasoning(map[string]any{"reasoning": "x"})
	tk.ClearAIData()
	if tk.Category != "" || tk.SuggestedAssignee != "" || tk.AIReasoning != nil {
		t.Fatalf("expected AI fields wiped, got category=%s suggested=%s reasoning=%v", tk.Category, tk.SuggestedAssignee, tk.AIReasoning)
	}
}

func TestToMapFromMapRoundTrip(t *testing.T) {
	tk := New(SourceEmail, &EmailContent{From: "a@x", Subject: "reset", Body: "help"}, PriorityMedium, "", "")
	tk.AddTag("urgent")
	tk.SetCategory(CategoryTechnicalSupport)

	m := tk.ToMap()
	back, err := FromMap(m)
	if err != nil {
		t.Fatalf("FromMap failed: %v", err)
	}
	if back.ID != tk.ID || back.Status != tk.Status || back.Category != tk.Category {
		t.Fatalf("round-trip mismatch: %+v vs %+v", back, tk)
	}
	if len(back.Tags) != 1 || back.Tags[0] != "urgent" {
		t.Fatalf("expected tags to round-trip, got %v", back.Tags)
	}
	email, ok := back.Content.(*EmailContent)
	if !ok || email.From != "a@x" {
		t.Fatalf("expected email content to round-trip, got %#v", back.Content)
	}
}

func TestDuplicateTagIgnored(t *testing.T) {
	tk := New(SourceEmail, &EmailContent{}, PriorityLow, "", "")
	tk.AddTag("a")
	tk.AddTag("a")
	if len(tk.Tags) != 1 {
		t.Fatalf("expected no duplicate tags, got %v", tk.Tags)
	}
}

func TestContentFromMapUnknownType(t *testing.T) {
	_, err := ContentFromMap(map[string]any{"type": "carrier-pigeon"})
	if err == nil {
		t.Fatalf("expected error for unknown content type")
	}
}
