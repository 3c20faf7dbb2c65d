// Package assignment implements the agent-to-ticket assignment
// tracker: a denormalised view kept in step with, but independent
// from, the queue manager and the ticket's own AssigneeID field.
package assignment

import "sync"

// Tracker maps agent id -> set of ticket ids, plus the inverse lookup.
// It is deliberately independent of the queue manager: composite
// operations that touch both (claim, assign, release) are written in
// sequence by the caller, not transactionally.
type Tracker struct {
	mu          sync.RWMutex
	byAgent     map[string]map[string]struct{}
	ticketAgent map[string]string
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{
		byAgent:     make(map[string]map[string]struct{}),
		ticketAgent: make(map[string]string),
	}
}

// Assign records that agentID now owns ticketID, removing any prior
// owner of that ticket first so the inverse lookup stays single-valued.
func (t *Tracker) Assign(agentID, ticketID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.ticketAgent[ticketID]; ok && prev != agentID {
		delete(t.byAgent[prev], ticketID)
	}
	if t.byAgent[agentID] == nil {
		t.byAgent[agentID] = make(map[string]struct{})
	}
	t.byAgent[agentID][ticketID] = struct{}{}
	t.ticketAgent[ticketID] = agentID
}

// Unassign removes ticketID from whichever agent owns it.
func (t *Tracker) Unassign(ticketID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	agentID, ok := t.ticketAgent[ticketID]
	if !ok {
		return
	}
	delete(t.byAgent[agentID], ticketID)
	delete(t.ticketAgent, ticketID)
}

// GetAgentTickets returns a copy of the set of ticket ids owned by agentID.
func (t *Tracker) GetAgentTickets(agentID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	set := t.byAgent[agentID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// GetAgentTicketCount returns the number of tickets owned by agentID.
func (t *Tracker) GetAgentTicketCount(agentID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byAgent[agentID])
}

// FindTicketAgent returns the agent owning ticketID, if any.
func (t *Tracker) FindTicketAgent(ticketID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	agentID, ok := t.ticketAgent[ticketID]
	return agentID, ok
}
