// Package queue implements the five-queue manager:
// ordered per-queue sequences, atomic cross-queue moves, an append-only
// audit log, and the automatic triage fan-out triggered by enqueue
// into INBOX.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ticketflow/ticketd/internal/classifier"
	"github.com/ticketflow/ticketd/internal/ticket"
)

// triageOutcomes counts automatic triage routing decisions by outcome.
var triageOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "ticketd_triage_outcomes_total",
	Help: "Count of automatic triage routing decisions by outcome.",
}, []string{"outcome"})

func init() {
	prometheus.MustRegister(triageOutcomes)
}

// waitConstant is the per-queue constant used by EstimateWaitTime.
var waitConstant = map[ticket.Queue]time.Duration{
	ticket.QueueInbox:      5 * time.Second,
	ticket.QueueTriage:     30 * time.Second,
	ticket.QueueAssignment: 60 * time.Second,
	ticket.QueueActive:     300 * time.Second,
	ticket.QueueResolution: 60 * time.Second,
}

// entry is a lightweight queue-residency record, distinct from the
// ticket itself.
type entry struct {
	ticketID      string
	enqueuedAt    time.Time
	priorityScore int
}

// AuditEntry is an append-only record of one queue transition.
type AuditEntry struct {
	Timestamp time.Time    `json:"timestamp"`
	TicketID  string       `json:"ticket_id"`
	From      ticket.Queue `json:"from_queue,omitempty"`
	To        ticket.Queue `json:"to_queue"`
	Reason    string       `json:"reason"`
	Actor     string       `json:"actor,omitempty"`
}

// Stats is the response shape for GetQueueStats.
type Stats struct {
	Queue                  ticket.Queue `json:"queue"`
	Count                  int          `json:"count"`
	AvgWaitSeconds         float64      `json:"avg_wait_time_seconds"`
	OldestTicketAgeSeconds float64      `json:"oldest_ticket_age_seconds"`
	NewestTicketAgeSeconds float64      `json:"newest_ticket_age_seconds"`
}

// Classifier is the external triage collaborator contract the manager
// needs. *classifier.Client satisfies it.
type Classifier interface {
	AnalyzeTriage(ctx context.Context, t *ticket.Ticket, agents []classifier.AgentSummary) (*classifier.Result, error)
}

// Roster supplies the available-agents snapshot attached to every
// triage request.
type Roster interface {
	AvailableAgents() []classifier.AgentSummary
}

// Publisher is the subset of the event publisher the manager needs to
// announce moves and triage outcomes.
type Publisher interface {
	PublishTicketMoved(ctx context.Context, t *ticket.Ticket, from, to ticket.Queue, reason string)
	PublishTriagePending(ctx context.Context, t *ticket.Ticket)
	PublishTicketAssigned(ctx context.Context, t *ticket.Ticket, agentID string)
}

// Repository persists the mutated ticket after a triage task applies
// its result.
type Repository interface {
	Save(t *ticket.Ticket)
}

// Manager holds the five ordered queues and the audit log, serialised
// by a single mutex. All public operations are atomic end-to-end.
type Manager struct {
	mu     sync.Mutex
	queues map[ticket.Queue][]entry
	index  map[string]ticket.Queue
	audit  []AuditEntry

	classifier Classifier
	roster     Roster
	publisher  Publisher
	repo       Repository
	logger     *slog.Logger
}

// New creates an empty queue manager. classifier/roster/publisher/repo
// may be nil in tests that don't exercise the triage fan-out.
func New(cl Classifier, roster Roster, pub Publisher, repo Repository, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		queues:     make(map[ticket.Queue][]entry),
		index:      make(map[string]ticket.Queue),
		classifier: cl,
		roster:     roster,
		publisher:  pub,
		repo:       repo,
		logger:     logger,
	}
	for _, q := range ticket.AllQueues {
		m.queues[q] = nil
	}
	return m
}

func priorityScore(t *ticket.Ticket) int {
	ageSeconds := time.Since(t.CreatedAt).Seconds()
	ageBonus := int(math.Min(math.Floor(ageSeconds/60), 50))
	return t.Priority.Weight()*100 + ageBonus
}

// Enqueue appends a new entry, records an audit line, and returns the
// 1-based position. When queue is INBOX it schedules the asynchronous
// triage task after this call returns and the lock is released, never
// while holding m.mu.
func (m *Manager) Enqueue(ctx context.Context, t *ticket.Ticket, q ticket.Queue, reason, actor string) int {
	m.mu.Lock()
	position := m.enqueueLocked(t, q, reason, actor)
	m.mu.Unlock()

	if q == ticket.QueueInbox {
		go m.runTriage(context.WithoutCancel(ctx), t)
	}
	return position
}

func (m *Manager) enqueueLocked(t *ticket.Ticket, q ticket.Queue, reason, actor string) int {
	e := entry{ticketID: t.ID, enqueuedAt: time.Now().UTC(), priorityScore: priorityScore(t)}
	m.queues[q] = append(m.queues[q], e)
	m.index[t.ID] = q
	m.audit = append(m.audit, AuditEntry{
		Timestamp: time.Now().UTC(),
		TicketID:  t.ID,
		To:        q,
		Reason:    reason,
		Actor:     actor,
	})
	return len(m.queues[q])
}

// Dequeue removes and returns the ticket id with maximum priority
// score, ties broken by insertion order; if priorityBased is false it
// pops the most recently appended entry (LIFO).
func (m *Manager) Dequeue(q ticket.Queue, priorityBased bool) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.queues[q]
	if len(entries) == 0 {
		return "", false
	}

	idx := len(entries) - 1
	if priorityBased {
		idx = 0
		best := entries[0].priorityScore
		for i, e := range entries {
			if e.priorityScore > best {
				best = e.priorityScore
				idx = i
			}
		}
	}

	picked := entries[idx]
	m.queues[q] = append(entries[:idx], entries[idx+1:]...)
	delete(m.index, picked.ticketID)
	return picked.ticketID, true
}

// MoveTicket locates the entry in from by id; if absent, returns false
// without side effects. Otherwise it removes it, inserts a fresh entry
// into to, updates the index, and appends an audit line. It also keeps
// t.CurrentQueue in sync; queue-entry relocation and ticket-field
// mutation are otherwise distinct steps the caller coordinates.
func (m *Manager) MoveTicket(t *ticket.Ticket, from, to ticket.Queue, reason, actor string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.moveTicketLocked(t, from, to, reason, actor)
}

func (m *Manager) moveTicketLocked(t *ticket.Ticket, from, to ticket.Queue, reason, actor string) bool {
	entries := m.queues[from]
	idx := -1
	for i, e := range entries {
		if e.ticketID == t.ID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false
	}

	m.queues[from] = append(entries[:idx], entries[idx+1:]...)
	m.queues[to] = append(m.queues[to], entry{
		ticketID:      t.ID,
		enqueuedAt:    time.Now().UTC(),
		priorityScore: priorityScore(t),
	})
	m.index[t.ID] = to
	t.CurrentQueue = to
	m.audit = append(m.audit, AuditEntry{
		Timestamp: time.Now().UTC(),
		TicketID:  t.ID,
		From:      from,
		To:        to,
		Reason:    reason,
		Actor:     actor,
	})
	return true
}

// RemoveFromQueue drops the entry and index row with no audit line
// (used for hard delete).
func (m *Manager) RemoveFromQueue(ticketID string, q ticket.Queue) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.queues[q]
	for i, e := range entries {
		if e.ticketID == ticketID {
			m.queues[q] = append(entries[:i], entries[i+1:]...)
			delete(m.index, ticketID)
			return true
		}
	}
	return false
}

// PeekQueue returns the first n ticket ids in score order (descending)
// without mutation. priorityBased=false returns insertion order.
func (m *Manager) PeekQueue(q ticket.Queue, n int, priorityBased bool) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := append([]entry(nil), m.queues[q]...)
	if priorityBased {
		sortByScoreDesc(entries)
	}
	if n > 0 && n < len(entries) {
		entries = entries[:n]
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ticketID
	}
	return out
}

func sortByScoreDesc(entries []entry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].priorityScore > entries[j-1].priorityScore; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

// GetQueuePosition returns the queue and 1-based insertion-order
// position of ticketID, if present.
func (m *Manager) GetQueuePosition(ticketID string) (ticket.Queue, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.index[ticketID]
	if !ok {
		return "", 0, false
	}
	for i, e := range m.queues[q] {
		if e.ticketID == ticketID {
			return q, i + 1, true
		}
	}
	return "", 0, false
}

// GetQueueStats returns count, average wait, oldest/newest age for q.
// An empty queue yields all-zero stats.
func (m *Manager) GetQueueStats(q ticket.Queue) Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.queues[q]
	stats := Stats{Queue: q}
	if len(entries) == 0 {
		return stats
	}

	now := time.Now().UTC()
	var totalWait float64
	oldest := now.Sub(entries[0].enqueuedAt).Seconds()
	newest := oldest
	for _, e := range entries {
		age := now.Sub(e.enqueuedAt).Seconds()
		totalWait += age
		if age > oldest {
			oldest = age
		}
		if age < newest {
			newest = age
		}
	}
	stats.Count = len(entries)
	stats.AvgWaitSeconds = totalWait / float64(len(entries))
	stats.OldestTicketAgeSeconds = oldest
	stats.NewestTicketAgeSeconds = newest
	return stats
}

// GetAllQueueStats returns stats for every queue.
func (m *Manager) GetAllQueueStats() map[ticket.Queue]Stats {
	out := make(map[ticket.Queue]Stats, len(ticket.AllQueues))
	for _, q := range ticket.AllQueues {
		out[q] = m.GetQueueStats(q)
	}
	return out
}

// GetAuditLog returns a tail slice of the audit log, optionally
// filtered by ticket id.
func (m *Manager) GetAuditLog(ticketID string, limit int) []AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []AuditEntry
	for _, a := range m.audit {
		if ticketID != "" && a.TicketID != ticketID {
			continue
		}
		matched = append(matched, a)
	}
	if limit > 0 && limit < len(matched) {
		matched = matched[len(matched)-limit:]
	}
	return matched
}

// EstimateWaitTime returns position times the per-queue constant.
func (m *Manager) EstimateWaitTime(q ticket.Queue, position int) time.Duration {
	return waitConstant[q] * time.Duration(position)
}

// runTriage is the automatic triage fan-out task. It must never be
// invoked while m.mu is held.
func (m *Manager) runTriage(ctx context.Context, t *ticket.Ticket) {
	if m.classifier == nil {
		m.logger.Debug("triage skipped: no classifier configured", slog.String("ticket_id", t.ID))
		return
	}

	var agents []classifier.AgentSummary
	if m.roster != nil {
		agents = m.roster.AvailableAgents()
	}

	result, err := m.classifier.AnalyzeTriage(ctx, t, agents)
	if err != nil {
		m.logger.Error("triage fan-out: classifier call failed, leaving ticket in INBOX",
			slog.String("ticket_id", t.ID), slog.Any("err", err))
		triageOutcomes.WithLabelValues("classifier_failure").Inc()
		return
	}

	m.applyTriageResult(ctx, t, result)
}

// applyTriageResult merges the classifier's output onto the ticket and
// routes it per the confidence threshold. Invalid enum strings from the
// classifier are silently ignored so a misbehaving classifier can't
// poison the ticket.
func (m *Manager) applyTriageResult(ctx context.Context, t *ticket.Ticket, result *classifier.Result) {
	if result.Reasoning != "" || result.Raw != nil {
		reasoning := map[string]any{}
		for k, v := range result.Raw {
			reasoning[k] = v
		}
		if result.Reasoning != "" {
			reasoning["reasoning"] = result.Reasoning
		}
		t.SetAIReasoning(reasoning)
	}
	if p, ok := ticket.ValidPriority(result.Priority); ok {
		t.SetPriority(p)
	}
	if c, ok := ticket.ValidCategory(result.Category); ok {
		t.SetCategory(c)
	}
	if result.SuggestedAssignee != "" {
		t.SetSuggestedAssignee(result.SuggestedAssignee)
	}
	for _, tag := range result.Tags {
		t.AddTag(tag)
	}

	confidence := result.Confidence

	m.mu.Lock()
	if confidence >= classifier.ConfidenceThreshold {
		if result.SuggestedAssignee != "" {
			_ = t.Assign(result.SuggestedAssignee)
		} else {
			t.SetStatusAssignedDirect()
		}
		reason := fmt.Sprintf("AI Auto-Triage (confidence=%.2f)", confidence)
		m.moveTicketLocked(t, ticket.QueueInbox, ticket.QueueAssignment, reason, "")
		triageOutcomes.WithLabelValues("auto_assign").Inc()
	} else {
		reason := fmt.Sprintf("AI Triage Needed (confidence=%.2f)", confidence)
		_ = t.MoveToQueue(ticket.QueueTriage)
		m.moveTicketLocked(t, ticket.QueueInbox, ticket.QueueTriage, reason, "")
		triageOutcomes.WithLabelValues("manual_triage").Inc()
	}
	m.mu.Unlock()

	if m.repo != nil {
		m.repo.Save(t)
	}
	if m.publisher == nil {
		return
	}
	if confidence >= classifier.ConfidenceThreshold {
		m.publisher.PublishTicketMoved(ctx, t, ticket.QueueInbox, ticket.QueueAssignment, fmt.Sprintf("AI Auto-Triage (confidence=%.2f)", confidence))
		if t.AssigneeID != "" {
			m.publisher.PublishTicketAssigned(ctx, t, t.AssigneeID)
		}
	} else {
		m.publisher.PublishTriagePending(ctx, t)
		m.publisher.PublishTicketMoved(ctx, t, ticket.QueueInbox, ticket.QueueTriage, fmt.Sprintf("AI Triage Needed (confidence=%.2f)", confidence))
	}
}
