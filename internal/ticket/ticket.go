// Package ticket implements the pipeline's central entity: the ticket
// identity, its normalised content, and the legal-transition state
// machine that governs how a ticket moves between queues and statuses.
package ticket

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the ticket's workflow state.
type Status string

const (
	StatusInbox         Status = "INBOX"
	StatusTriaging      Status = "TRIAGING"
	StatusTriagePending Status = "TRIAGE_PENDING"
	StatusAssigned      Status = "ASSIGNED"
	StatusInProgress    Status = "IN_PROGRESS"
	StatusResolved      Status = "RESOLVED"
	StatusClosed        Status = "CLOSED"
)

// Queue is one of the five pipeline stages.
type Queue string

const (
	QueueInbox      Queue = "INBOX"
	QueueTriage     Queue = "TRIAGE"
	QueueAssignment Queue = "ASSIGNMENT"
	QueueActive     Queue = "ACTIVE"
	QueueResolution Queue = "RESOLUTION"
)

// AllQueues enumerates the five queues in a stable order, used by
// components that need to iterate every queue (stats dumps, peeks).
var AllQueues = []Queue{QueueInbox, QueueTriage, QueueAssignment, QueueActive, QueueResolution}

// queueStatus is the fixed coupling between a queue and the status a
// ticket must hold while resident in it (data model invariant 1).
var queueStatus = map[Queue]Status{
	QueueInbox:      StatusInbox,
	QueueTriage:     StatusTriagePending,
	QueueAssignment: StatusAssigned,
	QueueActive:     StatusInProgress,
	QueueResolution: StatusResolved,
}

// StatusForQueue returns the status a ticket must carry while it sits
// in the given queue.
func StatusForQueue(q Queue) (Status, bool) {
	s, ok := queueStatus[q]
	return s, ok
}

// QueueForStatus is the inverse of StatusForQueue: it returns the
// queue a ticket must reside in while carrying the given status, for
// the five coupled statuses (data model invariant 1). CLOSED and
// TRIAGING have no coupled queue and report false.
func QueueForStatus(s Status) (Queue, bool) {
	for q, st := range queueStatus {
		if st == s {
			return q, true
		}
	}
	return "", false
}

// legalTransitions is the state machine's transition table.
// A move to INBOX is legal from any state; CanTransition accepts it
// before consulting this table, so the INBOX entries listed under some
// sources below are not what makes it legal.
var legalTransitions = map[Status]map[Status]bool{
	StatusInbox:         setOf(StatusTriaging, StatusTriagePending),
	StatusTriaging:      setOf(StatusTriagePending, StatusAssigned, StatusResolved),
	StatusTriagePending: setOf(StatusAssigned, StatusResolved, StatusClosed),
	StatusAssigned:      setOf(StatusInProgress, StatusResolved, StatusInbox, StatusClosed),
	StatusInProgress:    setOf(StatusResolved, StatusAssigned, StatusInbox, StatusClosed),
	StatusResolved:      setOf(StatusInProgress, StatusClosed),
	StatusClosed:        setOf(StatusInbox),
}

func setOf(statuses ...Status) map[Status]bool {
	m := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		m[s] = true
	}
	return m
}

// CanTransition reports whether moving from 'from' to 'to' is legal.
// A move to INBOX is always legal, modelling reset/escalation.
func CanTransition(from, to Status) bool {
	if to == StatusInbox {
		return true
	}
	return legalTransitions[from][to]
}

// InvalidStateTransition is returned whenever a mutator is asked to
// perform a transition absent from the legal-transition table.
type InvalidStateTransition struct {
	From, To Status
}

func (e *InvalidStateTransition) Error() string {
	return fmt.Sprintf("ticket: illegal transition %s -> %s", e.From, e.To)
}

// Category classifies the nature of the report. The empty string means unset.
type Category string

const (
	CategoryBilling          Category = "BILLING"
	CategoryTechnicalSupport Category = "TECHNICAL_SUPPORT"
	CategoryFeatureRequest   Category = "FEATURE_REQUEST"
	CategoryBugReport        Category = "BUG_REPORT"
	CategoryAdmin            Category = "ADMIN"
	CategoryOther            Category = "OTHER"
)

// ValidCategory reports whether s is a recognised category string.
func ValidCategory(s string) (Category, bool) {
	c := Category(s)
	switch c {
	case CategoryBilling, CategoryTechnicalSupport, CategoryFeatureRequest,
		CategoryBugReport, CategoryAdmin, CategoryOther:
		return c, true
	default:
		return "", false
	}
}

// Priority is the urgency level driving both operator triage and the
// queue manager's priority score.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Weight returns the priority's numeric weight used by the queue
// manager's priority score formula.
func (p Priority) Weight() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	default:
		return 0
	}
}

// ValidPriority reports whether s is a recognised priority string.
func ValidPriority(s string) (Priority, bool) {
	p := Priority(s)
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return p, true
	default:
		return "", false
	}
}

// ResolutionAction records how a ticket was (or will be) resolved.
type ResolutionAction string

const (
	ResolutionManual              ResolutionAction = "MANUAL"
	ResolutionFAQLink             ResolutionAction = "FAQ_LINK"
	ResolutionAutoResponse        ResolutionAction = "AUTO_RESPONSE"
	ResolutionReboot              ResolutionAction = "REBOOT"
	ResolutionConfigChange        ResolutionAction = "CONFIG_CHANGE"
	ResolutionDuplicateClose      ResolutionAction = "DUPLICATE_CLOSE"
	ResolutionSelfServiceRedirect ResolutionAction = "SELF_SERVICE_REDIRECT"
	ResolutionNone                ResolutionAction = "NONE"
)

// Ticket is the pipeline's central entity. Exported fields are read
// directly by the repository and the wire encoder. Every method below
// bumps UpdatedAt; MoveToQueue, MarkResolved and Close check the
// legal-transition table, while Assign, Unassign and
// SetStatusAssignedDirect set status without consulting it.
type Ticket struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Source  Source  `json:"source"`
	Content Content `json:"-"`

	Category Category `json:"category,omitempty"`
	Priority Priority `json:"priority"`
	Tags     []string `json:"tags"`

	Status            Status `json:"status"`
	CurrentQueue      Queue  `json:"current_queue"`
	AssigneeID        string `json:"assignee_id,omitempty"`
	SuggestedAssignee string `json:"suggested_assignee,omitempty"`

	Title            string           `json:"title,omitempty"`
	Description      string           `json:"description,omitempty"`
	AIReasoning      map[string]any   `json:"ai_reasoning,omitempty"`
	ResolutionAction ResolutionAction `json:"resolution_action,omitempty"`
}

// New creates a fresh ticket in status/queue INBOX, priority MEDIUM by
// default. Title and description fall back to content-derived values
// when not supplied.
func New(source Source, content Content, priority Priority, title, description string) *Ticket {
	now := time.Now().UTC()
	if priority == "" {
		priority = PriorityMedium
	}
	t := &Ticket{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		UpdatedAt:    now,
		Source:       source,
		Content:      content,
		Priority:     priority,
		Tags:         []string{},
		Status:       StatusInbox,
		CurrentQueue: QueueInbox,
		Title:        title,
		Description:  description,
	}
	return t
}

// DisplayTitle returns the explicit title, falling back to a
// content-derived value.
func (t *Ticket) DisplayTitle() string {
	if t.Title != "" {
		return t.Title
	}
	if t.Content == nil {
		return "(untitled)"
	}
	switch c := t.Content.(type) {
	case *EmailContent:
		return c.Subject
	case *GitHubContent:
		return c.Title
	default:
		body := t.Content.ExtractBody()
		if len(body) > 60 {
			return body[:60]
		}
		return body
	}
}

// DisplayDescription returns the explicit description, falling back to
// the content's extracted body.
func (t *Ticket) DisplayDescription() string {
	if t.Description != "" {
		return t.Description
	}
	if t.Content == nil {
		return ""
	}
	return t.Content.ExtractBody()
}

func (t *Ticket) touch() { t.UpdatedAt = time.Now().UTC() }

// MoveToQueue sets status to the queue's coupled status if the
// transition is legal. Moving to INBOX is always legal.
func (t *Ticket) MoveToQueue(q Queue) error {
	target, ok := StatusForQueue(q)
	if !ok {
		return fmt.Errorf("ticket: unknown queue %q", q)
	}
	if !CanTransition(t.Status, target) {
		return &InvalidStateTransition{From: t.Status, To: target}
	}
	t.Status = target
	t.CurrentQueue = q
	t.touch()
	return nil
}

// Assign sets the assignee. If the current status is INBOX or
// TRIAGE_PENDING it promotes the ticket to ASSIGNED/ASSIGNMENT;
// otherwise it only changes the assignee field (reassignment within
// ACTIVE).
func (t *Ticket) Assign(agentID string) error {
	t.AssigneeID = agentID
	if t.Status == StatusInbox || t.Status == StatusTriagePending {
		t.Status = StatusAssigned
		t.CurrentQueue = QueueAssignment
	}
	t.touch()
	return nil
}

// SetStatusAssignedDirect sets status ASSIGNED without running the
// generic legal-transition check. It exists solely for the automatic
// triage fan-out's auto-route path when the classifier names no
// suggested assignee; Assign covers the named-assignee branch.
func (t *Ticket) SetStatusAssignedDirect() {
	t.Status = StatusAssigned
	t.touch()
}

// Unassign clears the assignee and always resets the ticket to
// INBOX/INBOX regardless of prior state.
func (t *Ticket) Unassign() {
	t.AssigneeID = ""
	t.Status = StatusInbox
	t.CurrentQueue = QueueInbox
	t.touch()
}

// MarkResolved requires legality of the transition to RESOLVED, then
// sets queue RESOLUTION and records the resolution action.
func (t *Ticket) MarkResolved(action ResolutionAction) error {
	if !CanTransition(t.Status, StatusResolved) {
		return &InvalidStateTransition{From: t.Status, To: StatusResolved}
	}
	t.Status = StatusResolved
	t.CurrentQueue = QueueResolution
	t.ResolutionAction = action
	t.touch()
	return nil
}

// Close requires the current status to be RESOLVED; the queue is left
// unchanged. This is the sole legal way to reach CLOSED.
func (t *Ticket) Close() error {
	if t.Status != StatusResolved {
		return &InvalidStateTransition{From: t.Status, To: StatusClosed}
	}
	t.Status = StatusClosed
	t.touch()
	return nil
}

// SetCategory, SetPriority, SetTitle, SetDescription, SetAIReasoning,
// SetSuggestedAssignee, and AddTag are free mutators: they never fail
// and always bump UpdatedAt.

func (t *Ticket) SetCategory(c Category)         { t.Category = c; t.touch() }
func (t *Ticket) SetPriority(p Priority)         { t.Priority = p; t.touch() }
func (t *Ticket) SetTitle(s string)              { t.Title = s; t.touch() }
func (t *Ticket) SetDescription(s string)        { t.Description = s; t.touch() }
func (t *Ticket) SetSuggestedAssignee(id string) { t.SuggestedAssignee = id; t.touch() }

func (t *Ticket) SetAIReasoning(reasoning map[string]any) {
	if t.AIReasoning == nil {
		t.AIReasoning = map[string]any{}
	}
	for k, v := range reasoning {
		t.AIReasoning[k] = v
	}
	t.touch()
}

// AddTag inserts tag if not already present, preserving insertion order.
func (t *Ticket) AddTag(tag string) {
	for _, existing := range t.Tags {
		if existing == tag {
			return
		}
	}
	t.Tags = append(t.Tags, tag)
	t.touch()
}

// HasTag reports whether tag is present.
func (t *Ticket) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}

// ClearAIData wipes reasoning, category, priority, and suggested
// assignee, used before a re-triage so the fan-out starts from a clean
// slate.
func (t *Ticket) ClearAIData() {
	t.AIReasoning = nil
	t.Category = ""
	t.Priority = PriorityMedium
	t.SuggestedAssignee = ""
	t.touch()
}
