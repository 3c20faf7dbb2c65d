// Package repository implements the thread-safe ticket store.
// Store holds tickets in-memory behind a single mutex; SQLiteStore is
// the durable backend behind the same Repository interface, so callers
// work with either unchanged.
package repository

import (
	"sort"
	"sync"

	"github.com/ticketflow/ticketd/internal/ticket"
)

// Store is the thread-safe in-memory ticket repository.
type Store struct {
	mu      sync.RWMutex
	tickets map[string]*ticket.Ticket
}

// New creates an empty repository.
func New() *Store {
	return &Store{tickets: make(map[string]*ticket.Ticket)}
}

// Save inserts or overwrites a ticket by id.
func (s *Store) Save(t *ticket.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.ID] = t
}

// Get returns the ticket with the given id, or false if absent.
func (s *Store) Get(id string) (*ticket.Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[id]
	return t, ok
}

// Delete removes a ticket by id. No-op if absent.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tickets, id)
}

// Exists reports whether a ticket with the given id is present.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tickets[id]
	return ok
}

// Count returns the total number of tickets held, irrespective of filters.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tickets)
}

// FindByStatus returns every ticket with the given status.
func (s *Store) FindByStatus(status ticket.Status) []*ticket.Ticket {
	return s.filter(func(t *ticket.Ticket) bool { return t.Status == status })
}

// FindByQueue returns every ticket currently coupled to the given queue.
func (s *Store) FindByQueue(q ticket.Queue) []*ticket.Ticket {
	return s.filter(func(t *ticket.Ticket) bool { return t.CurrentQueue == q })
}

// FindByAssignee returns every ticket assigned to the given agent.
func (s *Store) FindByAssignee(agentID string) []*ticket.Ticket {
	return s.filter(func(t *ticket.Ticket) bool { return t.AssigneeID == agentID })
}

// FindByPriority returns every ticket at the given priority.
func (s *Store) FindByPriority(p ticket.Priority) []*ticket.Ticket {
	return s.filter(func(t *ticket.Ticket) bool { return t.Priority == p })
}

// FindByCategory returns every ticket in the given category.
func (s *Store) FindByCategory(c ticket.Category) []*ticket.Ticket {
	return s.filter(func(t *ticket.Ticket) bool { return t.Category == c })
}

func (s *Store) filter(pred func(*ticket.Ticket) bool) []*ticket.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ticket.Ticket
	for _, t := range s.tickets {
		if pred(t) {
			out = append(out, t)
		}
	}
	sortByCreatedDesc(out)
	return out
}

// Repository is the CRUD + filtered-listing contract both Store (the
// default in-memory backend) and SQLiteStore (the durable backend)
// satisfy, so callers can hold either behind one interface.
type Repository interface {
	Save(t *ticket.Ticket)
	Get(id string) (*ticket.Ticket, bool)
	Delete(id string)
	Exists(id string) bool
	Count() int
	FindByStatus(status ticket.Status) []*ticket.Ticket
	FindByQueue(q ticket.Queue) []*ticket.Ticket
	FindByAssignee(agentID string) []*ticket.Ticket
	FindByPriority(p ticket.Priority) []*ticket.Ticket
	FindByCategory(c ticket.Category) []*ticket.Ticket
	Find(f Filters, limit, offset int) (page []*ticket.Ticket, total int)
}

// Filters narrows a combined Find call. Zero-value fields are ignored.
type Filters struct {
	Status   ticket.Status
	Queue    ticket.Queue
	Priority ticket.Priority
	Category ticket.Category
	Assignee string
}

// Find applies every non-zero filter, sorts the result by creation time
// descending, then applies offset/limit. It returns the filtered (not
// the global) total alongside the page: the un-paginated, filtered
// count is what a caller filtering the list actually wants.
func (s *Store) Find(f Filters, limit, offset int) (page []*ticket.Ticket, total int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*ticket.Ticket
	for _, t := range s.tickets {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Queue != "" && t.CurrentQueue != f.Queue {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		if f.Assignee != "" && t.AssigneeID != f.Assignee {
			continue
		}
		matched = append(matched, t)
	}
	sortByCreatedDesc(matched)
	total = len(matched)

	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return nil, total
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end], total
}

func sortByCreatedDesc(ts []*ticket.Ticket) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].CreatedAt.After(ts[j].CreatedAt) })
}
