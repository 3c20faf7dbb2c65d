package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/ticketflow/ticketd/internal/ticket"
)

// SQLiteStore is the durable backend behind the same CRUD contract as
// the in-memory Store, so every caller (queue.Manager, autoclose.Loop,
// internal/httpapi) can accept either behind an interface, unchanged.
// WAL mode, a schema_migrations table, and the pure-Go driver keep it
// free of any cgo toolchain requirement at build time.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens or creates a SQLite-backed ticket store at path.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("repository: create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("repository: open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("repository: enable WAL: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("repository: create migrations table: %w", err)
	}

	var version int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&version); err != nil {
		return fmt.Errorf("repository: read migration version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration1Tickets},
	}
	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("repository: migration %d failed: %w", m.version, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			return fmt.Errorf("repository: record migration %d: %w", m.version, err)
		}
	}
	return nil
}

// Tickets are stored as an indexed envelope (status/queue/priority/
// category/assignee/created_at columns so Find's filters stay plain
// SQL WHERE clauses) plus the full wire-form JSON blob as the body of
// truth, reconstructed through ticket.FromMap on read.
const migration1Tickets = `
CREATE TABLE IF NOT EXISTS tickets (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	current_queue TEXT NOT NULL,
	priority TEXT NOT NULL,
	category TEXT,
	assignee_id TEXT,
	created_at TEXT NOT NULL,
	body TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
CREATE INDEX IF NOT EXISTS idx_tickets_queue ON tickets(current_queue);
CREATE INDEX IF NOT EXISTS idx_tickets_priority ON tickets(priority);
CREATE INDEX IF NOT EXISTS idx_tickets_category ON tickets(category);
CREATE INDEX IF NOT EXISTS idx_tickets_assignee ON tickets(assignee_id);
`

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Save upserts a ticket, matching Store.Save's no-error signature so
// callers can swap backends without touching call sites. Persistence
// failures are logged, not surfaced, per that contract.
func (s *SQLiteStore) Save(t *ticket.Ticket) {
	body, err := json.Marshal(t.ToMap())
	if err != nil {
		s.logger.Error("sqlite repository: encode ticket failed", slog.String("ticket_id", t.ID), slog.Any("err", err))
		return
	}
	_, err = s.db.Exec(`
		INSERT INTO tickets (id, status, current_queue, priority, category, assignee_id, created_at, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status, current_queue=excluded.current_queue, priority=excluded.priority,
			category=excluded.category, assignee_id=excluded.assignee_id, body=excluded.body
	`, t.ID, string(t.Status), string(t.CurrentQueue), string(t.Priority), string(t.Category), t.AssigneeID,
		t.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000000Z07:00"), string(body))
	if err != nil {
		s.logger.Error("sqlite repository: save failed", slog.String("ticket_id", t.ID), slog.Any("err", err))
	}
}

// Get returns the ticket with the given id, or false if absent.
func (s *SQLiteStore) Get(id string) (*ticket.Ticket, bool) {
	row := s.db.QueryRow("SELECT body FROM tickets WHERE id = ?", id)
	var body string
	if err := row.Scan(&body); err != nil {
		return nil, false
	}
	return decodeTicket(body, s.logger)
}

// Delete removes a ticket by id. No-op if absent.
func (s *SQLiteStore) Delete(id string) {
	if _, err := s.db.Exec("DELETE FROM tickets WHERE id = ?", id); err != nil {
		s.logger.Error("sqlite repository: delete failed", slog.String("ticket_id", id), slog.Any("err", err))
	}
}

// Exists reports whether a ticket with the given id is present.
func (s *SQLiteStore) Exists(id string) bool {
	var one int
	row := s.db.QueryRow("SELECT 1 FROM tickets WHERE id = ?", id)
	return row.Scan(&one) == nil
}

// Count returns the total number of tickets held.
func (s *SQLiteStore) Count() int {
	var n int
	_ = s.db.QueryRow("SELECT COUNT(*) FROM tickets").Scan(&n)
	return n
}

func (s *SQLiteStore) queryAll(where string, args ...any) []*ticket.Ticket {
	rows, err := s.db.Query("SELECT body FROM tickets"+where+" ORDER BY created_at DESC", args...)
	if err != nil {
		s.logger.Error("sqlite repository: query failed", slog.Any("err", err))
		return nil
	}
	defer rows.Close()

	var out []*ticket.Ticket
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			continue
		}
		if t, ok := decodeTicket(body, s.logger); ok {
			out = append(out, t)
		}
	}
	return out
}

// FindByStatus returns every ticket with the given status.
func (s *SQLiteStore) FindByStatus(status ticket.Status) []*ticket.Ticket {
	return s.queryAll(" WHERE status = ?", string(status))
}

// FindByQueue returns every ticket currently coupled to the given queue.
func (s *SQLiteStore) FindByQueue(q ticket.Queue) []*ticket.Ticket {
	return s.queryAll(" WHERE current_queue = ?", string(q))
}

// FindByAssignee returns every ticket assigned to the given agent.
func (s *SQLiteStore) FindByAssignee(agentID string) []*ticket.Ticket {
	return s.queryAll(" WHERE assignee_id = ?", agentID)
}

// FindByPriority returns every ticket at the given priority.
func (s *SQLiteStore) FindByPriority(p ticket.Priority) []*ticket.Ticket {
	return s.queryAll(" WHERE priority = ?", string(p))
}

// FindByCategory returns every ticket in the given category.
func (s *SQLiteStore) FindByCategory(c ticket.Category) []*ticket.Ticket {
	return s.queryAll(" WHERE category = ?", string(c))
}

// Find applies every non-zero filter and returns the filtered total
// alongside a limit/offset page, matching Store.Find's contract.
func (s *SQLiteStore) Find(f Filters, limit, offset int) (page []*ticket.Ticket, total int) {
	where := " WHERE 1=1"
	var args []any
	if f.Status != "" {
		where += " AND status = ?"
		args = append(args, string(f.Status))
	}
	if f.Queue != "" {
		where += " AND current_queue = ?"
		args = append(args, string(f.Queue))
	}
	if f.Priority != "" {
		where += " AND priority = ?"
		args = append(args, string(f.Priority))
	}
	if f.Category != "" {
		where += " AND category = ?"
		args = append(args, string(f.Category))
	}
	if f.Assignee != "" {
		where += " AND assignee_id = ?"
		args = append(args, f.Assignee)
	}

	matched := s.queryAll(where, args...)
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

func decodeTicket(body string, logger *slog.Logger) (*ticket.Ticket, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		logger.Error("sqlite repository: decode ticket failed", slog.Any("err", err))
		return nil, false
	}
	t, err := ticket.FromMap(m)
	if err != nil {
		logger.Error("sqlite repository: reconstruct ticket failed", slog.Any("err", err))
		return nil, false
	}
	return t, true
}
