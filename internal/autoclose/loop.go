// Package autoclose implements the background auto-close task: a
// periodic sweep that closes RESOLVED tickets once they've aged past
// the cutoff.
package autoclose

import (
	"context"
	"log/slog"
	"time"

	"github.com/ticketflow/ticketd/internal/ticket"
)

// Period is how often the sweep runs.
const Period = 60 * time.Second

// Cutoff is how long a ticket must have sat in RESOLVED before it is
// eligible for auto-close.
const Cutoff = 5 * time.Minute

// Repository is the subset of the ticket repository the loop needs.
type Repository interface {
	FindByStatus(status ticket.Status) []*ticket.Ticket
	Save(t *ticket.Ticket)
}

// Publisher is the subset of the event publisher the loop needs.
type Publisher interface {
	PublishTicketUpdated(ctx context.Context, t *ticket.Ticket, changes map[string]any)
}

// Loop is the auto-close background task.
type Loop struct {
	repo   Repository
	pub    Publisher
	logger *slog.Logger
}

// New creates an auto-close loop over repo, announcing transitions via pub.
func New(repo Repository, pub Publisher, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{repo: repo, pub: pub, logger: logger}
}

// Run blocks, sweeping every Period until ctx is cancelled. Per-ticket
// errors are isolated and logged; the loop continues. An unexpected
// failure of the loop body itself sleeps 5s and resumes.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("starting auto-close background task")
	ticker := time.NewTicker(Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.safeSweep(ctx); err != nil {
				l.logger.Error("auto-close loop: unexpected failure, backing off", slog.Any("err", err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(5 * time.Second):
				}
			}
		}
	}
}

func (l *Loop) safeSweep(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{r}
		}
	}()
	l.sweep(ctx)
	return nil
}

type panicError struct{ v any }

func (p *panicError) Error() string { return "panic in auto-close sweep" }

func (l *Loop) sweep(ctx context.Context) {
	now := time.Now().UTC()
	cutoff := now.Add(-Cutoff)

	for _, t := range l.repo.FindByStatus(ticket.StatusResolved) {
		if t.UpdatedAt.After(cutoff) {
			continue
		}
		l.closeOne(ctx, t)
	}
}

func (l *Loop) closeOne(ctx context.Context, t *ticket.Ticket) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("auto-close: error closing ticket", slog.String("ticket_id", t.ID), slog.Any("panic", r))
		}
	}()

	if err := t.Close(); err != nil {
		l.logger.Error("auto-close: error closing ticket", slog.String("ticket_id", t.ID), slog.Any("err", err))
		return
	}
	l.repo.Save(t)
	if l.pub != nil {
		l.pub.PublishTicketUpdated(ctx, t, map[string]any{"status": string(ticket.StatusClosed)})
	}
	l.logger.Info("auto-closed ticket", slog.String("ticket_id", t.ID))
}
