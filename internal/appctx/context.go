// Package appctx holds every component as an injected dependency: one
// Context per process (or per test case), owning every component's
// lifetime.
package appctx

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ticketflow/ticketd/internal/assignment"
	"github.com/ticketflow/ticketd/internal/autoclose"
	"github.com/ticketflow/ticketd/internal/classifier"
	"github.com/ticketflow/ticketd/internal/config"
	"github.com/ticketflow/ticketd/internal/events"
	"github.com/ticketflow/ticketd/internal/queue"
	"github.com/ticketflow/ticketd/internal/repository"
	"github.com/ticketflow/ticketd/internal/subscription"
)

// staticAgentRoster is the fixed agent table attached to every triage
// request until a real directory backs it.
var staticAgentRoster = []classifier.AgentSummary{
	{ID: "user-1", Name: "IT Person", Status: "active", Skills: []string{"hardware", "networking", "support", "windows"}},
	{ID: "user-2", Name: "Frontend Developer", Status: "busy", Skills: []string{"javascript", "react", "svelte", "css"}},
	{ID: "user-3", Name: "Backend Developer", Status: "active", Skills: []string{"python", "api", "database", "docker"}},
	{ID: "user-4", Name: "Database Developer", Status: "away", Skills: []string{"sql", "postgres", "optimization"}},
	{ID: "user-5", Name: "UI Designer", Status: "active", Skills: []string{"figma", "design", "css", "ux"}},
	{ID: "user-6", Name: "AI Engineer", Status: "active", Skills: []string{"python", "llm", "pytorch", "rag"}},
	{ID: "user-7", Name: "Network Engineer", Status: "offline", Skills: []string{"cisco", "firewall", "vpn", "routing"}},
}

// Roster adapts the assignment tracker and a static agent table into
// the classifier collaborator's available-agents snapshot.
type Roster struct {
	tracker *assignment.Tracker
	agents  []classifier.AgentSummary
}

// NewRoster creates a roster over the given static agent table.
func NewRoster(tracker *assignment.Tracker, agents []classifier.AgentSummary) *Roster {
	return &Roster{tracker: tracker, agents: agents}
}

// AvailableAgents returns the static roster with each entry's
// ActiveTicketCount refreshed from the assignment tracker.
func (r *Roster) AvailableAgents() []classifier.AgentSummary {
	out := make([]classifier.AgentSummary, len(r.agents))
	for i, a := range r.agents {
		a.ActiveTicketCount = r.tracker.GetAgentTicketCount(a.ID)
		out[i] = a
	}
	return out
}

// Context owns every pipeline component for the lifetime of one
// process (or one test case).
type Context struct {
	Config     config.Config
	Logger     *slog.Logger
	Repo       repository.Repository
	Tracker    *assignment.Tracker
	Bus        *subscription.Bus
	Publisher  *events.Publisher
	Classifier *classifier.Client
	Roster     *Roster
	Queue      *queue.Manager
	AutoClose  *autoclose.Loop

	group  *errgroup.Group
	cancel context.CancelFunc
}

// New wires every component together: the queue manager gets the
// classifier, roster, publisher, and repository it needs for the
// triage fan-out; the auto-close loop gets the repository and publisher.
func New(cfg config.Config, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}

	var repo repository.Repository
	if cfg.DBPath != "" {
		sqliteRepo, err := repository.OpenSQLite(cfg.DBPath, logger)
		if err != nil {
			logger.Error("appctx: failed to open sqlite repository, falling back to in-memory",
				slog.String("path", cfg.DBPath), slog.Any("err", err))
			repo = repository.New()
		} else {
			repo = sqliteRepo
		}
	} else {
		repo = repository.New()
	}
	tracker := assignment.New()
	bus := subscription.New(logger)
	pub := events.New(bus, events.Config{
		MirrorURL:      cfg.AIWebhookURL,
		ResolutionURL:  cfg.ResolutionWebhookURL,
		CodingAgentURL: cfg.CodingAgentWebhookURL,
	}, logger)
	cl := classifier.New(cfg.AIServiceURL, logger)
	roster := NewRoster(tracker, staticAgentRoster)
	qm := queue.New(cl, roster, pub, repo, logger)
	ac := autoclose.New(repo, pub, logger)

	return &Context{
		Config:     cfg,
		Logger:     logger,
		Repo:       repo,
		Tracker:    tracker,
		Bus:        bus,
		Publisher:  pub,
		Classifier: cl,
		Roster:     roster,
		Queue:      qm,
		AutoClose:  ac,
	}
}

// Start launches the supervised background loops (auto-close) under an
// errgroup so they drain cleanly on Stop.
func (c *Context) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	g, runCtx := errgroup.WithContext(runCtx)
	c.cancel = cancel
	c.group = g

	g.Go(func() error {
		c.AutoClose.Run(runCtx)
		return nil
	})
}

// Stop cancels every background loop and waits for them to return.
func (c *Context) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.group != nil {
		_ = c.group.Wait()
	}
}
