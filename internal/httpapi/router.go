package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ticketflow/ticketd/internal/appctx"
)

// Server holds the application context and exposes the HTTP/websocket
// control surface over it. It never owns component state itself; every
// handler is a thin translation into a core operation.
type Server struct {
	ctx *appctx.Context
}

// NewServer creates a control-surface server over ctx.
func NewServer(ctx *appctx.Context) *Server {
	return &Server{ctx: ctx}
}

func (s *Server) logger() *slog.Logger { return s.ctx.Logger }

// Router builds the stdlib ServeMux for the full REST and websocket
// surface, using Go 1.22+ method+pattern routing.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws/stats", s.handleWSStats)

	// Per-server registry for the live queue-depth gauges (each test or
	// process instantiates its own *queue.Manager); the request-latency
	// histogram lives on the default registry and is merged in via
	// prometheus.Gatherers so /metrics exposes both.
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewQueueDepthCollector(s.ctx.Queue))
	gatherers := prometheus.Gatherers{prometheus.DefaultGatherer, reg}
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}))

	mux.HandleFunc("POST /api/tickets/ingest", s.handleIngest)
	mux.HandleFunc("POST /api/tickets/{id}/triage_complete", s.handleTriageComplete)
	mux.HandleFunc("POST /api/tickets/{id}/resolve", s.handleResolve)
	mux.HandleFunc("POST /api/tickets/{id}/analyze-code", s.handleAnalyzeCode)
	mux.HandleFunc("POST /api/tickets/{id}/analyze-support", s.handleAnalyzeSupport)
	mux.HandleFunc("PATCH /api/tickets/{id}", s.handlePatchTicket)
	mux.HandleFunc("GET /api/tickets/{id}/position", s.handleTicketPosition)
	mux.HandleFunc("GET /api/tickets/{id}", s.handleGetTicket)
	mux.HandleFunc("DELETE /api/tickets/{id}", s.handleDeleteTicket)
	mux.HandleFunc("GET /api/tickets", s.handleListTickets)

	mux.HandleFunc("GET /api/queues", s.handleListQueues)
	mux.HandleFunc("GET /api/queues/audit", s.handleAuditLog)
	mux.HandleFunc("GET /api/queues/{name}", s.handleGetQueue)
	mux.HandleFunc("GET /api/queues/{name}/peek", s.handlePeekQueue)
	mux.HandleFunc("GET /api/queues/{name}/stats", s.handleQueueStats)
	mux.HandleFunc("POST /api/queues/{name}/dequeue", s.handleDequeue)
	mux.HandleFunc("POST /api/queues/move", s.handleMoveQueue)

	mux.HandleFunc("POST /api/distribution/claim", s.handleClaim)
	mux.HandleFunc("POST /api/distribution/assign", s.handleAssign)
	mux.HandleFunc("POST /api/distribution/release", s.handleRelease)
	mux.HandleFunc("POST /api/distribution/transfer", s.handleTransfer)
	mux.HandleFunc("GET /api/distribution/available", s.handleAvailable)
	mux.HandleFunc("GET /api/distribution/my-tickets", s.handleMyTickets)
	mux.HandleFunc("GET /api/distribution/agent-stats/{agent_id}", s.handleAgentStats)

	mux.HandleFunc("GET /ws", s.handleWS)

	return withMetrics(mux)
}
