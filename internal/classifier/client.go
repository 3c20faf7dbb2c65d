// Package classifier implements the external classifier collaborator:
// an out-of-process HTTP service that triages a ticket and, for the
// richer analysis endpoints, reviews code or support context. Every call is bounded by a deadline and every
// failure is logged and swallowed: an external call failure must
// never fail the originating local operation.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"github.com/ticketflow/ticketd/internal/ticket"
)

// Per-call deadlines for the collaborator endpoints.
const (
	TriageTimeout  = 30 * time.Second
	CodeTimeout    = 60 * time.Second
	SupportTimeout = 30 * time.Second
)

// ConfidenceThreshold is the inclusive cutoff at or above which the
// triage fan-out auto-routes to ASSIGNMENT.
const ConfidenceThreshold = 0.8

// AgentSummary is the roster shape attached to a triage request.
type AgentSummary struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Status            string   `json:"status"`
	Skills            []string `json:"skills,omitempty"`
	ActiveTicketCount int      `json:"active_ticket_count"`
}

// Result is the classifier's response. Only Confidence, Category,
// Priority, SuggestedAssignee, and Tags are consumed by the routing
// logic; everything else is stored verbatim in the ticket's AI
// reasoning.
type Result struct {
	Category                     string         `json:"category"`
	Priority                     string         `json:"priority"`
	Confidence                   float64        `json:"confidence"`
	Reasoning                    string         `json:"reasoning"`
	CanAutoResolve               bool           `json:"can_auto_resolve"`
	SuggestedAssignee            string         `json:"suggested_assignee"`
	SuggestedAssigneeTeam        string         `json:"suggested_assignee_team"`
	Tags                         []string       `json:"tags"`
	EstimatedResolutionTimeHours float64        `json:"estimated_resolution_time_hours"`
	Raw                          map[string]any `json:"-"`
}

// Client calls the external classifier service over HTTP, with a
// circuit breaker so a flapping classifier is short-circuited to an
// immediate failure instead of compounding retry latency.
type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// New creates a classifier client pointed at baseURL.
func New(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "classifier",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		cb:      cb,
		logger:  logger,
	}
}

// AnalyzeTriage invokes POST /analyze/triage with the ticket's public
// dictionary form plus the available-agents roster. Failures of any
// kind (network, timeout, breaker-open, non-2xx, malformed body) are
// logged and returned as a nil result with a non-nil error; callers
// log and swallow.
func (c *Client) AnalyzeTriage(ctx context.Context, t *ticket.Ticket, agents []AgentSummary) (*Result, error) {
	payload := t.ToMap()
	payload["available_agents"] = agents
	return c.post(ctx, "/analyze/triage", payload, TriageTimeout)
}

// AnalyzeCode invokes POST /analyze/code for tickets that carry a code
// context worth reviewing.
func (c *Client) AnalyzeCode(ctx context.Context, t *ticket.Ticket, codeContext map[string]any) (*Result, error) {
	payload := map[string]any{"ticket": t.ToMap(), "code_context": codeContext}
	return c.post(ctx, "/analyze/code", payload, CodeTimeout)
}

// AnalyzeSupport invokes POST /analyze/support.
func (c *Client) AnalyzeSupport(ctx context.Context, t *ticket.Ticket, supportContext map[string]any) (*Result, error) {
	payload := map[string]any{"ticket": t.ToMap(), "context": supportContext}
	return c.post(ctx, "/analyze/support", payload, SupportTimeout)
}

func (c *Client) post(ctx context.Context, path string, payload any, timeout time.Duration) (*Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("classifier: encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := c.cb.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("classifier: unexpected status %d", resp.StatusCode)
		}

		var raw map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			return nil, fmt.Errorf("classifier: decode response: %w", err)
		}
		return raw, nil
	})
	if err != nil {
		c.logger.Error("classifier call failed", slog.String("path", path), slog.Any("err", err))
		return nil, err
	}

	raw := out.(map[string]any)
	return decodeResult(raw), nil
}

func decodeResult(raw map[string]any) *Result {
	b, _ := json.Marshal(raw)
	var r Result
	_ = json.Unmarshal(b, &r)
	r.Raw = raw
	return &r
}
