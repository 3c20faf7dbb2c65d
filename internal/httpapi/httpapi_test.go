package httpapi

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ticketflow/ticketd/internal/appctx"
	"github.com/ticketflow/ticketd/internal/config"
)

// newTestServer builds a Server over a fresh in-memory appctx.Context.
// AIServiceURL is left pointed at an address nothing listens on: the
// classifier call fails fast and the triage fan-out leaves tickets in
// INBOX, which is exactly what most of these handler tests want.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Load()
	cfg.AIServiceURL = "http://127.0.0.1:0"
	logger := slog.New(slog.NewTextHandler(discard{}, nil))
	ctx := appctx.New(cfg, logger)
	return NewServer(ctx)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response body %q: %v", rec.Body.String(), err)
	}
	return out
}
