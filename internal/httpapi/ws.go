package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ticketflow/ticketd/internal/subscription"
)

// upgrader permits cross-origin connections; the dashboard's own
// authentication/authorisation is explicitly out of scope.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientFrame is a client->server control frame.
type clientFrame struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// handleWS upgrades the HTTP connection and registers the client on
// the subscription bus, then serves its subscribe/unsubscribe/ping
// control frames until the peer goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger().Error("httpapi: websocket upgrade failed", slog.Any("err", err))
		return
	}
	defer conn.Close()

	s.ctx.Bus.Connect(conn, clientID)
	defer s.ctx.Bus.Disconnect(clientID)

	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		switch frame.Action {
		case "subscribe":
			s.ctx.Bus.Subscribe(clientID, frame.Channel)
		case "unsubscribe":
			s.ctx.Bus.Unsubscribe(clientID, frame.Channel)
		case "ping":
			s.ctx.Bus.SendTo(clientID, subscription.Frame{Event: "pong", Timestamp: time.Now().UTC()})
		default:
			s.ctx.Bus.SendTo(clientID, subscription.Frame{Event: "error", Data: "unrecognised action: " + frame.Action, Timestamp: time.Now().UTC()})
		}
	}
}
