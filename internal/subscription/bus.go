// Package subscription implements the live-updates subscription bus:
// a client registry keyed by client id, a channel-to-clients index,
// and dedup-aware broadcast.
package subscription

import (
	"log/slog"
	"sync"
	"time"
)

// Conn is the minimal socket contract the bus needs. *websocket.Conn
// satisfies it structurally, so production code never imports gorilla
// here directly; tests substitute a fake.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Frame is a server->client message: {event, data, timestamp} or a
// control frame like {event:"subscribed", channel:"..."}.
type Frame struct {
	Event     string    `json:"event"`
	Data      any       `json:"data,omitempty"`
	Channel   string    `json:"channel,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// client is a single registered subscriber.
type client struct {
	id          string
	conn        Conn
	mu          sync.Mutex // guards conn.WriteJSON; gorilla conns aren't write-concurrent-safe
	channels    map[string]struct{}
	connectedAt time.Time
}

// Bus is the subscription bus's client registry.
type Bus struct {
	mu        sync.RWMutex
	clients   map[string]*client
	byChannel map[string]map[string]struct{} // channel -> set of client ids
	logger    *slog.Logger
}

// New creates an empty subscription bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		clients:   make(map[string]*client),
		byChannel: make(map[string]map[string]struct{}),
		logger:    logger,
	}
}

// Connect registers a new client, auto-subscribes it to "all", and
// sends the subscribed confirmation.
func (b *Bus) Connect(conn Conn, id string) {
	c := &client{
		id:          id,
		conn:        conn,
		channels:    map[string]struct{}{"all": {}},
		connectedAt: time.Now().UTC(),
	}

	b.mu.Lock()
	b.clients[id] = c
	b.indexChannel("all", id)
	b.mu.Unlock()

	b.send(c, Frame{Event: "subscribed", Channel: "all", Timestamp: time.Now().UTC()})
}

// Subscribe idempotently adds channel to id's subscriptions and confirms.
func (b *Bus) Subscribe(id, channel string) {
	b.mu.Lock()
	c, ok := b.clients[id]
	if !ok {
		b.mu.Unlock()
		return
	}
	c.channels[channel] = struct{}{}
	b.indexChannel(channel, id)
	b.mu.Unlock()

	b.send(c, Frame{Event: "subscribed", Channel: channel, Timestamp: time.Now().UTC()})
}

// Unsubscribe idempotently removes channel from id's subscriptions and confirms.
func (b *Bus) Unsubscribe(id, channel string) {
	b.mu.Lock()
	c, ok := b.clients[id]
	if ok {
		delete(c.channels, channel)
	}
	if set, ok := b.byChannel[channel]; ok {
		delete(set, id)
	}
	b.mu.Unlock()

	if ok {
		b.send(c, Frame{Event: "unsubscribed", Channel: channel, Timestamp: time.Now().UTC()})
	}
}

// Disconnect purges id from every channel and the main registry.
func (b *Bus) Disconnect(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.clients[id]
	if !ok {
		return
	}
	for channel := range c.channels {
		if set, ok := b.byChannel[channel]; ok {
			delete(set, id)
		}
	}
	delete(b.clients, id)
}

// indexChannel must be called with b.mu held.
func (b *Bus) indexChannel(channel, id string) {
	if b.byChannel[channel] == nil {
		b.byChannel[channel] = make(map[string]struct{})
	}
	b.byChannel[channel][id] = struct{}{}
}

// BroadcastToChannel iterates a snapshot of channel's subscribers and
// sends message to each; clients whose send fails are removed after
// the iteration completes.
func (b *Bus) BroadcastToChannel(channel string, frame Frame) {
	b.mu.RLock()
	ids := b.byChannel[channel]
	snapshot := make([]*client, 0, len(ids))
	for id := range ids {
		if c, ok := b.clients[id]; ok {
			snapshot = append(snapshot, c)
		}
	}
	b.mu.RUnlock()

	var failed []string
	for _, c := range snapshot {
		if err := b.sendErr(c, frame); err != nil {
			failed = append(failed, c.id)
		}
	}
	for _, id := range failed {
		b.Disconnect(id)
	}
}

// BroadcastEvent dedupes across channels: a client subscribed to
// several targeted channels still receives exactly one copy.
func (b *Bus) BroadcastEvent(eventType string, data map[string]any, channels []string) {
	frame := Frame{Event: eventType, Data: data, Timestamp: time.Now().UTC()}

	b.mu.RLock()
	sent := make(map[string]struct{})
	var targets []*client
	for _, channel := range channels {
		for id := range b.byChannel[channel] {
			if _, already := sent[id]; already {
				continue
			}
			sent[id] = struct{}{}
			if c, ok := b.clients[id]; ok {
				targets = append(targets, c)
			}
		}
	}
	b.mu.RUnlock()

	var failed []string
	for _, c := range targets {
		if err := b.sendErr(c, frame); err != nil {
			failed = append(failed, c.id)
		}
	}
	for _, id := range failed {
		b.Disconnect(id)
	}
}

// SendTo delivers a single frame to one client, serialised through the
// client's write mutex like every other send. Returns false if the
// client is unknown; a failed write disconnects the client.
func (b *Bus) SendTo(id string, frame Frame) bool {
	b.mu.RLock()
	c, ok := b.clients[id]
	b.mu.RUnlock()
	if !ok {
		return false
	}
	if err := b.sendErr(c, frame); err != nil {
		b.Disconnect(id)
		return false
	}
	return true
}

// Stats returns introspection counters for GET /ws/stats.
func (b *Bus) Stats() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	perChannel := make(map[string]int, len(b.byChannel))
	for channel, ids := range b.byChannel {
		perChannel[channel] = len(ids)
	}
	return map[string]any{
		"connected_clients": len(b.clients),
		"channels":          perChannel,
	}
}

func (b *Bus) send(c *client, frame Frame) {
	_ = b.sendErr(c, frame)
}

func (b *Bus) sendErr(c *client, frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(frame); err != nil {
		b.logger.Warn("subscription bus: send failed, will disconnect client", slog.String("client_id", c.id), slog.Any("err", err))
		return err
	}
	return nil
}
