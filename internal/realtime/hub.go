package realtime

import (
	"log/slog"
	"sync"

	"golang.org/x/net/websocket"
)

// Event is one row-level change on the tasks table. The payload carries ids
// only, never row data: the feed is table-wide and unfiltered, so subscribers
// may see ids of rows they cannot read and are expected to no-op on refetch.
type Event struct {
	Type   string `json:"type"` // INSERT | UPDATE | DELETE
	TaskID string `json:"task_id"`
}

const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Hub fans change events out to every subscriber. Slow subscribers drop
// events rather than block publishers; a dropped event at worst costs the
// client one redundant refetch.
type Hub struct {
	log *slog.Logger

	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:  log,
		subs: make(map[chan Event]struct{}),
	}
}

// Subscribe returns a stream of change events and a cancel func that must be
// called when the subscriber is done.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.log.Warn("realtime subscriber lagging, event dropped", "type", ev.Type, "task_id", ev.TaskID)
		}
	}
}

func (h *Hub) subscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Handler serves the change-feed over a websocket, one JSON event per message.
// The subscription lives until the peer goes away.
func (h *Hub) Handler() websocket.Handler {
	return websocket.Handler(func(ws *websocket.Conn) {
		events, cancel := h.Subscribe()
		defer cancel()

		for ev := range events {
			if err := websocket.JSON.Send(ws, ev); err != nil {
				h.log.Debug("realtime peer gone", "error", err)
				return
			}
		}
	})
}
