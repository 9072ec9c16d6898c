package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Event kinds broadcast over SSE and websocket connections.
const (
	KindScanProgress    = "scan_progress"
	KindScanComplete    = "scan_complete"
	KindMetadataRefresh = "metadata_refresh"
	KindJobUpdate       = "job_update"
	KindHeartbeat       = "heartbeat"
	KindError           = "error"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls more than this far behind starts losing events and is told so.
const subscriberBuffer = 256

// Event is the envelope every consumer receives.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// JSON renders the event envelope; marshal failures degrade to an error event
// rather than dropping the payload silently.
func (e Event) JSON() []byte {
	b, err := json.Marshal(e)
	if err != nil {
		b, _ = json.Marshal(Event{Type: KindError, Data: map[string]string{"error": "marshal failed"}})
	}
	return b
}

type subscriber struct {
	ch     chan Event
	lagged int
}

// Hub fans events out to subscribers without ever blocking a publisher.
// Slow consumers lose events; the loss is surfaced as an error event with
// the dropped count once they catch up.
type Hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
	seq  uint64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// Subscribe registers a consumer. The returned channel is closed by
// Unsubscribe, never by the hub itself.
func (h *Hub) Subscribe() <-chan Event {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub.ch
}

// Unsubscribe removes the consumer and closes its channel.
func (h *Hub) Unsubscribe(ch <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if sub.ch == ch {
			delete(h.subs, sub)
			close(sub.ch)
			return
		}
	}
}

// Broadcast delivers the event to every subscriber with room in its buffer.
// Full subscribers accrue a lag count instead of blocking the publisher.
func (h *Hub) Broadcast(kind string, data interface{}) {
	event := Event{Type: kind, Data: data}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		// A lagged subscriber first gets the loss notification once a
		// buffer slot frees up, then resumes the live stream.
		if sub.lagged > 0 {
			select {
			case sub.ch <- Event{Type: KindError, Data: map[string]int{"lagged": sub.lagged}}:
				sub.lagged = 0
			default:
				sub.lagged++
				continue
			}
		}
		select {
		case sub.ch <- event:
		default:
			sub.lagged++
		}
	}
}

// SubscriberCount returns the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// RunHeartbeat broadcasts a heartbeat with an increasing sequence number
// every interval until stop is closed.
func (h *Hub) RunHeartbeat(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.mu.Lock()
			h.seq++
			seq := h.seq
			h.mu.Unlock()
			h.Broadcast(KindHeartbeat, map[string]uint64{"seq": seq})
		case <-stop:
			return
		}
	}
}
