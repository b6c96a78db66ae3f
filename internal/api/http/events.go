package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Event is one server-sent event pushed to attempt watchers.
type Event struct {
	Type string `json:"type"` // tick | time_up | state | submitted | error
	Data any    `json:"data,omitempty"`
}

// Hub fans attempt events out to SSE subscribers, one topic per session.
// A topic lives from Open to Close. Slow subscribers lose events rather
// than stall the countdown.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func NewHub() *Hub { return &Hub{subs: make(map[string]map[chan Event]struct{})} }

// Open starts a topic. Opening a live topic is a no-op.
func (h *Hub) Open(topic string) {
	h.mu.Lock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[chan Event]struct{})
	}
	h.mu.Unlock()
}

// Subscribe on a topic that was never opened or has already closed returns
// a closed channel, so the stream ends at once.
func (h *Hub) Subscribe(topic string) (<-chan Event, func()) {
	ch := make(chan Event, 16)
	h.mu.Lock()
	set, ok := h.subs[topic]
	if !ok {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	set[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		if set, ok := h.subs[topic]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
		}
		h.mu.Unlock()
	}
}

func (h *Hub) Publish(topic string, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[topic] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close ends every stream on topic after delivering what is buffered.
func (h *Hub) Close(topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[topic] {
		close(ch)
	}
	delete(h.subs, topic)
}

// serveSSE streams events until the topic closes or the client leaves.
func serveSSE(w http.ResponseWriter, r *http.Request, events <-chan Event, keepAlive time.Duration) {
	fl, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fl.Flush()

	ping := time.NewTicker(keepAlive)
	defer ping.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			fl.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			buf, _ := json.Marshal(ev.Data)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, buf)
			fl.Flush()
		}
	}
}
