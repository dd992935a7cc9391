package feed

import (
	"sync"

	"github.com/signalsfoundry/intercept-engine/core"
)

// Hub holds the latest published snapshot and fans new ones out to
// subscribers. Slow subscribers only ever see the newest frame; older ones
// are dropped rather than queued.
type Hub struct {
	mu     sync.RWMutex
	latest *core.Snapshot
	subs   map[uint64]chan *core.Snapshot
	nextID uint64
	closed bool
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan *core.Snapshot)}
}

// Publish records snap as the latest frame and offers it to subscribers.
func (h *Hub) Publish(snap *core.Snapshot) {
	if snap == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.latest = snap
	for _, ch := range h.subs {
		select {
		case ch <- snap:
		default:
			// Replace the stale frame the subscriber hasn't read yet.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// Latest returns the most recent snapshot, or nil before the first frame.
func (h *Hub) Latest() *core.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// Subscribe returns a channel of new snapshots and a cancel func. The
// channel is closed on cancel or when the hub closes.
func (h *Hub) Subscribe() (<-chan *core.Snapshot, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan *core.Snapshot, 1)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription. Later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
