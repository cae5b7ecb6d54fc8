package stub

import (
	"sync"

	"github.com/dimcz/livepoll/poll"
)

// Hub fans snapshots out to the open results streams of each poll. Only the
// newest snapshot matters, so a slow listener sees the latest one and skips
// the rest.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan poll.Snapshot]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[chan poll.Snapshot]struct{}),
	}
}

func (h *Hub) Subscribe(pollID string) (<-chan poll.Snapshot, func()) {
	ch := make(chan poll.Snapshot, 1)

	h.mu.Lock()
	if h.subs[pollID] == nil {
		h.subs[pollID] = make(map[chan poll.Snapshot]struct{})
	}
	h.subs[pollID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once

	return ch, func() {
		once.Do(func() {
			defer h.mu.Unlock()
			h.mu.Lock()

			delete(h.subs[pollID], ch)
			if len(h.subs[pollID]) == 0 {
				delete(h.subs, pollID)
			}
		})
	}
}

func (h *Hub) Publish(pollID string, snap poll.Snapshot) {
	defer h.mu.Unlock()
	h.mu.Lock()

	for ch := range h.subs[pollID] {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (h *Hub) Count(pollID string) int {
	defer h.mu.Unlock()
	h.mu.Lock()

	return len(h.subs[pollID])
}
