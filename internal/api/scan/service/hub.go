package scanService

import (
	"QRScanner/internal/entity"
	"sync"
)

const subscriberBuffer = 32

// hub fans scan events out to subscribers. Slow subscribers miss events
// instead of blocking the publisher.
type hub struct {
	mu          sync.RWMutex
	subscribers map[uint64]chan entity.ScanEvent
	nextID      uint64
}

func newHub() *hub {
	return &hub{
		subscribers: make(map[uint64]chan entity.ScanEvent),
	}
}

func (h *hub) subscribe() (<-chan entity.ScanEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan entity.ScanEvent, subscriberBuffer)
	h.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers, id)
			close(ch)
		})
	}
}

func (h *hub) publish(event entity.ScanEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
