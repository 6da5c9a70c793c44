package events

import (
	"sync"
	"sync/atomic"

	"github.com/reliefworks/go-relief-registry/internal/models"
)

// Broadcaster fans registry notifications out to subscribers. Delivery is
// best-effort: a subscriber whose buffer is full misses the notification
// rather than blocking the operation that emitted it.
type Broadcaster struct {
	subscribers map[uint64]chan models.Notification
	bufferSize  int
	nextID      atomic.Uint64
	mu          sync.RWMutex
}

func NewBroadcaster(bufferSize int) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Broadcaster{
		subscribers: make(map[uint64]chan models.Notification),
		bufferSize:  bufferSize,
	}
}

func (b *Broadcaster) Subscribe() (uint64, <-chan models.Notification) {
	id := b.nextID.Add(1)
	ch := make(chan models.Notification, b.bufferSize)

	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) Broadcast(n models.Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- n:
		default:
			// Skip slow subscribers
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels, causing consumers to exit gracefully.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
