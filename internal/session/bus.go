package session

import (
	"sync"

	"streethustle/internal/game"
)

// Bus fans signals out to subscribers. A subscriber that falls behind loses
// signals rather than stalling the game loop.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan game.Signal
	nextID int
}

func NewBus() *Bus {
	return &Bus{subs: map[int]chan game.Signal{}}
}

func (b *Bus) Publish(s game.Signal) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Subscribe returns a channel of signals and a func that closes it.
func (b *Bus) Subscribe(buffer int) (<-chan game.Signal, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan game.Signal, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
