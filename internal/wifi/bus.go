package wifi

import (
	"sync"

	"github.com/muurk/wifiboot/internal/connectivity"
)

// bus fans events out to subscribers from a single goroutine, so handlers
// never see two events at once.
type bus struct {
	mu     sync.Mutex
	subs   map[int]connectivity.EventHandler
	nextID int
	events chan connectivity.Event

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	stopped   chan struct{}
}

func newBus() *bus {
	return &bus{
		subs:    make(map[int]connectivity.EventHandler),
		events:  make(chan connectivity.Event, 32),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (b *bus) start() {
	b.startOnce.Do(func() {
		go b.run()
	})
}

func (b *bus) run() {
	defer close(b.stopped)
	for {
		select {
		case ev := <-b.events:
			b.mu.Lock()
			handlers := make([]connectivity.EventHandler, 0, len(b.subs))
			for _, h := range b.subs {
				handlers = append(handlers, h)
			}
			b.mu.Unlock()
			for _, h := range handlers {
				h.HandleEvent(ev)
			}
		case <-b.stop:
			return
		}
	}
}

func (b *bus) subscribe(h connectivity.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// publish queues an event. It drops the event once the bus is closed.
func (b *bus) publish(ev connectivity.Event) {
	select {
	case b.events <- ev:
	case <-b.stop:
	}
}

func (b *bus) close() {
	b.stopOnce.Do(func() {
		close(b.stop)
	})
	b.startOnce.Do(func() {
		// never started; nothing to wait for
		close(b.stopped)
	})
	<-b.stopped
}
