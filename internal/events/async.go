package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const publishTimeout = 5 * time.Second

// Async decouples callers from broker latency. Emit never blocks; when the
// buffer is full the event is dropped and onDrop is called.
type Async struct {
	pub    Publisher
	queue  chan Event
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once
	onDrop func()
}

func NewAsync(pub Publisher, size int, onDrop func()) *Async {
	if size <= 0 {
		size = 1024
	}
	if onDrop == nil {
		onDrop = func() {}
	}
	a := &Async{
		pub:    pub,
		queue:  make(chan Event, size),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		onDrop: onDrop,
	}
	go a.run()
	return a
}

func (a *Async) Emit(e Event) {
	select {
	case <-a.quit:
		return
	default:
	}

	select {
	case a.queue <- e:
	default:
		log.Warn().Str("kind", string(e.Kind)).Str("room_id", e.RoomID).Msg("Event buffer full, dropping event")
		a.onDrop()
	}
}

func (a *Async) run() {
	defer close(a.done)
	for {
		select {
		case e := <-a.queue:
			a.publish(e)
		case <-a.quit:
			// Flush what was accepted before Close.
			for {
				select {
				case e := <-a.queue:
					a.publish(e)
				default:
					return
				}
			}
		}
	}
}

func (a *Async) publish(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := a.pub.Publish(ctx, e); err != nil {
		log.Error().Err(err).Str("kind", string(e.Kind)).Str("room_id", e.RoomID).Msg("Failed to publish event")
	}
}

// Close flushes buffered events and closes the underlying publisher.
func (a *Async) Close() error {
	var err error
	a.once.Do(func() {
		close(a.quit)
		<-a.done
		err = a.pub.Close()
	})
	return err
}
