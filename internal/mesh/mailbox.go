package mesh

import "sync"

// mailbox is an unbounded FIFO. put never blocks, so relay and transport
// callbacks can always hand work to a link.
type mailbox struct {
	mu     sync.Mutex
	items  []linkEvent
	closed bool
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (mb *mailbox) put(ev linkEvent) bool {
	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		return false
	}
	mb.items = append(mb.items, ev)
	mb.mu.Unlock()

	select {
	case mb.notify <- struct{}{}:
	default:
	}
	return true
}

func (mb *mailbox) take() []linkEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	items := mb.items
	mb.items = nil
	return items
}

func (mb *mailbox) close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.closed = true
	mb.items = nil
}
