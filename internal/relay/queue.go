package relay

import (
	"sync"

	"github.com/xdg/telecommand/internal/chat"
)

// updateQueue is an unbounded FIFO between the connection reader and the
// dispatcher. push never blocks, so acknowledgements keep being read while
// a handler waits on one.
type updateQueue struct {
	mu     sync.Mutex
	items  []chat.Update
	closed bool
	ready  chan struct{}
}

func newUpdateQueue() *updateQueue {
	return &updateQueue{ready: make(chan struct{}, 1)}
}

func (q *updateQueue) push(u chat.Update) {
	q.mu.Lock()
	q.items = append(q.items, u)
	q.mu.Unlock()
	q.wake()
}

// close lets pop drain what is queued and then report false.
func (q *updateQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

func (q *updateQueue) wake() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// pop blocks until an update is queued or the queue is closed and empty.
// It supports a single consumer.
func (q *updateQueue) pop() (chat.Update, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			u := q.items[0]
			q.items[0] = chat.Update{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return u, true
		}
		if q.closed {
			q.mu.Unlock()
			return chat.Update{}, false
		}
		q.mu.Unlock()
		<-q.ready
	}
}
