package broker

import (
	"container/list"
	"sync/atomic"
)

// waiter is a client parked on an empty pool, holding a single-shot
// delivery slot. Ground: the single-shot lease handoff in
// lib/utils/workpool, generalized into an explicit FIFO so arrival order
// is a hard guarantee rather than a side effect of channel scheduling.
type waiter struct {
	clientName string
	slot       chan Lease
	abandoned  atomic.Bool
}

func newWaiter(clientName string) *waiter {
	return &waiter{
		clientName: clientName,
		slot:       make(chan Lease, 1),
	}
}

// abandon marks the waiter as no longer interested in its delivery slot.
// It must be cheap and must not require the broker lock: the caller giving
// up (disconnect, context cancellation) calls this directly.
func (w *waiter) abandon() {
	w.abandoned.Store(true)
}

// deliver attempts to hand l to the waiter. It fails, without blocking, if
// the waiter already abandoned its slot. The slot is buffered one-deep, so
// the send succeeds without blocking even if the receiver has not reached
// its select yet; a receiver that is gone but has not called abandon is
// not detected here.
func (w *waiter) deliver(l Lease) bool {
	if w.abandoned.Load() {
		return false
	}
	select {
	case w.slot <- l:
		return true
	default:
		return false
	}
}

// waiterQueue is the FIFO of waiters parked on an empty pool for one
// service.
type waiterQueue struct {
	items *list.List
}

func newWaiterQueue() *waiterQueue {
	return &waiterQueue{items: list.New()}
}

func (q *waiterQueue) enqueue(w *waiter) {
	q.items.PushBack(w)
}

// dequeue pops the waiter at the head of the queue, if any. Abandoned
// waiters are not filtered here; serveWaitersLocked discards them lazily
// when delivery fails, so FIFO order is preserved without scanning ahead.
func (q *waiterQueue) dequeue() (*waiter, bool) {
	front := q.items.Front()
	if front == nil {
		return nil, false
	}
	q.items.Remove(front)
	return front.Value.(*waiter), true
}

func (q *waiterQueue) len() int {
	return q.items.Len()
}
