// Package queue implements a Michael-Scott lock-free MPMC FIFO queue whose
// items are arcp.Region handles (see original_source/src/queue.c's
// aqueue_t). Structural node links are plain GC-managed pointers, the same
// style the teacher's LockFreeQueue[T] uses in
// internal/stdlib/collections/concurrent.go — Go's garbage collector
// already solves the memory-reclamation problem the original needed ARCP
// cells on every link for. Only the per-node item slot is an arcp.Cell,
// since Peek and CompareDequeue need its exact load/phantom-load staleness
// semantics (arcp_load_phantom in the original).
package queue

import (
	"sync/atomic"

	"github.com/orizon-lang/orizon-arcp"
)

type node struct {
	item arcp.Cell
	next atomic.Pointer[node]
}

// Queue is an unbounded, lock-free, multi-producer multi-consumer FIFO of
// arcp.Region handles.
type Queue struct {
	head atomic.Pointer[node]
	tail atomic.Pointer[node]
}

// New returns an empty queue.
func New() *Queue {
	sentinel := &node{}
	q := &Queue{}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	return q
}

// Enqueue adds item to the tail of the queue, taking ownership of the
// caller's reference to it (spec.md §5.2: enqueue does not return the item
// to the caller).
func (q *Queue) Enqueue(item *arcp.Region) {
	n := &node{}
	n.item.Init(item)
	// The node's store-count now keeps item alive; give up the caller's
	// use-count so the queue owns it alone.
	item.Release()

	for {
		tail := q.tail.Load()
		next := tail.next.Load()

		if tail == q.tail.Load() { // Check consistency.
			if next == nil {
				if tail.next.CompareAndSwap(nil, n) {
					q.tail.CompareAndSwap(tail, n)
					return
				}
			} else {
				// Help a straggling enqueuer advance the tail.
				q.tail.CompareAndSwap(tail, next)
			}
		}
	}
}

// Dequeue removes and returns the item at the head of the queue, or nil if
// the queue is empty. The caller owns the returned reference and must
// release it.
func (q *Queue) Dequeue() *arcp.Region {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := head.next.Load()

		if head != q.head.Load() { // Check consistency.
			continue
		}
		if head == tail {
			if next == nil {
				return nil // Queue is empty.
			}
			// Help advance tail before retrying.
			q.tail.CompareAndSwap(tail, next)

			continue
		}

		// CAS first, then swap the item out: only the thread that wins
		// this CAS may touch next.item, so exactly one caller ever
		// observes the real value (spec.md §4.2's Dequeue algorithm).
		// Swapping the item out before the CAS would let a losing thread
		// steal it while the CAS winner gets back nil.
		if q.head.CompareAndSwap(head, next) {
			return next.item.Swap(nil)
		}
	}
}

// Peek returns the item currently at the head without removing it, or nil
// if the queue is empty. The returned handle is a phantom load: it is only
// valid as long as the caller knows the head has not since been dequeued
// (spec.md §5.2), matching arcp_peek's use of arcp_load_phantom.
func (q *Queue) Peek() *arcp.Region {
	for {
		head := q.head.Load()
		next := head.next.Load()
		if q.head.Load() != head {
			continue
		}
		if next == nil {
			return nil
		}
		return next.item.LoadPhantom()
	}
}

// CompareDequeue removes the head item only if it still equals expect,
// mirroring aqueue_cmpdeq's use of a phantom-load staleness check to avoid
// dequeuing a different item that happened to land at the head after a
// concurrent Dequeue and Enqueue raced the caller's Peek.
func (q *Queue) CompareDequeue(expect *arcp.Region) bool {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := head.next.Load()

		if head != q.head.Load() {
			continue
		}
		if head == tail {
			return false
		}
		if next.item.LoadPhantom() != expect {
			return false
		}

		// Same CAS-then-swap ordering as Dequeue: only the CAS winner may
		// touch next.item, so the item checked above is still the one
		// consumed on success.
		if q.head.CompareAndSwap(head, next) {
			if item := next.item.Swap(nil); item != nil {
				item.Release()
			}
			return true
		}
	}
}
