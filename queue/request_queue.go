package queue

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned by Push on a full queue with OverflowReject.
	ErrQueueFull = errors.New("admission queue is full")
	// ErrQueueClosed is returned once Close has been called.
	ErrQueueClosed = errors.New("admission queue is closed")
)

// RequestQueue holds admitted requests until the scheduler pops them. All
// mutation happens under one mutex; waiters park on a condition variable that
// is broadcast on push, pop, close and context cancellation.
type RequestQueue struct {
	mutex    sync.Mutex
	cond     *sync.Cond
	items    requestHeap
	seq      uint64
	closed   bool
	capacity int
	overflow Overflow

	lastPrintedSize int
}

// NewRequestQueue creates an empty queue ordered by opts.Policy.
func NewRequestQueue(opts Options) *RequestQueue {
	q := &RequestQueue{
		items:    requestHeap{policy: opts.Policy},
		capacity: opts.Capacity,
		overflow: opts.Overflow,
	}
	q.cond = sync.NewCond(&q.mutex)
	return q
}

// Policy returns the ordering policy fixed at construction.
func (q *RequestQueue) Policy() Policy {
	return q.items.policy
}

// wakeOnDone broadcasts the condition when ctx is cancelled so that waiters
// can observe ctx.Err. The returned function detaches the hook.
func (q *RequestQueue) wakeOnDone(ctx context.Context) func() bool {
	return context.AfterFunc(ctx, func() {
		q.mutex.Lock()
		q.cond.Broadcast()
		q.mutex.Unlock()
	})
}

// Push admits req. An unbounded queue never blocks and never drops. A bounded
// queue either rejects with ErrQueueFull or waits for space, depending on its
// overflow policy.
func (q *RequestQueue) Push(ctx context.Context, req *Request) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.capacity > 0 && q.items.Len() >= q.capacity && !q.closed {
		if q.overflow == OverflowReject {
			return ErrQueueFull
		}
		stop := q.wakeOnDone(ctx)
		defer stop()
		for q.items.Len() >= q.capacity && !q.closed {
			if err := ctx.Err(); err != nil {
				return err
			}
			q.cond.Wait()
		}
	}
	if q.closed {
		return ErrQueueClosed
	}

	q.seq++
	heap.Push(&q.items, entry{req: req, seq: q.seq})
	q.cond.Broadcast()
	return nil
}

// Pop removes and returns the best-ranked request, waiting while the queue is
// empty. It returns ErrQueueClosed after Close, or ctx.Err on cancellation.
func (q *RequestQueue) Pop(ctx context.Context) (*Request, error) {
	stop := q.wakeOnDone(ctx)
	defer stop()

	q.mutex.Lock()
	defer q.mutex.Unlock()
	for q.items.Len() == 0 {
		if q.closed {
			return nil, ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q.cond.Wait()
	}
	return q.popLocked(), nil
}

// TryPop removes and returns the best-ranked request, or reports false if the
// queue is empty.
func (q *RequestQueue) TryPop() (*Request, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.items.Len() == 0 {
		return nil, false
	}
	return q.popLocked(), true
}

func (q *RequestQueue) popLocked() *Request {
	e := heap.Pop(&q.items).(entry)
	// Room may have opened up for a blocked Push.
	q.cond.Broadcast()
	return e.req
}

// Len returns the number of queued requests.
func (q *RequestQueue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.items.Len()
}

// Close stops admission, wakes every waiter and hands back whatever was still
// queued, in policy order, so the caller can dispose of the connections.
func (q *RequestQueue) Close() []*Request {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.closed = true
	remaining := make([]*Request, 0, q.items.Len())
	for q.items.Len() > 0 {
		remaining = append(remaining, heap.Pop(&q.items).(entry).req)
	}
	q.cond.Broadcast()
	return remaining
}

// Monitor logs the queue size whenever it changes, at most once per interval,
// until ctx is done.
func (q *RequestQueue) Monitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			q.mutex.Lock()
			currentSize := q.items.Len()
			changed := currentSize != q.lastPrintedSize
			q.lastPrintedSize = currentSize
			q.mutex.Unlock()
			if changed {
				log.Debugf("Queue size: %d", currentSize)
			}
		case <-ctx.Done():
			return
		}
	}
}
