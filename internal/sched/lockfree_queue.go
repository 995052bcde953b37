package sched

import "sync/atomic"

// LockFreeJobQueue is a Michael-Scott style MPMC queue: Push and ConsumeOne
// both proceed via CAS loops with no mutex, so a worker's own ConsumeOne and
// another worker's steal can race on the same node without blocking either.
//
// The pack this module was grown from has no lock-free data structure to
// ground this on; it is written directly against the well-known
// Michael & Scott (1996) queue algorithm using Go's atomic.Pointer, which is
// the idiomatic Go substitute for the hazard-pointer-free CAS queue the
// original scheduler used.
type LockFreeJobQueue struct {
	head atomic.Pointer[lfNode]
	tail atomic.Pointer[lfNode]
}

type lfNode struct {
	job  Job
	next atomic.Pointer[lfNode]
}

// NewLockFreeJobQueue returns an empty lock-free queue.
func NewLockFreeJobQueue() *LockFreeJobQueue {
	dummy := &lfNode{}
	q := &LockFreeJobQueue{}
	q.head.Store(dummy)
	q.tail.Store(dummy)
	return q
}

func (q *LockFreeJobQueue) Push(j Job) {
	n := &lfNode{job: j}
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if tail != q.tail.Load() {
			continue
		}
		if next != nil {
			// Tail lagging behind; help advance it and retry.
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		if tail.next.CompareAndSwap(nil, n) {
			q.tail.CompareAndSwap(tail, n)
			return
		}
	}
}

func (q *LockFreeJobQueue) PushBatch(jobs []Job) {
	for _, j := range jobs {
		q.Push(j)
	}
}

func (q *LockFreeJobQueue) ConsumeOne(f func(Job)) bool {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := head.next.Load()
		if head != q.head.Load() {
			continue
		}
		if head == tail {
			if next == nil {
				return false
			}
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		job := next.job
		if q.head.CompareAndSwap(head, next) {
			f(job)
			return true
		}
	}
}

func (q *LockFreeJobQueue) ConsumeAll(f func(Job)) bool {
	ran := false
	for q.ConsumeOne(f) {
		ran = true
	}
	return ran
}

func (q *LockFreeJobQueue) Empty() bool {
	head := q.head.Load()
	return head.next.Load() == nil
}
