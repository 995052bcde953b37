package sched

import "sync/atomic"

// AliveToken is a shared, clonable handle. A job's "alive" period lasts
// until every clone of its token has been released, which lets a callback
// defer strand advancement (or any other completion signal) past the point
// where it hands work off to spawned jobs.
type AliveToken struct {
	state *aliveState
}

type aliveState struct {
	refs    atomic.Int64
	onZero  func()
	firedAt atomic.Bool
}

// NewAliveToken creates a token with one outstanding reference. onZero fires
// exactly once, when the reference count returns to zero.
func NewAliveToken(onZero func()) AliveToken {
	s := &aliveState{onZero: onZero}
	s.refs.Store(1)
	return AliveToken{state: s}
}

// Clone returns a new handle to the same underlying token, incrementing the
// reference count. The clone must be Released independently.
func (t AliveToken) Clone() AliveToken {
	t.state.refs.Add(1)
	return AliveToken{state: t.state}
}

// Release drops this handle's reference. When the last reference drops, the
// onZero callback passed to NewAliveToken fires.
func (t AliveToken) Release() {
	if t.state == nil {
		return
	}
	if t.state.refs.Add(-1) == 0 {
		if t.state.firedAt.CompareAndSwap(false, true) && t.state.onZero != nil {
			t.state.onZero()
		}
	}
}
