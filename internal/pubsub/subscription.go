package pubsub

import (
	"log"
	"sync"
	"time"
)

// Subscriber is the minimal surface SubscriptionMap needs from a Node: an
// identity for duplicate detection and a way to hand it a payload to
// enqueue on its own runner/strand.
type Subscriber interface {
	ID() string
	enqueue(ch Channel, payload any)
}

// subscriptionMap is the process-wide (type, sub-id) -> subscriber registry.
// dispatch takes the reader lock for the duration of fan-out; subscribe and
// unsubscribe take the writer lock, so unsubscribe blocks until any
// in-flight dispatch has finished fanning out.
type subscriptionMap struct {
	mu      sync.RWMutex
	subs    map[Channel][]Subscriber
	latest  map[Channel]int64
}

var global = &subscriptionMap{
	subs:   make(map[Channel][]Subscriber),
	latest: make(map[Channel]int64),
}

// Subscribe appends node to the channel's subscriber list if not already
// present. Returns false on duplicate.
func Subscribe(ch Channel, s Subscriber) bool {
	global.mu.Lock()
	defer global.mu.Unlock()

	for _, existing := range global.subs[ch] {
		if existing.ID() == s.ID() {
			return false
		}
	}
	global.subs[ch] = append(global.subs[ch], s)
	return true
}

// Unsubscribe removes node from the channel. A miss is logged, not an
// error.
func Unsubscribe(ch Channel, s Subscriber) {
	global.mu.Lock()
	defer global.mu.Unlock()

	list := global.subs[ch]
	for i, existing := range list {
		if existing.ID() == s.ID() {
			global.subs[ch] = append(list[:i], list[i+1:]...)
			return
		}
	}
	log.Printf("pubsub: unsubscribe miss for channel %s/%d node %s", ch.Tag, ch.SubID, s.ID())
}

// Dispatch looks up the channel's subscriber list under the reader lock and
// asks each one to enqueue a job invoking its callback with payload. An
// unknown channel is silently a no-op.
func Dispatch(ch Channel, payload any) {
	global.mu.RLock()
	list := global.subs[ch]
	for _, s := range list {
		s.enqueue(ch, payload)
	}
	global.mu.RUnlock()

	global.mu.Lock()
	global.latest[ch] = time.Now().UnixNano()
	global.mu.Unlock()
}

// LatestDeliveredTime returns the last dispatch time for ch in unix
// nanoseconds, or 0 if nothing was ever dispatched on it.
func LatestDeliveredTime(ch Channel) int64 {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.latest[ch]
}
