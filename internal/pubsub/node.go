package pubsub

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/cyfitech/corebus/internal/sched"
)

// entry is the bookkeeping for one (node, channel) subscription. Exactly one
// of callback/aliveCallback is set — having both is the ambiguity the
// original design left unresolved, so this package refuses to register a
// second callback kind for an already-subscribed channel.
type entry struct {
	strand        *sched.Strand
	callback      func(any)
	aliveCallback func(any, sched.AliveToken)
}

// Node owns subscriptions and their callbacks/strands, and is bound (by a
// plain reference — this module has no use for the cycle-avoidance that
// motivated a weak pointer in the original) to a JobRunner.
type Node struct {
	id     string
	runner *sched.JobRunner

	mu   sync.Mutex
	subs map[Channel]*entry
}

// NewNode creates a node bound to runner.
func NewNode(runner *sched.JobRunner) *Node {
	return &Node{
		id:     uuid.NewString(),
		runner: runner,
		subs:   make(map[Channel]*entry),
	}
}

func (n *Node) ID() string { return n.id }

// Runner returns the JobRunner this node dispatches callbacks onto.
func (n *Node) Runner() *sched.JobRunner { return n.runner }

func (n *Node) register(ch Channel, e *entry) error {
	n.mu.Lock()
	if _, exists := n.subs[ch]; exists {
		n.mu.Unlock()
		return fmt.Errorf("pubsub: node %s already subscribed to channel %s/%d", n.id, ch.Tag, ch.SubID)
	}
	n.subs[ch] = e
	n.mu.Unlock()

	if !Subscribe(ch, n) {
		n.mu.Lock()
		delete(n.subs, ch)
		n.mu.Unlock()
		return fmt.Errorf("pubsub: duplicate subscribe for channel %s/%d", ch.Tag, ch.SubID)
	}
	return nil
}

// Subscribe registers callback for messages of type T on sub_id. strand, if
// non-nil, serializes invocations of this callback; otherwise the callback
// may run concurrently with other work on the node's runner.
func Subscribe[T any](n *Node, subID uint64, strand *sched.Strand, callback func(T)) error {
	ch := Channel{Tag: TagOf[T](), SubID: subID}
	return n.register(ch, &entry{
		strand: strand,
		callback: func(payload any) {
			callback(payload.(T))
		},
	})
}

// SubscribeWithAliveToken is the AliveToken-accepting callback variant: the
// callback is considered "alive" — and, on a strand, the next strand job
// withheld — until every clone of the token it receives has been released.
func SubscribeWithAliveToken[T any](n *Node, subID uint64, strand *sched.Strand, callback func(T, sched.AliveToken)) error {
	ch := Channel{Tag: TagOf[T](), SubID: subID}
	return n.register(ch, &entry{
		strand: strand,
		aliveCallback: func(payload any, tok sched.AliveToken) {
			callback(payload.(T), tok)
		},
	})
}

// SubscribeConcurrent registers callback with no strand when allowConcurrency
// is true, or a freshly created private strand otherwise.
func SubscribeConcurrent[T any](n *Node, subID uint64, allowConcurrency bool, callback func(T)) error {
	var strand *sched.Strand
	if !allowConcurrency {
		strand = n.runner.MakeStrand()
	}
	return Subscribe(n, subID, strand, callback)
}

// Publish stamps sub_id onto msg's channel and dispatches it through the
// global SubscriptionMap.
func Publish[T any](n *Node, subID uint64, msg T) {
	ch := Channel{Tag: TagOf[T](), SubID: subID}
	Dispatch(ch, msg)
}

// enqueue implements Subscriber: it looks up this node's entry for ch and
// hands it to the node's runner, through the entry's strand if any.
func (n *Node) enqueue(ch Channel, payload any) {
	n.mu.Lock()
	e, ok := n.subs[ch]
	n.mu.Unlock()
	if !ok {
		log.Printf("pubsub: node %s has no entry for channel %s/%d, dropping", n.id, ch.Tag, ch.SubID)
		return
	}

	if e.aliveCallback != nil {
		cb := e.aliveCallback
		if e.strand != nil {
			// AddAliveJob defers the strand's advance to the next pending job
			// until every clone of the token cb receives has been released,
			// without blocking the worker goroutine that runs cb.
			e.strand.AddAliveJob(func(tok sched.AliveToken) { cb(payload, tok) })
			return
		}
		// No strand: there is nothing to advance, so the token's onZero has
		// no work to do and the callback simply runs as its own job.
		n.runner.AddJobDefault(func() {
			tok := sched.NewAliveToken(nil)
			cb(payload, tok)
			tok.Release()
		})
		return
	}

	cb := e.callback
	job := func() { cb(payload) }
	if e.strand != nil {
		e.strand.AddJob(job)
		return
	}
	n.runner.AddJobDefault(job)
}

// Close unsubscribes this node from every channel it holds. Unsubscribe
// takes the SubscriptionMap's writer lock, which blocks until any
// in-flight Dispatch fan-out (holding the reader lock) has completed, so no
// new job is enqueued for this node once Close returns. Jobs already handed
// to the runner or a strand before that point are not cancelled and still
// invoke their callbacks.
func (n *Node) Close() {
	n.mu.Lock()
	channels := make([]Channel, 0, len(n.subs))
	for ch := range n.subs {
		channels = append(channels, ch)
	}
	n.subs = make(map[Channel]*entry)
	n.mu.Unlock()

	for _, ch := range channels {
		Unsubscribe(ch, n)
	}
}
