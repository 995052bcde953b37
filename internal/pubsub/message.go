// Package pubsub implements the type-indexed publish/subscribe fabric: a
// process-wide SubscriptionMap dispatching by (type, sub-id) channel to
// Node-local callbacks executed on a sched.JobRunner.
package pubsub

import "reflect"

// TypeTag uniquely identifies a concrete message type within the process.
type TypeTag struct {
	rt reflect.Type
}

// TagOf returns the stable TypeTag for T. Two distinct Go types always
// produce distinct tags, and the same T always produces the same tag.
func TagOf[T any]() TypeTag {
	return TypeTag{rt: reflect.TypeOf((*T)(nil)).Elem()}
}

func (t TypeTag) String() string {
	if t.rt == nil {
		return "<nil>"
	}
	return t.rt.String()
}

// Channel is the pair (TypeTag, sub_id) identifying a logical topic.
type Channel struct {
	Tag   TypeTag
	SubID uint64
}
