// Package clock exposes the Clock capability consumed by the scheduler and
// recorder: monotonic and wall-clock nanosecond readers. Clock/time failures
// are treated as impossible per the error-handling design, so this package
// never returns an error.
package clock

import "time"

// Clock is the capability surface consumed by RecordKey.Make and the
// Replayer's pacing loop.
type Clock interface {
	NowMonotonicNS() int64
	NowUnixNS() int64
}

// System is the real wall-clock/monotonic Clock backed by the Go runtime.
type System struct{}

// monotonicEpoch anchors NowMonotonicNS so it stays comparable across calls
// within a process without depending on wall-clock adjustments.
var monotonicEpoch = time.Now()

func (System) NowMonotonicNS() int64 {
	return time.Since(monotonicEpoch).Nanoseconds()
}

func (System) NowUnixNS() int64 {
	return time.Now().UnixNano()
}

// Default is the process-wide System clock instance.
var Default Clock = System{}
