package sched

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// currentWorkers maps a goroutine id to the Worker whose loop is running on
// it. Go has no first-class goroutine-local storage; this is the narrowest
// substitute available, used only to bias scheduling (DefaultSchedulerHint)
// and never for correctness. It is populated once per Worker goroutine at
// the top of its run loop and cleared on exit.
var currentWorkers sync.Map // goroutine id (uint64) -> *Worker

func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// "goroutine 123 [running]:\n..."
	b := buf[:n]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

func registerCurrentWorker(w *Worker) {
	currentWorkers.Store(goroutineID(), w)
}

func unregisterCurrentWorker() {
	currentWorkers.Delete(goroutineID())
}

// currentWorker returns the Worker owning the calling goroutine, if the
// calling goroutine is in fact a Worker's run loop.
func currentWorker() (*Worker, bool) {
	v, ok := currentWorkers.Load(goroutineID())
	if !ok {
		return nil, false
	}
	return v.(*Worker), true
}
