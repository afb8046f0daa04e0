package sched

import (
	"github.com/caladan-sched/lame/bundle"
	"github.com/caladan-sched/lame/runqueue"
	"github.com/caladan-sched/lame/worker"
)

// Dismantle empties w's bundle and returns every member to the ordinary
// run queue (spec §4.4): bundle.Drain first clears every occupied slot
// in index order and resets used and active to 0; then each drained
// thread, in that same order, is marked Ready (with a fresh ReadyTSC)
// and not Running, and pushed onto the run queue/overflow list. enabled
// is left untouched — dismantle is a run-time event, not a
// reconfiguration.
//
// Dismantle takes w.Lock itself; use DismantleNoLock when the caller
// already holds it (spec §5: "The worker-wide spinlock protects the
// run queue and overflow list").
func Dismantle(w *worker.Worker) {
	w.Lock.Lock()
	defer w.Lock.Unlock()
	dismantleLocked(w)
}

// DismantleNoLock runs the same spill routine as Dismantle but asserts
// w.Lock is already held by the caller instead of acquiring it itself
// (spec §4.4: "dismantle_nolock(worker): asserts the worker's lock is
// already held by the caller, then runs the spill routine"). Calling it
// without the lock held is a programmer error; TryLock succeeding means
// the caller did not actually hold it, which panics rather than silently
// running unprotected against the run queue.
func DismantleNoLock(w *worker.Worker) {
	if w.Lock.TryLock() {
		w.Lock.Unlock()
		panic("sched.DismantleNoLock: called without w.Lock held")
	}
	dismantleLocked(w)
}

func dismantleLocked(w *worker.Worker) {
	for _, thread := range bundle.Drain(w) {
		thread.Ready = true
		thread.Running = false
		thread.ReadyTSC = worker.Now()
		runqueue.Push(w, thread)
	}
}
