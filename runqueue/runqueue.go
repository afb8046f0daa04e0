// Package runqueue implements the dismantle path's target: the worker's
// ordinary circular run queue plus overflow list (spec §4.4, §6). It is
// adapted from the teacher's zero-copy SAB ring buffer
// (kernel/threads/foundation/message_queue.go): same atomic head/tail
// producer/consumer discipline, same "queue full -> spill to a side
// list" shape, but operating on in-process memory (a *worker.ThreadFrame
// slice) instead of a shared array buffer, since this core has no
// cross-process memory region to manage (spec §9: "no cyclic ownership").
package runqueue

import (
	"sync/atomic"

	"github.com/caladan-sched/lame/worker"
)

// Push offers thread back to w's run queue, following spec §4.4 step 2:
// if the ring would overflow or the overflow list already holds entries
// (so FIFO order is preserved — a fresh arrival must queue behind
// earlier overflow, not jump the ring), thread is appended to the
// overflow list and the overflow list is drained into the ring as far as
// there is room; otherwise thread is stored directly in the ring.
//
// Push must be called with w.Lock held (spec §5: "The worker-wide
// spinlock protects the run queue and overflow list").
func Push(w *worker.Worker, thread *worker.ThreadFrame) {
	head := atomic.LoadUint32(&w.RQHead)
	tail := atomic.LoadUint32(&w.RQTail)

	if head-tail >= worker.RunQueueCapacity || len(w.Overflow) > 0 {
		w.Overflow = append(w.Overflow, thread)
		drainOverflowLocked(w)
		return
	}

	wasEmpty := head == tail
	w.RQ[head%worker.RunQueueCapacity] = thread
	atomic.StoreUint32(&w.RQHead, head+1)
	if wasEmpty {
		w.QPtrs.OldestTSC = worker.Now()
	}
	w.QPtrs.RQHead = head + 1
}

// drainOverflowLocked moves entries from the front of the overflow list
// into the ring while there is room, preserving FIFO order: overflow
// entries arrived before whatever the dispatcher will pop next, so they
// must re-enter the ring ahead of any later Push.
func drainOverflowLocked(w *worker.Worker) {
	for len(w.Overflow) > 0 {
		head := atomic.LoadUint32(&w.RQHead)
		tail := atomic.LoadUint32(&w.RQTail)
		if head-tail >= worker.RunQueueCapacity {
			break
		}
		thread := w.Overflow[0]
		w.Overflow = w.Overflow[1:]

		wasEmpty := head == tail
		w.RQ[head%worker.RunQueueCapacity] = thread
		atomic.StoreUint32(&w.RQHead, head+1)
		if wasEmpty {
			w.QPtrs.OldestTSC = worker.Now()
		}
		w.QPtrs.RQHead = head + 1
	}
}

// Pop removes and returns the oldest ring entry for the runtime's
// dispatcher (the consumer side of spec §5's producer/consumer
// contract). It does not drain the overflow list — only Push does,
// since only the dismantle-path producer knows when ring space just
// opened up as a side effect of its own Push. It uses acquire/release
// ordering against Push as spec §5 requires.
func Pop(w *worker.Worker) (*worker.ThreadFrame, bool) {
	tail := atomic.LoadUint32(&w.RQTail)
	head := atomic.LoadUint32(&w.RQHead)
	if tail == head {
		return nil, false
	}
	thread := w.RQ[tail%worker.RunQueueCapacity]
	atomic.StoreUint32(&w.RQTail, tail+1)
	return thread, true
}

// Len reports how many entries currently sit in the ring (not counting
// the overflow list).
func Len(w *worker.Worker) uint32 {
	return atomic.LoadUint32(&w.RQHead) - atomic.LoadUint32(&w.RQTail)
}

// OverflowLen reports the overflow list length.
func OverflowLen(w *worker.Worker) int { return len(w.Overflow) }
