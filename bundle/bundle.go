// Package bundle implements the per-worker bundle store: a fixed-capacity
// ordered set of user threads co-resident on one CPU worker, and the
// membership operations spec §4.1 names. A Bundle is owned by exactly
// one worker for that worker's lifetime (spec §3).
package bundle

import (
	"github.com/caladan-sched/lame/logging"
	"github.com/caladan-sched/lame/worker"
)

// Capacity is the compile-time maximum C of bundle slots (spec §3: "a
// fixed-capacity ordered array of slot records, with compile-time
// maximum C (typically 8)").
const Capacity = 8

// Slot is one cell of the bundle: either empty, or holding a borrowed
// reference to a thread frame plus its per-slot counters (spec §3).
type Slot struct {
	Thread    *worker.ThreadFrame
	Present   bool
	Cycles    uint64
	LameCount uint64
}

// Bundle is the per-worker scheduling set (spec §3).
type Bundle struct {
	slots [Capacity]Slot

	size   uint32 // effective S, 1 <= size <= Capacity
	used   uint32 // count of occupied slots, used <= size
	active uint32 // index of the currently running member, active < size

	enabled bool // dynamic gate (spec §4.8)

	totalCycles     uint64
	totalLames      uint64
	totalXsaveLames uint64

	log   *logging.Logger
	warns *logging.ThrottledLogger
}

// addWarnRate and addWarnBurst bound how often a bundle logs
// AlreadyPresent at WARN: a caller that repeatedly re-adds the same
// thread on a hot path must not be able to flood stderr.
const (
	addWarnRate  = 1
	addWarnBurst = 3
)

func newBundle() *Bundle {
	log := logging.Default("bundle")
	return &Bundle{log: log, warns: logging.NewThrottledLogger(log, addWarnRate, addWarnBurst)}
}

// Of returns the Bundle embedded in w, creating and attaching one on
// first use. Workers are constructed by the surrounding runtime (spec
// §3: "created when its worker is created"); this lazily performs that
// attach so package worker need not import package bundle.
func Of(w *worker.Worker) *Bundle {
	if w.Bundle == nil {
		w.Bundle = newBundle()
	}
	return w.Bundle.(*Bundle)
}

// Init configures the bundle with effective size, per spec §4.1. It
// zeroes all slots and resets used/active/enabled/counters.
func Init(w *worker.Worker, size uint32) error {
	if size == 0 || size > Capacity {
		return logging.New(logging.InvalidConfig, "bundle.Init")
	}
	b := Of(w)
	*b = Bundle{size: size, log: b.log, warns: b.warns}
	return nil
}

// Cleanup is Init with size 0, disabling the bundle (spec §4.1).
func Cleanup(w *worker.Worker) {
	b := Of(w)
	*b = Bundle{log: b.log, warns: b.warns}
}

// Size returns the effective configured size S.
func (b *Bundle) Size() uint32 { return b.size }

// UsedCount returns the number of occupied slots (spec §4.1 used_count).
func (b *Bundle) UsedCount() uint32 { return b.used }

// Active returns the index of the currently running member.
func (b *Bundle) Active() uint32 { return b.active }

// IsStaticallyEnabled reports size > 1 (spec §3, §4.8).
func (b *Bundle) IsStaticallyEnabled() bool { return b.size > 1 }

// IsDynamicallyEnabled reports the runtime gate flag (spec §4.8).
func (b *Bundle) IsDynamicallyEnabled() bool { return b.enabled }

// Enable and Disable flip the dynamic gate. Both are idempotent (spec
// §8: "Repeated enable (or disable) is idempotent").
func (b *Bundle) Enable()  { b.enabled = true }
func (b *Bundle) Disable() { b.enabled = false }

// Add places thread into the first empty slot (spec §4.1). If thread is
// already present, it returns AlreadyPresent as a non-error result (the
// caller gets a nil error and AlreadyPresent==true) per spec §7: reported
// as success, logged at warn.
func Add(w *worker.Worker, thread *worker.ThreadFrame, setActive bool) (alreadyPresent bool, err error) {
	b := Of(w)
	for i := uint32(0); i < b.size; i++ {
		if b.slots[i].Present && b.slots[i].Thread == thread {
			b.warns.WarnLimited("add-already-present", "bundle: add of already-present thread", logging.Uint64("thread", thread.ID))
			return true, nil
		}
	}
	for i := uint32(0); i < b.size; i++ {
		if !b.slots[i].Present {
			b.slots[i] = Slot{Thread: thread, Present: true}
			b.used++
			if setActive {
				b.active = i
			}
			return false, nil
		}
	}
	return false, logging.New(logging.NoSpace, "bundle.Add")
}

// Remove clears the first occupied slot holding thread (spec §4.1).
func Remove(w *worker.Worker, thread *worker.ThreadFrame) error {
	b := Of(w)
	for i := uint32(0); i < b.size; i++ {
		if b.slots[i].Present && b.slots[i].Thread == thread {
			b.clearSlot(i)
			return nil
		}
	}
	return logging.New(logging.NotFound, "bundle.Remove")
}

// RemoveByIndex clears slot i (spec §4.1 remove_by_index).
func RemoveByIndex(w *worker.Worker, i uint32) error {
	b := Of(w)
	if i >= b.size {
		return logging.New(logging.InvalidIndex, "bundle.RemoveByIndex")
	}
	if !b.slots[i].Present {
		return logging.New(logging.NotFound, "bundle.RemoveByIndex")
	}
	b.clearSlot(i)
	return nil
}

// RemoveAtActive clears the slot at the current active index (spec §4.1
// remove_at_active).
func RemoveAtActive(w *worker.Worker) error {
	b := Of(w)
	if !b.slots[b.active].Present {
		return logging.New(logging.NotFound, "bundle.RemoveAtActive")
	}
	b.clearSlot(b.active)
	return nil
}

// UsedCount returns b.used (spec §4.1 used_count, package-level form).
func UsedCount(w *worker.Worker) uint32 { return Of(w).UsedCount() }

// Drain empties every occupied slot in index order and returns the
// threads that were present, for the dismantle path (spec §4.4): the
// caller owns handing each one back to the run queue. used and active
// are reset to 0; enabled is left untouched, since dismantle is a
// run-time event, not a reconfiguration (spec §4.4: "without touching
// enabled").
func Drain(w *worker.Worker) []*worker.ThreadFrame {
	b := Of(w)
	threads := make([]*worker.ThreadFrame, 0, b.used)
	for i := uint32(0); i < b.size; i++ {
		if b.slots[i].Present {
			threads = append(threads, b.slots[i].Thread)
			b.slots[i] = Slot{}
		}
	}
	b.used = 0
	b.active = 0
	return threads
}

// SetReadyFalseAll clears Ready on every occupied slot's thread (spec
// §6: bundle_set_ready_false_all). Used when the runtime is handing a
// bundle to a worker and none of its members are eligible for the
// ordinary run queue's dispatch while they're co-resident here.
func SetReadyFalseAll(w *worker.Worker) {
	b := Of(w)
	for i := uint32(0); i < b.size; i++ {
		if b.slots[i].Present {
			b.slots[i].Thread.Ready = false
		}
	}
}

// SetRunningTrueAll marks every occupied slot's thread Running (spec
// §6: bundle_set_running_true_all). Used once a worker starts
// dispatching its bundle, since every resident member is considered
// "running" on this worker even while only one of them actually holds
// the CPU at a time.
func SetRunningTrueAll(w *worker.Worker) {
	b := Of(w)
	for i := uint32(0); i < b.size; i++ {
		if b.slots[i].Present {
			b.slots[i].Thread.Running = true
		}
	}
}

func (b *Bundle) clearSlot(i uint32) {
	b.slots[i] = Slot{}
	b.used--
}
