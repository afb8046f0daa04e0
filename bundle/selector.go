package bundle

import "github.com/caladan-sched/lame/worker"

// Next implements the round-robin selector (spec §4.2): starting at
// (active+1) mod size, scans forward up to size positions for the first
// occupied slot, advances active to *that* slot (per spec §9's Open
// Questions: this repo picks "advance to the returned slot," the latest
// source variant, over the alternate "advance to returned+1" variant),
// bumps total_lames and the slot's lame_count, and returns the thread.
// Returns nil if the bundle is empty.
func Next(w *worker.Worker) *worker.ThreadFrame {
	b := Of(w)
	if b.used == 0 || b.size == 0 {
		return nil
	}
	start := (b.active + 1) % b.size
	for off := uint32(0); off < b.size; off++ {
		i := (start + off) % b.size
		if b.slots[i].Present {
			b.active = i
			b.totalLames++
			b.slots[i].LameCount++
			return b.slots[i].Thread
		}
	}
	return nil
}

// Current returns the thread occupying the active slot, or nil if that
// slot is empty (spec §4.2 current).
func Current(w *worker.Worker) *worker.ThreadFrame {
	b := Of(w)
	if b.size == 0 || !b.slots[b.active].Present {
		return nil
	}
	return b.slots[b.active].Thread
}

// NextFast is the optimised rotation that assumes occupied slots are
// packed into [0, used) and advances active = (active+1) mod used (spec
// §4.2). It is only safe when the caller maintains that packing
// invariant; Add/Remove in this package do not maintain it (Remove can
// open a hole before later slots), so this repo's handler path uses Next
// everywhere and leaves NextFast for callers that pack membership
// themselves, e.g. by only ever removing the highest-index occupant.
func NextFast(w *worker.Worker) *worker.ThreadFrame {
	b := Of(w)
	if b.used == 0 {
		return nil
	}
	b.active = (b.active + 1) % b.used
	if !b.slots[b.active].Present {
		return nil
	}
	b.totalLames++
	b.slots[b.active].LameCount++
	return b.slots[b.active].Thread
}

// TotalLames returns the monotonic switch counter.
func (b *Bundle) TotalLames() uint64 { return b.totalLames }

// TotalCycles returns the monotonic cycle counter accumulated by the
// handler across all switches on this worker.
func (b *Bundle) TotalCycles() uint64 { return b.totalCycles }

// TotalXsaveLames returns the count of switches that performed an
// extended-state save (spec §4.7).
func (b *Bundle) TotalXsaveLames() uint64 { return b.totalXsaveLames }

// AddCycles accumulates cycles spent in one switch; called by the
// handler after a context switch completes.
func (b *Bundle) AddCycles(c uint64) { b.totalCycles += c }

// AddXsaveLame marks one switch as having performed an extended-state
// save.
func (b *Bundle) AddXsaveLame() { b.totalXsaveLames++ }
