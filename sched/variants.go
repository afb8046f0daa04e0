package sched

import (
	"github.com/caladan-sched/lame/bundle"
	"github.com/caladan-sched/lame/worker"
)

// Variant selects which of the four handler behaviors a worker runs on
// every INT/PMU delivery (spec §4.6). In a deployment one variant is
// active per worker, derived from the registration mode by
// config.RegisterMode.Variant; the calibration binary (cmd/lame-bench)
// instead runs each variant in turn against the same worker.
type Variant int

const (
	// VariantSwitch is the production handler: Handler.Run in full.
	VariantSwitch Variant = iota
	// VariantPretend performs every step of Handler.Run except the
	// actual trapstub.Switch call, to calibrate the handler's
	// bookkeeping overhead independent of the real context switch cost
	// (spec §4.6: "to calibrate overhead").
	VariantPretend
	// VariantStall busy-waits until a fixed TSC deadline instead of
	// switching, giving a measurement baseline for "time spent not
	// running anything" (spec §4.6).
	VariantStall
	// VariantNoop returns immediately without touching the bundle,
	// for isolating delivery overhead from handler overhead.
	VariantNoop
)

func (v Variant) String() string {
	switch v {
	case VariantSwitch:
		return "switch"
	case VariantPretend:
		return "pretend"
	case VariantStall:
		return "stall"
	case VariantNoop:
		return "noop"
	default:
		return "unknown"
	}
}

// RunVariant dispatches to the behavior named by v. deadline is only consulted
// by VariantStall; it is a worker.Now()-scale cycle count to stall
// until.
func (h *Handler) RunVariant(v Variant, w *worker.Worker, deadline uint64) error {
	switch v {
	case VariantSwitch:
		return h.Run(w)
	case VariantPretend:
		return h.runPretend(w)
	case VariantStall:
		runStall(deadline)
		return nil
	case VariantNoop:
		return nil
	default:
		return nil
	}
}

// runPretend mirrors Handler.Run's gate check, bundle-selection, and
// extended-state bookkeeping but substitutes a no-op for the real frame
// exchange, so the cycles measured are the handler's own overhead
// rather than the underlying context switch (spec §4.6). Like Run, it
// never returns Corruption as a soft error — it aborts (spec §7).
func (h *Handler) runPretend(w *worker.Worker) error {
	b := bundle.Of(w)
	if !b.IsStaticallyEnabled() || !b.IsDynamicallyEnabled() {
		return nil
	}
	if b.UsedCount() <= 1 {
		return nil
	}

	cur := bundle.Current(w)
	if cur == nil {
		h.abortCorruption(w, "active slot empty with used>0", nil, nil)
	}
	next := bundle.Next(w)
	if next == nil {
		h.abortCorruption(w, "selector found no second occupant with used>1", cur, nil)
	}

	w.SelfThread = next

	needsXsave := h.Bitmap.NeedsXsave(uint64(cur.State.PC))
	if needsXsave {
		h.SaveExtended(cur.ID)
		b.AddXsaveLame()
	}

	start := worker.Now()
	// Deliberately no trapstub.Switch call: the state exchange itself
	// is the thing being excluded from this measurement.
	b.AddCycles(worker.Now() - start)

	if needsXsave {
		h.RestoreExtended(cur.ID)
	}
	return nil
}

// runStall busy-waits until worker.Now() reaches deadline. A deadline
// at or before the current reading returns immediately.
func runStall(deadline uint64) {
	for worker.Now() < deadline {
	}
}
