// Package sched implements the switching handler and its variants (spec
// §4.3, §4.6), and the dismantle path (spec §4.4): the code that runs
// when a worker's INT vector or PMU counter fires, picks the next
// bundle member, and hands control to it.
package sched

import (
	"fmt"

	"github.com/caladan-sched/lame/bundle"
	"github.com/caladan-sched/lame/logging"
	"github.com/caladan-sched/lame/trapstub"
	"github.com/caladan-sched/lame/worker"
	"github.com/caladan-sched/lame/xstate"
)

// Handler runs the eight-step switching algorithm (spec §4.3) for one
// worker. Switch, SaveExtended, and RestoreExtended are fields rather
// than package functions so tests can substitute fakes for the real
// assembly context switch and the real XSAVE/XRSTOR calls, neither of
// which a unit test can safely execute.
type Handler struct {
	// Bitmap gates extended-state save/restore (spec §4.7). Nil means
	// "no bitmap loaded," which conservatively always saves.
	Bitmap *xstate.Bitmap

	// Switch performs the frame-to-frame machine state exchange (spec
	// §4.5). Defaults to trapstub.Switch.
	Switch func(cur, next *trapstub.Frame)

	// SaveExtended and RestoreExtended perform the XSAVE/XRSTOR-style
	// extended state transfer for the named thread. Both are no-ops by
	// default: the real implementation is a raw, aligned-buffer
	// instruction sequence outside what this module can express
	// without the toolchain to verify it, per spec §9 ("raw assembly
	// trampolines" are the surrounding runtime's concern beyond the two
	// this module owns: Switch and the trap entry stub).
	SaveExtended    func(threadID uint64)
	RestoreExtended func(threadID uint64)

	// CurrentWorker, PreemptDisable, and PreemptEnable are the
	// surrounding runtime's per-core hooks (spec §6: "current_worker()"
	// and "a preemption disable/enable pair"). Handle uses CurrentWorker
	// to find which worker an interrupt landed on, and PreemptEnable to
	// re-arm preemption on every return path. Fields rather than package
	// functions for the same reason as Switch: a single process only
	// ever has one real runtime wired in, but tests need to substitute
	// one worker per case without a package-level global.
	CurrentWorker  func() *worker.Worker
	PreemptDisable func()
	PreemptEnable  func()

	// Cede and Yield are the PMU-return slow path's two outcomes (spec
	// §4.3, §6: "a cooperative-cede / yield pair for the slow return
	// path"). HandleBretSlowpath calls one or the other depending on
	// whether a CedeSignal has already fired.
	Cede  func()
	Yield func()

	log *logging.Logger
}

// NewHandler builds a Handler wired to the production context switch.
// CurrentWorker, the preemption pair, and Cede/Yield default to no-ops:
// a Handler used only through Run/RunVariant (as the calibration binary
// does) never needs them, and a real deployment overwrites them with
// the runtime's actual hooks before registering an EntryStub.
func NewHandler(bm *xstate.Bitmap) *Handler {
	return &Handler{
		Bitmap:          bm,
		Switch:          trapstub.Switch,
		SaveExtended:    func(uint64) {},
		RestoreExtended: func(uint64) {},
		CurrentWorker:   func() *worker.Worker { return nil },
		PreemptDisable:  func() {},
		PreemptEnable:   func() {},
		Cede:            func() {},
		Yield:           func() {},
		log:             logging.Default("sched"),
	}
}

// Run executes the switching handler for w (spec §4.3):
//
//  0. If the bundle is gated off — statically (size <= 1) or dynamically
//     (enabled == false) — there is nothing to do regardless of used;
//     the caller re-enables preemption and returns immediately (spec
//     §4.3, §8 scenario 6: "Gate off ... Expect no switch").
//  1. If used <= 1, there is nothing to switch to; same early return.
//  2. cur := bundle.Current(w). A nil cur while used > 0 is a Corruption
//     — the active slot must be occupied whenever anything is.
//  3. next := bundle.Next(w). A nil next while used > 1 is a Corruption
//     — the round-robin scan must find a second occupant. Next also
//     bumps total_lames and the chosen slot's lame_count.
//  4. w.SelfThread is updated to next, so the rest of the runtime sees
//     the new current thread before control actually transfers.
//  5. The static-site bitmap is consulted at cur's interrupted PC to
//     decide whether extended state needs saving (spec §4.7).
//  6. SaveExtended runs if needed, and the switch is counted in
//     total_xsave_lames.
//  7. trapstub.Switch performs the actual frame exchange.
//  8. On return — which only happens once some later switch resumes
//     this thread — the cycle counter is updated, and RestoreExtended
//     runs for this thread if the outbound save happened.
//
// A Corruption — either the active slot empty with used > 0, or the
// selector finding no second occupant with used > 1 — is not a
// recoverable condition: Run never returns it as a soft error. Spec §7
// is explicit that the handler "either switches, early-returns on gate
// checks, or aborts on corruption," so Run aborts the process instead
// (spec §8: "A fatal corruption aborts with a diagnostic identifying
// worker id and current/next thread pointers").
func (h *Handler) Run(w *worker.Worker) error {
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
	h.Switch(&cur.State, &next.State)
	b.AddCycles(worker.Now() - start)

	if needsXsave {
		h.RestoreExtended(cur.ID)
	}
	return nil
}

// abortCorruption logs the bundle invariant violation and then aborts
// the process, naming the worker id and the cur/next thread pointers
// that proved the invariant broken (spec §8). It never returns.
func (h *Handler) abortCorruption(w *worker.Worker, reason string, cur, next *worker.ThreadFrame) {
	if h.log != nil {
		h.log.Error("bundle invariant violated",
			logging.Int("worker", w.ID),
			logging.String("reason", reason),
			logging.Any("cur", cur),
			logging.Any("next", next),
		)
	}
	panic(fmt.Sprintf("sched: fatal bundle corruption on worker %d (%s): cur=%p next=%p", w.ID, reason, cur, next))
}

// Handle is the concrete lame_handle(pc) entry point named in spec §6:
// what a trap/signal/PMU-overflow stub (trapstub.EntryStub.Handle) calls
// once scratch registers are saved and preemption is already disabled
// (spec §4.3). It identifies the interrupted worker via CurrentWorker,
// records the interrupted PC onto the active slot's frame so the
// extended-state bitmap check inside Run reflects where the trap
// actually landed, runs the switching algorithm, and re-enables
// preemption before returning — covering both of spec §5's re-enable
// paths (the early gate-check return inside Run, and resuming through
// the stub once a switch completes) with the one call site this
// simulation has for both. If CurrentWorker reports no worker, Handle
// returns at once, without running Run or calling PreemptEnable.
func (h *Handler) Handle(pc uintptr) {
	w := h.CurrentWorker()
	if w == nil {
		return
	}

	if cur := bundle.Current(w); cur != nil {
		cur.State.PC = pc
	}

	if err := h.Run(w); err != nil {
		h.log.Error("lame_handle: Run failed", logging.Int("worker", w.ID), logging.Err(err))
	}

	h.PreemptEnable()
}

// NewEntryStub builds the trapstub.EntryStub bound to h.Handle, wiring
// this Handler into the low-level asynchronous entry/exit contract spec
// §4.3 describes (package trapstub's doc comment).
func (h *Handler) NewEntryStub() *trapstub.EntryStub {
	return &trapstub.EntryStub{Handle: h.Handle}
}

// HandleBretSlowpath is the PMU-return slow path spec §4.3/§6 name as
// lame_handle_bret_slowpath(): the surrounding runtime's custom "bret"
// return sequence falls into this once its own fast-path register pops
// are done. It checks decision to choose between a cooperative cede
// back into the bundle and the runtime's ordinary yield point, and
// brackets whichever one runs with an extended-state save/restore for
// the worker's current thread, since either a cede or a yield can block
// long enough for another trap to land mid-decision (spec §4.3: "for
// performing extended-state save/restore around that call").
func (h *Handler) HandleBretSlowpath(decision *CedeSignal) {
	w := h.CurrentWorker()
	if w == nil {
		return
	}

	var threadID uint64
	var pc uint64
	if cur := bundle.Current(w); cur != nil {
		threadID, pc = cur.ID, uint64(cur.State.PC)
	}

	needsXsave := h.Bitmap.NeedsXsave(pc)
	if needsXsave {
		h.SaveExtended(threadID)
	}

	if decision.Fired() {
		h.Cede()
	} else {
		h.Yield()
	}

	if needsXsave {
		h.RestoreExtended(threadID)
	}
}
