// Package trapstub implements the two architecture-specific primitives
// named in spec §4.5 and §9 ("Raw assembly trampolines"): the
// frame-to-frame context switch, and the low-level asynchronous entry
// stub contract that a trap/signal/PMU-overflow delivery calls into.
//
// Following the teacher's native/wasm build-tag split
// (kernel/runtime/profiler_native.go vs profiler_wasm.go), the real
// register-save/restore implementation lives behind a GOARCH=amd64
// build tag in assembly (switch_amd64.s); every other architecture gets
// a portable goroutine-based fallback (switch_generic.go) so the rest of
// the module builds and its tests run anywhere, with the explicit
// understanding that only the amd64 path is production-accurate: a
// goroutine hand-off is not a frame-to-frame switch, it cannot preserve
// the "entered with volatile registers already saved" contract, and it
// is documented as a development/testing shim, not a second production
// backend.
package trapstub

import "github.com/caladan-sched/lame/worker"

// Frame is the callee-saved machine state exchanged by Switch. It is the
// same layout as worker.MachineState; the alias keeps this package's
// public surface self-describing without introducing a second type.
type Frame = worker.MachineState

// Switch exchanges the machine state described by cur and next (spec
// §4.5): cur is written with the caller's callee-saved registers and
// stack pointer before the routine loads next's; control later resumes
// at the point captured in next. Switch never touches extended
// (floating/vector) state — that is the handler's responsibility (spec
// §4.3 step 6), gated by package xstate.
//
// Switch does not return to its caller in the usual sense: by the time
// it "returns," some other call to Switch (from the thread that used to
// be `next`) has restored cur and resumed this goroutine/thread at this
// call site.
func Switch(cur, next *Frame) {
	contextSwitch(cur, next)
}

// EntryStub is the contract a low-level trap/signal/PMU-overflow stub
// must satisfy (spec §4.3): volatile integer registers are saved and
// preemption is disabled before Handle is invoked; Handle returns by
// resuming the new member, so EntryStub's own restore-and-return code
// only ever executes again for the thread that becomes active next.
type EntryStub struct {
	// Handle is called on the interrupted thread's stack once scratch
	// registers are saved and preemption is off.
	Handle func(pc uintptr)
}
