// Package worker defines the surrounding runtime's per-CPU execution
// context and per-thread state, to the narrow extent the LAME scheduler
// core reads and writes them. Worker and ThreadFrame are owned by the
// surrounding M:N runtime (see spec §3, §6) — this package only models
// the fields the core touches; it is not a runtime.
package worker

import (
	"sync"
	"time"
)

// MachineState is the opaque callee-saved register block, program
// counter, and stack pointer that the context switch primitive
// exchanges (spec §4.5). Field order matches the byte offsets the amd64
// assembly in package trapstub reads and writes directly
// (SP=0, PC=8, BX=16, BP=24, R12=32, R13=40, R14=48, R15=56 on a
// pointer-sized-field ABI) — the scheduler core itself never interprets
// these values, it only copies the struct.
type MachineState struct {
	SP  uintptr
	PC  uintptr
	BX  uintptr
	BP  uintptr
	R12 uintptr
	R13 uintptr
	R14 uintptr
	R15 uintptr
}

// ThreadFrame is a borrowed reference to one user thread's execution
// state (spec §3). The bundle never frees it; ownership returns to the
// runtime's run queue on dismantle (spec §4.4, §9).
type ThreadFrame struct {
	ID uint64

	// Ready is true once the thread is eligible for dispatch by the
	// runtime's ordinary scheduler (set by dismantle).
	Ready bool
	// Running is true while some worker is executing this thread.
	Running bool
	// ReadyTSC is the timestamp cycle count at which Ready was last set.
	ReadyTSC uint64

	// Link is an intrusive linkage node. Package runqueue keeps its ring
	// and overflow list as slices and does not use it.
	Link *ThreadFrame

	// State is the callee-saved machine state exchanged by the context
	// switch primitive.
	State MachineState
}

// RunQueueCapacity is the fixed capacity R of a worker's circular run
// queue (spec §4.4).
const RunQueueCapacity = 256

// Worker is a per-CPU execution context owned by the surrounding M:N
// runtime. The LAME core only reads/writes the fields named in spec §3,
// §6: Lock, the run queue ring and overflow list, QPtrs, and the
// embedded Bundle. Bundle itself lives in package bundle to avoid an
// import cycle; it is embedded here as an opaque pointer the bundle
// package type-asserts, following the same borrowed-reference discipline
// as ThreadFrame.
type Worker struct {
	ID int

	// Lock protects RQ, RQHead, RQTail, and Overflow. Bundle membership
	// operations do not need it (spec §5): they only ever run on this
	// worker's own execution context with preemption disabled during
	// the handler.
	Lock sync.Mutex

	RQ      [RunQueueCapacity]*ThreadFrame
	RQHead  uint32 // atomic: producer-owned (this worker's dismantle path)
	RQTail  uint32 // atomic: consumer-owned (the runtime's dispatcher)
	Overflow []*ThreadFrame

	QPtrs struct {
		RQHead    uint32
		OldestTSC uint64
	}

	// SelfThread is the "currently executing thread" pointer the
	// handler updates on every switch (spec §6, §9: per-worker
	// thread-local state).
	SelfThread *ThreadFrame

	// Bundle is opaque here (type *bundle.Bundle in practice) to avoid
	// worker importing bundle while bundle imports worker for Worker
	// and ThreadFrame. Scheduler-facing code type-asserts this via
	// bundle.Of(w).
	Bundle interface{}

	// Stats is a per-worker counter block. The handler and dismantle
	// path do not update it: their counters live in the Bundle and are
	// read through bundle.Aggregate.
	Stats *Stats
}

// Stats holds per-worker LAME counters. No code in this module reads or
// writes them.
type Stats struct {
	TotalCycles     uint64
	TotalLames      uint64
	TotalXsaveLames uint64
	TotalSkipped    uint64
}

// Now returns a monotonic cycle-ish timestamp. The real runtime reads the
// TSC directly (spec §6: "a TSC reader"); this wall-clock nanosecond
// count stands in for it so the core has no unsafe/asm dependency beyond
// package trapstub.
func Now() uint64 { return uint64(time.Now().UnixNano()) }
