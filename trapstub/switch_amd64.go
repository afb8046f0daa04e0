//go:build amd64

package trapstub

// contextSwitch is implemented in switch_amd64.s. It saves the current
// callee-saved integer registers, the stack pointer, and a resume
// program counter into cur, then loads the same fields from next and
// jumps to next.PC — the production implementation of spec §4.5.
//
// The very first switch into a thread that has never run needs next.PC
// to point at a trampoline that sets up the thread's initial arguments
// before falling into its entry function; that trampoline is the
// surrounding runtime's concern (spec §6: thread frames are borrowed,
// the core never constructs one), not this package's.
func contextSwitch(cur, next *Frame)
