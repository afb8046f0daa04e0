// Package device implements the registration/gating boundary (spec
// §4.8, §6): opening the kernel-side character device, issuing the
// registration ioctl, and exposing enable/disable/is_*_enabled as a
// thin wrapper over package bundle's dynamic gate.
//
// Registration failures are routed through a circuit breaker
// (sony/gobreaker): spec §7 requires that a fatal KernelRegister error
// leave the core "inert" rather than retrying into a wedged kernel
// device on every subsequent attempt. The breaker trips open after
// repeated failures and short-circuits further ioctl attempts until its
// open timeout (see New) lets a single half-open probe through, which is
// this repo's idiomatic Go expression of "disables itself."
package device

import (
	"os"
	"time"
	"unsafe"

	"github.com/sony/gobreaker"
	"golang.org/x/sys/unix"

	"github.com/caladan-sched/lame/bundle"
	"github.com/caladan-sched/lame/config"
	"github.com/caladan-sched/lame/logging"
	"github.com/caladan-sched/lame/worker"
)

const devicePath = "/dev/lame"

// registerIoctl is the request number the kernel character device
// expects for registration (spec §6). The exact numeric encoding is
// the surrounding kernel module's contract; this value follows the
// standard Linux _IOW('L', 1, lameRegisterPayload) convention: type
// 'L' (0x4C), number 1, write direction, sized for the payload below.
const registerIoctl = 0x40104c01

// lameRegisterPayload is the wire struct the ioctl writes into the
// kernel (spec §6: "{present: 1, handler_addr: u64}"). Field order and
// size must match the kernel module's expected layout exactly.
type lameRegisterPayload struct {
	Present     uint32
	_           uint32 // padding to align HandlerAddr to 8 bytes
	HandlerAddr uint64
}

// Registrar owns the open device handle and the circuit breaker
// guarding it. A nil *os.File means registration was never attempted
// or the device could not be opened (not itself a KernelRegister
// error — GOARCH/platform absence is handled by the caller, see
// RequireAMD64).
type Registrar struct {
	file *os.File
	cb   *gobreaker.CircuitBreaker
	log  *logging.Logger
}

// New builds a Registrar with a breaker that opens after 3 consecutive
// registration failures and stays open for 30s before allowing a
// half-open probe.
func New() *Registrar {
	st := gobreaker.Settings{
		Name:        "lame-kernel-register",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &Registrar{
		cb:  gobreaker.NewCircuitBreaker(st),
		log: logging.Default("device"),
	}
}

// RequireAMD64 reports whether the current build can register at all:
// spec §4.5's production context switch only exists for amd64, and
// registering a handler whose switch primitive is a goroutine shim
// (package trapstub's generic fallback) would silently violate the
// "resume exactly where the frame left off" contract. Callers must
// check this before Register and treat false as RegisterNone.
func RequireAMD64(goarch string) bool { return goarch == "amd64" }

// Register opens the device (if not already open) and issues the
// registration ioctl for handlerAddr, gated by the circuit breaker. A
// failed open or ioctl surfaces as a logging.KernelRegister error; while
// the breaker is open, Register fails fast with gobreaker.ErrOpenState
// instead. Either way the caller (typically the calibration
// harness or a runtime bring-up path) must treat this as fatal for the
// core, per spec §7.
func (r *Registrar) Register(present bool, handlerAddr uintptr) error {
	_, err := r.cb.Execute(func() (interface{}, error) {
		if r.file == nil {
			f, openErr := os.OpenFile(devicePath, os.O_RDWR, 0)
			if openErr != nil {
				return nil, logging.Wrap(logging.KernelRegister, "device.Register: open", openErr)
			}
			r.file = f
		}

		payload := lameRegisterPayload{HandlerAddr: uint64(handlerAddr)}
		if present {
			payload.Present = 1
		}

		_, _, errno := unix.Syscall(
			unix.SYS_IOCTL,
			r.file.Fd(),
			uintptr(registerIoctl),
			uintptr(unsafe.Pointer(&payload)),
		)
		if errno != 0 {
			return nil, logging.Wrap(logging.KernelRegister, "device.Register: ioctl", errno)
		}
		return nil, nil
	})
	if err != nil {
		r.log.Error("kernel registration failed", logging.Err(err))
		return err
	}
	return nil
}

// Close releases the open device handle, if any.
func (r *Registrar) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// Enable and Disable flip a worker's dynamic bundle gate (spec §4.8);
// they never touch the kernel device, only this process's in-memory
// state.
func Enable(w *worker.Worker)  { bundle.Of(w).Enable() }
func Disable(w *worker.Worker) { bundle.Of(w).Disable() }

// IsStaticallyEnabled and IsDynamicallyEnabled report the two
// independent gates spec §4.8 describes: size > 1, and the runtime
// flag.
func IsStaticallyEnabled(w *worker.Worker) bool  { return bundle.Of(w).IsStaticallyEnabled() }
func IsDynamicallyEnabled(w *worker.Worker) bool { return bundle.Of(w).IsDynamicallyEnabled() }

// Active reports whether w is eligible to run its handler right now:
// both gates open and a RegisterMode that actually registers.
func Active(w *worker.Worker, mode config.RegisterMode) bool {
	if !IsStaticallyEnabled(w) || !IsDynamicallyEnabled(w) {
		return false
	}
	_, registers := mode.Variant()
	return registers
}
