package sched

import (
	"time"

	"github.com/caladan-sched/lame/worker"
)

// Calibration is the measured round-trip overhead of one handler
// variant, mirroring the surrounding runtime's RuntimeCapabilities
// profile shape (a single struct of timing measurements returned by a
// Profile-style call) but scoped to the one thing spec §4.6 asks for:
// "a measurement baseline" to compare the switch, pretend, and stall
// variants against.
type Calibration struct {
	Variant  Variant
	Samples  int
	Mean     time.Duration
	Min      time.Duration
	Max      time.Duration
}

// Profile runs variant against w samples times (each iteration calling
// Handler.RunVariant) and reports the round-trip timing, the same way
// the surrounding runtime's native profiler measures compute overhead
// by running a fixed workload and timing it directly, rather than
// reading a hardware counter this module has no portable access to.
func (h *Handler) Profile(v Variant, w *worker.Worker, samples int, deadline uint64) (Calibration, error) {
	cal := Calibration{Variant: v, Samples: samples}
	if samples <= 0 {
		return cal, nil
	}

	var total time.Duration
	for i := 0; i < samples; i++ {
		start := time.Now()
		if err := h.RunVariant(v, w, deadline); err != nil {
			return cal, err
		}
		elapsed := time.Since(start)

		total += elapsed
		if i == 0 || elapsed < cal.Min {
			cal.Min = elapsed
		}
		if elapsed > cal.Max {
			cal.Max = elapsed
		}
	}
	cal.Mean = total / time.Duration(samples)
	return cal, nil
}
