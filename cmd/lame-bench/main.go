// Command lame-bench measures per-variant switching overhead for the
// LAME scheduler core (spec §4.6: "to calibrate overhead" /
// "measurement baseline"). It builds one worker with a synthetic
// bundle, runs each handler variant for a fixed sample count, and
// prints the resulting timing table.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caladan-sched/lame/bundle"
	"github.com/caladan-sched/lame/logging"
	"github.com/caladan-sched/lame/sched"
	"github.com/caladan-sched/lame/worker"
	"github.com/caladan-sched/lame/xstate"
)

func main() {
	bundleSize := flag.Uint("bundle-size", 4, "number of synthetic threads in the calibration bundle")
	samples := flag.Int("samples", 10000, "samples per variant")
	bitmapFile := flag.String("bitmap-file", "", "optional static-site bitmap sidecar file (spec §4.7); empty means no bitmap, always-save")
	bitmapPgsz := flag.Int("bitmap-pgsz-factor", 12, "bitmap page size exponent (log2 bytes per page); only used with -bitmap-file")
	textStart := flag.Uint64("text-start", 0, "main executable text segment start, for -bitmap-file")
	textEnd := flag.Uint64("text-end", 1<<32, "main executable text segment end, for -bitmap-file")
	os.Exit(run(uint32(*bundleSize), *samples, *bitmapFile, *bitmapPgsz, *textStart, *textEnd))
}

func run(bundleSize uint32, samples int, bitmapFile string, bitmapPgsz int, textStart, textEnd uint64) int {
	log := logging.Default("lame-bench")

	w := &worker.Worker{ID: 0, Stats: &worker.Stats{}}
	if err := bundle.Init(w, bundleSize); err != nil {
		log.Error("bundle.Init failed", logging.Err(err))
		return 1
	}
	for i := uint32(0); i < bundleSize; i++ {
		if _, err := bundle.Add(w, &worker.ThreadFrame{ID: uint64(i)}, i == 0); err != nil {
			log.Error("bundle.Add failed", logging.Err(err))
			return 1
		}
	}
	bundle.Of(w).Enable()
	// Formation semantics (spec §6): once threads are co-resident in the
	// bundle they're no longer eligible for the ordinary run queue, and
	// this worker now considers all of them running.
	bundle.SetReadyFalseAll(w)
	bundle.SetRunningTrueAll(w)

	var bm *xstate.Bitmap
	if bitmapFile != "" {
		ranges, err := xstate.LoadFile(bitmapFile)
		if err != nil {
			log.Error("xstate.LoadFile failed", logging.Err(err))
			return 1
		}
		bm = xstate.New(textStart, textEnd, uint(bitmapPgsz), ranges)
		log.Info("loaded static-site bitmap", logging.String("file", bitmapFile), logging.Int("ranges", len(ranges)))
	}

	h := sched.NewHandler(bm)
	h.Switch = func(cur, next *worker.MachineState) {}
	h.SaveExtended = func(uint64) {}
	h.RestoreExtended = func(uint64) {}

	shutdown := newGracefulShutdown(5 * time.Second)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	stopped := false
	shutdown.register(func() { stopped = true })

	variants := []sched.Variant{sched.VariantNoop, sched.VariantStall, sched.VariantPretend, sched.VariantSwitch}
	fmt.Printf("%-10s %8s %12s %12s %12s\n", "variant", "samples", "mean", "min", "max")

	for _, v := range variants {
		if ctx.Err() != nil || stopped {
			break
		}
		deadline := worker.Now() // VariantStall returns immediately in this harness
		cal, err := h.Profile(v, w, samples, deadline)
		if err != nil {
			log.Error("profile failed", logging.String("variant", v.String()), logging.Err(err))
			return 1
		}
		fmt.Printf("%-10s %8d %12s %12s %12s\n", v.String(), cal.Samples, cal.Mean, cal.Min, cal.Max)
	}

	shutdown.shutdown(context.Background())
	return 0
}
