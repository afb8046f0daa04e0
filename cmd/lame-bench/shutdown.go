package main

import (
	"context"
	"sync"
	"time"

	"github.com/caladan-sched/lame/logging"
)

// gracefulShutdown runs registered stop functions in LIFO order when
// asked to shut down, bounded by a timeout. Adapted from the
// surrounding runtime's component-shutdown manager, trimmed to this
// binary's single use: stopping an in-flight calibration run cleanly
// on SIGINT instead of an arbitrary set of long-lived services.
type gracefulShutdown struct {
	mu      sync.Mutex
	stopFns []func()
	timeout time.Duration
	log     *logging.Logger
}

func newGracefulShutdown(timeout time.Duration) *gracefulShutdown {
	return &gracefulShutdown{timeout: timeout, log: logging.Default("lame-bench")}
}

func (g *gracefulShutdown) register(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopFns = append(g.stopFns, fn)
}

func (g *gracefulShutdown) shutdown(ctx context.Context) {
	g.mu.Lock()
	fns := append([]func(){}, g.stopFns...)
	g.mu.Unlock()

	g.log.Info("shutting down", logging.Int("components", len(fns)))

	shutdownCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
		close(done)
	}()

	select {
	case <-done:
		g.log.Info("shutdown complete")
	case <-shutdownCtx.Done():
		g.log.Warn("shutdown timed out")
	}
}
