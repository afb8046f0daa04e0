package logging

import (
	"time"

	"github.com/yasserelgammal/rate-limiter/limiter"
	"github.com/yasserelgammal/rate-limiter/store"
)

// ThrottledLogger wraps a Logger with a token-bucket limiter keyed by an
// arbitrary string, so a hot path that would otherwise warn on every
// call (bundle.Add's AlreadyPresent case sits on the handler's caller
// path) logs at a bounded rate instead of flooding stderr under a
// misbehaving caller. Modeled on the surrounding runtime's gossip
// fanout limiter: same library, same Config/MemoryStore pairing,
// re-keyed from peer ID to log-site identity.
type ThrottledLogger struct {
	log     *Logger
	limiter *limiter.TokenBucket
}

// NewThrottledLogger builds a ThrottledLogger allowing up to burst
// warnings immediately, then refilling at ratePerSecond tokens/sec,
// per distinct key.
func NewThrottledLogger(log *Logger, ratePerSecond, burst int64) *ThrottledLogger {
	st := store.NewMemoryStore(time.Minute)
	tb, err := limiter.NewTokenBucket(
		limiter.Config{Rate: ratePerSecond, Duration: time.Second, Burst: burst},
		st,
	)
	if err != nil {
		// A malformed static Config is a programmer error, not a
		// runtime condition; fail loudly rather than silently log
		// unthrottled for the rest of the process's life.
		log.Fatal("logging: invalid rate limiter config", Err(err))
	}
	return &ThrottledLogger{log: log, limiter: tb}
}

// WarnLimited logs msg at WARN under key if the limiter for key still
// has budget; otherwise the call is a silent no-op.
func (t *ThrottledLogger) WarnLimited(key, msg string, fields ...Field) {
	if t.limiter.Allow(key) {
		t.log.Warn(msg, fields...)
	}
}
