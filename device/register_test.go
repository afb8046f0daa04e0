package device

import (
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caladan-sched/lame/bundle"
	"github.com/caladan-sched/lame/config"
	"github.com/caladan-sched/lame/logging"
	"github.com/caladan-sched/lame/worker"
)

func newTestWorker(t *testing.T, size uint32) *worker.Worker {
	t.Helper()
	w := &worker.Worker{ID: 1, Stats: &worker.Stats{}}
	require.NoError(t, bundle.Init(w, size))
	return w
}

func TestRegister_MissingDevice_ReturnsKernelRegisterError(t *testing.T) {
	r := New()
	err := r.Register(true, 0xdead)
	require.Error(t, err)
	kind, ok := logging.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, logging.KernelRegister, kind)
}

func TestRegister_TripsBreakerAfterConsecutiveFailures(t *testing.T) {
	r := New()
	for i := 0; i < 3; i++ {
		_ = r.Register(true, 0xdead)
	}
	// A fourth attempt, with the breaker now open, must fail fast
	// without attempting another open() — gobreaker surfaces its own
	// sentinel rather than a KernelRegister-wrapped one.
	err := r.Register(true, 0xdead)
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestRequireAMD64(t *testing.T) {
	assert.True(t, RequireAMD64("amd64"))
	assert.False(t, RequireAMD64("arm64"))
	assert.False(t, RequireAMD64("wasm"))
}

func TestEnableDisable_DelegatesToBundleGate(t *testing.T) {
	w := newTestWorker(t, 2)
	assert.False(t, IsDynamicallyEnabled(w))
	Enable(w)
	assert.True(t, IsDynamicallyEnabled(w))
	Disable(w)
	assert.False(t, IsDynamicallyEnabled(w))
}

func TestActive_RequiresBothGatesAndARegisteringMode(t *testing.T) {
	w := newTestWorker(t, 4)
	assert.False(t, Active(w, config.RegisterInt), "dynamic gate not yet enabled")

	Enable(w)
	assert.True(t, Active(w, config.RegisterInt))
	assert.False(t, Active(w, config.RegisterNone))

	w1 := newTestWorker(t, 1)
	Enable(w1)
	assert.False(t, Active(w1, config.RegisterInt), "statically disabled: size==1")
}
