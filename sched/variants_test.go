package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caladan-sched/lame/bundle"
	"github.com/caladan-sched/lame/worker"
)

func TestRunVariant_Noop_NeverTouchesBundle(t *testing.T) {
	w := newTestWorker(t, 4)
	a, b := thread(1), thread(2)
	_, _ = bundle.Add(w, a, true)
	_, _ = bundle.Add(w, b, false)

	h, calls := fakeHandler()
	require.NoError(t, h.RunVariant(VariantNoop, w, 0))
	assert.Empty(t, *calls)
	assert.Equal(t, uint64(0), bundle.Of(w).TotalLames())
}

func TestRunVariant_Pretend_CountsLameWithoutRealSwitch(t *testing.T) {
	w := newTestWorker(t, 4)
	a, b := thread(1), thread(2)
	_, _ = bundle.Add(w, a, true)
	_, _ = bundle.Add(w, b, false)

	h, calls := fakeHandler()
	require.NoError(t, h.RunVariant(VariantPretend, w, 0))
	assert.Empty(t, *calls, "pretend must not invoke the real frame exchange")
	assert.Equal(t, uint64(1), bundle.Of(w).TotalXsaveLames())
	assert.Same(t, b, w.SelfThread)
}

func TestRunVariant_Switch_DelegatesToRun(t *testing.T) {
	w := newTestWorker(t, 4)
	a, b := thread(1), thread(2)
	_, _ = bundle.Add(w, a, true)
	_, _ = bundle.Add(w, b, false)

	h, calls := fakeHandler()
	require.NoError(t, h.RunVariant(VariantSwitch, w, 0))
	assert.Equal(t, []string{"switched"}, *calls)
}

func TestRunVariant_Stall_ReturnsOnceDeadlinePassed(t *testing.T) {
	w := newTestWorker(t, 2)
	h, _ := fakeHandler()
	deadline := worker.Now() // already in the past by the time this runs
	require.NoError(t, h.RunVariant(VariantStall, w, deadline))
}

func TestRunVariant_Pretend_GateOff_NoBookkeeping(t *testing.T) {
	w := &worker.Worker{ID: 1, Stats: &worker.Stats{}}
	require.NoError(t, bundle.Init(w, 4))
	a, b := thread(1), thread(2)
	_, _ = bundle.Add(w, a, true)
	_, _ = bundle.Add(w, b, false)
	require.False(t, bundle.Of(w).IsDynamicallyEnabled())

	h, calls := fakeHandler()
	require.NoError(t, h.RunVariant(VariantPretend, w, 0))
	assert.Empty(t, *calls)
	assert.Equal(t, uint64(0), bundle.Of(w).TotalXsaveLames())
	assert.Nil(t, w.SelfThread)
}

func TestVariant_String(t *testing.T) {
	assert.Equal(t, "switch", VariantSwitch.String())
	assert.Equal(t, "pretend", VariantPretend.String())
	assert.Equal(t, "stall", VariantStall.String())
	assert.Equal(t, "noop", VariantNoop.String())
}
