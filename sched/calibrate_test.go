package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caladan-sched/lame/bundle"
)

func TestProfile_NoopVariant_ReturnsSampleCount(t *testing.T) {
	w := newTestWorker(t, 2)
	_, _ = bundle.Add(w, thread(1), true)
	_, _ = bundle.Add(w, thread(2), false)

	h, _ := fakeHandler()
	cal, err := h.Profile(VariantNoop, w, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, cal.Samples)
	assert.GreaterOrEqual(t, cal.Max, cal.Min)
}

func TestProfile_ZeroSamples_ReturnsZeroValue(t *testing.T) {
	w := newTestWorker(t, 2)
	h, _ := fakeHandler()
	cal, err := h.Profile(VariantNoop, w, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, cal.Samples)
	assert.Equal(t, int64(0), int64(cal.Mean))
}
