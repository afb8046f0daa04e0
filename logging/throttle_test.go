package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThrottledLogger_CapsBurst(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: DEBUG, Component: "t", Output: &buf})
	tl := NewThrottledLogger(log, 1, 2)

	for i := 0; i < 5; i++ {
		tl.WarnLimited("k", "warned")
	}

	// Burst of 2 lets the first two calls through; the rest are
	// suppressed until the bucket refills.
	count := bytes.Count(buf.Bytes(), []byte("warned"))
	assert.LessOrEqual(t, count, 2)
	assert.GreaterOrEqual(t, count, 1)
}

func TestThrottledLogger_DistinctKeysDoNotShareBudget(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: DEBUG, Component: "t", Output: &buf})
	tl := NewThrottledLogger(log, 1, 1)

	tl.WarnLimited("a", "warned-a")
	tl.WarnLimited("b", "warned-b")

	assert.Contains(t, buf.String(), "warned-a")
	assert.Contains(t, buf.String(), "warned-b")
}
