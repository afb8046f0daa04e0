package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCedeSignal_FireBeforeWait_ReturnsImmediately(t *testing.T) {
	c := NewCedeSignal()
	c.Cede()
	assert.True(t, c.Fired())
	assert.True(t, c.Wait(time.Millisecond))
}

func TestCedeSignal_CedeIsIdempotent(t *testing.T) {
	c := NewCedeSignal()
	c.Cede()
	c.Cede()
	assert.True(t, c.Fired())
}

func TestCedeSignal_WaitWakesOnLaterCede(t *testing.T) {
	c := NewCedeSignal()
	done := make(chan bool, 1)
	go func() {
		done <- c.Wait(time.Second)
	}()

	time.Sleep(5 * time.Millisecond)
	c.Cede()

	select {
	case woke := <-done:
		assert.True(t, woke)
	case <-time.After(time.Second):
		t.Fatal("Wait did not wake after Cede")
	}
}

func TestCedeSignal_WaitTimesOutWithoutCede(t *testing.T) {
	c := NewCedeSignal()
	assert.False(t, c.Wait(2*time.Millisecond))
}
