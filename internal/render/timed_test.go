package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimedDisplay_TransitionsExactlyOnce(t *testing.T) {
	clock := newFakeClock()
	td := NewTimedDisplay(clock, 5*time.Second, PhaseInput)

	var got []Phase
	td.Start(func(p Phase) { got = append(got, p) })
	td.Start(func(p Phase) { got = append(got, p) })

	clock.Advance(4 * time.Second)
	assert.Equal(t, PhaseShowing, td.Phase())
	assert.Equal(t, time.Second, td.Remaining())

	clock.Advance(time.Second)
	assert.Equal(t, PhaseInput, td.Phase())
	assert.Equal(t, []Phase{PhaseInput}, got)

	clock.Advance(10 * time.Second)
	assert.Equal(t, 1, td.Transitions())
	assert.Len(t, got, 1)
}

func TestTimedDisplay_ResetCancelsPendingCountdown(t *testing.T) {
	clock := newFakeClock()
	td := NewTimedDisplay(clock, 5*time.Second, PhaseComplete)

	fired := 0
	td.Start(func(Phase) { fired++ })
	clock.Advance(3 * time.Second)
	td.Reset()

	assert.Equal(t, PhaseShowing, td.Phase())
	assert.False(t, td.Started())

	td.Start(func(Phase) { fired++ })
	clock.Advance(3 * time.Second)
	assert.Equal(t, 0, fired)
	assert.Equal(t, PhaseShowing, td.Phase())

	clock.Advance(2 * time.Second)
	assert.Equal(t, 1, fired)
	assert.Equal(t, PhaseComplete, td.Phase())
}

func TestTimedDisplay_ZeroDurationFinishesImmediately(t *testing.T) {
	td := NewTimedDisplay(newFakeClock(), 0, PhaseComplete)

	var got Phase
	td.Start(func(p Phase) { got = p })

	assert.Equal(t, PhaseComplete, td.Phase())
	assert.Equal(t, PhaseComplete, got)
	assert.Equal(t, 1, td.Transitions())
}

func TestDigitSpanSequencer_RevealsThenRecalls(t *testing.T) {
	clock := newFakeClock()
	seq := NewDigitSpanSequencer(clock, 3, time.Second)

	assert.Equal(t, -1, seq.VisibleIndex())

	seq.Start(nil)
	assert.Equal(t, 0, seq.VisibleIndex())

	clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, 1, seq.VisibleIndex())

	clock.Advance(time.Second)
	assert.Equal(t, 2, seq.VisibleIndex())

	clock.Advance(time.Second)
	assert.Equal(t, PhaseRecall, seq.Phase())
	assert.Equal(t, -1, seq.VisibleIndex())
}
