package render

import (
	"sync"
	"time"
)

// Phase of a timed question.
type Phase string

const (
	PhaseShowing  Phase = "showing"
	PhaseInput    Phase = "input"
	PhaseComplete Phase = "complete"
	PhaseRecall   Phase = "recall"
)

// TimedDisplay is the display -> recall state machine of memory and
// digit-span questions. It leaves the showing phase on its own once the
// countdown elapses, and only once per start.
type TimedDisplay struct {
	clock    Clock
	duration time.Duration
	after    Phase

	mu      sync.Mutex
	phase   Phase
	started time.Time
	timer   Timer
	fired   int
	gen     int
	onDone  func(Phase)
}

func NewTimedDisplay(clock Clock, duration time.Duration, after Phase) *TimedDisplay {
	if clock == nil {
		clock = SystemClock
	}
	return &TimedDisplay{
		clock:    clock,
		duration: duration,
		after:    after,
		phase:    PhaseShowing,
	}
}

// Start begins the countdown. Calling Start on a running or finished
// display does nothing.
func (t *TimedDisplay) Start(onDone func(Phase)) {
	t.mu.Lock()
	if t.timer != nil || t.phase != PhaseShowing {
		t.mu.Unlock()
		return
	}
	t.onDone = onDone
	t.started = t.clock.Now()
	if t.duration <= 0 {
		cb := t.finishLocked()
		t.mu.Unlock()
		if cb != nil {
			cb(t.after)
		}
		return
	}
	t.gen++
	gen := t.gen
	t.timer = t.clock.AfterFunc(t.duration, func() { t.expire(gen) })
	t.mu.Unlock()
}

func (t *TimedDisplay) expire(gen int) {
	t.mu.Lock()
	if gen != t.gen || t.phase != PhaseShowing || t.timer == nil {
		t.mu.Unlock()
		return
	}
	cb := t.finishLocked()
	t.mu.Unlock()
	if cb != nil {
		cb(t.after)
	}
}

func (t *TimedDisplay) finishLocked() func(Phase) {
	t.phase = t.after
	t.fired++
	cb := t.onDone
	t.onDone = nil
	return cb
}

// Reset stops a running countdown and returns to the showing phase, as
// when the participant leaves the section.
func (t *TimedDisplay) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
	t.phase = PhaseShowing
	t.started = time.Time{}
	t.onDone = nil
}

func (t *TimedDisplay) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

func (t *TimedDisplay) Started() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.started.IsZero()
}

// Elapsed is the time spent in the showing phase so far.
func (t *TimedDisplay) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started.IsZero() {
		return 0
	}
	if t.phase != PhaseShowing {
		return t.duration
	}
	return t.clock.Now().Sub(t.started)
}

func (t *TimedDisplay) Remaining() time.Duration {
	r := t.duration - t.Elapsed()
	if r < 0 {
		return 0
	}
	return r
}

// Transitions counts how often the display left the showing phase.
func (t *TimedDisplay) Transitions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// DigitSpanSequencer reveals one digit per interval, then switches to recall.
type DigitSpanSequencer struct {
	*TimedDisplay
	digits   int
	interval time.Duration
}

func NewDigitSpanSequencer(clock Clock, digits int, interval time.Duration) *DigitSpanSequencer {
	return &DigitSpanSequencer{
		TimedDisplay: NewTimedDisplay(clock, time.Duration(digits)*interval, PhaseRecall),
		digits:       digits,
		interval:     interval,
	}
}

// VisibleIndex is the digit on screen, or -1 before start and after the
// sequence has finished.
func (s *DigitSpanSequencer) VisibleIndex() int {
	if !s.Started() || s.Phase() != PhaseShowing || s.interval <= 0 {
		return -1
	}
	idx := int(s.Elapsed() / s.interval)
	if idx >= s.digits {
		return -1
	}
	return idx
}
