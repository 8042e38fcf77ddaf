package orchestration

import (
	"sync"
	"time"

	"github.com/koscakluka/tolk-core/core/audio"
)

const (
	// DefaultGateThreshold is the peak amplitude above which a frame counts
	// as speech, on a [-1, 1] scale.
	DefaultGateThreshold float32 = 0.01
	// DefaultGateHangTime is how long the gate stays active after the last
	// above-threshold frame.
	DefaultGateHangTime = 1500 * time.Millisecond
)

// activityGate decides frame-by-frame whether the speaker is talking.
//
// The debounced active/idle state only drives the activity callback (a UI
// indicator); the transmit decision returned by Observe is the instantaneous
// peak test and is independent of the hang-timer bookkeeping.
type activityGate struct {
	mu sync.Mutex

	threshold float32
	hangTime  time.Duration

	active    bool
	hangTimer *time.Timer
	closed    bool

	onActivityChanged func(isActive bool)
}

func newActivityGate(threshold float32, hangTime time.Duration, onActivityChanged func(isActive bool)) *activityGate {
	if threshold <= 0 {
		threshold = DefaultGateThreshold
	}
	if hangTime <= 0 {
		hangTime = DefaultGateHangTime
	}

	return &activityGate{
		threshold:         threshold,
		hangTime:          hangTime,
		onActivityChanged: onActivityChanged,
	}
}

// Observe evaluates one captured frame and reports whether it should be
// transmitted. Brief dips below threshold do not toggle the debounced state;
// sustained silence does, once the hang time elapses.
func (g *activityGate) Observe(frame audio.Frame) (transmit bool) {
	if g == nil {
		return false
	}

	peak := frame.Peak()

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return false
	}

	if peak > g.threshold {
		if g.hangTimer != nil {
			g.hangTimer.Stop()
			g.hangTimer = nil
		}
		becameActive := !g.active
		g.active = true
		g.mu.Unlock()

		if becameActive && g.onActivityChanged != nil {
			g.onActivityChanged(true)
		}
		return true
	}

	if g.hangTimer == nil {
		g.hangTimer = time.AfterFunc(g.hangTime, g.hangTimeElapsed)
	}
	g.mu.Unlock()
	return false
}

func (g *activityGate) hangTimeElapsed() {
	g.mu.Lock()
	if g.closed || g.hangTimer == nil {
		// The timer was cancelled after this callback was already scheduled.
		g.mu.Unlock()
		return
	}
	g.hangTimer = nil
	becameIdle := g.active
	g.active = false
	g.mu.Unlock()

	if becameIdle && g.onActivityChanged != nil {
		g.onActivityChanged(false)
	}
}

func (g *activityGate) IsActive() bool {
	if g == nil {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Reset cancels any pending hang timer and returns the gate to idle without
// closing it, so a later session can reuse it.
func (g *activityGate) Reset() {
	if g == nil {
		return
	}

	g.mu.Lock()
	if g.hangTimer != nil {
		g.hangTimer.Stop()
		g.hangTimer = nil
	}
	wasActive := g.active
	g.active = false
	g.mu.Unlock()

	if wasActive && g.onActivityChanged != nil {
		g.onActivityChanged(false)
	}
}

// Close cancels any pending hang timer permanently; a closed gate observes
// every frame as silence.
func (g *activityGate) Close() {
	if g == nil {
		return
	}

	g.mu.Lock()
	if g.hangTimer != nil {
		g.hangTimer.Stop()
		g.hangTimer = nil
	}
	g.closed = true
	g.active = false
	g.mu.Unlock()
}
