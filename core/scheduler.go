package orchestration

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/koscakluka/tolk-core/core/audio"
)

// Sink is the playback output the scheduler lays decoded fragments onto.
// Implementations own their clock; Now and the startAt passed to Play are
// seconds on that clock. Play must not invoke onDone synchronously.
type Sink interface {
	Now() float64
	Play(buffer audio.Buffer, startAt float64, rate float64, onDone func()) (SinkHandle, error)
}

// SinkHandle controls one playing source. Stop on an already-finished
// source may fail; callers tolerate that.
type SinkHandle = audio.PlaybackHandle

// playbackScheduler owns the synthetic output timeline. Fragments arrive at
// irregular, service-controlled intervals; gaplessness is achieved here by
// scheduling each fragment exactly where the previous one ends, never by
// the sink itself.
type playbackScheduler struct {
	mu sync.Mutex

	sink Sink

	nextStartTime float64
	speed         float64
	activeSources map[string]SinkHandle

	// epoch tags sources with the cancellation generation they were
	// enqueued under, so a CancelAll racing an in-flight Enqueue still
	// stops the late source.
	epoch uint64
}

func newPlaybackScheduler(sink Sink) *playbackScheduler {
	return &playbackScheduler{
		sink:          sink,
		speed:         1.0,
		activeSources: make(map[string]SinkHandle),
	}
}

// SetSpeed changes the playback-rate multiplier for sources created after
// the call; in-flight sources keep the rate they were scheduled with.
// Non-positive values are ignored.
func (s *playbackScheduler) SetSpeed(speed float64) {
	if s == nil || speed <= 0 {
		return
	}

	s.mu.Lock()
	s.speed = speed
	s.mu.Unlock()
}

func (s *playbackScheduler) Speed() float64 {
	if s == nil {
		return 1.0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// OnClockAdvance clamps the timeline cursor to the sink clock so a consumer
// that fell behind, or idle playback, never schedules into the past.
func (s *playbackScheduler) OnClockAdvance(currentClockTime float64) {
	if s == nil {
		return
	}

	s.mu.Lock()
	if currentClockTime > s.nextStartTime {
		s.nextStartTime = currentClockTime
	}
	s.mu.Unlock()
}

// Enqueue schedules one decoded fragment at the current cursor, running at
// the current speed, and advances the cursor by the fragment's scaled
// duration. Back-to-back fragments land with zero gap between them.
func (s *playbackScheduler) Enqueue(buffer audio.Buffer) error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	id := uuid.NewString()
	startAt := s.nextStartTime
	speed := s.speed
	epoch := s.epoch
	s.nextStartTime += buffer.Duration() / speed
	s.mu.Unlock()

	handle, err := s.sink.Play(buffer, startAt, speed, func() { s.sourceFinished(id) })
	if err != nil {
		return fmt.Errorf("failed to schedule fragment: %w", err)
	}

	s.mu.Lock()
	if s.epoch != epoch {
		// Cancelled while the sink was still setting the source up.
		s.mu.Unlock()
		_ = handle.Stop()
		return nil
	}
	s.activeSources[id] = handle
	s.mu.Unlock()
	return nil
}

// sourceFinished removes a source that completed naturally. After a
// CancelAll the id is already gone and this is a no-op.
func (s *playbackScheduler) sourceFinished(id string) {
	s.mu.Lock()
	delete(s.activeSources, id)
	s.mu.Unlock()
}

// CancelAll is the barge-in response: stop every source regardless of play
// position, clear the active set and rewind the cursor to the clock origin.
func (s *playbackScheduler) CancelAll() {
	if s == nil {
		return
	}

	s.mu.Lock()
	s.epoch++
	sources := s.activeSources
	s.activeSources = make(map[string]SinkHandle)
	s.nextStartTime = 0
	s.mu.Unlock()

	for _, handle := range sources {
		// Stop can fail on sources that already finished on their own.
		_ = handle.Stop()
	}
}

func (s *playbackScheduler) NextStartTime() float64 {
	if s == nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStartTime
}

func (s *playbackScheduler) activeSourceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeSources)
}
