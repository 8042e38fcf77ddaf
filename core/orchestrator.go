package orchestration

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/koscakluka/tolk-core/core/audio"
	"github.com/koscakluka/tolk-core/core/events"
	"github.com/koscakluka/tolk-core/core/session"
	"go.opentelemetry.io/otel/codes"
)

// State is the orchestrator's lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateError      State = "error"
)

// sendQueueSize bounds the outbound audio queue. The capture callback drops
// frames instead of blocking when the session cannot keep up.
const sendQueueSize = 32

type outboundChunk struct {
	payload    []byte
	sampleRate int
}

// activeSession owns one open session channel and the goroutines routing
// traffic through it.
type activeSession struct {
	channel   session.Channel
	sendQueue chan outboundChunk

	stopCh  chan struct{}
	endOnce sync.Once
}

// Orchestrator wires the capture device, activity gate, session channel,
// playback scheduler and transcript into one translation engine.
type Orchestrator struct {
	mu    sync.Mutex
	state State
	// active is the session currently routing traffic; nil outside
	// Connected.
	active *activeSession

	gate       *activityGate
	scheduler  *playbackScheduler
	transcript *transcript
	// capture is the input facade used to normalize device behavior.
	capture *audioCapture
	sink    Sink

	opener        session.Opener
	sessionConfig session.Config
	captureClient AudioInput

	gateThreshold float32
	gateHangTime  time.Duration

	// startOptions is rewritten on every Start; routing goroutines read it
	// only through callbacks().
	startOptions StartOptions

	closeOnce sync.Once
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		state:         StateIdle,
		transcript:    newTranscript(),
		gateThreshold: DefaultGateThreshold,
		gateHangTime:  DefaultGateHangTime,
		sessionConfig: session.Config{
			ResponseModalities: []session.Modality{session.ModalityAudio},
		},
	}

	for _, opt := range opts {
		opt(o)
	}

	o.gate = newActivityGate(o.gateThreshold, o.gateHangTime, func(isActive bool) {
		if callback := o.callbacks().onActivityChanged; callback != nil {
			guardCallback("activity changed", func() { callback(isActive) })
		}
	})
	o.scheduler = newPlaybackScheduler(o.sink)
	o.capture = newAudioCapture(o.captureClient, o.onCaptureFrame)

	return o
}

// Start acquires the capture device, opens a session channel and begins
// routing. It is a no-op while a session is already starting or running.
// Failures leave the orchestrator in [StateError]; calling Start again
// retries from scratch.
func (o *Orchestrator) Start(ctx context.Context, opts ...StartOption) error {
	ctx, span := tracer.Start(ctx, "start translation session")
	defer span.End()

	o.mu.Lock()
	if o.state == StateConnecting || o.state == StateConnected {
		o.mu.Unlock()
		return nil
	}
	o.state = StateConnecting
	o.startOptions = StartOptions{}
	for _, opt := range opts {
		opt(&o.startOptions)
	}
	o.mu.Unlock()
	o.notifyState(StateConnecting)

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.setState(StateError)
		o.notifyState(StateError)
		o.notifyError(err)
		return err
	}

	if err := o.capture.Capture(ctx); err != nil {
		return fail(fmt.Errorf("%w: %v", ErrDeviceAcquisition, err))
	}

	if o.opener == nil {
		o.releaseCapture()
		return fail(fmt.Errorf("%w: no session opener configured", ErrSessionOpen))
	}

	channel, err := o.opener.Open(ctx, o.sessionConfig)
	if err != nil {
		o.releaseCapture()
		return fail(fmt.Errorf("%w: %v", ErrSessionOpen, err))
	}

	active := &activeSession{
		channel:   channel,
		sendQueue: make(chan outboundChunk, sendQueueSize),
		stopCh:    make(chan struct{}),
	}

	o.mu.Lock()
	o.active = active
	o.state = StateConnected
	o.mu.Unlock()
	o.notifyState(StateConnected)

	startWorker := func(name string, run func()) {
		worker := panicSafeNamedWorker(name, func() error {
			run()
			return nil
		})
		go func() {
			if err := worker(); err != nil {
				log.Printf("%v", err)
			}
		}()
	}
	startWorker("session event router", func() { o.routeEvents(active) })
	startWorker("session send loop", func() { o.sendLoop(active) })
	go func() {
		select {
		case <-ctx.Done():
			o.endSession(active, StateIdle, nil)
		case <-active.stopCh:
		}
	}()

	return nil
}

// Stop tears the running session down: the gate timer is cancelled, pending
// playback is cancelled, the session close is best-effort and the capture
// device is released. Stopping twice, or stopping from idle, is a no-op.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	active := o.active
	o.mu.Unlock()

	if active == nil {
		return
	}
	o.endSession(active, StateIdle, nil)
}

// Close permanently releases the orchestrator's resources.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.Stop()
		o.gate.Close()
		o.capture.Close()
	})
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// IsActive reports the gate's debounced speech-activity state.
func (o *Orchestrator) IsActive() bool { return o.gate.IsActive() }

// SetSpeed adjusts the playback speed multiplier for subsequently enqueued
// fragments.
func (o *Orchestrator) SetSpeed(speed float64) { o.scheduler.SetSpeed(speed) }

func (o *Orchestrator) Speed() float64 { return o.scheduler.Speed() }

// History returns a point-in-time snapshot of the committed transcript.
func (o *Orchestrator) History() []TranscriptEntry { return o.transcript.History() }

// ActiveInput returns the accumulated source-speech text of the turn in
// progress.
func (o *Orchestrator) ActiveInput() string { return o.transcript.ActiveInput() }

// ActiveOutput returns the accumulated translation text of the turn in
// progress.
func (o *Orchestrator) ActiveOutput() string { return o.transcript.ActiveOutput() }

// onCaptureFrame runs inline on the capture device's callback and must
// never block or panic. The transmit decision is the instantaneous peak
// test; the gate's debounced state only drives the activity callback.
func (o *Orchestrator) onCaptureFrame(frame audio.Frame) {
	transmit := o.gate.Observe(frame)
	if !transmit {
		return
	}

	o.mu.Lock()
	active := o.active
	o.mu.Unlock()
	if active == nil {
		return
	}

	chunk := outboundChunk{
		payload:    audio.EncodeS16LE(frame.Samples),
		sampleRate: frame.SampleRate,
	}
	select {
	case active.sendQueue <- chunk:
	default:
		// Queue full: drop the frame rather than stall the capture device.
	}
}

func (o *Orchestrator) sendLoop(active *activeSession) {
	for {
		select {
		case <-active.stopCh:
			return
		case chunk := <-active.sendQueue:
			if err := active.channel.SendAudio(chunk.payload, chunk.sampleRate); err != nil {
				// The read loop surfaces the session failure; a failed send
				// only costs this chunk.
				log.Printf("Failed to send audio chunk: %v", err)
			}
		}
	}
}

func (o *Orchestrator) routeEvents(active *activeSession) {
	for event := range active.channel.Events() {
		o.routeEvent(active, event)
	}
}

// routeEvent dispatches one session event. Events are processed strictly in
// arrival order; this is the only goroutine touching the transcript's
// append/commit path for the session.
func (o *Orchestrator) routeEvent(active *activeSession, event events.Event) {
	switch event := event.(type) {
	case events.AudioFragment:
		if o.sink == nil {
			return
		}
		samples := audio.DecodeS16LE(event.Payload)
		if len(samples) == 0 {
			return
		}
		o.scheduler.OnClockAdvance(o.sink.Now())
		buffer := audio.Buffer{Samples: samples, SampleRate: event.SampleRate}
		if err := o.scheduler.Enqueue(buffer); err != nil {
			log.Printf("Failed to schedule audio fragment: %v", err)
		}

	case events.PartialInputText:
		o.transcript.AppendInput(event.Text)
		o.notifyPartialInput(o.transcript.ActiveInput())

	case events.PartialOutputText:
		o.transcript.AppendOutput(event.Text)
		o.notifyPartialOutput(o.transcript.ActiveOutput())

	case events.TurnComplete:
		pair := o.transcript.Commit()
		if callback := o.callbacks().onTurnCommitted; len(pair) > 0 && callback != nil {
			guardCallback("turn committed", func() { callback(pair) })
		}
		o.notifyPartialInput("")
		o.notifyPartialOutput("")

	case events.Interrupted:
		o.scheduler.CancelAll()

	case events.SessionError:
		o.endSession(active, StateError, fmt.Errorf("%w: %v", ErrSessionRuntime, event.Err))

	case events.SessionClosed:
		o.endSession(active, StateIdle, nil)
	}
}

// endSession tears down exactly once per session; stale sessions never
// disturb a newer one.
func (o *Orchestrator) endSession(active *activeSession, finalState State, cause error) {
	active.endOnce.Do(func() {
		close(active.stopCh)

		o.mu.Lock()
		if o.active == active {
			o.active = nil
		}
		o.mu.Unlock()

		// Best-effort close: the channel may already be gone and local
		// teardown proceeds regardless.
		if err := active.channel.Close(); err != nil {
			log.Printf("Failed to close session channel: %v", err)
		}

		o.scheduler.CancelAll()
		o.gate.Reset()
		o.releaseCapture()

		o.setState(finalState)
		o.notifyState(finalState)
		if cause != nil {
			o.notifyError(cause)
		}
	})
}

func (o *Orchestrator) releaseCapture() {
	if err := o.capture.StopCapture(); err != nil {
		log.Printf("Failed to release capture device: %v", err)
	}
}

func (o *Orchestrator) setState(state State) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
}

// callbacks snapshots the start-time callbacks. A restart may rewrite
// startOptions while a previous session's goroutines are still draining,
// so they must never read the field directly.
func (o *Orchestrator) callbacks() StartOptions {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.startOptions
}

func (o *Orchestrator) notifyState(state State) {
	callback := o.callbacks().onStateChanged
	if callback == nil {
		return
	}
	guardCallback("state changed", func() { callback(state) })
}

func (o *Orchestrator) notifyError(err error) {
	callback := o.callbacks().onError
	if callback == nil {
		return
	}
	guardCallback("error", func() { callback(err) })
}

func (o *Orchestrator) notifyPartialInput(text string) {
	callback := o.callbacks().onPartialInputText
	if callback == nil {
		return
	}
	guardCallback("partial input text", func() { callback(text) })
}

func (o *Orchestrator) notifyPartialOutput(text string) {
	callback := o.callbacks().onPartialOutputText
	if callback == nil {
		return
	}
	guardCallback("partial output text", func() { callback(text) })
}
