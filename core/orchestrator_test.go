package orchestration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/tolk-core/core/audio"
	"github.com/koscakluka/tolk-core/core/events"
	"github.com/koscakluka/tolk-core/core/session"
)

type fakeChannel struct {
	mu     sync.Mutex
	sent   [][]byte
	closes int

	events    chan events.Event
	closeOnce sync.Once
	closeErr  error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{events: make(chan events.Event, 16)}
}

func (c *fakeChannel) SendAudio(payload []byte, sampleRate int) error {
	c.mu.Lock()
	c.sent = append(c.sent, payload)
	c.mu.Unlock()
	return nil
}

func (c *fakeChannel) Events() <-chan events.Event { return c.events }

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.events) })
	return c.closeErr
}

func (c *fakeChannel) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *fakeChannel) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

type fakeOpener struct {
	mu      sync.Mutex
	channel *fakeChannel
	openErr error
	opens   int
}

func (o *fakeOpener) Open(ctx context.Context, config session.Config) (session.Channel, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	if o.openErr != nil {
		return nil, o.openErr
	}
	if o.channel == nil || o.channel.closeCount() > 0 {
		o.channel = newFakeChannel()
	}
	return o.channel, nil
}

func (o *fakeOpener) lastChannel() *fakeChannel {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.channel
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

type fakeAudioInput struct {
	mu       sync.Mutex
	onFrame  func(audio.Frame)
	startErr error
	stops    int
	closed   bool
}

func (i *fakeAudioInput) EncodingInfo() audio.EncodingInfo { return audio.GetDefaultEncodingInfo() }

func (i *fakeAudioInput) Start(ctx context.Context, onFrame func(audio.Frame)) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.startErr != nil {
		return i.startErr
	}
	i.onFrame = onFrame
	return nil
}

func (i *fakeAudioInput) Stop() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stops++
	return nil
}

func (i *fakeAudioInput) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
}

func (i *fakeAudioInput) deliver(frame audio.Frame) {
	i.mu.Lock()
	onFrame := i.onFrame
	i.mu.Unlock()
	if onFrame != nil {
		onFrame(frame)
	}
}

func (i *fakeAudioInput) stopCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stops
}

type textRecorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *textRecorder) record(text string) {
	r.mu.Lock()
	r.seen = append(r.seen, text)
	r.mu.Unlock()
}

func (r *textRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func waitFor(t *testing.T, condition func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", message)
}

func newConnectedOrchestrator(t *testing.T, sink *fakeSink, opts ...StartOption) (*Orchestrator, *fakeChannel, *fakeAudioInput) {
	t.Helper()

	channel := newFakeChannel()
	input := &fakeAudioInput{}
	orchestratorOpts := []OrchestratorOption{
		WithSessionOpener(&fakeOpener{channel: channel}),
		WithAudioInput(input),
	}
	if sink != nil {
		orchestratorOpts = append(orchestratorOpts, WithPlaybackSink(sink))
	}

	o := NewOrchestrator(orchestratorOpts...)
	t.Cleanup(o.Close)

	if err := o.Start(context.Background(), opts...); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	if got := o.State(); got != StateConnected {
		t.Fatalf("expected state %q after start, got %q", StateConnected, got)
	}
	return o, channel, input
}

func TestStartSurfacesDeviceAcquisitionFailure(t *testing.T) {
	input := &fakeAudioInput{startErr: errors.New("microphone denied")}
	o := NewOrchestrator(
		WithSessionOpener(&fakeOpener{channel: newFakeChannel()}),
		WithAudioInput(input),
	)
	defer o.Close()

	err := o.Start(context.Background())
	if !errors.Is(err, ErrDeviceAcquisition) {
		t.Fatalf("expected device acquisition error, got %v", err)
	}
	if got := o.State(); got != StateError {
		t.Fatalf("expected state %q, got %q", StateError, got)
	}
}

func TestStartSurfacesSessionOpenFailure(t *testing.T) {
	input := &fakeAudioInput{}
	o := NewOrchestrator(
		WithSessionOpener(&fakeOpener{openErr: errors.New("connection refused")}),
		WithAudioInput(input),
	)
	defer o.Close()

	err := o.Start(context.Background())
	if !errors.Is(err, ErrSessionOpen) {
		t.Fatalf("expected session open error, got %v", err)
	}
	if got := o.State(); got != StateError {
		t.Fatalf("expected state %q, got %q", StateError, got)
	}
	if got := input.stopCount(); got != 1 {
		t.Fatalf("expected capture device released after open failure, got %d stops", got)
	}
}

func TestStartWithoutOpenerFails(t *testing.T) {
	o := NewOrchestrator(WithAudioInput(&fakeAudioInput{}))
	defer o.Close()

	if err := o.Start(context.Background()); !errors.Is(err, ErrSessionOpen) {
		t.Fatalf("expected session open error without an opener, got %v", err)
	}
}

func TestStartWhileRunningIsANoOp(t *testing.T) {
	opener := &fakeOpener{channel: newFakeChannel()}
	o := NewOrchestrator(WithSessionOpener(opener), WithAudioInput(&fakeAudioInput{}))
	defer o.Close()

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("expected first start to succeed, got %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("expected repeated start to be a no-op, got %v", err)
	}
	if got := opener.openCount(); got != 1 {
		t.Fatalf("expected a single session open, got %d", got)
	}
}

func TestCapturedSpeechReachesTheSession(t *testing.T) {
	_, channel, input := newConnectedOrchestrator(t, nil)

	input.deliver(loudFrame())
	waitFor(t, func() bool { return channel.sentCount() == 1 }, "captured frame to reach the session")

	input.deliver(quietFrame())
	time.Sleep(20 * time.Millisecond)
	if got := channel.sentCount(); got != 1 {
		t.Fatalf("expected below-threshold frame to be suppressed, got %d sends", got)
	}
}

func TestAudioFragmentsAreScheduledOntoTheSink(t *testing.T) {
	sink := &fakeSink{now: 1.5}
	_, channel, _ := newConnectedOrchestrator(t, sink)

	samples := []float32{0.1, -0.1, 0.2, -0.2}
	channel.events <- events.NewAudioFragment(audio.EncodeS16LE(samples), audio.DefaultPlaybackSampleRate)
	waitFor(t, func() bool { return sink.playCount() == 1 }, "fragment to be scheduled")

	play := sink.playedAt(0)
	if !closeEnough(play.startAt, 1.5) {
		t.Fatalf("expected fragment scheduled at the sink clock, got %v", play.startAt)
	}
	if play.buffer.SampleRate != audio.DefaultPlaybackSampleRate {
		t.Fatalf("expected sample rate carried through, got %d", play.buffer.SampleRate)
	}
	if len(play.buffer.Samples) != len(samples) {
		t.Fatalf("expected %d decoded samples, got %d", len(samples), len(play.buffer.Samples))
	}
}

func TestPartialTextDrivesLiveProgressAndCommits(t *testing.T) {
	inputText := &textRecorder{}
	outputText := &textRecorder{}
	var committed struct {
		mu    sync.Mutex
		pairs [][]TranscriptEntry
	}

	o, channel, _ := newConnectedOrchestrator(t, nil,
		WithPartialInputTextCallback(inputText.record),
		WithPartialOutputTextCallback(outputText.record),
		WithTurnCommittedCallback(func(pair []TranscriptEntry) {
			committed.mu.Lock()
			committed.pairs = append(committed.pairs, pair)
			committed.mu.Unlock()
		}),
	)

	channel.events <- events.NewPartialInputText("hola ")
	channel.events <- events.NewPartialInputText("mundo")
	channel.events <- events.NewPartialOutputText("hello world")
	channel.events <- events.NewTurnComplete()

	waitFor(t, func() bool {
		committed.mu.Lock()
		defer committed.mu.Unlock()
		return len(committed.pairs) == 1
	}, "turn to commit")

	committed.mu.Lock()
	pair := committed.pairs[0]
	committed.mu.Unlock()
	if pair[0].Text != "hola mundo" || pair[1].Text != "hello world" {
		t.Fatalf("expected committed pair with accumulated text, got %+v", pair)
	}

	inputSeen := inputText.snapshot()
	if len(inputSeen) != 3 || inputSeen[0] != "hola " || inputSeen[1] != "hola mundo" || inputSeen[2] != "" {
		t.Fatalf("expected accumulated input progress then a clear, got %v", inputSeen)
	}
	outputSeen := outputText.snapshot()
	if outputSeen[len(outputSeen)-1] != "" {
		t.Fatalf("expected live output display cleared after commit, got %v", outputSeen)
	}

	history := o.History()
	if len(history) != 2 {
		t.Fatalf("expected committed pair in history, got %d entries", len(history))
	}
}

func TestInterruptedCancelsPendingPlayback(t *testing.T) {
	sink := &fakeSink{}
	o, channel, _ := newConnectedOrchestrator(t, sink)

	channel.events <- events.NewAudioFragment(audio.EncodeS16LE([]float32{0.1, 0.2}), audio.DefaultPlaybackSampleRate)
	waitFor(t, func() bool { return sink.playCount() == 1 }, "fragment to be scheduled")

	channel.events <- events.NewInterrupted()
	waitFor(t, func() bool { return sink.playedAt(0).handle.stopCount() == 1 }, "barge-in to stop playback")

	if got := o.History(); len(got) != 0 {
		t.Fatalf("expected barge-in not to touch the transcript, got %d entries", len(got))
	}
}

func TestSessionErrorLandsInErrorState(t *testing.T) {
	errs := make(chan error, 1)
	o, channel, input := newConnectedOrchestrator(t, nil,
		WithErrorCallback(func(err error) { errs <- err }),
	)

	channel.events <- events.NewSessionError(errors.New("stream reset"))

	waitFor(t, func() bool { return o.State() == StateError }, "orchestrator to land in error state")
	select {
	case err := <-errs:
		if !errors.Is(err, ErrSessionRuntime) {
			t.Fatalf("expected session runtime error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the surfaced error")
	}
	if got := input.stopCount(); got != 1 {
		t.Fatalf("expected capture device released after session error, got %d stops", got)
	}
}

func TestSessionClosedReturnsToIdle(t *testing.T) {
	o, channel, _ := newConnectedOrchestrator(t, nil)

	channel.events <- events.NewSessionClosed()

	waitFor(t, func() bool { return o.State() == StateIdle }, "orchestrator to return to idle")
}

func TestStopIsIdempotent(t *testing.T) {
	sink := &fakeSink{}
	o, channel, input := newConnectedOrchestrator(t, sink)

	o.Stop()
	o.Stop()

	if got := o.State(); got != StateIdle {
		t.Fatalf("expected state %q after stop, got %q", StateIdle, got)
	}
	if got := channel.closeCount(); got != 1 {
		t.Fatalf("expected a single session close, got %d", got)
	}
	if got := input.stopCount(); got != 1 {
		t.Fatalf("expected a single capture release, got %d", got)
	}
}

func TestStopSwallowsSessionCloseFailure(t *testing.T) {
	channel := newFakeChannel()
	channel.closeErr = errors.New("connection already gone")
	input := &fakeAudioInput{}
	o := NewOrchestrator(
		WithSessionOpener(&fakeOpener{channel: channel}),
		WithAudioInput(input),
	)
	defer o.Close()

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	o.Stop()

	if got := o.State(); got != StateIdle {
		t.Fatalf("expected teardown to proceed past the close failure, got state %q", got)
	}
	if got := input.stopCount(); got != 1 {
		t.Fatalf("expected capture device released, got %d stops", got)
	}
}

func TestRestartAfterStopOpensANewSession(t *testing.T) {
	channel := newFakeChannel()
	opener := &fakeOpener{channel: channel}
	o := NewOrchestrator(WithSessionOpener(opener), WithAudioInput(&fakeAudioInput{}))
	defer o.Close()

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("expected first start to succeed, got %v", err)
	}
	o.Stop()

	opener.mu.Lock()
	opener.channel = newFakeChannel()
	opener.mu.Unlock()

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("expected restart to succeed, got %v", err)
	}
	if got := opener.openCount(); got != 2 {
		t.Fatalf("expected two session opens, got %d", got)
	}
	if got := o.State(); got != StateConnected {
		t.Fatalf("expected state %q after restart, got %q", StateConnected, got)
	}
}

func TestRestartRightAfterSessionCloseIsSafe(t *testing.T) {
	opener := &fakeOpener{}
	o := NewOrchestrator(WithSessionOpener(opener), WithAudioInput(&fakeAudioInput{}))
	defer o.Close()

	// The previous session's router is still delivering callbacks when the
	// restart rewrites them; exercised under the race detector.
	recorder := &textRecorder{}
	opts := []StartOption{
		WithStateChangedCallback(func(state State) { recorder.record(string(state)) }),
		WithPartialInputTextCallback(recorder.record),
	}

	const restarts = 200
	for range restarts {
		if err := o.Start(context.Background(), opts...); err != nil {
			t.Fatalf("expected start to succeed, got %v", err)
		}
		channel := opener.lastChannel()
		channel.events <- events.NewPartialInputText("hello")
		channel.events <- events.NewSessionClosed()
		waitFor(t, func() bool { return o.State() == StateIdle }, "session to wind down")
	}

	if got := opener.openCount(); got != restarts {
		t.Fatalf("expected %d session opens, got %d", restarts, got)
	}
}

func TestContextCancellationStopsTheSession(t *testing.T) {
	channel := newFakeChannel()
	input := &fakeAudioInput{}
	o := NewOrchestrator(
		WithSessionOpener(&fakeOpener{channel: channel}),
		WithAudioInput(input),
	)
	defer o.Close()

	ctx, cancel := context.WithCancel(context.Background())
	if err := o.Start(ctx); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}

	cancel()
	waitFor(t, func() bool { return o.State() == StateIdle }, "cancellation to tear the session down")
}
