package orchestration

import (
	"time"

	"github.com/koscakluka/tolk-core/core/session"
)

type OrchestratorOption func(*Orchestrator)

// WithSessionOpener configures the client used to open the remote
// translation session.
func WithSessionOpener(opener session.Opener) OrchestratorOption {
	return func(o *Orchestrator) { o.opener = opener }
}

// WithSessionConfig overrides the session configuration passed to the
// opener on every Start.
func WithSessionConfig(config session.Config) OrchestratorOption {
	return func(o *Orchestrator) { o.sessionConfig = config }
}

func WithAudioInput(client AudioInput) OrchestratorOption {
	return func(o *Orchestrator) { o.captureClient = client }
}

func WithPlaybackSink(sink Sink) OrchestratorOption {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithGateThreshold overrides the peak amplitude (on a [-1, 1] scale) above
// which a frame counts as speech. Non-positive values are ignored.
func WithGateThreshold(threshold float32) OrchestratorOption {
	return func(o *Orchestrator) {
		if threshold <= 0 {
			return
		}
		o.gateThreshold = threshold
	}
}

// WithGateHangTime overrides how long the gate stays active after the last
// above-threshold frame. Non-positive values are ignored.
func WithGateHangTime(hangTime time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if hangTime <= 0 {
			return
		}
		o.gateHangTime = hangTime
	}
}

type StartOptions struct {
	onActivityChanged   func(isActive bool)
	onPartialInputText  func(text string)
	onPartialOutputText func(text string)
	onTurnCommitted     func(pair []TranscriptEntry)
	onStateChanged      func(state State)
	onError             func(err error)
}

type StartOption func(*StartOptions)

// WithActivityChangedCallback registers a callback for the gate's debounced
// speech-activity transitions.
//
// The callback runs inline on the capture path and should not block.
func WithActivityChangedCallback(callback func(isActive bool)) StartOption {
	return func(o *StartOptions) {
		o.onActivityChanged = callback
	}
}

// WithPartialInputTextCallback registers a callback for live source-speech
// transcription progress. It receives the full accumulated text of the turn
// in progress, and an empty string once the turn commits.
func WithPartialInputTextCallback(callback func(text string)) StartOption {
	return func(o *StartOptions) {
		o.onPartialInputText = callback
	}
}

// WithPartialOutputTextCallback registers a callback for live translation
// text progress. It receives the full accumulated text of the turn in
// progress, and an empty string once the turn commits.
func WithPartialOutputTextCallback(callback func(text string)) StartOption {
	return func(o *StartOptions) {
		o.onPartialOutputText = callback
	}
}

// WithTurnCommittedCallback registers a callback for committed transcript
// pairs. Each completed turn delivers exactly one (user, model) entry pair.
func WithTurnCommittedCallback(callback func(pair []TranscriptEntry)) StartOption {
	return func(o *StartOptions) {
		o.onTurnCommitted = callback
	}
}

func WithStateChangedCallback(callback func(state State)) StartOption {
	return func(o *StartOptions) {
		o.onStateChanged = callback
	}
}

// WithErrorCallback registers a callback for surfaced failures: start
// failures and mid-session errors. Locally recovered failures (a stop on an
// already-finished playback source, a close on an already-gone channel) are
// never surfaced.
func WithErrorCallback(callback func(err error)) StartOption {
	return func(o *StartOptions) {
		o.onError = callback
	}
}
