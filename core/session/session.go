// Package session defines the duplex channel contract between the engine
// and the remote translation service.
//
// The engine depends on the service only through [Opener] and [Channel]:
// audio frames go out through SendAudio, everything the service produces
// comes back as a single ordered stream of [events.Event] values. Concrete
// transports live in subpackages.
package session

import (
	"context"

	"github.com/koscakluka/tolk-core/core/events"
)

// Modality selects what the remote service streams back.
type Modality string

const (
	ModalityAudio Modality = "AUDIO"
	ModalityText  Modality = "TEXT"
)

// Config carries everything a transport needs to open a session.
type Config struct {
	// Model names the remote realtime model to bind the session to.
	Model string
	// Voice is the synthesized voice identity for translated speech.
	Voice string
	// SystemInstruction states the translation direction and policy.
	SystemInstruction string
	// ResponseModalities defaults to audio-only when empty.
	ResponseModalities []Modality
}

// Channel is an open duplex session. Send side accepts wire-ready audio
// payloads; receive side emits events strictly in receipt order.
type Channel interface {
	// SendAudio hands one encoded frame to the service. It must not be
	// called after Close.
	SendAudio(payload []byte, sampleRate int) error
	// Events returns the ordered event stream. The channel is closed after
	// a SessionClosed or SessionError event.
	Events() <-chan events.Event
	// Close tears the session down. Closing twice is a no-op.
	Close() error
}

// Opener opens channels against one configured transport.
type Opener interface {
	Open(ctx context.Context, config Config) (Channel, error)
}
