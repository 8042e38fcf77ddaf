package events

import "time"

// Kind identifies an event type on the session stream, e.g.
// "session.audio_fragment".
type Kind string

// Event is the contract every session event satisfies. The timestamp marks
// local receipt, not remote emission.
type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Base carries the kind and receipt time shared by all session events;
// concrete events embed it.
type Base struct {
	kind      Kind
	timestamp time.Time
}

// NewBase stamps an event with its kind and the moment the channel decoded
// it.
func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}
