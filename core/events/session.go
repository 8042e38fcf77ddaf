package events

const (
	// KindSessionOpened identifies the setup acknowledgment.
	KindSessionOpened Kind = "session.opened"
	// KindPartialInputText identifies streamed user transcription segments.
	KindPartialInputText Kind = "session.partial_input_text"
	// KindPartialOutputText identifies streamed translation transcription segments.
	KindPartialOutputText Kind = "session.partial_output_text"
	// KindAudioFragment identifies synthesized translated audio payloads.
	KindAudioFragment Kind = "session.audio_fragment"
	// KindTurnComplete identifies the remote turn boundary.
	KindTurnComplete Kind = "session.turn_complete"
	// KindInterrupted identifies a user barge-in over synthesis.
	KindInterrupted Kind = "session.interrupted"
	// KindSessionError identifies an unrecoverable mid-session failure.
	KindSessionError Kind = "session.error"
	// KindSessionClosed identifies a clean channel close.
	KindSessionClosed Kind = "session.closed"
)

// SessionOpened marks that the channel acknowledged the setup handshake.
type SessionOpened struct{ Base }

// NewSessionOpened creates a session opened event.
func NewSessionOpened() SessionOpened {
	return SessionOpened{Base: NewBase(KindSessionOpened)}
}

// PartialInputText carries an append-only transcription segment of the
// user's speech.
type PartialInputText struct {
	Base
	Text string
}

// NewPartialInputText creates a partial input text event.
func NewPartialInputText(text string) PartialInputText {
	return PartialInputText{Base: NewBase(KindPartialInputText), Text: text}
}

// PartialOutputText carries an append-only transcription segment of the
// synthesized translation.
type PartialOutputText struct {
	Base
	Text string
}

// NewPartialOutputText creates a partial output text event.
func NewPartialOutputText(text string) PartialOutputText {
	return PartialOutputText{Base: NewBase(KindPartialOutputText), Text: text}
}

// AudioFragment carries one synthesized translated audio payload. The
// payload is 16-bit little-endian mono at SampleRate.
type AudioFragment struct {
	Base
	Payload    []byte
	SampleRate int
}

// NewAudioFragment creates an audio fragment event.
func NewAudioFragment(payload []byte, sampleRate int) AudioFragment {
	return AudioFragment{Base: NewBase(KindAudioFragment), Payload: payload, SampleRate: sampleRate}
}

// TurnComplete marks that the remote side committed the current turn.
type TurnComplete struct{ Base }

// NewTurnComplete creates a turn complete event.
func NewTurnComplete() TurnComplete {
	return TurnComplete{Base: NewBase(KindTurnComplete)}
}

// Interrupted marks that the user barged in while synthesis was playing.
type Interrupted struct{ Base }

// NewInterrupted creates an interrupted event.
func NewInterrupted() Interrupted {
	return Interrupted{Base: NewBase(KindInterrupted)}
}

// SessionError carries an unrecoverable mid-session failure.
type SessionError struct {
	Base
	Err error
}

func (e SessionError) String() string {
	if e.Err == nil {
		return "session error"
	}
	return "session error: " + e.Err.Error()
}

// NewSessionError creates a session error event.
func NewSessionError(err error) SessionError {
	return SessionError{Base: NewBase(KindSessionError), Err: err}
}

// SessionClosed marks a clean channel close.
type SessionClosed struct{ Base }

// NewSessionClosed creates a session closed event.
func NewSessionClosed() SessionClosed {
	return SessionClosed{Base: NewBase(KindSessionClosed)}
}
