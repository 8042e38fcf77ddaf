// Package events defines the typed session event contract.
//
// Every event originates from the remote translation session and is emitted
// in receipt order; consumers must process events for one session strictly
// in the order they were received.
//
// session events
//
//   - SessionOpened (session.opened): the channel acknowledged the setup
//     handshake and is ready to accept audio.
//   - PartialInputText (session.partial_input_text): streamed transcription
//     segment of what the user said, append-only.
//   - PartialOutputText (session.partial_output_text): streamed transcription
//     segment of the translated synthesis, append-only.
//   - AudioFragment (session.audio_fragment): synthesized translated audio
//     payload plus its sample rate.
//   - TurnComplete (session.turn_complete): the remote side committed the
//     current conversational turn.
//   - Interrupted (session.interrupted): the user barged in over synthesis;
//     pending playback must be cancelled.
//   - SessionError (session.error): unrecoverable mid-session failure.
//   - SessionClosed (session.closed): the channel closed cleanly.
package events
