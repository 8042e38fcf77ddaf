package tui

import orchestration "github.com/koscakluka/tolk-core/core"

// StateChangedMsg is sent when the engine's lifecycle state changes.
type StateChangedMsg struct {
	State orchestration.State
}

// ActivityChangedMsg is sent when the voice-activity gate flips between
// speaking and silence.
type ActivityChangedMsg struct {
	IsActive bool
}

// PartialInputMsg carries the accumulated source-speech text of the turn in
// progress. An empty string clears the live line.
type PartialInputMsg struct {
	Text string
}

// PartialOutputMsg carries the accumulated translation text of the turn in
// progress. An empty string clears the live line.
type PartialOutputMsg struct {
	Text string
}

// TurnCommittedMsg carries a committed transcript pair.
type TurnCommittedMsg struct {
	Pair []orchestration.TranscriptEntry
}

// ErrorMsg carries a surfaced engine failure.
type ErrorMsg struct {
	Err error
}
