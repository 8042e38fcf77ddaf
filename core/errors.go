package orchestration

import "errors"

var (
	// ErrDeviceAcquisition marks a microphone that could not be acquired.
	// Fatal to Start; there is no retry.
	ErrDeviceAcquisition = errors.New("failed to acquire capture device")
	// ErrSessionOpen marks a session channel that could not be opened.
	// Fatal to Start; there is no retry.
	ErrSessionOpen = errors.New("failed to open session channel")
	// ErrSessionRuntime marks a mid-session failure. The orchestrator lands
	// in StateError and stays there until explicitly restarted.
	ErrSessionRuntime = errors.New("session failed")
)
