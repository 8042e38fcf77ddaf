package audio

// PlaybackHandle controls one source scheduled onto a playback device.
type PlaybackHandle interface {
	// Stop halts the source immediately. Stopping a source that already
	// finished playing returns an error.
	Stop() error
}
