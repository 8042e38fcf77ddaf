package audio

// DefaultFrameSize is the number of samples delivered per capture frame.
const DefaultFrameSize = 4096

// Frame is one fixed-size run of normalized mono samples produced by a
// capture client. Samples are in [-1, 1]. A frame is immutable once produced
// and is consumed exactly once by the activity gate.
type Frame struct {
	Samples    []float32
	SampleRate int
}

// Peak returns the largest absolute sample amplitude in the frame.
func (f Frame) Peak() float32 {
	var peak float32
	for _, sample := range f.Samples {
		if sample < 0 {
			sample = -sample
		}
		if sample > peak {
			peak = sample
		}
	}
	return peak
}

// Buffer is a decoded audio fragment ready for playback scheduling.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the playback length of the buffer in seconds at its
// native rate.
func (b Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}
