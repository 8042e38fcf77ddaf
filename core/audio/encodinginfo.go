package audio

const (
	// DefaultSampleRate is the capture rate the remote session expects.
	DefaultSampleRate = 16000
	// DefaultPlaybackSampleRate is the rate synthesized fragments arrive at.
	DefaultPlaybackSampleRate = 24000

	DefaultFormat = "linear16"
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: encodingFormat(DefaultFormat)}
}

func GetDefaultPlaybackEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultPlaybackSampleRate, Format: encodingFormat(DefaultFormat)}
}

type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingLinear16 encodingFormat = "linear16"
)
