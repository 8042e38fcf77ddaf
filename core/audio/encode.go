package audio

import "math"

// EncodeS16LE converts normalized samples into the 16-bit little-endian wire
// payload the session expects. Samples are clamped to [-1, 1] before scaling.
// No resampling happens here, the capture must already run at the rate the
// session was configured with.
func EncodeS16LE(samples []float32) []byte {
	payload := make([]byte, len(samples)*2)
	for i, sample := range samples {
		if sample > 1 {
			sample = 1
		} else if sample < -1 {
			sample = -1
		}
		value := int16(sample * math.MaxInt16)
		payload[i*2] = byte(value)
		payload[i*2+1] = byte(value >> 8)
	}
	return payload
}

// DecodeS16LE converts a 16-bit little-endian payload back into normalized
// samples. A trailing odd byte is ignored.
func DecodeS16LE(payload []byte) []float32 {
	samples := make([]float32, len(payload)/2)
	for i := range samples {
		value := int16(uint16(payload[i*2]) | uint16(payload[i*2+1])<<8)
		samples[i] = float32(value) / math.MaxInt16
	}
	return samples
}
