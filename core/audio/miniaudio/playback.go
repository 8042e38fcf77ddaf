package miniaudio

import (
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/tolk-core/core/audio"
)

// playbackClient mixes scheduled sources onto one continuously running
// output device. The device callback is the clock: it advances a frame
// counter whether or not anything is audible, so Now keeps moving during
// silence.
type playbackClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	// clockFrames counts device frames rendered since the device started.
	clockFrames int64
	sources     []*playbackSource

	mu sync.Mutex
}

type playbackSource struct {
	client *playbackClient

	// samples are already resampled to the device rate with the playback
	// rate applied.
	samples []float32
	// startFrame positions the source on the device clock.
	startFrame int64

	onDone   func()
	finished bool
	stopped  bool
}

// Stop removes the source from the mix. A source that already finished
// playing refuses the stop.
func (s *playbackSource) Stop() error {
	s.client.mu.Lock()
	if s.stopped {
		s.client.mu.Unlock()
		return nil
	}
	if s.finished {
		s.client.mu.Unlock()
		return fmt.Errorf("source already finished")
	}
	s.stopped = true
	s.client.removeSourceLocked(s)
	s.client.mu.Unlock()
	return nil
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sampleRate := uint32(audio.DefaultPlaybackSampleRate)
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = sampleRate
	c.config.Playback.Format = format
	c.config.Playback.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PeriodSizeInFrames = sampleRate / 10 // ~100ms of audio
	c.config.Periods = 4

	c.audioContext = audioContext

	var err error
	if c.device, err = malgo.InitDevice(
		c.audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{Data: c.processAudio(bytesPerFrame)},
	); err != nil {
		return err
	}

	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}

	c.sources = nil
	return nil
}

// Now reports the device clock position in seconds.
func (c *playbackClient) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(c.clockFrames) / float64(audio.DefaultPlaybackSampleRate)
}

// Play schedules a buffer at startAt seconds on the device clock, sped up
// or slowed down by rate. onDone fires from the render path once the last
// sample has been mixed, never synchronously.
func (c *playbackClient) Play(buffer audio.Buffer, startAt float64, rate float64, onDone func()) (audio.PlaybackHandle, error) {
	if c.device == nil {
		return nil, fmt.Errorf("device not initialized")
	} else if !c.device.IsStarted() {
		return nil, fmt.Errorf("device not started")
	}
	if rate <= 0 {
		return nil, fmt.Errorf("invalid playback rate %v", rate)
	}
	if buffer.SampleRate <= 0 || len(buffer.Samples) == 0 {
		return nil, fmt.Errorf("empty playback buffer")
	}

	// Source samples consumed per device frame; covers both the device
	// sample-rate conversion and the speed multiplier.
	step := rate * float64(buffer.SampleRate) / float64(audio.DefaultPlaybackSampleRate)
	source := &playbackSource{
		client:  c,
		samples: resample(buffer.Samples, step),
		onDone:  onDone,
	}

	c.mu.Lock()
	source.startFrame = int64(startAt * float64(audio.DefaultPlaybackSampleRate))
	if source.startFrame < c.clockFrames {
		source.startFrame = c.clockFrames
	}
	c.sources = append(c.sources, source)
	c.mu.Unlock()

	return source, nil
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	c.device.Uninit()
	c.device = nil
	c.sources = nil

	return nil
}

func (c *playbackClient) removeSourceLocked(source *playbackSource) {
	for i, s := range c.sources {
		if s == source {
			c.sources = append(c.sources[:i], c.sources[i+1:]...)
			return
		}
	}
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		n := int(frameCount)
		if len(pOutput) < n*bytesPerFrame || n == 0 {
			return
		}

		mix := make([]float32, n)

		c.mu.Lock()
		base := c.clockFrames
		c.clockFrames += int64(n)

		var finished []*playbackSource
		for _, source := range c.sources {
			for i := range n {
				offset := base + int64(i) - source.startFrame
				if offset < 0 {
					continue
				}
				if offset >= int64(len(source.samples)) {
					source.finished = true
					break
				}
				mix[i] += source.samples[offset]
			}
			if source.finished {
				finished = append(finished, source)
			}
		}
		for _, source := range finished {
			c.removeSourceLocked(source)
		}
		c.mu.Unlock()

		copy(pOutput[:n*bytesPerFrame], audio.EncodeS16LE(mix))

		if len(finished) > 0 {
			go func() {
				for _, source := range finished {
					if source.onDone != nil {
						source.onDone()
					}
				}
			}()
		}
	}
}

// resample converts samples by linear interpolation, consuming step source
// samples per output sample.
func resample(samples []float32, step float64) []float32 {
	if step == 1.0 {
		return samples
	}

	outLen := int(math.Ceil(float64(len(samples)) / step))
	if outLen <= 0 {
		return nil
	}

	out := make([]float32, outLen)
	for i := range out {
		position := float64(i) * step
		index := int(position)
		if index >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		fraction := float32(position - float64(index))
		out[i] = samples[index]*(1-fraction) + samples[index+1]*fraction
	}
	return out
}
