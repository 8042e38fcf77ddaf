package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/tolk-core/core/audio"
)

type captureClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	// pending accumulates decoded samples between device callbacks so
	// frames always come out at the configured size.
	pending []float32

	onFrame func(frame audio.Frame)

	mu sync.Mutex
}

func (c *captureClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sampleRate := uint32(audio.DefaultSampleRate)
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Capture)
	c.config.SampleRate = sampleRate
	c.config.Capture.Format = format
	c.config.Capture.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PerformanceProfile = malgo.LowLatency
	c.config.PeriodSizeInFrames = 480
	c.config.Periods = 3

	c.audioContext = audioContext

	var err error
	c.device, err = malgo.InitDevice(c.audioContext.Context, c.config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}
			c.onCapturedAudio(pInput[:n])
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	return nil
}

// onCapturedAudio converts raw device audio to normalized samples and
// re-chunks it into fixed-size frames.
func (c *captureClient) onCapturedAudio(raw []byte) {
	c.mu.Lock()
	onFrame := c.onFrame
	if onFrame == nil {
		c.mu.Unlock()
		return
	}

	c.pending = append(c.pending, audio.DecodeS16LE(raw)...)

	var frames []audio.Frame
	for len(c.pending) >= audio.DefaultFrameSize {
		samples := make([]float32, audio.DefaultFrameSize)
		copy(samples, c.pending[:audio.DefaultFrameSize])
		c.pending = c.pending[audio.DefaultFrameSize:]
		frames = append(frames, audio.Frame{Samples: samples, SampleRate: audio.DefaultSampleRate})
	}
	c.mu.Unlock()

	for _, frame := range frames {
		onFrame(frame)
	}
}

func (c *captureClient) Start(onFrame func(frame audio.Frame)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if c.device.IsStarted() {
		return nil
	}

	c.onFrame = onFrame
	c.pending = nil
	if err := c.device.Start(); err != nil {
		c.onFrame = nil
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	return nil
}

func (c *captureClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if !c.device.IsStarted() {
		return nil
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop device: %w", err)
	}

	c.onFrame = nil
	c.pending = nil
	return nil
}

func (c *captureClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}

	c.onFrame = nil
	c.pending = nil
	return nil
}
