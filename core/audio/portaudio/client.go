// Package portaudio is a capture-only alternative to the miniaudio client
// for hosts where PortAudio is the better-supported backend. It has no
// playback side; pair it with a separate playback sink.
package portaudio

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/tolk-core/core/audio"
)

type Client struct {
	frameSize int
	stream    *portaudio.Stream

	in []int16

	capturing atomic.Bool
	stopCh    chan struct{}
}

func NewClient(frameSize int) (*Client, error) {
	if frameSize <= 0 {
		frameSize = audio.DefaultFrameSize
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, audio.DefaultSampleRate, frameSize, in)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open capture stream: %w", err)
	}

	return &Client{
		frameSize: frameSize,
		stream:    stream,
		in:        in,
	}, nil
}

func (c *Client) Start(ctx context.Context, onFrame func(frame audio.Frame)) error {
	if !c.capturing.CompareAndSwap(false, true) {
		return nil
	}

	if err := c.stream.Start(); err != nil {
		c.capturing.Store(false)
		return fmt.Errorf("failed to start capture stream: %w", err)
	}

	c.stopCh = make(chan struct{})
	go c.readLoop(ctx, c.stopCh, onFrame)
	return nil
}

func (c *Client) readLoop(ctx context.Context, stopCh <-chan struct{}, onFrame func(frame audio.Frame)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		if err := c.stream.Read(); err != nil {
			// Overflows and transient read failures cost one frame; the
			// loop keeps capturing.
			continue
		}

		samples := make([]float32, len(c.in))
		for i, sample := range c.in {
			samples[i] = float32(sample) / math.MaxInt16
		}
		onFrame(audio.Frame{Samples: samples, SampleRate: audio.DefaultSampleRate})
	}
}

func (c *Client) Stop() error {
	if !c.capturing.CompareAndSwap(true, false) {
		return nil
	}

	close(c.stopCh)
	if err := c.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture stream: %w", err)
	}
	return nil
}

func (c *Client) Close() {
	_ = c.Stop()
	_ = c.stream.Close()
	_ = portaudio.Terminate()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.EncodingLinear16,
	}
}
