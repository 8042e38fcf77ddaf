package orchestration

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/koscakluka/tolk-core/core/audio"
)

// AudioInput is a capture device that delivers microphone frames through a
// callback. Start is expected to return promptly; frame delivery happens on
// the client's own goroutine until Stop or Close.
type AudioInput interface {
	EncodingInfo() audio.EncodingInfo
	Start(ctx context.Context, onFrame func(audio.Frame)) error
	Stop() error
	Close()
}

type audioCapture struct {
	// base stores the configured capture client used for streaming audio.
	base AudioInput

	// connected reports whether a concrete capture client is configured.
	connected atomic.Bool
	// isCapturing reports whether the capture client is currently running.
	isCapturing atomic.Bool

	// onFrame is called for every captured frame
	onFrame func(frame audio.Frame)
}

func newAudioCapture(client AudioInput, onFrame func(frame audio.Frame)) *audioCapture {
	if onFrame == nil {
		onFrame = func(audio.Frame) {}
	}

	capture := audioCapture{onFrame: onFrame}
	capture.Set(client)
	return &capture
}

func (a *audioCapture) Set(client AudioInput) {
	if a == nil {
		return
	}

	a.base = client
	a.connected.Store(false)
	a.isCapturing.Store(false)

	if client == nil {
		return
	}

	a.connected.Store(true)
}

func (a *audioCapture) IsConfigured() bool { return a != nil && a.connected.Load() }
func (a *audioCapture) IsCapturing() bool  { return a != nil && a.isCapturing.Load() }

func (a *audioCapture) Capture(ctx context.Context) error {
	if a == nil || a.base == nil {
		return nil
	}

	if !a.isCapturing.CompareAndSwap(false, true) {
		return nil
	}

	if err := a.base.Start(ctx, a.onFrame); err != nil {
		a.isCapturing.Store(false)
		return err
	}
	return nil
}

func (a *audioCapture) StopCapture() error {
	if a == nil || a.base == nil {
		return nil
	}

	if !a.isCapturing.CompareAndSwap(true, false) {
		return nil
	}

	return a.base.Stop()
}

func (a *audioCapture) Close() {
	if a == nil || a.base == nil {
		return
	}

	if a.isCapturing.Load() {
		if err := a.base.Stop(); err != nil {
			log.Printf("Failed to stop audio capture: %v", err)
		}
		a.isCapturing.Store(false)
	}
	a.base.Close()
}

func (a *audioCapture) EncodingInfo() audio.EncodingInfo {
	if a == nil || a.base == nil {
		return audio.GetDefaultEncodingInfo()
	}

	return a.base.EncodingInfo()
}
