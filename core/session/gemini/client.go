// Package gemini implements the session channel over the Live API
// bidirectional websocket protocol.
package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/codes"

	"github.com/koscakluka/tolk-core/core/session"
)

const (
	defaultHost  = "generativelanguage.googleapis.com"
	defaultModel = "models/gemini-2.0-flash-live-001"

	bidiPath = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	connectTimeout = 15 * time.Second
)

var _ session.Opener = (*Client)(nil)

// Client opens Live API sessions. The zero value is not usable; use
// [NewClient].
type Client struct {
	apiKey string
	host   string
	model  string

	eventBufferSize int
}

type ClientOption func(*Client)

// WithHost overrides the API host, mainly for tests.
func WithHost(host string) ClientOption {
	return func(c *Client) { c.host = host }
}

// WithModel overrides the default realtime model.
func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

func NewClient(opts ...ClientOption) (*Client, error) {
	apiKey, ok := os.LookupEnv("GEMINI_API_KEY")
	if !ok {
		return nil, fmt.Errorf("gemini api key not found")
	}

	client := &Client{
		apiKey:          apiKey,
		host:            defaultHost,
		model:           defaultModel,
		eventBufferSize: 256,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Open dials the websocket, performs the setup handshake and returns a
// channel once the service acknowledges with setupComplete. The context
// bounds the dial and handshake only; the session itself lives until Close.
func (c *Client) Open(ctx context.Context, config session.Config) (session.Channel, error) {
	ctx, span := tracer.Start(ctx, "open live session")
	defer span.End()

	if config.Model == "" {
		config.Model = c.model
	}
	if len(config.ResponseModalities) == 0 {
		config.ResponseModalities = []session.Modality{session.ModalityAudio}
	}

	dialCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, connectTimeout)
		defer cancel()
	}

	bidiURL := url.URL{Scheme: "wss", Host: c.host, Path: bidiPath}
	queryParams := bidiURL.Query()
	queryParams.Set("key", c.apiKey)
	bidiURL.RawQuery = queryParams.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, bidiURL.String(), nil)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("failed to open socket connection to live api (status %d): %w", resp.StatusCode, err)
		} else {
			err = fmt.Errorf("failed to open socket connection to live api: %w", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := conn.WriteJSON(buildSetup(config)); err != nil {
		_ = conn.Close()
		err = fmt.Errorf("failed to send session setup: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	_ = conn.SetReadDeadline(time.Now().Add(connectTimeout))
	var ack serverMessage
	if err := conn.ReadJSON(&ack); err != nil {
		_ = conn.Close()
		err = fmt.Errorf("failed to read setup acknowledgment: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Time{})

	if ack.SetupComplete == nil {
		_ = conn.Close()
		err = fmt.Errorf("unexpected first live frame, setup was not acknowledged")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	channel := newChannel(conn, c.eventBufferSize)
	go channel.readLoop()
	return channel, nil
}

func buildSetup(config session.Config) setupMessage {
	setup := setupPayload{
		Model: config.Model,
		GenerationConfig: generationConfig{
			SpeechConfig: &speechConfig{
				VoiceConfig: &voiceConfig{
					PrebuiltVoiceConfig: &prebuiltVoiceConfig{VoiceName: config.Voice},
				},
			},
		},
		InputAudioTranscription:  &transcriptionOpts{},
		OutputAudioTranscription: &transcriptionOpts{},
	}
	for _, modality := range config.ResponseModalities {
		setup.GenerationConfig.ResponseModalities = append(setup.GenerationConfig.ResponseModalities, string(modality))
	}
	if config.Voice == "" {
		setup.GenerationConfig.SpeechConfig = nil
	}
	if config.SystemInstruction != "" {
		setup.SystemInstruction = &content{Parts: []part{{Text: config.SystemInstruction}}}
	}
	return setupMessage{Setup: setup}
}

func pcmMimeType(sampleRate int) string {
	return "audio/pcm;rate=" + strconv.Itoa(sampleRate)
}

func encodeAudioChunk(payload []byte, sampleRate int) inlineData {
	return inlineData{
		MimeType: pcmMimeType(sampleRate),
		Data:     base64.StdEncoding.EncodeToString(payload),
	}
}
