package gemini

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/koscakluka/tolk-core/core/audio"
	"github.com/koscakluka/tolk-core/core/events"
	"github.com/koscakluka/tolk-core/core/session"
)

var _ session.Channel = (*liveChannel)(nil)

type liveChannel struct {
	conn *websocket.Conn

	events chan events.Event
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
}

func newChannel(conn *websocket.Conn, eventBufferSize int) *liveChannel {
	return &liveChannel{
		conn:   conn,
		events: make(chan events.Event, eventBufferSize),
		done:   make(chan struct{}),
	}
}

func (c *liveChannel) Events() <-chan events.Event {
	if c == nil {
		return nil
	}
	return c.events
}

// SendAudio forwards one encoded frame as a realtime media chunk. The
// payload is base64-wrapped here because that is a property of what the
// service accepts, not of the frame encoder.
func (c *liveChannel) SendAudio(payload []byte, sampleRate int) error {
	if c == nil {
		return fmt.Errorf("channel must not be nil")
	}
	if c.closed.Load() {
		return fmt.Errorf("live session is closed")
	}

	message := realtimeInputMessage{RealtimeInput: realtimeInput{
		MediaChunks: []inlineData{encodeAudioChunk(payload, sampleRate)},
	}}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(message); err != nil {
		return fmt.Errorf("failed to write to live session: %w", err)
	}
	return nil
}

func (c *liveChannel) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
	<-c.done
	return nil
}

// readLoop decodes server frames into session events. Emission order
// matches receipt order; the loop exits on the first read failure.
func (c *liveChannel) readLoop() {
	defer close(c.done)
	defer close(c.events)

	for {
		var message serverMessage
		if err := c.conn.ReadJSON(&message); err != nil {
			if c.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.emitTerminal(events.NewSessionClosed())
				return
			}
			c.emitTerminal(events.NewSessionError(fmt.Errorf("live session read failed: %w", err)))
			return
		}

		for _, event := range decodeServerMessage(message) {
			c.events <- event
		}
	}
}

// emitTerminal delivers the final lifecycle event without blocking so Close
// cannot deadlock against a consumer that already stopped draining.
func (c *liveChannel) emitTerminal(event events.Event) {
	select {
	case c.events <- event:
	default:
	}
}

// decodeServerMessage flattens one server frame into ordered events. A
// single frame can carry transcription, audio, and a turn boundary at once;
// the boundary is always emitted last.
func decodeServerMessage(message serverMessage) []events.Event {
	if message.GoAway != nil {
		return []events.Event{events.NewSessionClosed()}
	}

	serverContent := message.ServerContent
	if serverContent == nil {
		return nil
	}

	var decoded []events.Event
	if serverContent.InputTranscription != nil && serverContent.InputTranscription.Text != "" {
		decoded = append(decoded, events.NewPartialInputText(serverContent.InputTranscription.Text))
	}
	if serverContent.OutputTranscription != nil && serverContent.OutputTranscription.Text != "" {
		decoded = append(decoded, events.NewPartialOutputText(serverContent.OutputTranscription.Text))
	}

	if serverContent.ModelTurn != nil {
		for _, turnPart := range serverContent.ModelTurn.Parts {
			if turnPart.InlineData == nil {
				continue
			}
			payload, err := base64.StdEncoding.DecodeString(turnPart.InlineData.Data)
			if err != nil {
				logger.Warn("failed to decode inline audio payload", "error", err)
				continue
			}
			decoded = append(decoded, events.NewAudioFragment(payload, fragmentSampleRate(turnPart.InlineData.MimeType)))
		}
	}

	if serverContent.Interrupted {
		decoded = append(decoded, events.NewInterrupted())
	}
	if serverContent.TurnComplete {
		decoded = append(decoded, events.NewTurnComplete())
	}
	return decoded
}

// fragmentSampleRate parses "audio/pcm;rate=24000" style mime types,
// falling back to the protocol default when the rate is missing.
func fragmentSampleRate(mimeType string) int {
	for _, param := range strings.Split(mimeType, ";") {
		param = strings.TrimSpace(param)
		if rate, ok := strings.CutPrefix(param, "rate="); ok {
			if parsed, err := strconv.Atoi(rate); err == nil && parsed > 0 {
				return parsed
			}
		}
	}
	return audio.DefaultPlaybackSampleRate
}
