package gemini

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/koscakluka/tolk-core/core/events"
	"github.com/koscakluka/tolk-core/core/session"
)

func TestDecodeServerMessageOrdersTurnBoundaryLast(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{0x01, 0x02})
	message := serverMessage{ServerContent: &serverContent{
		InputTranscription:  &transcriptionText{Text: "hola"},
		OutputTranscription: &transcriptionText{Text: "hello"},
		ModelTurn: &content{Parts: []part{
			{InlineData: &inlineData{MimeType: "audio/pcm;rate=24000", Data: payload}},
		}},
		TurnComplete: true,
	}}

	decoded := decodeServerMessage(message)
	if len(decoded) != 4 {
		t.Fatalf("expected 4 events, got %d", len(decoded))
	}

	if _, ok := decoded[0].(events.PartialInputText); !ok {
		t.Fatalf("expected first event to be partial input text, got %T", decoded[0])
	}
	if _, ok := decoded[1].(events.PartialOutputText); !ok {
		t.Fatalf("expected second event to be partial output text, got %T", decoded[1])
	}
	fragment, ok := decoded[2].(events.AudioFragment)
	if !ok {
		t.Fatalf("expected third event to be an audio fragment, got %T", decoded[2])
	}
	if fragment.SampleRate != 24000 {
		t.Fatalf("expected fragment sample rate 24000, got %d", fragment.SampleRate)
	}
	if len(fragment.Payload) != 2 {
		t.Fatalf("expected 2 payload bytes, got %d", len(fragment.Payload))
	}
	if _, ok := decoded[3].(events.TurnComplete); !ok {
		t.Fatalf("expected last event to be turn complete, got %T", decoded[3])
	}
}

func TestDecodeServerMessageEmitsInterruptedBeforeTurnComplete(t *testing.T) {
	decoded := decodeServerMessage(serverMessage{ServerContent: &serverContent{
		Interrupted:  true,
		TurnComplete: true,
	}})

	if len(decoded) != 2 {
		t.Fatalf("expected 2 events, got %d", len(decoded))
	}
	if _, ok := decoded[0].(events.Interrupted); !ok {
		t.Fatalf("expected interrupted first, got %T", decoded[0])
	}
	if _, ok := decoded[1].(events.TurnComplete); !ok {
		t.Fatalf("expected turn complete second, got %T", decoded[1])
	}
}

func TestDecodeServerMessageTreatsGoAwayAsClosed(t *testing.T) {
	goAway := json.RawMessage(`{}`)
	decoded := decodeServerMessage(serverMessage{GoAway: &goAway})

	if len(decoded) != 1 {
		t.Fatalf("expected a single event, got %d", len(decoded))
	}
	if _, ok := decoded[0].(events.SessionClosed); !ok {
		t.Fatalf("expected session closed, got %T", decoded[0])
	}
}

func TestDecodeServerMessageSkipsUndecodablePayloads(t *testing.T) {
	decoded := decodeServerMessage(serverMessage{ServerContent: &serverContent{
		ModelTurn: &content{Parts: []part{
			{InlineData: &inlineData{MimeType: "audio/pcm;rate=24000", Data: "not base64!"}},
		}},
	}})

	if len(decoded) != 0 {
		t.Fatalf("expected undecodable payload to be skipped, got %d events", len(decoded))
	}
}

func TestFragmentSampleRateFallsBackToDefault(t *testing.T) {
	if rate := fragmentSampleRate("audio/pcm"); rate != 24000 {
		t.Fatalf("expected fallback rate 24000, got %d", rate)
	}
	if rate := fragmentSampleRate("audio/pcm;rate=16000"); rate != 16000 {
		t.Fatalf("expected parsed rate 16000, got %d", rate)
	}
}

func TestBuildSetupCarriesSessionConfig(t *testing.T) {
	setup := buildSetup(session.Config{
		Model:              "models/test-live",
		Voice:              "Kore",
		SystemInstruction:  "Translate from Spanish to English.",
		ResponseModalities: []session.Modality{session.ModalityAudio},
	}).Setup

	if setup.Model != "models/test-live" {
		t.Fatalf("expected configured model, got %q", setup.Model)
	}
	if len(setup.GenerationConfig.ResponseModalities) != 1 || setup.GenerationConfig.ResponseModalities[0] != "AUDIO" {
		t.Fatalf("expected audio modality, got %v", setup.GenerationConfig.ResponseModalities)
	}
	if setup.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName != "Kore" {
		t.Fatalf("expected configured voice to be carried into setup")
	}
	if setup.SystemInstruction == nil || len(setup.SystemInstruction.Parts) != 1 {
		t.Fatalf("expected system instruction part")
	}
	if setup.InputAudioTranscription == nil || setup.OutputAudioTranscription == nil {
		t.Fatalf("expected both transcription surfaces to be requested")
	}
}

func TestBuildSetupOmitsSpeechConfigWithoutVoice(t *testing.T) {
	setup := buildSetup(session.Config{Model: "models/test-live"}).Setup
	if setup.GenerationConfig.SpeechConfig != nil {
		t.Fatalf("expected no speech config without a voice identity")
	}
}

func TestEncodeAudioChunkWrapsPayloadAsBase64(t *testing.T) {
	chunk := encodeAudioChunk([]byte{0x00, 0x10}, 16000)
	if chunk.MimeType != "audio/pcm;rate=16000" {
		t.Fatalf("expected pcm mime type with rate, got %q", chunk.MimeType)
	}
	if decoded, err := base64.StdEncoding.DecodeString(chunk.Data); err != nil || len(decoded) != 2 {
		t.Fatalf("expected base64 payload to decode back to 2 bytes")
	}
}
