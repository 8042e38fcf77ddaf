package gemini

import "encoding/json"

// Wire types for the Live API bidirectional websocket protocol. Only the
// fields the engine uses are modeled; unknown server fields are ignored.

type setupMessage struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model                    string             `json:"model"`
	GenerationConfig         generationConfig   `json:"generationConfig"`
	SystemInstruction        *content           `json:"systemInstruction,omitempty"`
	InputAudioTranscription  *transcriptionOpts `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *transcriptionOpts `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig *voiceConfig `json:"voiceConfig,omitempty"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig *prebuiltVoiceConfig `json:"prebuiltVoiceConfig,omitempty"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type transcriptionOpts struct{}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []inlineData `json:"mediaChunks"`
}

type serverMessage struct {
	SetupComplete *json.RawMessage `json:"setupComplete"`
	ServerContent *serverContent   `json:"serverContent"`
	GoAway        *json.RawMessage `json:"goAway"`
}

type serverContent struct {
	ModelTurn           *content           `json:"modelTurn"`
	InputTranscription  *transcriptionText `json:"inputTranscription"`
	OutputTranscription *transcriptionText `json:"outputTranscription"`
	TurnComplete        bool               `json:"turnComplete"`
	Interrupted         bool               `json:"interrupted"`
}

type transcriptionText struct {
	Text string `json:"text"`
}
