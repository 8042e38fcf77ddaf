package orchestration

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerModel Speaker = "model"
)

// Placeholder lines used when a turn completes before any transcription
// text arrived. Every completed turn produces a visible transcript pair,
// even when transcription was empty; omitting empty turns would change the
// visible transcript semantics.
const (
	placeholderUserText  = "[speech not transcribed]"
	placeholderModelText = "[translation audio only]"
)

// TranscriptEntry is one committed transcript line. Immutable once
// appended to history.
type TranscriptEntry struct {
	ID      string
	Speaker Speaker
	Text    string
	// Timestamp is a logical clock, not wall time: the user entry of a pair
	// is always strictly before the model entry, even when wall clocks
	// collide at coarse resolution.
	Timestamp int64
}

// transcript aggregates streamed partial text into committed turns.
//
// Exactly one active buffer pair exists at a time; appends preserve arrival
// order with no reordering or deduplication.
type transcript struct {
	mu sync.Mutex

	clock int64

	inputChunks  []string
	outputChunks []string

	history []TranscriptEntry
}

func newTranscript() *transcript {
	return &transcript{}
}

func (t *transcript) AppendInput(text string) {
	if t == nil {
		return
	}

	t.mu.Lock()
	t.inputChunks = append(t.inputChunks, text)
	t.mu.Unlock()
}

func (t *transcript) AppendOutput(text string) {
	if t == nil {
		return
	}

	t.mu.Lock()
	t.outputChunks = append(t.outputChunks, text)
	t.mu.Unlock()
}

// ActiveInput returns the accumulated user text of the in-progress turn.
func (t *transcript) ActiveInput() string {
	if t == nil {
		return ""
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.inputChunks, "")
}

// ActiveOutput returns the accumulated translation text of the in-progress
// turn.
func (t *transcript) ActiveOutput() string {
	if t == nil {
		return ""
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.outputChunks, "")
}

// Commit closes the in-progress turn. If anything was accumulated it
// appends a (user, model) entry pair to history and returns it; a side
// whose text is empty gets its fixed placeholder. If nothing was
// accumulated at all, nothing is emitted. Buffers are cleared either way.
func (t *transcript) Commit() []TranscriptEntry {
	if t == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	accumulated := len(t.inputChunks) > 0 || len(t.outputChunks) > 0
	input := strings.Join(t.inputChunks, "")
	output := strings.Join(t.outputChunks, "")
	t.inputChunks = nil
	t.outputChunks = nil

	if !accumulated {
		return nil
	}

	if input == "" {
		input = placeholderUserText
	}
	if output == "" {
		output = placeholderModelText
	}

	pair := []TranscriptEntry{
		{ID: uuid.NewString(), Speaker: SpeakerUser, Text: input, Timestamp: t.clock},
		{ID: uuid.NewString(), Speaker: SpeakerModel, Text: output, Timestamp: t.clock + 1},
	}
	t.clock += 2
	t.history = append(t.history, pair...)
	return pair
}

// History returns a point-in-time deep copy of the committed transcript.
func (t *transcript) History() []TranscriptEntry {
	if t == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	history := make([]TranscriptEntry, 0, len(t.history))
	if err := copier.Copy(&history, t.history); err != nil {
		history = append(history, t.history...)
	}
	return history
}
