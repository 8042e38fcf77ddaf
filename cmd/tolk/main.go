// Command tolk runs the realtime voice translator in the terminal: it
// captures the microphone, streams speech to a Gemini live session and
// plays the translated speech back while showing the transcript.
//
// Environment variables:
//
//	GEMINI_API_KEY       - Required for the translation session
//	TOLK_TARGET_LANGUAGE - Language to translate into (default English)
//	TOLK_VOICE           - Synthesized voice identity (optional)
//
// Controls:
//
//	s    - Start / stop translating
//	+/-  - Playback speed
//	q    - Quit
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	orchestration "github.com/koscakluka/tolk-core/core"
	"github.com/koscakluka/tolk-core/core/audio/miniaudio"
	"github.com/koscakluka/tolk-core/core/session"
	"github.com/koscakluka/tolk-core/core/session/gemini"
	"github.com/koscakluka/tolk-core/tui"
)

func main() {
	_ = godotenv.Load()

	target := flag.String("target", envOr("TOLK_TARGET_LANGUAGE", "English"), "language to translate into")
	voice := flag.String("voice", os.Getenv("TOLK_VOICE"), "synthesized voice identity (optional)")
	flag.Parse()

	if os.Getenv("GEMINI_API_KEY") == "" {
		log.Fatal("GEMINI_API_KEY required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := run(ctx, *target, *voice); err != nil {
		log.Fatal(err)
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func run(ctx context.Context, targetLanguage, voice string) error {
	audioClient, err := miniaudio.NewClient()
	if err != nil {
		return fmt.Errorf("failed to set up audio devices: %w", err)
	}
	defer audioClient.Close()

	geminiClient, err := gemini.NewClient()
	if err != nil {
		return fmt.Errorf("failed to set up session client: %w", err)
	}

	orchestrator := orchestration.NewOrchestrator(
		orchestration.WithSessionOpener(geminiClient),
		orchestration.WithAudioInput(audioClient),
		orchestration.WithPlaybackSink(audioClient),
		orchestration.WithSessionConfig(session.Config{
			Voice: voice,
			SystemInstruction: fmt.Sprintf("You are a simultaneous interpreter. "+
				"Translate everything the speaker says into %s, preserving tone "+
				"and intent. Respond only with the translation.", targetLanguage),
			ResponseModalities: []session.Modality{session.ModalityAudio},
		}),
	)
	defer orchestrator.Close()

	model := tui.New(ctx, orchestrator)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	model.SetSender(program.Send)

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run terminal interface: %w", err)
	}
	return nil
}
