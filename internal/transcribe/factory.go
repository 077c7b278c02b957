package transcribe

import (
	"fmt"
	"log"

	"voicebridge/internal/config"
)

// NewEngineFromConfig builds the engine from configuration: the standard
// backend selected by TRANSCRIBE_BACKEND plus the HuggingFace
// non-standard-speech backend. Called once at startup; the engine is then
// passed to every consumer.
func NewEngineFromConfig(cfg *config.Config) (*Engine, error) {
	var standard Backend
	var err error

	switch cfg.TranscribeBackend {
	case "whisper", "":
		log.Printf("[Engine] Creating whisper-server backend (model=%s, device=%s)", cfg.WhisperModel, cfg.WhisperDevice)
		standard, err = NewWhisperBackend(cfg.WhisperServerURL, cfg.WhisperModel, cfg.WhisperDevice)
	case "openai":
		log.Printf("[Engine] Creating OpenAI Whisper API backend")
		standard, err = NewOpenAIBackend(cfg.OpenAIKey)
	default:
		return nil, fmt.Errorf("unsupported transcription backend: %s. Supported: whisper, openai", cfg.TranscribeBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("create standard backend: %w", err)
	}

	nonStandard, err := NewHuggingFaceBackend(cfg.HuggingFaceToken, cfg.HuggingFaceModelRepo)
	if err != nil {
		return nil, fmt.Errorf("create non-standard-speech backend: %w", err)
	}

	return NewEngine(standard, nonStandard, cfg.TempDir()), nil
}
