package transcribe

import "context"

// Backend is a pluggable transcription backend. Implementations wrap one
// acoustic model (local whisper-server, OpenAI Whisper API, or the
// non-standard-speech model on HuggingFace) behind the same capability.
type Backend interface {
	// Transcribe transcribes the audio file at audioPath and returns the
	// recognised text plus per-segment detail when the backend provides it.
	Transcribe(ctx context.Context, audioPath, language string) (*Result, error)

	// Name returns the backend name (e.g. "whisper", "openai", "huggingface").
	Name() string
}
