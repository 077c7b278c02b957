package transcribe

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIBackend implements Backend using the OpenAI Whisper API. It is an
// alternative standard acoustic model for deployments without a local
// whisper-server (TRANSCRIBE_BACKEND=openai).
type OpenAIBackend struct {
	client *openai.Client
}

var _ Backend = (*OpenAIBackend)(nil)

// NewOpenAIBackend creates an OpenAI Whisper API backend.
func NewOpenAIBackend(apiKey string) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	return &OpenAIBackend{client: openai.NewClient(apiKey)}, nil
}

// Name returns the backend name.
func (b *OpenAIBackend) Name() string {
	return "openai"
}

// Transcribe submits the audio file to the Whisper API. The verbose JSON
// format is requested so segment log-probabilities are available for
// confidence scoring.
func (b *OpenAIBackend) Transcribe(ctx context.Context, audioPath, language string) (*Result, error) {
	resp, err := b.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audioPath,
		Language: language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI transcription request failed: %w", err)
	}

	res := &Result{
		Text:     strings.TrimSpace(resp.Text),
		Language: language,
		Backend:  b.Name(),
	}
	if resp.Language != "" {
		res.Language = resp.Language
	}
	for _, s := range resp.Segments {
		res.Segments = append(res.Segments, Segment{
			ID:         s.ID,
			Start:      s.Start,
			End:        s.End,
			Text:       strings.TrimSpace(s.Text),
			AvgLogProb: s.AvgLogprob,
			HasLogProb: true,
		})
	}
	return res, nil
}
