package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultHFEndpoint = "https://api-inference.huggingface.co/models"

// HuggingFaceBackend implements Backend against the HuggingFace inference
// API, hosting the model fine-tuned for non-standard / atypical speech.
// The API reports text only, so results carry no segments and downstream
// confidence is 0.
type HuggingFaceBackend struct {
	token    string
	repo     string
	endpoint string
	client   *http.Client
}

var _ Backend = (*HuggingFaceBackend)(nil)

// NewHuggingFaceBackend creates a backend for the given model repository.
func NewHuggingFaceBackend(token, repo string) (*HuggingFaceBackend, error) {
	if token == "" {
		return nil, fmt.Errorf("HuggingFace token is required")
	}
	if repo == "" {
		return nil, fmt.Errorf("HuggingFace model repo is required")
	}
	return &HuggingFaceBackend{
		token:    token,
		repo:     repo,
		endpoint: defaultHFEndpoint,
		client:   &http.Client{Timeout: 90 * time.Second},
	}, nil
}

// Name returns the backend name.
func (b *HuggingFaceBackend) Name() string {
	return "huggingface"
}

type hfResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Transcribe posts the raw audio bytes to the inference endpoint.
func (b *HuggingFaceBackend) Transcribe(ctx context.Context, audioPath, language string) (*Result, error) {
	audio, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer audio.Close()

	url := fmt.Sprintf("%s/%s", strings.TrimRight(b.endpoint, "/"), b.repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, audio)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to HuggingFace: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("[HuggingFace] Inference error: status %d, body: %s", resp.StatusCode, string(body))
		return nil, fmt.Errorf("HuggingFace API returned status %d: %s", resp.StatusCode, string(body))
	}

	var hr hfResponse
	if err := json.Unmarshal(body, &hr); err != nil {
		return nil, fmt.Errorf("failed to parse HuggingFace response: %w", err)
	}
	if hr.Error != "" {
		return nil, fmt.Errorf("HuggingFace API error: %s", hr.Error)
	}

	return &Result{
		Text:     strings.TrimSpace(hr.Text),
		Language: language,
		Backend:  b.Name(),
	}, nil
}
