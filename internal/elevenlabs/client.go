// Package elevenlabs is a thin client for the ElevenLabs API: speech
// synthesis, the voice catalog and voice cloning from samples. Cloning is
// what the training orchestrator delegates to.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"voicebridge/internal/apperr"
	"voicebridge/internal/voice"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io/v1"
	defaultModelID = "eleven_multilingual_v2"
)

// Client talks to the ElevenLabs API.
type Client struct {
	apiKey         string
	baseURL        string
	defaultVoiceID string
	httpClient     *http.Client
}

var _ voice.VoiceTrainer = (*Client)(nil)

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL. Used by tests to point the
// client at a local server.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// NewClient creates an ElevenLabs client. apiKey must be non-empty;
// defaultVoiceID is used when a synthesis request names no voice.
func NewClient(apiKey, defaultVoiceID string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("elevenlabs: apiKey must not be empty")
	}
	c := &Client{
		apiKey:         apiKey,
		baseURL:        defaultBaseURL,
		defaultVoiceID: defaultVoiceID,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// SynthesizeRequest carries the text and voice settings for one synthesis
// call.
type SynthesizeRequest struct {
	Text         string
	VoiceID      string
	Stability    float64
	Similarity   float64
	Style        float64
	SpeakerBoost bool
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize renders the text to MP3 audio.
func (c *Client) Synthesize(ctx context.Context, req SynthesizeRequest) ([]byte, error) {
	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = c.defaultVoiceID
	}

	payload, err := json.Marshal(ttsRequest{
		Text:    req.Text,
		ModelID: defaultModelID,
		VoiceSettings: voiceSettings{
			Stability:       req.Stability,
			SimilarityBoost: req.Similarity,
			Style:           req.Style,
			UseSpeakerBoost: req.SpeakerBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode tts request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, voiceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build tts request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tts http error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &apperr.ExternalServiceError{Service: "elevenlabs", StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// Voice is one entry of the provider's voice catalog.
type Voice struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category,omitempty"`
	Labels   map[string]string `json:"labels,omitempty"`
}

// Voices returns the available voice catalog.
func (c *Client) Voices(ctx context.Context) ([]Voice, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("build voices request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("voices http error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read voices response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &apperr.ExternalServiceError{Service: "elevenlabs", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode voices response: %w", err)
	}
	return parsed.Voices, nil
}

// CloneVoice creates a custom voice from the given sample audio files and
// returns the provider-assigned voice id.
func (c *Client) CloneVoice(ctx context.Context, name, description string, samplePaths []string) (string, error) {
	if len(samplePaths) == 0 {
		return "", fmt.Errorf("elevenlabs: at least one sample file is required")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("name", name)
	_ = mw.WriteField("description", description)
	for _, path := range samplePaths {
		if err := attachSample(mw, path); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finalise clone request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/voices/add", &buf)
	if err != nil {
		return "", fmt.Errorf("build clone request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("clone http error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read clone response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &apperr.ExternalServiceError{Service: "elevenlabs", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed struct {
		VoiceID string `json:"voice_id"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode clone response: %w", err)
	}
	if parsed.VoiceID == "" {
		return "", fmt.Errorf("elevenlabs: clone response carried no voice_id")
	}
	return parsed.VoiceID, nil
}

func attachSample(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open sample %s: %w", path, err)
	}
	defer f.Close()

	part, err := mw.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("attach sample %s: %w", path, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("read sample %s: %w", path, err)
	}
	return nil
}

// Train implements voice.VoiceTrainer by cloning a voice from the
// profile's sample files.
func (c *Client) Train(ctx context.Context, profile *voice.VoiceProfile) (*voice.TrainingResult, error) {
	paths := make([]string, 0, len(profile.Samples))
	for _, s := range profile.Samples {
		paths = append(paths, s.AudioPath)
	}

	log.Printf("[ElevenLabs] Cloning voice for profile %s from %d sample(s)", profile.ID, len(paths))
	voiceID, err := c.CloneVoice(ctx, profile.Name, profile.Description, paths)
	if err != nil {
		return nil, err
	}

	return &voice.TrainingResult{
		ProviderVoiceID: voiceID,
		SampleCount:     len(paths),
		Message:         fmt.Sprintf("voice model trained from %d sample(s)", len(paths)),
		CompletedAt:     time.Now().UTC(),
	}, nil
}
