package transcribe

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
)

// WhisperBackend implements Backend against a local whisper.cpp server
// (POST /inference). The model is loaded onto the preferred device once at
// construction; if the accelerated device is unavailable the backend falls
// back to CPU and keeps serving requests.
type WhisperBackend struct {
	baseURL string
	model   string
	device  string // device actually in use after the startup probe
	client  *http.Client
}

var _ Backend = (*WhisperBackend)(nil)

// NewWhisperBackend creates a whisper-server backend and loads the model on
// the requested device. An accelerated-device failure (e.g. "cuda" with no
// GPU present) is handled here, once, by retrying on "cpu"; it is never
// surfaced per request.
func NewWhisperBackend(baseURL, model, device string) (*WhisperBackend, error) {
	b := &WhisperBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		device:  device,
		client:  &http.Client{Timeout: 90 * time.Second},
	}

	if err := b.loadModel(device); err != nil {
		if device != "cpu" {
			log.Printf("[Whisper] Failed to load model %q on %s: %v. Falling back to cpu...", model, device, err)
			if cpuErr := b.loadModel("cpu"); cpuErr != nil {
				return nil, fmt.Errorf("load whisper model %q: %w", model, cpuErr)
			}
			b.device = "cpu"
		} else {
			return nil, fmt.Errorf("load whisper model %q: %w", model, err)
		}
	}

	log.Printf("[Whisper] Loaded model %q on %s", model, b.device)
	return b, nil
}

// Name returns the backend name.
func (b *WhisperBackend) Name() string {
	return "whisper"
}

// Device reports the device the model ended up on after the startup probe.
func (b *WhisperBackend) Device() string {
	return b.device
}

func (b *WhisperBackend) loadModel(device string) error {
	payload, err := json.Marshal(map[string]string{
		"model":  b.model,
		"device": device,
	})
	if err != nil {
		return err
	}

	resp, err := b.client.Post(b.baseURL+"/load", "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("whisper-server unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whisper-server load returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// whisperResponse mirrors the whisper-server verbose_json inference response.
type whisperResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Error    string `json:"error,omitempty"`
	Segments []struct {
		ID         int     `json:"id"`
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
		Text       string  `json:"text"`
		AvgLogProb float64 `json:"avg_logprob"`
	} `json:"segments"`
}

// Transcribe submits the audio file as a multipart inference request.
func (b *WhisperBackend) Transcribe(ctx context.Context, audioPath, language string) (*Result, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart request: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}
	_ = mw.WriteField("language", language)
	_ = mw.WriteField("response_format", "verbose_json")
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalise multipart request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/inference", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to whisper-server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Whisper] Inference error: status %d, body: %s", resp.StatusCode, string(body))
		return nil, fmt.Errorf("whisper-server returned status %d: %s", resp.StatusCode, string(body))
	}

	var wr whisperResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return nil, fmt.Errorf("failed to parse whisper-server response: %w", err)
	}
	if wr.Error != "" {
		return nil, fmt.Errorf("whisper-server error: %s", wr.Error)
	}

	res := &Result{
		Text:     strings.TrimSpace(wr.Text),
		Language: language,
		Backend:  b.Name(),
	}
	if wr.Language != "" {
		res.Language = wr.Language
	}
	for _, s := range wr.Segments {
		res.Segments = append(res.Segments, Segment{
			ID:         s.ID,
			Start:      s.Start,
			End:        s.End,
			Text:       strings.TrimSpace(s.Text),
			AvgLogProb: s.AvgLogProb,
			HasLogProb: true,
		})
	}
	return res, nil
}
