// Package transcribe contains the transcription engine: interchangeable
// acoustic-model backends behind one interface, explicit per-request
// selection between the standard model and the model tuned for
// non-standard speech, and log-probability-to-confidence normalization.
package transcribe

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"voicebridge/internal/apperr"
)

const defaultLanguage = "en"

// Engine routes transcription requests to the standard backend or the
// non-standard-speech backend and derives a normalized confidence score
// from the backend's segment log-probabilities.
type Engine struct {
	standard    Backend
	nonStandard Backend
	tempDir     string
}

// NewEngine creates an engine over the two backends. tempDir receives the
// transient files written for byte-stream transcription.
func NewEngine(standard, nonStandard Backend, tempDir string) *Engine {
	return &Engine{
		standard:    standard,
		nonStandard: nonStandard,
		tempDir:     tempDir,
	}
}

// Transcribe transcribes the audio file at audioPath. useNonStandardModel
// selects the backend tuned for atypical speech; otherwise the standard
// acoustic model is used. An empty language defaults to "en".
func (e *Engine) Transcribe(ctx context.Context, audioPath, language string, useNonStandardModel bool) (*Transcription, error) {
	if language == "" {
		language = defaultLanguage
	}

	backend := e.standard
	if useNonStandardModel {
		backend = e.nonStandard
	}

	res, err := backend.Transcribe(ctx, audioPath, language)
	if err != nil {
		return nil, &apperr.TranscriptionError{Backend: backend.Name(), Err: err}
	}

	conf := confidenceFromSegments(res.Segments)
	log.Printf("[Engine] Transcription via %s: confidence=%.2f, length=%d", backend.Name(), conf, len(res.Text))

	return &Transcription{
		Text:       res.Text,
		Language:   res.Language,
		Confidence: conf,
		Segments:   res.Segments,
	}, nil
}

// TranscribeBytes writes the audio bytes to a transient file and delegates
// to Transcribe. The transient file is removed on every exit path.
func (e *Engine) TranscribeBytes(ctx context.Context, audio []byte, language string, useNonStandardModel bool) (*Transcription, error) {
	if len(audio) == 0 {
		return nil, apperr.Validation("audio", "audio payload is empty")
	}

	if err := os.MkdirAll(e.tempDir, 0o755); err != nil {
		return nil, &apperr.StorageError{Op: "mkdir", Path: e.tempDir, Err: err}
	}

	tmpPath := filepath.Join(e.tempDir, uuid.NewString()+".wav")
	if err := os.WriteFile(tmpPath, audio, 0o644); err != nil {
		return nil, &apperr.StorageError{Op: "write", Path: tmpPath, Err: err}
	}
	defer func() {
		if err := os.Remove(tmpPath); err != nil {
			log.Printf("[Engine] Failed to remove temp file %s: %v", tmpPath, err)
		}
	}()

	return e.Transcribe(ctx, tmpPath, language, useNonStandardModel)
}

// confidenceFromSegments maps the arithmetic mean of the segment average
// log-probabilities into [0,1] via the fixed affine transform
// (mean+10)/10, clamped. Without segment log-probabilities the score is
// exactly 0. The transform is a compatibility requirement, not a
// probability.
func confidenceFromSegments(segments []Segment) float64 {
	var sum float64
	var n int
	for _, s := range segments {
		if !s.HasLogProb {
			continue
		}
		sum += s.AvgLogProb
		n++
	}
	if n == 0 {
		return 0.0
	}
	conf := (sum/float64(n) + 10) / 10
	if conf < 0 {
		return 0
	}
	if conf > 1 {
		return 1
	}
	return conf
}
