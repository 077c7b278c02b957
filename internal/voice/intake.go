package voice

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"voicebridge/internal/apperr"
	"voicebridge/internal/transcribe"
)

// assumedByteRate is the byte rate used to estimate sample duration from
// file size. The value is an approximation, not an exact decode; the
// resulting duration is advisory and kept for compatibility with existing
// consumers.
const assumedByteRate = 16000.0

// Transcriber is the part of the transcription engine the intake needs.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string, useNonStandardModel bool) (*transcribe.Transcription, error)
}

// Intake receives raw sample audio, transcribes it for quality scoring and
// attaches the resulting sample to a profile.
type Intake struct {
	engine     Transcriber
	repo       ProfileRepository
	samplesDir string
}

// NewIntake creates a sample intake writing audio files under samplesDir.
func NewIntake(engine Transcriber, repo ProfileRepository, samplesDir string) *Intake {
	return &Intake{engine: engine, repo: repo, samplesDir: samplesDir}
}

// Ingest persists the audio under a collision-free name, transcribes it,
// derives the quality metrics and appends the sample to the profile. On
// any failure after the audio write the stored file is removed again; a
// failed ingest never leaves an orphaned file or a dangling sample
// reference.
func (in *Intake) Ingest(ctx context.Context, profileID, phrase, category, filename string, audio []byte, characteristicsJSON string) (*VoiceSample, error) {
	if len(audio) == 0 {
		return nil, apperr.Validation("audio", "audio payload is empty")
	}

	characteristics, err := parseCharacteristics(characteristicsJSON)
	if err != nil {
		return nil, err
	}

	// Resolve the profile up front so an unknown id costs no file write.
	if _, err := in.repo.Get(profileID); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(in.samplesDir, 0o755); err != nil {
		return nil, &apperr.StorageError{Op: "mkdir", Path: in.samplesDir, Err: err}
	}

	sampleID := uuid.NewString()
	audioPath := filepath.Join(in.samplesDir, sampleID+sampleExtension(filename))
	if err := os.WriteFile(audioPath, audio, 0o644); err != nil {
		return nil, &apperr.StorageError{Op: "write", Path: audioPath, Err: err}
	}

	result, err := in.engine.Transcribe(ctx, audioPath, "", false)
	if err != nil {
		in.discard(audioPath)
		return nil, err
	}

	sample := VoiceSample{
		ID:                    sampleID,
		Phrase:                phrase,
		AudioPath:             audioPath,
		Category:              category,
		Duration:              float64(len(audio)) / assumedByteRate,
		Accuracy:              result.Confidence,
		Transcription:         result.Text,
		Confidence:            result.Confidence,
		SpeechCharacteristics: characteristics,
		CreatedAt:             time.Now().UTC(),
	}

	if err := in.repo.AppendSample(profileID, sample); err != nil {
		in.discard(audioPath)
		return nil, err
	}

	log.Printf("[Intake] Sample %s ingested for profile %s (accuracy=%.2f)", sampleID, profileID, sample.Accuracy)
	return &sample, nil
}

func (in *Intake) discard(audioPath string) {
	if err := os.Remove(audioPath); err != nil && !os.IsNotExist(err) {
		log.Printf("[Intake] Failed to remove audio %s after failed ingest: %v", audioPath, err)
	}
}

// parseCharacteristics parses the client-supplied characteristics field as
// strict JSON. Anything that is not a well-formed JSON object is rejected;
// the input is never evaluated as code.
func parseCharacteristics(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}

	var characteristics map[string]any
	if err := json.Unmarshal([]byte(raw), &characteristics); err != nil {
		return nil, apperr.Validation("speech_characteristics", "must be a well-formed JSON object")
	}
	return characteristics, nil
}

func sampleExtension(filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		return ".wav"
	}
	return ext
}
