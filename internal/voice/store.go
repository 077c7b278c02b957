package voice

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"voicebridge/internal/apperr"
)

// Profile creation defaults.
const (
	defaultTone         = "neutral"
	defaultSpeakingRate = 1.0
	defaultStability    = 0.5
	defaultSimilarity   = 0.75
)

// Store is the file-backed ProfileRepository. The authoritative profile
// collection lives in a single JSON file; every mutation happens under the
// store mutex and is persisted before the lock is released, so the
// single-active invariant holds for any observer.
type Store struct {
	mu       sync.Mutex
	path     string
	profiles []*VoiceProfile
}

var _ ProfileRepository = (*Store)(nil)

// NewStore opens the profile collection at path, creating an empty one if
// the file does not exist yet.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, &apperr.StorageError{Op: "read", Path: path, Err: err}
	}
	if err := json.Unmarshal(data, &s.profiles); err != nil {
		return nil, &apperr.StorageError{Op: "parse", Path: path, Err: err}
	}

	log.Printf("[Store] Loaded %d voice profile(s) from %s", len(s.profiles), path)
	return s, nil
}

// Create assigns a fresh id, applies defaults and persists the profile.
func (s *Store) Create(spec ProfileSpec) (*VoiceProfile, error) {
	if spec.Name == "" {
		return nil, apperr.Validation("name", "name is required")
	}

	p := &VoiceProfile{
		ID:                    uuid.NewString(),
		Name:                  spec.Name,
		Description:           spec.Description,
		Tone:                  defaultTone,
		SpeakingRate:          defaultSpeakingRate,
		Stability:             defaultStability,
		Similarity:            defaultSimilarity,
		SpeechCharacteristics: map[string]any{},
		IsActive:              false,
		Samples:               []VoiceSample{},
		TrainingStatus:        TrainingNotStarted,
		CreatedAt:             time.Now().UTC(),
	}
	if spec.Tone != "" {
		p.Tone = spec.Tone
	}
	if spec.SpeakingRate != nil {
		p.SpeakingRate = *spec.SpeakingRate
	}
	if spec.Stability != nil {
		p.Stability = *spec.Stability
	}
	if spec.Similarity != nil {
		p.Similarity = *spec.Similarity
	}
	if spec.SpeechCharacteristics != nil {
		p.SpeechCharacteristics = cloneMap(spec.SpeechCharacteristics)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles = append(s.profiles, p)
	if err := s.persistLocked(); err != nil {
		s.profiles = s.profiles[:len(s.profiles)-1]
		return nil, err
	}

	log.Printf("[Store] Created profile %s (%s)", p.ID, p.Name)
	return cloneProfile(p), nil
}

// Get retrieves a profile by id.
func (s *Store) Get(id string) (*VoiceProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findLocked(id)
	if p == nil {
		return nil, apperr.NotFound("profile", id)
	}
	return cloneProfile(p), nil
}

// List returns all profiles in creation order.
func (s *Store) List() ([]VoiceProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]VoiceProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, *cloneProfile(p))
	}
	return out, nil
}

// Activate marks the target active and all other profiles inactive in one
// pass under the store lock, so no observer ever sees zero or two active
// profiles.
func (s *Store) Activate(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findLocked(id) == nil {
		return apperr.NotFound("profile", id)
	}

	prev := make([]bool, len(s.profiles))
	for i, p := range s.profiles {
		prev[i] = p.IsActive
		p.IsActive = p.ID == id
	}
	if err := s.persistLocked(); err != nil {
		for i, p := range s.profiles {
			p.IsActive = prev[i]
		}
		return err
	}

	log.Printf("[Store] Activated profile %s", id)
	return nil
}

// Delete removes the profile and its sample audio files. Unknown ids are a
// no-op so client retries cannot fail spuriously.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, p := range s.profiles {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}

	removed := s.profiles[idx]
	s.profiles = append(s.profiles[:idx], s.profiles[idx+1:]...)
	if err := s.persistLocked(); err != nil {
		s.profiles = append(s.profiles[:idx], append([]*VoiceProfile{removed}, s.profiles[idx:]...)...)
		return err
	}

	// The profile record is gone; releasing the audio files is best effort.
	for _, sample := range removed.Samples {
		if sample.AudioPath == "" {
			continue
		}
		if err := os.Remove(sample.AudioPath); err != nil && !os.IsNotExist(err) {
			log.Printf("[Store] Failed to remove sample audio %s: %v", sample.AudioPath, err)
		}
	}

	log.Printf("[Store] Deleted profile %s (%d sample file(s) released)", id, len(removed.Samples))
	return nil
}

// AppendSample appends a sample to the profile's ordered sequence.
func (s *Store) AppendSample(profileID string, sample VoiceSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findLocked(profileID)
	if p == nil {
		return apperr.NotFound("profile", profileID)
	}

	p.Samples = append(p.Samples, *cloneSample(&sample))
	if err := s.persistLocked(); err != nil {
		p.Samples = p.Samples[:len(p.Samples)-1]
		return err
	}
	return nil
}

// GetSample resolves a sample id across all profiles.
func (s *Store) GetSample(sampleID string) (*VoiceSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.profiles {
		for i := range p.Samples {
			if p.Samples[i].ID == sampleID {
				return cloneSample(&p.Samples[i]), nil
			}
		}
	}
	return nil, apperr.NotFound("sample", sampleID)
}

// BeginTraining transitions queued -> training under the lock. A profile
// already in training is rejected with a conflict; one with no samples is
// rejected as unusable input. The returned snapshot is what the external
// trainer sees; the lock is not held across that call.
func (s *Store) BeginTraining(profileID string) (*VoiceProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findLocked(profileID)
	if p == nil {
		return nil, apperr.NotFound("profile", profileID)
	}
	if p.TrainingStatus == TrainingInProgress {
		return nil, apperr.Conflict(fmt.Sprintf("training already in progress for profile %s", profileID))
	}
	if len(p.Samples) == 0 {
		return nil, apperr.Validation("samples", "profile has no voice samples to train on")
	}

	prevStatus, prevErr := p.TrainingStatus, p.TrainingError
	p.TrainingStatus = TrainingQueued
	log.Printf("[Store] Profile %s training queued", profileID)
	p.TrainingStatus = TrainingInProgress
	p.TrainingError = ""
	if err := s.persistLocked(); err != nil {
		p.TrainingStatus, p.TrainingError = prevStatus, prevErr
		return nil, err
	}

	log.Printf("[Store] Profile %s training started (%d samples)", profileID, len(p.Samples))
	return cloneProfile(p), nil
}

// FinishTraining records the terminal state of a training invocation.
func (s *Store) FinishTraining(profileID string, status TrainingStatus, result *TrainingResult, trainingErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findLocked(profileID)
	if p == nil {
		return apperr.NotFound("profile", profileID)
	}

	p.TrainingStatus = status
	p.TrainingError = trainingErr
	p.TrainingResult = result
	if status == TrainingComplete {
		now := time.Now().UTC()
		p.TrainedAt = &now
	}
	if err := s.persistLocked(); err != nil {
		return err
	}

	log.Printf("[Store] Profile %s training finished: %s", profileID, status)
	return nil
}

// findLocked returns the live profile record; callers must hold mu.
func (s *Store) findLocked(id string) *VoiceProfile {
	for _, p := range s.profiles {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// persistLocked writes the collection atomically: marshal to a temporary
// file next to the target, then rename over it. Callers must hold mu.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.profiles, "", "  ")
	if err != nil {
		return &apperr.StorageError{Op: "marshal", Path: s.path, Err: err}
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &apperr.StorageError{Op: "mkdir", Path: dir, Err: err}
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &apperr.StorageError{Op: "write", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return &apperr.StorageError{Op: "rename", Path: s.path, Err: err}
	}
	return nil
}

func cloneProfile(p *VoiceProfile) *VoiceProfile {
	out := *p
	out.SpeechCharacteristics = cloneMap(p.SpeechCharacteristics)
	out.Samples = make([]VoiceSample, len(p.Samples))
	for i := range p.Samples {
		out.Samples[i] = *cloneSample(&p.Samples[i])
	}
	if p.TrainingResult != nil {
		res := *p.TrainingResult
		out.TrainingResult = &res
	}
	if p.TrainedAt != nil {
		t := *p.TrainedAt
		out.TrainedAt = &t
	}
	return &out
}

func cloneSample(s *VoiceSample) *VoiceSample {
	out := *s
	out.SpeechCharacteristics = cloneMap(s.SpeechCharacteristics)
	return &out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
