// Package voice holds the voice personalization core: the profile store
// with its single-active-profile invariant, sample intake, the training
// orchestrator and the speech-pattern analyzer.
package voice

import "time"

// TrainingStatus tracks the training state machine of a profile:
// queued -> training -> trained | failed. trained and failed are terminal
// for one invocation; a new start moves out of either back into training.
type TrainingStatus string

const (
	TrainingNotStarted TrainingStatus = "not_started"
	TrainingQueued     TrainingStatus = "queued"
	TrainingInProgress TrainingStatus = "training"
	TrainingComplete   TrainingStatus = "trained"
	TrainingFailed     TrainingStatus = "failed"
)

// VoiceSample is one recorded utterance plus its transcription-derived
// quality metrics. Samples are immutable after creation; they are removed
// only when the owning profile is deleted.
type VoiceSample struct {
	ID       string `json:"id"`
	Phrase   string `json:"phrase"`
	AudioPath string `json:"audio_path"`
	Category string `json:"category"`

	// Duration is an estimate derived from file size at an assumed byte
	// rate, not an exact decode. Advisory only.
	Duration float64 `json:"duration"`

	// Accuracy equals the transcription confidence at capture time.
	Accuracy      float64 `json:"accuracy"`
	Transcription string  `json:"transcription"`
	Confidence    float64 `json:"confidence"`

	SpeechCharacteristics map[string]any `json:"speech_characteristics"`
	CreatedAt             time.Time      `json:"created_at"`
}

// TrainingResult is the opaque success payload recorded when an external
// training call completes.
type TrainingResult struct {
	ProviderVoiceID string    `json:"provider_voice_id"`
	SampleCount     int       `json:"sample_count"`
	Message         string    `json:"message"`
	CompletedAt     time.Time `json:"completed_at"`
}

// VoiceProfile is a named configuration of voice characteristics plus its
// accumulated training samples. At most one profile in the store is active
// at any time.
type VoiceProfile struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Tone         string  `json:"tone"`
	SpeakingRate float64 `json:"speaking_rate"`
	Stability    float64 `json:"stability"`
	Similarity   float64 `json:"similarity"`

	SpeechCharacteristics map[string]any `json:"speech_characteristics"`

	IsActive bool          `json:"is_active"`
	Samples  []VoiceSample `json:"samples"`

	TrainingStatus TrainingStatus  `json:"training_status"`
	TrainingError  string          `json:"training_error,omitempty"`
	TrainingResult *TrainingResult `json:"training_result,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	TrainedAt *time.Time `json:"trained_at,omitempty"`
}

// ProfileSpec carries the client-supplied fields for profile creation.
// Nil optional fields receive the store defaults.
type ProfileSpec struct {
	Name                  string
	Description           string
	Tone                  string
	SpeakingRate          *float64
	Stability             *float64
	Similarity            *float64
	SpeechCharacteristics map[string]any
}
