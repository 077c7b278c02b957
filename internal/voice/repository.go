package voice

// ProfileRepository defines data access for voice profiles and their
// samples. All implementations must uphold the at-most-one-active
// invariant and serialize mutations per profile.
type ProfileRepository interface {
	// Create assigns a fresh id, applies defaults for missing optional
	// fields and persists the new profile (inactive, no samples).
	Create(spec ProfileSpec) (*VoiceProfile, error)

	// Get retrieves a profile by id.
	Get(id string) (*VoiceProfile, error)

	// List returns all profiles in creation order.
	List() ([]VoiceProfile, error)

	// Activate marks the profile active and every other profile inactive as
	// one atomic update.
	Activate(id string) error

	// Delete removes the profile and releases its sample audio files.
	// Deleting an unknown id is an idempotent no-op.
	Delete(id string) error

	// AppendSample appends a sample to the profile; order = arrival order.
	AppendSample(profileID string, sample VoiceSample) error

	// GetSample resolves a sample id across all profiles.
	GetSample(sampleID string) (*VoiceSample, error)

	// BeginTraining transitions the profile queued -> training, rejecting
	// profiles that are already training or have no samples. It returns a
	// snapshot of the profile for the external training call.
	BeginTraining(profileID string) (*VoiceProfile, error)

	// FinishTraining records the terminal state of a training invocation.
	FinishTraining(profileID string, status TrainingStatus, result *TrainingResult, trainingErr string) error
}
