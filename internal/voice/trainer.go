package voice

import (
	"context"
	"log"
	"time"
)

// VoiceTrainer is the external model provider the orchestrator delegates
// the actual acoustic-model fitting to.
type VoiceTrainer interface {
	// Train fits a voice model from the profile's full sample set and
	// returns the provider's result payload.
	Train(ctx context.Context, profile *VoiceProfile) (*TrainingResult, error)
}

const defaultTrainingTimeout = 5 * time.Minute

// Orchestrator drives a profile's samples through the external training
// call and records the job's state transitions on the profile. At most one
// training job is in flight per profile; a second start while one runs is
// rejected with a conflict.
type Orchestrator struct {
	repo    ProfileRepository
	trainer VoiceTrainer
	timeout time.Duration
}

// NewOrchestrator creates a training orchestrator. timeout bounds the
// external training call; zero selects the default.
func NewOrchestrator(repo ProfileRepository, trainer VoiceTrainer, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = defaultTrainingTimeout
	}
	return &Orchestrator{repo: repo, trainer: trainer, timeout: timeout}
}

// Start runs one training invocation for the profile. The status moves to
// training under the store lock, the external call happens with the lock
// released and a timeout applied, then the terminal status is recorded.
func (o *Orchestrator) Start(ctx context.Context, profileID string) (*TrainingResult, error) {
	profile, err := o.repo.BeginTraining(profileID)
	if err != nil {
		return nil, err
	}

	trainCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	result, err := o.trainer.Train(trainCtx, profile)
	if err != nil {
		log.Printf("[Trainer] Training failed for profile %s: %v", profileID, err)
		if finishErr := o.repo.FinishTraining(profileID, TrainingFailed, nil, err.Error()); finishErr != nil {
			log.Printf("[Trainer] Failed to record training failure for profile %s: %v", profileID, finishErr)
		}
		return nil, err
	}

	if result.CompletedAt.IsZero() {
		result.CompletedAt = time.Now().UTC()
	}
	if err := o.repo.FinishTraining(profileID, TrainingComplete, result, ""); err != nil {
		return nil, err
	}

	log.Printf("[Trainer] Training complete for profile %s (%d samples)", profileID, result.SampleCount)
	return result, nil
}
