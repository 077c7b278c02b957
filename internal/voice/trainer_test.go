package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voicebridge/internal/apperr"
)

// fakeTrainer is a controllable VoiceTrainer.
type fakeTrainer struct {
	result  *TrainingResult
	err     error
	block   chan struct{} // when non-nil, Train waits until closed
	started chan struct{} // when non-nil, closed once Train is entered

	mu    sync.Mutex
	calls int
}

func (f *fakeTrainer) Train(ctx context.Context, profile *VoiceProfile) (*TrainingResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &TrainingResult{ProviderVoiceID: "voice-xyz", SampleCount: len(profile.Samples)}, nil
}

func (f *fakeTrainer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func profileWithSample(t *testing.T, s *Store) *VoiceProfile {
	t.Helper()
	p := mustCreate(t, s, "Ada")
	if err := s.AppendSample(p.ID, VoiceSample{ID: "s1", AudioPath: "s1.wav"}); err != nil {
		t.Fatalf("AppendSample: %v", err)
	}
	return p
}

func TestStart_TrainedOnSuccess(t *testing.T) {
	s := newTestStore(t)
	p := profileWithSample(t, s)
	o := NewOrchestrator(s, &fakeTrainer{}, time.Second)

	result, err := o.Start(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if result == nil || result.ProviderVoiceID != "voice-xyz" {
		t.Fatalf("expected non-null result payload, got %+v", result)
	}
	if result.CompletedAt.IsZero() {
		t.Error("expected CompletedAt to be set")
	}

	got, err := s.Get(p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TrainingStatus != TrainingComplete {
		t.Errorf("expected status trained, got %s", got.TrainingStatus)
	}
	if got.TrainingResult == nil || got.TrainingResult.ProviderVoiceID != "voice-xyz" {
		t.Errorf("result not recorded on profile: %+v", got.TrainingResult)
	}
	if got.TrainedAt == nil {
		t.Error("expected trained_at to be recorded")
	}
}

func TestStart_FailedRecordsErrorDetail(t *testing.T) {
	s := newTestStore(t)
	p := profileWithSample(t, s)
	o := NewOrchestrator(s, &fakeTrainer{err: errors.New("provider rejected samples")}, time.Second)

	if _, err := o.Start(context.Background(), p.ID); err == nil {
		t.Fatal("expected error")
	}

	got, err := s.Get(p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TrainingStatus != TrainingFailed {
		t.Errorf("expected status failed, got %s", got.TrainingStatus)
	}
	if got.TrainingError != "provider rejected samples" {
		t.Errorf("expected error detail recorded, got %q", got.TrainingError)
	}
}

func TestStart_UnknownProfile(t *testing.T) {
	s := newTestStore(t)
	o := NewOrchestrator(s, &fakeTrainer{}, time.Second)

	_, err := o.Start(context.Background(), "missing")
	var nf *apperr.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %T: %v", err, err)
	}
}

func TestStart_NoSamples(t *testing.T) {
	s := newTestStore(t)
	p := mustCreate(t, s, "Ada")
	trainer := &fakeTrainer{}
	o := NewOrchestrator(s, trainer, time.Second)

	_, err := o.Start(context.Background(), p.ID)
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
	if trainer.callCount() != 0 {
		t.Error("trainer must not be invoked without samples")
	}
}

func TestStart_ConcurrentStartIsRejected(t *testing.T) {
	s := newTestStore(t)
	p := profileWithSample(t, s)
	trainer := &fakeTrainer{
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	o := NewOrchestrator(s, trainer, 5*time.Second)

	firstDone := make(chan error, 1)
	go func() {
		_, err := o.Start(context.Background(), p.ID)
		firstDone <- err
	}()

	<-trainer.started // first job is in flight, status is training

	_, err := o.Start(context.Background(), p.ID)
	var conflict *apperr.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError for second start, got %T: %v", err, err)
	}

	close(trainer.block)
	if err := <-firstDone; err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if trainer.callCount() != 1 {
		t.Errorf("expected exactly one training invocation, got %d", trainer.callCount())
	}
}

func TestStart_RestartableAfterTerminalState(t *testing.T) {
	s := newTestStore(t)
	p := profileWithSample(t, s)

	failing := NewOrchestrator(s, &fakeTrainer{err: errors.New("boom")}, time.Second)
	if _, err := failing.Start(context.Background(), p.ID); err == nil {
		t.Fatal("expected first start to fail")
	}

	succeeding := NewOrchestrator(s, &fakeTrainer{}, time.Second)
	if _, err := succeeding.Start(context.Background(), p.ID); err != nil {
		t.Fatalf("restart after failed state: %v", err)
	}

	got, err := s.Get(p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TrainingStatus != TrainingComplete {
		t.Errorf("expected trained after restart, got %s", got.TrainingStatus)
	}
	if got.TrainingError != "" {
		t.Errorf("expected stale error cleared, got %q", got.TrainingError)
	}
}

func TestStart_TrainerSeesFullSampleSet(t *testing.T) {
	s := newTestStore(t)
	p := mustCreate(t, s, "Ada")
	for _, id := range []string{"s1", "s2", "s3"} {
		if err := s.AppendSample(p.ID, VoiceSample{ID: id}); err != nil {
			t.Fatalf("AppendSample: %v", err)
		}
	}
	o := NewOrchestrator(s, &fakeTrainer{}, time.Second)

	result, err := o.Start(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if result.SampleCount != 3 {
		t.Errorf("expected trainer to see 3 samples, got %d", result.SampleCount)
	}
}
