package voice

import (
	"fmt"
	"sort"

	"voicebridge/internal/apperr"
)

// Analysis is the cross-sample speech-pattern summary.
type Analysis struct {
	SampleCount    int     `json:"sample_count"`
	MeanConfidence float64 `json:"mean_confidence"`
	MeanAccuracy   float64 `json:"mean_accuracy"`

	// CharacteristicSummary maps each characteristic key to the values
	// observed across the sample set.
	CharacteristicSummary map[string][]any `json:"characteristic_summary"`
}

// Analyzer aggregates confidence, accuracy and speech characteristics
// across a sample set.
type Analyzer struct {
	repo ProfileRepository
}

// NewAnalyzer creates a pattern analyzer over the given repository.
func NewAnalyzer(repo ProfileRepository) *Analyzer {
	return &Analyzer{repo: repo}
}

// Analyze resolves the sample ids and computes the summary statistics. The
// aggregation is a pure function of the resolved samples: observed
// characteristic values are sorted, so identical id sets produce identical
// results regardless of input ordering.
func (a *Analyzer) Analyze(sampleIDs []string) (*Analysis, error) {
	if len(sampleIDs) == 0 {
		return nil, apperr.Validation("sample_ids", "at least one sample id is required")
	}

	samples := make([]*VoiceSample, 0, len(sampleIDs))
	for _, id := range sampleIDs {
		sample, err := a.repo.GetSample(id)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}

	var confSum, accSum float64
	summary := make(map[string][]any)
	for _, s := range samples {
		confSum += s.Confidence
		accSum += s.Accuracy
		for k, v := range s.SpeechCharacteristics {
			summary[k] = append(summary[k], v)
		}
	}
	n := float64(len(samples))

	for k := range summary {
		vals := summary[k]
		sort.Slice(vals, func(i, j int) bool {
			return fmt.Sprint(vals[i]) < fmt.Sprint(vals[j])
		})
	}

	return &Analysis{
		SampleCount:           len(samples),
		MeanConfidence:        confSum / n,
		MeanAccuracy:          accSum / n,
		CharacteristicSummary: summary,
	}, nil
}
