package transcribe

// Segment is one recognised portion of the audio.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`

	// AvgLogProb is the segment's average token log-probability. HasLogProb
	// is false for backends that do not report it (the confidence score is
	// then 0).
	AvgLogProb float64 `json:"avg_logprob"`
	HasLogProb bool    `json:"-"`
}

// Result is the raw output of a transcription backend, before confidence
// normalization.
type Result struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
	Backend  string    `json:"-"` // backend that produced the result
}

// Transcription is a backend result with the derived confidence score
// attached. Confidence is in [0,1] and is a fixed normalization of segment
// log-probabilities, not a calibrated probability.
type Transcription struct {
	Text       string    `json:"text"`
	Language   string    `json:"language"`
	Confidence float64   `json:"confidence"`
	Segments   []Segment `json:"segments"`
}
