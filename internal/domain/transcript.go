package domain

import "context"

// SpeechModel transcribes an audio file on disk. Implementations are
// read-only after construction and safe for concurrent use.
type SpeechModel interface {
	// Name identifies the model slot in logs and metrics.
	Name() string
	TranscribeFile(ctx context.Context, path string) (SpeechResult, error)
}

// SpeechResult is the raw output of a single speech model. Segments is
// empty for models without segment-level timing; Language is empty when
// the model does not report one.
type SpeechResult struct {
	Text     string
	Language string
	Segments []SpeechSegment
}

// SpeechSegment is a timed piece of a model transcription. NoSpeechProb
// is the model's probability that the segment contains no speech; models
// without that signal leave it zero.
type SpeechSegment struct {
	Start        float64
	End          float64
	Text         string
	NoSpeechProb float64
}

// TranscriptSegment is a timed piece of the final transcription, as
// returned to the caller.
type TranscriptSegment struct {
	Start float64
	End   float64
	Text  string
}

// Transcription is the final result of the transcription chain.
// Confidence is nil only when no model reported or implied one.
type Transcription struct {
	Text       string
	Language   string
	Confidence *float32
	Segments   []TranscriptSegment
}
