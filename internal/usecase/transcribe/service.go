// Package transcribe implements the multi-model transcription chain:
// try the primary speech model, fall back on failure, first success wins.
// The chain never aggregates or votes between models.
package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/shankh-ai/ragserve/internal/domain"
	"github.com/shankh-ai/ragserve/internal/logger"
	"github.com/shankh-ai/ragserve/internal/metrics"
)

const (
	// The primary model family reports no native confidence score.
	primaryConfidence = 0.85
	// Fallback confidence when the model returns no segments.
	fallbackConfidence = 0.8
	// Default language when detection is unavailable: the primary
	// model's specialization.
	defaultLanguage = "hi"

	defaultSuffix = ".wav"
)

// Service runs the transcription fallback chain. Either model slot may
// be nil; with both absent every call reports ErrSTTUnavailable.
type Service struct {
	primary  domain.SpeechModel
	fallback domain.SpeechModel
	detect   domain.LanguageDetector
	tempDir  string // empty = system temp dir
}

// New creates a transcription service.
func New(primary, fallback domain.SpeechModel, detect domain.LanguageDetector, tempDir string) *Service {
	return &Service{primary: primary, fallback: fallback, detect: detect, tempDir: tempDir}
}

// Available reports whether at least one speech model is loaded.
func (s *Service) Available() bool { return s.primary != nil || s.fallback != nil }

// Transcribe runs the chain over the uploaded audio. The returned
// attempts describe every slot decision in order. The audio is staged in
// a temporary file created at most once and removed exactly once,
// whichever path the call exits through.
func (s *Service) Transcribe(
	ctx context.Context, audio []byte, filenameHint string,
) (domain.Transcription, []Attempt, error) {
	log := logger.FromContext(ctx)

	if !s.Available() {
		metrics.STTAttemptsTotal.WithLabelValues(string(SlotPrimary), string(OutcomeUnavailable)).Inc()
		metrics.STTAttemptsTotal.WithLabelValues(string(SlotFallback), string(OutcomeUnavailable)).Inc()
		return domain.Transcription{}, nil, domain.ErrSTTUnavailable
	}

	path, err := s.stageAudio(audio, filenameHint)
	if err != nil {
		return domain.Transcription{}, nil, fmt.Errorf("stage audio: %w", err)
	}
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil {
			log.Warn("Failed to remove staged audio", zap.String("path", path), zap.Error(rmErr))
		}
	}()

	var attempts []Attempt

	if s.primary != nil {
		result, attempt := s.attempt(ctx, SlotPrimary, s.primary, path)
		attempts = append(attempts, attempt)
		if attempt.Outcome == OutcomeSuccess {
			return s.primaryTranscription(result), attempts, nil
		}
		// No retry of the same model; the error is recorded and the
		// chain moves on.
		log.Warn("Primary speech model failed, falling back",
			zap.String("model", s.primary.Name()),
			zap.Error(attempt.Err),
		)
	} else {
		attempts = append(attempts, Attempt{Slot: SlotPrimary, Outcome: OutcomeUnavailable})
	}

	if s.fallback == nil {
		// The primary was the only slot and it failed.
		attempts = append(attempts, Attempt{Slot: SlotFallback, Outcome: OutcomeUnavailable})
		return domain.Transcription{}, attempts,
			fmt.Errorf("%w: %v", domain.ErrTranscriptionFailed, attempts[0].Err)
	}

	result, attempt := s.attempt(ctx, SlotFallback, s.fallback, path)
	attempts = append(attempts, attempt)
	if attempt.Outcome != OutcomeSuccess {
		return domain.Transcription{}, attempts,
			fmt.Errorf("%w: %v", domain.ErrTranscriptionFailed, attempt.Err)
	}
	return s.fallbackTranscription(result), attempts, nil
}

// stageAudio writes the upload to a scoped temporary file, keeping the
// original extension so model backends can sniff the container format.
func (s *Service) stageAudio(audio []byte, filenameHint string) (string, error) {
	suffix := defaultSuffix
	if ext := filepath.Ext(filenameHint); ext != "" {
		suffix = ext
	}

	f, err := os.CreateTemp(s.tempDir, "stt-*"+suffix)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(audio); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), nil
}

// attempt runs one model over the staged audio. A panicking model is
// treated the same as a failing one, so the chain and the cleanup
// contract hold on every exit path.
func (s *Service) attempt(
	ctx context.Context, slot Slot, model domain.SpeechModel, path string,
) (domain.SpeechResult, Attempt) {
	start := time.Now()

	result, err := func() (result domain.SpeechResult, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("speech model panic: %v", p)
			}
		}()
		return model.TranscribeFile(ctx, path)
	}()

	elapsed := time.Since(start)
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}

	metrics.STTAttemptsTotal.WithLabelValues(string(slot), string(outcome)).Inc()
	metrics.STTAttemptDuration.WithLabelValues(string(slot)).Observe(elapsed.Seconds())

	return result, Attempt{Slot: slot, Outcome: outcome, Elapsed: elapsed, Err: err}
}

// primaryTranscription assembles the result of a primary-model success:
// fixed confidence, no segments (the model family exposes neither).
func (s *Service) primaryTranscription(result domain.SpeechResult) domain.Transcription {
	conf := float32(primaryConfidence)
	return domain.Transcription{
		Text:       result.Text,
		Language:   s.language(result),
		Confidence: &conf,
		Segments:   []domain.TranscriptSegment{},
	}
}

// fallbackTranscription assembles the result of a fallback-model
// success. Confidence is synthesized from the model's own no-speech
// probabilities: 1 - mean(no_speech_prob) over segments, or a fixed
// default when no segments were reported.
func (s *Service) fallbackTranscription(result domain.SpeechResult) domain.Transcription {
	conf := float32(fallbackConfidence)
	if len(result.Segments) > 0 {
		var sum float64
		for _, seg := range result.Segments {
			sum += seg.NoSpeechProb
		}
		conf = float32(1 - sum/float64(len(result.Segments)))
	}

	segments := make([]domain.TranscriptSegment, 0, len(result.Segments))
	for _, seg := range result.Segments {
		segments = append(segments, domain.TranscriptSegment{
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
	}

	return domain.Transcription{
		Text:       result.Text,
		Language:   s.language(result),
		Confidence: &conf,
		Segments:   segments,
	}
}

// language picks the transcript language: model-reported when present,
// else best-effort detection over the produced text, else the default.
func (s *Service) language(result domain.SpeechResult) string {
	if result.Language != "" {
		return result.Language
	}
	if s.detect != nil {
		if code, ok := s.detect.Detect(result.Text); ok {
			return code
		}
	}
	return defaultLanguage
}
