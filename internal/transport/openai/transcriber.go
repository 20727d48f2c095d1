package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/shankh-ai/ragserve/internal/domain"
)

// TranscriberConfig holds the settings of one speech model slot.
type TranscriberConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Name    string // slot name for logs and metrics
}

// Transcriber is a speech model served over the OpenAI-compatible
// /audio/transcriptions API. Verbose mode requests segment-level timing
// (whisper-family models); plain mode requests text only, for model
// families that do not expose segments.
type Transcriber struct {
	client  *openai.Client
	model   string
	name    string
	verbose bool
}

// NewPlainTranscriber creates a transcriber that requests plain JSON
// output: text only, no segments, no per-segment signals.
func NewPlainTranscriber(cfg TranscriberConfig) *Transcriber {
	return newTranscriber(cfg, false)
}

// NewVerboseTranscriber creates a transcriber that requests verbose JSON
// output with native segments, including no-speech probabilities.
func NewVerboseTranscriber(cfg TranscriberConfig) *Transcriber {
	return newTranscriber(cfg, true)
}

func newTranscriber(cfg TranscriberConfig, verbose bool) *Transcriber {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Transcriber{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		name:    cfg.Name,
		verbose: verbose,
	}
}

// Name identifies the slot in logs and metrics.
func (t *Transcriber) Name() string { return t.name }

// TranscribeFile implements domain.SpeechModel.
func (t *Transcriber) TranscribeFile(ctx context.Context, path string) (domain.SpeechResult, error) {
	req := openai.AudioRequest{
		Model:    t.model,
		FilePath: path,
		Format:   openai.AudioResponseFormatJSON,
	}
	if t.verbose {
		req.Format = openai.AudioResponseFormatVerboseJSON
	}

	resp, err := t.client.CreateTranscription(ctx, req)
	if err != nil {
		return domain.SpeechResult{}, fmt.Errorf("transcription API (%s): %w", t.name, err)
	}

	result := domain.SpeechResult{
		Text:     strings.TrimSpace(resp.Text),
		Language: resp.Language,
	}
	for _, seg := range resp.Segments {
		result.Segments = append(result.Segments, domain.SpeechSegment{
			Start:        seg.Start,
			End:          seg.End,
			Text:         strings.TrimSpace(seg.Text),
			NoSpeechProb: seg.NoSpeechProb,
		})
	}
	return result, nil
}

// HealthCheck verifies API availability via ListModels.
func (t *Transcriber) HealthCheck(ctx context.Context) error {
	if _, err := t.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models (%s): %w", t.name, err)
	}
	return nil
}
