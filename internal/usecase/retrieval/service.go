// Package retrieval implements the query-to-vector-search pipeline:
// embed, normalize, search, filter, assemble.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shankh-ai/ragserve/internal/domain"
	"github.com/shankh-ai/ragserve/internal/logger"
	"github.com/shankh-ai/ragserve/internal/metrics"
)

// Response is the outcome of one retrieval call. DetectedLanguage is
// empty when detection was unavailable or inconclusive.
type Response struct {
	Query            string
	Results          []domain.RetrievalResult
	DetectedLanguage string
	Elapsed          time.Duration
}

// Service answers similarity queries over the loaded index.
type Service struct {
	ready  ReadyChecker
	embed  Embedder
	index  Index
	detect domain.LanguageDetector
}

// New creates a retrieval service. detect may be nil when no language
// detection capability is available.
func New(ready ReadyChecker, embed Embedder, index Index, detect domain.LanguageDetector) *Service {
	return &Service{ready: ready, embed: embed, index: index, detect: detect}
}

// Retrieve runs the pipeline for one query. The query's K is assumed
// schema-validated to [1,50]; results may be fewer after sentinel and
// threshold filtering, never more.
func (s *Service) Retrieve(ctx context.Context, q domain.Query) (Response, error) {
	if !s.ready.IsReady() {
		return Response{}, domain.ErrNotReady
	}

	start := time.Now()

	// Diagnostic only: a failed guess never blocks retrieval.
	var detected string
	if s.detect != nil {
		if code, ok := s.detect.Detect(q.Text); ok {
			detected = code
		}
	}

	emb, err := s.embed.Embed(ctx, q.Text)
	if err != nil {
		return Response{}, fmt.Errorf("vectorize query: %w", err)
	}

	// Inner product over a normalized query equals cosine similarity.
	domain.NormalizeL2(emb.Embedding)

	scores, indices := s.index.Search(emb.Embedding, q.K)

	results := make([]domain.RetrievalResult, 0, q.K)
	for i, idx := range indices {
		if idx < 0 {
			// Index returned fewer than k valid neighbors.
			continue
		}
		score := scores[i]
		if q.Threshold != nil && score < *q.Threshold {
			continue
		}
		chunk, ok := s.index.Chunk(idx)
		if !ok {
			// Snapshot misalignment: warned about, never fatal.
			logger.FromContext(ctx).Warn("Search hit has no chunk metadata", zap.Int("index", idx))
			continue
		}
		// Search order is already score-descending; no re-sort.
		results = append(results, domain.RetrievalResult{Chunk: chunk, Score: score})
	}

	metrics.RetrievalResultsReturned.Observe(float64(len(results)))

	return Response{
		Query:            q.Text,
		Results:          results,
		DetectedLanguage: detected,
		Elapsed:          time.Since(start),
	}, nil
}
