package retrieval

import (
	"context"

	"github.com/shankh-ai/ragserve/internal/domain"
)

// ReadyChecker gates the pipeline on service readiness.
type ReadyChecker interface {
	IsReady() bool
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Index is the read-only vector index with its parallel chunk metadata.
// Search returns score/index slices of length k, score-descending, with
// negative index values marking "no match" positions.
type Index interface {
	Search(vector []float32, k int) (scores []float32, indices []int)
	Chunk(i int) (domain.Chunk, bool)
}
