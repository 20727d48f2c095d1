package index

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/shankh-ai/ragserve/internal/domain"
)

// Snapshot file names inside the index directory.
const (
	VectorFile   = "vectors.bin"
	MetadataFile = "chunks.db"
)

// Store combines the flat vector index with its parallel chunk metadata.
// The two files are built together by the ingestion pipeline and assumed
// index-aligned; a count mismatch is logged, not validated row-by-row.
type Store struct {
	flat *Flat
	meta *Metadata
}

// Open loads the snapshot from dir. expectedModel and expectedDim describe
// the configured embedding model; mismatches against the snapshot are
// startup warnings only, never per-request errors.
func Open(dir, expectedModel string, expectedDim int, logger *zap.Logger) (*Store, error) {
	flat, err := LoadFlat(filepath.Join(dir, VectorFile))
	if err != nil {
		return nil, fmt.Errorf("load vector index: %w", err)
	}

	meta, err := LoadMetadata(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, fmt.Errorf("load chunk metadata: %w", err)
	}

	if flat.Len() != meta.Len() {
		logger.Warn("Vector index and chunk metadata sizes differ",
			zap.Int("vectors", flat.Len()),
			zap.Int("chunks", meta.Len()),
		)
	}
	if stored := meta.EmbeddingModel(); stored != "" && stored != expectedModel {
		logger.Warn("Index was built with a different embedding model",
			zap.String("stored", stored),
			zap.String("configured", expectedModel),
		)
	}
	if expectedDim > 0 && expectedDim != flat.Dim() {
		logger.Warn("Configured embedding dimension differs from index",
			zap.Int("configured", expectedDim),
			zap.Int("index", flat.Dim()),
		)
	}

	return &Store{flat: flat, meta: meta}, nil
}

// Search runs exact inner-product search, returning parallel score and
// index slices of length k with NoMatch padding.
func (s *Store) Search(vector []float32, k int) ([]float32, []int) {
	return s.flat.Search(vector, k)
}

// Chunk resolves a vector index position to its chunk record.
func (s *Store) Chunk(i int) (domain.Chunk, bool) { return s.meta.Chunk(i) }

// Len returns the number of indexed chunks.
func (s *Store) Len() int { return s.meta.Len() }

// Dim returns the index vector dimensionality.
func (s *Store) Dim() int { return s.flat.Dim() }

// EmbeddingModel returns the model name recorded in the snapshot.
func (s *Store) EmbeddingModel() string { return s.meta.EmbeddingModel() }
