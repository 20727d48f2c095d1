// Package index reads the prebuilt retrieval snapshot: a flat vector file
// and a parallel sqlite chunk-metadata store, both produced offline by the
// ingestion pipeline. The snapshot is loaded once at startup and is
// read-only for the life of the process.
package index

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/shankh-ai/ragserve/internal/domain"
)

// NoMatch is the sentinel index returned when fewer than k vectors exist.
const NoMatch = -1

// Vector file layout: 4-byte magic, uint32 version, uint32 dim,
// uint32 count, then count*dim little-endian float32 values.
const (
	flatMagic   = "RGIX"
	flatVersion = 1
	headerSize  = 16
)

// Flat is an exact inner-product index over a dense row-major matrix.
type Flat struct {
	dim     int
	count   int
	vectors []float32
}

// LoadFlat reads a flat vector file from disk.
func LoadFlat(path string) (*Flat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vector file: %w", err)
	}
	if len(data) < headerSize {
		return nil, fmt.Errorf("vector file %s: truncated header (%d bytes)", path, len(data))
	}
	if string(data[:4]) != flatMagic {
		return nil, fmt.Errorf("vector file %s: bad magic %q", path, data[:4])
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != flatVersion {
		return nil, fmt.Errorf("vector file %s: unsupported version %d", path, v)
	}

	dim := int(binary.LittleEndian.Uint32(data[8:12]))
	count := int(binary.LittleEndian.Uint32(data[12:16]))
	if dim <= 0 {
		return nil, fmt.Errorf("vector file %s: invalid dimension %d", path, dim)
	}

	body := data[headerSize:]
	want := dim * count * 4
	if len(body) != want {
		return nil, fmt.Errorf("vector file %s: body is %d bytes, want %d (dim=%d count=%d)",
			path, len(body), want, dim, count)
	}

	vectors := make([]float32, dim*count)
	for i := range vectors {
		vectors[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:]))
	}

	return &Flat{dim: dim, count: count, vectors: vectors}, nil
}

// Dim returns the vector dimensionality.
func (f *Flat) Dim() int { return f.dim }

// Len returns the number of indexed vectors.
func (f *Flat) Len() int { return f.count }

// Search returns the k nearest vectors by inner product, score-descending
// with ties broken by ascending vector index. It always returns exactly k
// entries; positions past the last valid neighbor hold the NoMatch sentinel.
func (f *Flat) Search(query []float32, k int) ([]float32, []int) {
	scores := make([]float32, k)
	indices := make([]int, k)
	for i := range indices {
		indices[i] = NoMatch
	}

	n := f.count
	order := make([]int, n)
	dots := make([]float32, n)
	for i := 0; i < n; i++ {
		order[i] = i
		dots[i] = domain.Dot(query, f.vectors[i*f.dim:(i+1)*f.dim])
	}
	sort.Slice(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if dots[ia] != dots[ib] {
			return dots[ia] > dots[ib]
		}
		return ia < ib
	})

	for i := 0; i < k && i < n; i++ {
		scores[i] = dots[order[i]]
		indices[i] = order[i]
	}
	return scores, indices
}
