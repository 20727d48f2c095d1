package index

import (
	"database/sql"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

// writeVectorFile writes a flat vector file in the snapshot format.
func writeVectorFile(t *testing.T, path string, dim int, vectors [][]float32) {
	t.Helper()

	buf := make([]byte, headerSize+len(vectors)*dim*4)
	copy(buf, flatMagic)
	binary.LittleEndian.PutUint32(buf[4:], flatVersion)
	binary.LittleEndian.PutUint32(buf[8:], uint32(dim))
	binary.LittleEndian.PutUint32(buf[12:], uint32(len(vectors)))
	off := headerSize
	for _, v := range vectors {
		for _, x := range v {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(x))
			off += 4
		}
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write vector file: %v", err)
	}
}

// writeMetadataStore creates a sqlite store with n chunk rows and an
// optional embedding_model meta entry.
func writeMetadataStore(t *testing.T, path string, n int, model string) {
	t.Helper()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE chunks (
			chunk_id INTEGER PRIMARY KEY,
			filename TEXT, page_num INTEGER, text TEXT, excerpt TEXT,
			char_start INTEGER, char_end INTEGER
		);
		CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT);`)
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}

	for i := 0; i < n; i++ {
		_, err = db.Exec(
			`INSERT INTO chunks VALUES (?, ?, ?, ?, ?, ?, ?)`,
			i, "doc.pdf", i+1, "chunk text", "excerpt", i*100, i*100+80,
		)
		if err != nil {
			t.Fatalf("insert chunk: %v", err)
		}
	}
	if model != "" {
		if _, err = db.Exec(`INSERT INTO meta VALUES ('embedding_model', ?)`, model); err != nil {
			t.Fatalf("insert meta: %v", err)
		}
	}
}

func newTestStore(t *testing.T, dim int, vectors [][]float32) *Store {
	t.Helper()

	dir := t.TempDir()
	writeVectorFile(t, filepath.Join(dir, VectorFile), dim, vectors)
	writeMetadataStore(t, filepath.Join(dir, MetadataFile), len(vectors), "test-model")

	store, err := Open(dir, "test-model", dim, zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

func TestSearch_OrderedByScore(t *testing.T) {
	store := newTestStore(t, 2, [][]float32{
		{0, 1},   // orthogonal to query
		{1, 0},   // exact match
		{0.6, 0.8},
	})

	scores, indices := store.Search([]float32{1, 0}, 3)

	wantIdx := []int{1, 2, 0}
	for i, want := range wantIdx {
		if indices[i] != want {
			t.Fatalf("position %d: expected index %d, got %d", i, want, indices[i])
		}
	}
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[i-1] {
			t.Errorf("scores not descending: %v", scores)
		}
	}
}

func TestSearch_SentinelPadding(t *testing.T) {
	store := newTestStore(t, 2, [][]float32{{1, 0}})

	scores, indices := store.Search([]float32{1, 0}, 5)

	if len(scores) != 5 || len(indices) != 5 {
		t.Fatalf("expected parallel slices of length 5, got %d/%d", len(scores), len(indices))
	}
	if indices[0] != 0 {
		t.Errorf("expected first index 0, got %d", indices[0])
	}
	for i := 1; i < 5; i++ {
		if indices[i] != NoMatch {
			t.Errorf("position %d: expected sentinel, got %d", i, indices[i])
		}
	}
}

func TestSearch_TieBreakByIndex(t *testing.T) {
	// Identical vectors produce identical scores; order must follow index.
	store := newTestStore(t, 2, [][]float32{{1, 0}, {1, 0}, {1, 0}})

	_, indices := store.Search([]float32{1, 0}, 3)

	for i, want := range []int{0, 1, 2} {
		if indices[i] != want {
			t.Errorf("position %d: expected %d, got %d", i, want, indices[i])
		}
	}
}

func TestChunk_Resolution(t *testing.T) {
	store := newTestStore(t, 2, [][]float32{{1, 0}, {0, 1}})

	c, ok := store.Chunk(1)
	if !ok {
		t.Fatal("expected chunk at index 1")
	}
	if c.ChunkID != 1 || c.PageNum != 2 || c.CharStart != 100 || c.CharEnd != 180 {
		t.Errorf("unexpected chunk: %+v", c)
	}

	if _, ok := store.Chunk(99); ok {
		t.Error("expected no chunk past the end")
	}
	if _, ok := store.Chunk(NoMatch); ok {
		t.Error("expected no chunk for the sentinel index")
	}
}

func TestStore_EmbeddingModel(t *testing.T) {
	store := newTestStore(t, 2, [][]float32{{1, 0}})

	if got := store.EmbeddingModel(); got != "test-model" {
		t.Errorf("expected test-model, got %q", got)
	}
	if store.Len() != 1 || store.Dim() != 2 {
		t.Errorf("unexpected size: len=%d dim=%d", store.Len(), store.Dim())
	}
}

func TestLoadFlat_BadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, VectorFile)
	if err := os.WriteFile(path, []byte("NOPE0000000000000000"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, err := LoadFlat(path); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestLoadFlat_TruncatedBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, VectorFile)

	buf := make([]byte, headerSize+4) // claims 2 vectors of dim 2, body holds one value
	copy(buf, flatMagic)
	binary.LittleEndian.PutUint32(buf[4:], flatVersion)
	binary.LittleEndian.PutUint32(buf[8:], 2)
	binary.LittleEndian.PutUint32(buf[12:], 2)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, err := LoadFlat(path); err == nil {
		t.Fatal("expected error for truncated body")
	}
}
