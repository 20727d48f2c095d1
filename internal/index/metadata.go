package index

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/shankh-ai/ragserve/internal/domain"
)

// Metadata holds the chunk records parallel to the vector file, fully
// loaded into memory at startup.
type Metadata struct {
	chunks         []domain.Chunk
	embeddingModel string
}

// LoadMetadata reads every chunk row from the sqlite metadata store.
// Rows are ordered by chunk_id so slice position matches vector index
// position.
func LoadMetadata(path string) (*Metadata, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT chunk_id, filename, page_num, text, excerpt, char_start, char_end
		FROM chunks ORDER BY chunk_id`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	m := &Metadata{}
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(
			&c.ChunkID, &c.Filename, &c.PageNum, &c.Text, &c.Excerpt,
			&c.CharStart, &c.CharEnd,
		); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		m.chunks = append(m.chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk rows: %w", err)
	}

	m.embeddingModel, err = readMetaValue(db, "embedding_model")
	if err != nil {
		return nil, err
	}

	return m, nil
}

// readMetaValue reads one key from the meta table. A missing key or a
// missing meta table yields an empty value, not an error: old snapshots
// predate the table.
func readMetaValue(db *sql.DB, key string) (string, error) {
	var n int
	err := db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'meta'`,
	).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("inspect meta table: %w", err)
	}
	if n == 0 {
		return "", nil
	}

	var value string
	err = db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read meta %q: %w", key, err)
	}
	return value, nil
}

// Len returns the number of chunk records.
func (m *Metadata) Len() int { return len(m.chunks) }

// Chunk returns the record at position i.
func (m *Metadata) Chunk(i int) (domain.Chunk, bool) {
	if i < 0 || i >= len(m.chunks) {
		return domain.Chunk{}, false
	}
	return m.chunks[i], true
}

// EmbeddingModel returns the model name the snapshot was built with, or
// empty when the snapshot does not record one.
func (m *Metadata) EmbeddingModel() string { return m.embeddingModel }
