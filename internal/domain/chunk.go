package domain

// Chunk is one retrievable slice of a source document. Chunks are loaded
// once at startup, identified by their position in the index, and never
// mutated afterwards.
type Chunk struct {
	ChunkID   int
	Filename  string
	PageNum   int
	Text      string
	Excerpt   string
	CharStart int
	CharEnd   int
}
