package domain

// Query is a single retrieval request. K is validated to [1,50] by the
// transport layer before it reaches the pipeline; Threshold is nil when the
// caller did not set one.
type Query struct {
	Text      string
	K         int
	LangHint  string
	Threshold *float32
}

// RetrievalResult pairs a chunk with its cosine similarity score.
// Higher scores are more relevant.
type RetrievalResult struct {
	Chunk Chunk
	Score float32
}
