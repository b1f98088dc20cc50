package semantic

// SearchResult is a single vector search hit.
type SearchResult struct {
	ID      string  `json:"id"`
	Score   float32 `json:"score"`
	Content string  `json:"content"`
	DocID   string  `json:"doc_id"`
	ChunkID string  `json:"chunk_id"`
	Source  string  `json:"source"`
	Page    int64   `json:"page"`
}

// VectorRecord is a single vector to store.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Payload   map[string]any // content, doc_id, chunk_id, source, page, chunk_index
}
