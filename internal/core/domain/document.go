package domain

import "time"

// DocumentMetadata carries frontmatter-derived fields. Tags and the source
// creation time are recognized explicitly; everything else lands in Extra.
type DocumentMetadata struct {
	Tags    []string       `json:"tags,omitempty"`
	Created string         `json:"created,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

type Document struct {
	ID        string           `json:"id"`
	FilePath  string           `json:"file_path"`
	Title     string           `json:"title"`
	Metadata  DocumentMetadata `json:"metadata"`
	CreatedAt time.Time        `json:"created_at"`
	IndexedAt time.Time        `json:"indexed_at"`
}

// Chunk is the unit of retrieval. Position is the 0-based ordinal within the
// owning document; offsets are character positions within the raw source.
type Chunk struct {
	ID            string `json:"id"`
	DocumentID    string `json:"document_id"`
	Content       string `json:"content"`
	Position      int    `json:"position"`
	Heading       string `json:"heading,omitempty"`
	StartOffset   int    `json:"start_offset"`
	EndOffset     int    `json:"end_offset"`
	TokenCount    int    `json:"token_count"`
	DocumentTitle string `json:"document_title,omitempty"`
}

// Embedding keys a vector by chunk id. Dimension must equal len(Vector);
// the store checks this on read.
type Embedding struct {
	ChunkID   string    `json:"chunk_id"`
	Vector    []float32 `json:"-"`
	Model     string    `json:"model"`
	Dimension int       `json:"dimension"`
}

// EmbeddedChunk is a joined row from the store: an embedding together with
// its chunk and denormalized document provenance, scanned on every query.
type EmbeddedChunk struct {
	Chunk        Chunk
	Vector       []float32
	Model        string
	Dimension    int
	DocumentPath string
}

type StoreStats struct {
	Documents    int   `json:"documents"`
	Chunks       int   `json:"chunks"`
	Embeddings   int   `json:"embeddings"`
	StorageBytes int64 `json:"storage_bytes"`
}

// EstimateTokens is a cheap length/4 proxy used for operator visibility,
// not a real tokenizer.
func EstimateTokens(content string) int {
	return (len(content) + 3) / 4
}
