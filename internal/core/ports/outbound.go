package ports

import (
	"context"
	"time"

	"github.com/ragcore/ragcore/internal/core/domain"
)

// DocumentParser turns a source file into a structured parse tree.
type DocumentParser interface {
	Parse(ctx context.Context, filePath string) (*domain.ParsedDocument, error)
}

// Chunker splits a parsed document into retrieval units. DocumentID is left
// unset on the returned chunks; the indexing pipeline assigns it once the
// persistence id is known.
type Chunker interface {
	Chunk(doc *domain.ParsedDocument) ([]domain.Chunk, error)
}

// Embedder builds vectors for chunk and query text. EmbedBatch preserves
// input order and length even under partial failure: a position whose
// retries are exhausted holds an empty vector instead of failing the batch.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	// Healthy reports whether the provider is reachable and the configured
	// model appears in its model listing. An unreachable provider is an
	// error; a missing model is false without an error.
	Healthy(ctx context.Context) (bool, error)
}

// VectorStore persists documents, chunks and embeddings with cascading
// deletion from document down to embeddings.
type VectorStore interface {
	SaveDocument(ctx context.Context, doc *domain.Document) error
	// SaveChunks stores the batch in a single transaction: all or nothing.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error
	SaveEmbedding(ctx context.Context, emb domain.Embedding) error
	MarkIndexed(ctx context.Context, documentID string, at time.Time) error
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	ListDocuments(ctx context.Context) ([]domain.Document, error)
	GetChunksForDocument(ctx context.Context, documentID string) ([]domain.Chunk, error)
	DeleteDocument(ctx context.Context, id string) error
	// AllEmbeddings returns every stored embedding joined with its chunk and
	// document provenance for the linear similarity scan.
	AllEmbeddings(ctx context.Context) ([]domain.EmbeddedChunk, error)
	Stats(ctx context.Context) (*domain.StoreStats, error)
	Close() error
}

// Generator creates text from a fully built prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RelevanceJudge asks a language model for a relevance verdict on one
// query/passage pair and returns the raw model output; the reranker owns
// parsing and degradation policy.
type RelevanceJudge interface {
	Judge(ctx context.Context, query, passage string) (string, error)
}

// MessageQueue decouples index requests from pipeline execution.
type MessageQueue interface {
	PublishIndexRequested(ctx context.Context, filePath string) error
	SubscribeIndexRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a non-markdown source file.
type TextExtractor interface {
	Extract(ctx context.Context, filePath string) (string, error)
}
