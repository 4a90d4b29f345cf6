package ports

import (
	"context"

	"github.com/ragcore/ragcore/internal/core/domain"
)

// DocumentIndexer is the inbound contract for the ingestion pipeline and
// document administration.
type DocumentIndexer interface {
	Index(ctx context.Context, filePath string) (*domain.Document, error)
	RequestIndex(ctx context.Context, filePath string) error
	Get(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context) ([]domain.Document, error)
	Chunks(ctx context.Context, documentID string) ([]domain.Chunk, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*domain.StoreStats, error)
}

// Searcher is the inbound contract for similarity search.
type Searcher interface {
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.RankedResult, error)
	SearchWithRAG(ctx context.Context, query string, topK int) ([]domain.RankedResult, string, error)
}

// QueryService is the inbound contract for the retrieval strategies and
// their comparison reports.
type QueryService interface {
	AnswerPlain(ctx context.Context, question string, topK int) (*domain.Answer, error)
	AnswerFiltered(ctx context.Context, question string, minScore float64) (*domain.Answer, error)
	AnswerReranked(ctx context.Context, question string, topK int) (*domain.Answer, error)
	AnswerWithoutRAG(ctx context.Context, question string) (string, error)
	Compare(ctx context.Context, question string) (*domain.RAGComparison, error)
	CompareThresholds(ctx context.Context, question string, thresholds []float64) (*domain.ThresholdReport, error)
	CompareMethods(ctx context.Context, question string) (*domain.MethodReport, error)
}
