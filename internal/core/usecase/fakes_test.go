package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ragcore/ragcore/internal/core/domain"
)

type fakeEmbedder struct {
	embedOne   func(ctx context.Context, text string) ([]float32, error)
	embedBatch func(ctx context.Context, texts []string) ([][]float32, error)
	model      string
}

func (f *fakeEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if f.embedOne == nil {
		return []float32{1, 0, 0}, nil
	}
	return f.embedOne(ctx, text)
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.embedBatch == nil {
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{1, 0, 0}
		}
		return out, nil
	}
	return f.embedBatch(ctx, texts)
}

func (f *fakeEmbedder) Model() string {
	if f.model == "" {
		return "fake-embed"
	}
	return f.model
}

func (f *fakeEmbedder) Healthy(context.Context) (bool, error) { return true, nil }

type fakeStore struct {
	docs       map[string]*domain.Document
	savedDocs  []*domain.Document
	chunks     []domain.Chunk
	embeddings []domain.Embedding
	embedded   []domain.EmbeddedChunk
	indexedIDs []string
	deletedIDs []string

	saveChunksErr error
	getDocErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[string]*domain.Document{}}
}

func (f *fakeStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	f.savedDocs = append(f.savedDocs, doc)
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	if f.saveChunksErr != nil {
		return f.saveChunksErr
	}
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func (f *fakeStore) SaveEmbedding(_ context.Context, emb domain.Embedding) error {
	f.embeddings = append(f.embeddings, emb)
	return nil
}

func (f *fakeStore) MarkIndexed(_ context.Context, documentID string, _ time.Time) error {
	f.indexedIDs = append(f.indexedIDs, documentID)
	return nil
}

func (f *fakeStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	if f.getDocErr != nil {
		return nil, f.getDocErr
	}
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("document %s", id))
	}
	return doc, nil
}

func (f *fakeStore) ListDocuments(context.Context) ([]domain.Document, error) {
	out := make([]domain.Document, 0, len(f.docs))
	for _, doc := range f.docs {
		out = append(out, *doc)
	}
	return out, nil
}

func (f *fakeStore) GetChunksForDocument(_ context.Context, documentID string) ([]domain.Chunk, error) {
	var out []domain.Chunk
	for _, chunk := range f.chunks {
		if chunk.DocumentID == documentID {
			out = append(out, chunk)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteDocument(_ context.Context, id string) error {
	if _, ok := f.docs[id]; !ok {
		return domain.WrapError(domain.ErrNotFound, "delete document", fmt.Errorf("document %s", id))
	}
	delete(f.docs, id)
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

func (f *fakeStore) AllEmbeddings(context.Context) ([]domain.EmbeddedChunk, error) {
	return f.embedded, nil
}

func (f *fakeStore) Stats(context.Context) (*domain.StoreStats, error) {
	return &domain.StoreStats{
		Documents:  len(f.docs),
		Chunks:     len(f.chunks),
		Embeddings: len(f.embeddings),
	}, nil
}

func (f *fakeStore) Close() error { return nil }

type fakeGenerator struct {
	mu       sync.Mutex
	generate func(ctx context.Context, prompt string) (string, error)
	prompts  []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.generate == nil {
		return "generated answer", nil
	}
	return f.generate(ctx, prompt)
}

type fakeJudge struct {
	judge func(ctx context.Context, query, passage string) (string, error)
}

func (f *fakeJudge) Judge(ctx context.Context, query, passage string) (string, error) {
	if f.judge == nil {
		return "0.5", nil
	}
	return f.judge(ctx, query, passage)
}

type fakeSearcher struct {
	mu     sync.Mutex
	search func(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.RankedResult, error)
	opts   []domain.SearchOptions
}

func (f *fakeSearcher) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.RankedResult, error) {
	f.mu.Lock()
	f.opts = append(f.opts, opts)
	f.mu.Unlock()
	if f.search == nil {
		return nil, nil
	}
	return f.search(ctx, query, opts)
}

func (f *fakeSearcher) SearchWithRAG(ctx context.Context, query string, topK int) ([]domain.RankedResult, string, error) {
	results, err := f.Search(ctx, query, domain.SearchOptions{TopK: topK})
	if err != nil {
		return nil, "", err
	}
	return results, buildContext(results), nil
}

type fakeQueue struct {
	published []string
}

func (f *fakeQueue) PublishIndexRequested(_ context.Context, filePath string) error {
	f.published = append(f.published, filePath)
	return nil
}

func (f *fakeQueue) SubscribeIndexRequested(context.Context, func(context.Context, string) error) error {
	return nil
}

type fakeParser struct {
	doc *domain.ParsedDocument
	err error
}

func (f *fakeParser) Parse(context.Context, string) (*domain.ParsedDocument, error) {
	return f.doc, f.err
}

type fakeChunker struct {
	chunks []domain.Chunk
	err    error
}

func (f *fakeChunker) Chunk(*domain.ParsedDocument) ([]domain.Chunk, error) {
	return f.chunks, f.err
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(context.Context, string) (string, error) {
	return f.text, f.err
}
