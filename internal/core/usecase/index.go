package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ragcore/ragcore/internal/core/domain"
	"github.com/ragcore/ragcore/internal/core/ports"
)

// IndexUseCase runs the ingestion pipeline: parse, chunk, embed, persist.
// Markdown goes through the structural parser; other registered
// extensions go through a plain-text extractor and are chunked without
// section structure.
type IndexUseCase struct {
	parser     ports.DocumentParser
	extractors map[string]ports.TextExtractor
	chunker    ports.Chunker
	embedder   ports.Embedder
	store      ports.VectorStore
	queue      ports.MessageQueue
}

var _ ports.DocumentIndexer = (*IndexUseCase)(nil)

func NewIndexUseCase(
	parser ports.DocumentParser,
	extractors map[string]ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	store ports.VectorStore,
	queue ports.MessageQueue,
) *IndexUseCase {
	return &IndexUseCase{
		parser:     parser,
		extractors: extractors,
		chunker:    chunker,
		embedder:   embedder,
		store:      store,
		queue:      queue,
	}
}

func (uc *IndexUseCase) Index(ctx context.Context, filePath string) (*domain.Document, error) {
	parsed, err := uc.parse(ctx, filePath)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:        uuid.NewString(),
		FilePath:  parsed.FilePath,
		Title:     parsed.Title,
		Metadata:  parsed.Metadata,
		CreatedAt: now,
	}

	chunks, err := uc.chunker.Chunk(parsed)
	if err != nil {
		return nil, fmt.Errorf("chunk document: %w", err)
	}
	for i := range chunks {
		chunks[i].DocumentID = doc.ID
	}

	if err := uc.store.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	if err := uc.store.SaveChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("save chunks: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	vectors, err := uc.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	model := uc.embedder.Model()
	skipped := 0
	for i, vector := range vectors {
		if len(vector) == 0 {
			skipped++
			continue
		}
		emb := domain.Embedding{
			ChunkID:   chunks[i].ID,
			Vector:    vector,
			Model:     model,
			Dimension: len(vector),
		}
		if err := uc.store.SaveEmbedding(ctx, emb); err != nil {
			return nil, fmt.Errorf("save embedding for chunk %s: %w", chunks[i].ID, err)
		}
	}
	if skipped > 0 {
		slog.Warn("chunks_indexed_without_embeddings",
			"document_id", doc.ID,
			"file_path", doc.FilePath,
			"skipped", skipped,
			"total", len(chunks),
		)
	}

	if err := uc.store.MarkIndexed(ctx, doc.ID, now); err != nil {
		return nil, fmt.Errorf("mark indexed: %w", err)
	}
	doc.IndexedAt = now
	return doc, nil
}

// RequestIndex enqueues the file for asynchronous indexing; without a
// queue it degrades to indexing inline.
func (uc *IndexUseCase) RequestIndex(ctx context.Context, filePath string) error {
	if uc.queue == nil {
		_, err := uc.Index(ctx, filePath)
		return err
	}
	if err := uc.queue.PublishIndexRequested(ctx, filePath); err != nil {
		return fmt.Errorf("publish index request: %w", err)
	}
	return nil
}

func (uc *IndexUseCase) Get(ctx context.Context, id string) (*domain.Document, error) {
	return uc.store.GetDocument(ctx, id)
}

func (uc *IndexUseCase) List(ctx context.Context) ([]domain.Document, error) {
	return uc.store.ListDocuments(ctx)
}

func (uc *IndexUseCase) Chunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	if _, err := uc.store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return uc.store.GetChunksForDocument(ctx, documentID)
}

func (uc *IndexUseCase) Delete(ctx context.Context, id string) error {
	return uc.store.DeleteDocument(ctx, id)
}

func (uc *IndexUseCase) Stats(ctx context.Context) (*domain.StoreStats, error) {
	return uc.store.Stats(ctx)
}

func (uc *IndexUseCase) parse(ctx context.Context, filePath string) (*domain.ParsedDocument, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".md", ".markdown":
		return uc.parser.Parse(ctx, filePath)
	}

	extractor, ok := uc.extractors[ext]
	if !ok {
		return nil, domain.WrapError(domain.ErrValidation, "index document",
			fmt.Errorf("unsupported file type %q", ext))
	}
	text, err := extractor.Extract(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}

	title := strings.TrimSuffix(filepath.Base(filePath), ext)
	return &domain.ParsedDocument{
		FilePath:   filePath,
		Title:      title,
		RawContent: text,
	}, nil
}
