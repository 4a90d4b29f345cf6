package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ragcore/ragcore/internal/core/domain"
	"github.com/ragcore/ragcore/internal/core/ports"
)

// SearchUseCase answers similarity queries with a linear cosine scan over
// every stored embedding. Rows with empty or dimension-mismatched vectors
// are logged and skipped rather than failing the query.
type SearchUseCase struct {
	embedder ports.Embedder
	store    ports.VectorStore

	defaultTopK int
}

var _ ports.Searcher = (*SearchUseCase)(nil)

func NewSearchUseCase(embedder ports.Embedder, store ports.VectorStore, defaultTopK int) *SearchUseCase {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &SearchUseCase{
		embedder:    embedder,
		store:       store,
		defaultTopK: defaultTopK,
	}
}

func (uc *SearchUseCase) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.RankedResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrValidation, "search", fmt.Errorf("query is empty"))
	}
	if opts.TopK <= 0 {
		opts.TopK = uc.defaultTopK
	}

	queryVector, err := uc.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	embedded, err := uc.store.AllEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}

	var docFilter map[string]bool
	if len(opts.Filter.DocumentIDs) > 0 {
		docFilter = make(map[string]bool, len(opts.Filter.DocumentIDs))
		for _, id := range opts.Filter.DocumentIDs {
			docFilter[id] = true
		}
	}
	tagCache := make(map[string]bool)

	var candidates []domain.RankedResult
	for _, ec := range embedded {
		if docFilter != nil && !docFilter[ec.Chunk.DocumentID] {
			continue
		}
		if len(opts.Filter.Tags) > 0 {
			ok, err := uc.documentHasTag(ctx, ec.Chunk.DocumentID, opts.Filter.Tags, tagCache)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}

		if len(ec.Vector) == 0 {
			slog.Warn("skipping_chunk_without_embedding", "chunk_id", ec.Chunk.ID)
			continue
		}

		score, err := domain.CosineSimilarity(queryVector, ec.Vector)
		if err != nil {
			if errors.Is(err, domain.ErrDimensionMismatch) {
				slog.Warn("skipping_incompatible_embedding",
					"chunk_id", ec.Chunk.ID,
					"dimension", len(ec.Vector),
					"query_dimension", len(queryVector),
				)
				continue
			}
			return nil, fmt.Errorf("score chunk %s: %w", ec.Chunk.ID, err)
		}
		if score < opts.MinScore {
			continue
		}

		candidates = append(candidates, domain.RankedResult{
			Score:         score,
			ChunkID:       ec.Chunk.ID,
			DocumentID:    ec.Chunk.DocumentID,
			DocumentTitle: ec.Chunk.DocumentTitle,
			DocumentPath:  ec.DocumentPath,
			Heading:       ec.Chunk.Heading,
			Content:       ec.Chunk.Content,
			Position:      ec.Chunk.Position,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].DocumentPath != candidates[j].DocumentPath {
			return candidates[i].DocumentPath < candidates[j].DocumentPath
		}
		return candidates[i].Position < candidates[j].Position
	})

	if len(candidates) > opts.TopK {
		candidates = candidates[:opts.TopK]
	}
	for i := range candidates {
		candidates[i].Rank = i + 1
	}
	return candidates, nil
}

// SearchWithRAG retrieves the topK nearest chunks without a score floor
// and assembles the generation context from them.
func (uc *SearchUseCase) SearchWithRAG(ctx context.Context, query string, topK int) ([]domain.RankedResult, string, error) {
	results, err := uc.Search(ctx, query, domain.SearchOptions{TopK: topK})
	if err != nil {
		return nil, "", err
	}
	return results, buildContext(results), nil
}

func (uc *SearchUseCase) documentHasTag(ctx context.Context, documentID string, wanted []string, cache map[string]bool) (bool, error) {
	if match, cached := cache[documentID]; cached {
		return match, nil
	}

	doc, err := uc.store.GetDocument(ctx, documentID)
	if err != nil {
		return false, fmt.Errorf("load document %s for tag filter: %w", documentID, err)
	}
	match := false
	for _, have := range doc.Metadata.Tags {
		for _, want := range wanted {
			if strings.EqualFold(have, want) {
				match = true
				break
			}
		}
	}
	cache[documentID] = match
	return match, nil
}

// buildContext renders retrieval hits as a generation context, each block
// labeled with its source path.
func buildContext(results []domain.RankedResult) string {
	return buildLabeledContext(results, func(r domain.RankedResult) string {
		return fmt.Sprintf("[source: %s]", r.DocumentPath)
	})
}

// buildScoredContext labels each block with its similarity score as well.
func buildScoredContext(results []domain.RankedResult) string {
	return buildLabeledContext(results, func(r domain.RankedResult) string {
		return fmt.Sprintf("[source: %s | score: %.2f]", r.DocumentPath, r.Score)
	})
}

// buildRerankedContext labels each block with both the similarity score
// and the judge's relevance score.
func buildRerankedContext(results []domain.RankedResult) string {
	return buildLabeledContext(results, func(r domain.RankedResult) string {
		return fmt.Sprintf("[source: %s | score: %.2f | rerank: %.2f]", r.DocumentPath, r.Score, r.RerankScore)
	})
}

func buildLabeledContext(results []domain.RankedResult, label func(domain.RankedResult) string) string {
	if len(results) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, label(r)+"\n"+r.Content)
	}
	return strings.Join(blocks, "\n\n---\n\n")
}
