package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/ragcore/ragcore/internal/core/domain"
)

func embeddedChunk(chunkID, docID, path string, position int, vector []float32) domain.EmbeddedChunk {
	return domain.EmbeddedChunk{
		Chunk: domain.Chunk{
			ID:            chunkID,
			DocumentID:    docID,
			Content:       "content of " + chunkID,
			Position:      position,
			DocumentTitle: "Title " + docID,
		},
		Vector:       vector,
		Model:        "fake-embed",
		Dimension:    len(vector),
		DocumentPath: path,
	}
}

func searchFixture() (*fakeStore, *SearchUseCase) {
	store := newFakeStore()
	store.embedded = []domain.EmbeddedChunk{
		embeddedChunk("c1", "d1", "/kb/a.md", 0, []float32{1, 0, 0}),
		embeddedChunk("c2", "d1", "/kb/a.md", 1, []float32{0.9, 0.1, 0}),
		embeddedChunk("c3", "d2", "/kb/b.md", 0, []float32{0, 1, 0}),
	}
	store.docs["d1"] = &domain.Document{ID: "d1", Metadata: domain.DocumentMetadata{Tags: []string{"infra"}}}
	store.docs["d2"] = &domain.Document{ID: "d2", Metadata: domain.DocumentMetadata{Tags: []string{"recipes"}}}
	return store, NewSearchUseCase(&fakeEmbedder{}, store, 5)
}

func TestSearchOrdersByCosineSimilarity(t *testing.T) {
	_, uc := searchFixture()

	results, err := uc.Search(context.Background(), "query", domain.SearchOptions{TopK: 3})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].ChunkID != "c1" || results[1].ChunkID != "c2" || results[2].ChunkID != "c3" {
		t.Fatalf("wrong order: %v", results)
	}
	for i, r := range results {
		if r.Rank != i+1 {
			t.Fatalf("expected 1-based ranks, got %d at index %d", r.Rank, i)
		}
	}
	if results[0].Score <= results[1].Score || results[1].Score <= results[2].Score {
		t.Fatalf("scores not descending: %v", results)
	}
}

func TestSearchAppliesMinScoreFloor(t *testing.T) {
	_, uc := searchFixture()

	results, err := uc.Search(context.Background(), "query", domain.SearchOptions{TopK: 5, MinScore: 0.5})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for _, r := range results {
		if r.Score < 0.5 {
			t.Fatalf("result below floor: %+v", r)
		}
	}
	if len(results) != 2 {
		t.Fatalf("expected orthogonal chunk filtered out, got %d results", len(results))
	}
}

func TestSearchSkipsDimensionMismatchedVectors(t *testing.T) {
	store, uc := searchFixture()
	store.embedded = append(store.embedded, embeddedChunk("bad", "d1", "/kb/a.md", 9, []float32{1, 0}))

	results, err := uc.Search(context.Background(), "query", domain.SearchOptions{TopK: 10})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for _, r := range results {
		if r.ChunkID == "bad" {
			t.Fatalf("mismatched vector must be skipped")
		}
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 healthy results, got %d", len(results))
	}
}

func TestSearchSkipsEmptyStoredVectors(t *testing.T) {
	store, uc := searchFixture()
	store.embedded = append(store.embedded,
		embeddedChunk("no-vec", "d1", "/kb/a.md", 8, nil),
		embeddedChunk("zero-vec", "d2", "/kb/b.md", 7, []float32{}),
	)

	results, err := uc.Search(context.Background(), "query", domain.SearchOptions{TopK: 10})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for _, r := range results {
		if r.ChunkID == "no-vec" || r.ChunkID == "zero-vec" {
			t.Fatalf("vector-less chunk must be skipped, got %+v", r)
		}
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 healthy results, got %d", len(results))
	}
}

func TestSearchEmptyIndexReturnsEmptyResult(t *testing.T) {
	store, uc := searchFixture()
	store.embedded = nil

	results, err := uc.Search(context.Background(), "query", domain.SearchOptions{TopK: 5})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results from an empty index, got %v", results)
	}
}

func TestSearchFiltersByDocumentID(t *testing.T) {
	_, uc := searchFixture()

	results, err := uc.Search(context.Background(), "query", domain.SearchOptions{
		TopK:   10,
		Filter: domain.SearchFilter{DocumentIDs: []string{"d2"}},
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].DocumentID != "d2" {
		t.Fatalf("expected only d2 results, got %v", results)
	}
}

func TestSearchFiltersByTags(t *testing.T) {
	_, uc := searchFixture()

	results, err := uc.Search(context.Background(), "query", domain.SearchOptions{
		TopK:   10,
		Filter: domain.SearchFilter{Tags: []string{"INFRA"}},
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected the two d1 chunks, got %d", len(results))
	}
	for _, r := range results {
		if r.DocumentID != "d1" {
			t.Fatalf("tag filter leaked document %s", r.DocumentID)
		}
	}
}

func TestSearchEmptyQueryIsValidationError(t *testing.T) {
	_, uc := searchFixture()
	_, err := uc.Search(context.Background(), "  ", domain.SearchOptions{})
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSearchWithRAGBuildsLabeledContext(t *testing.T) {
	_, uc := searchFixture()

	results, contextText, err := uc.SearchWithRAG(context.Background(), "query", 2)
	if err != nil {
		t.Fatalf("SearchWithRAG() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !strings.Contains(contextText, "[source: /kb/a.md]") {
		t.Fatalf("context missing source label: %s", contextText)
	}
	if !strings.Contains(contextText, "\n\n---\n\n") {
		t.Fatalf("context missing separator: %s", contextText)
	}
}

func TestSearchTopKTruncates(t *testing.T) {
	_, uc := searchFixture()

	results, err := uc.Search(context.Background(), "query", domain.SearchOptions{TopK: 1})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].ChunkID != "c1" {
		t.Fatalf("expected single best result, got %v", results)
	}
}
