package chunking

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ragcore/ragcore/internal/core/domain"
	"github.com/ragcore/ragcore/internal/infrastructure/parser/markdown"
)

func parseDoc(t *testing.T, content string) *domain.ParsedDocument {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}
	doc, err := markdown.New().Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("parse doc: %v", err)
	}
	return doc
}

func TestChunkSingleSmallDocument(t *testing.T) {
	doc := parseDoc(t, "# Docker\n\nDocker is a container runtime for Linux.\n")
	cfg := DefaultConfig()
	cfg.MaxChunkSize = 1000

	chunks, err := NewEngine(cfg).Chunk(doc)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected exactly one chunk, got %d", len(chunks))
	}
	if chunks[0].Position != 0 {
		t.Fatalf("expected position 0, got %d", chunks[0].Position)
	}
	if chunks[0].DocumentTitle != "Docker" {
		t.Fatalf("expected denormalized title, got %q", chunks[0].DocumentTitle)
	}
}

func TestChunkInvalidConfigIsChunkingFailed(t *testing.T) {
	doc := parseDoc(t, "# T\n\ntext\n")
	cfg := DefaultConfig()
	cfg.Overlap = cfg.MaxChunkSize

	_, err := NewEngine(cfg).Chunk(doc)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrChunkingFailed) {
		t.Fatalf("expected chunking-failed kind, got %v", err)
	}
}

func TestChunkPositionsAreContiguous(t *testing.T) {
	doc := parseDoc(t, "# T\n\n## A\n\n"+strings.Repeat("alpha beta. ", 60)+"\n\n## B\n\nshort\n")
	cfg := DefaultConfig()
	cfg.MaxChunkSize = 300
	cfg.MinChunkSize = 50
	cfg.Overlap = 60

	chunks, err := NewEngine(cfg).Chunk(doc)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	for i, c := range chunks {
		if c.Position != i {
			t.Fatalf("expected contiguous positions, got %d at index %d", c.Position, i)
		}
	}
}

func TestFixedStrategyTrimsAtSentenceBoundary(t *testing.T) {
	text := strings.Repeat("One two three four five six seven eight nine. ", 20)
	doc := parseDoc(t, text)
	cfg := Config{
		MaxChunkSize:     200,
		MinChunkSize:     50,
		Overlap:          40,
		PreserveHeadings: false,
		Strategy:         StrategyFixed,
	}

	chunks, err := NewEngine(cfg).Chunk(doc)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks[:len(chunks)-1] {
		if len(c.Content) > cfg.MaxChunkSize {
			t.Fatalf("chunk %d exceeds cap: %d", i, len(c.Content))
		}
		if !strings.HasSuffix(strings.TrimSpace(c.Content), ".") {
			t.Fatalf("chunk %d not trimmed at sentence boundary: %q", i, c.Content)
		}
	}
}

func TestFixedStrategyConsecutiveChunksOverlap(t *testing.T) {
	text := strings.Repeat("abcdefghij. ", 100)
	doc := parseDoc(t, text)
	cfg := Config{MaxChunkSize: 150, MinChunkSize: 30, Overlap: 50, Strategy: StrategyFixed}

	chunks, err := NewEngine(cfg).Chunk(doc)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		if cur.StartOffset >= prev.EndOffset {
			t.Fatalf("chunks %d and %d do not overlap: prev end %d, cur start %d",
				i-1, i, prev.EndOffset, cur.StartOffset)
		}
		if cur.StartOffset <= prev.StartOffset {
			t.Fatalf("no forward progress between chunks %d and %d", i-1, i)
		}
	}
}

func TestRecursiveStrategyEmitsFittingLevel2Sections(t *testing.T) {
	doc := parseDoc(t, `# Guide

## Install

Install with the package manager.

## Configure

Edit the config file and restart.
`)
	cfg := DefaultConfig()

	chunks, err := NewEngine(cfg).Chunk(doc)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected one chunk per level-2 section, got %d", len(chunks))
	}
	if chunks[0].Heading != "Install" || chunks[1].Heading != "Configure" {
		t.Fatalf("unexpected headings: %q, %q", chunks[0].Heading, chunks[1].Heading)
	}
	if !strings.HasPrefix(chunks[0].Content, "Install\n\n") {
		t.Fatalf("expected heading prefix, got %q", chunks[0].Content)
	}
}

func TestRecursiveStrategySplitsAlongSubsections(t *testing.T) {
	long := strings.Repeat("Sentence with content here. ", 20)
	doc := parseDoc(t, "# Guide\n\n## Big\n\n### SubA\n\n"+long+"\n\n### SubB\n\n"+long+"\n")
	cfg := DefaultConfig()
	cfg.MaxChunkSize = 600
	cfg.MinChunkSize = 50
	cfg.Overlap = 100

	chunks, err := NewEngine(cfg).Chunk(doc)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected subsection chunks, got %d", len(chunks))
	}
	headings := map[string]bool{}
	for _, c := range chunks {
		headings[c.Heading] = true
	}
	if !headings["SubA"] || !headings["SubB"] {
		t.Fatalf("expected chunks attributed to subsections, got %v", headings)
	}
}

func TestTextSplitterEnforcesCapOnAtomicOverflow(t *testing.T) {
	// One unbroken "sentence" far beyond the cap must still be window-split.
	giant := strings.Repeat("x", 5000)
	doc := parseDoc(t, "# T\n\n## S\n\n"+giant+"\n")
	cfg := DefaultConfig()
	cfg.MaxChunkSize = 800
	cfg.Overlap = 100
	cfg.PreserveHeadings = false

	chunks, err := NewEngine(cfg).Chunk(doc)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	for i, c := range chunks {
		if len(c.Content) > cfg.MaxChunkSize {
			t.Fatalf("chunk %d exceeds cap after window split: %d", i, len(c.Content))
		}
	}
}

func TestChunkCoverageHasNoLargeGaps(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("# Doc\n\n## Body\n\n")
	for i := 0; i < 40; i++ {
		sb.WriteString("Paragraph number content with several words in it.\n\n")
	}
	doc := parseDoc(t, sb.String())
	cfg := DefaultConfig()
	cfg.MaxChunkSize = 400
	cfg.MinChunkSize = 50
	cfg.Overlap = 80

	chunks, err := NewEngine(cfg).Chunk(doc)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	for i := 1; i < len(chunks); i++ {
		gap := chunks[i].StartOffset - chunks[i-1].EndOffset
		if gap > cfg.Overlap {
			t.Fatalf("gap of %d chars between chunks %d and %d exceeds overlap", gap, i-1, i)
		}
	}
}

func TestTokenCountEstimate(t *testing.T) {
	doc := parseDoc(t, "# T\n\n## S\n\nabcdefgh\n")
	cfg := DefaultConfig()
	cfg.PreserveHeadings = false

	chunks, err := NewEngine(cfg).Chunk(doc)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk, got %d", len(chunks))
	}
	want := (len(chunks[0].Content) + 3) / 4
	if chunks[0].TokenCount != want {
		t.Fatalf("expected token count %d, got %d", want, chunks[0].TokenCount)
	}
}
