package chunking

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ragcore/ragcore/internal/core/domain"
	"github.com/ragcore/ragcore/internal/core/ports"
)

type Strategy string

const (
	StrategyRecursive Strategy = "recursive"
	StrategySection   Strategy = "section"
	StrategyFixed     Strategy = "fixed"
)

type Config struct {
	MaxChunkSize     int
	MinChunkSize     int
	Overlap          int
	PreserveHeadings bool
	Strategy         Strategy
}

func DefaultConfig() Config {
	return Config{
		MaxChunkSize:     1000,
		MinChunkSize:     100,
		Overlap:          200,
		PreserveHeadings: true,
		Strategy:         StrategyRecursive,
	}
}

func (c Config) validate() error {
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("max chunk size must be positive, got %d", c.MaxChunkSize)
	}
	if c.MinChunkSize < 0 || c.MinChunkSize >= c.MaxChunkSize {
		return fmt.Errorf("min chunk size %d must be in [0, %d)", c.MinChunkSize, c.MaxChunkSize)
	}
	if c.Overlap < 0 || c.Overlap >= c.MaxChunkSize {
		return fmt.Errorf("overlap %d must be in [0, %d)", c.Overlap, c.MaxChunkSize)
	}
	switch c.Strategy {
	case StrategyRecursive, StrategySection, StrategyFixed:
		return nil
	default:
		return fmt.Errorf("unknown strategy %q", c.Strategy)
	}
}

// Engine turns a parsed document into bounded, overlapping chunks under one
// of three strategies. Chunks come back with DocumentID unset; the indexing
// pipeline assigns it after the document row exists.
type Engine struct {
	cfg Config
}

var _ ports.Chunker = (*Engine)(nil)

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// piece is an intermediate chunk candidate with source offsets.
type piece struct {
	text    string
	heading string
	start   int
	end     int
}

func (e *Engine) Chunk(doc *domain.ParsedDocument) ([]domain.Chunk, error) {
	if err := e.cfg.validate(); err != nil {
		return nil, domain.WrapError(domain.ErrChunkingFailed, "chunk document", err)
	}

	var pieces []piece
	switch e.cfg.Strategy {
	case StrategyFixed:
		pieces = e.fixedPieces(doc.RawContent)
	case StrategySection:
		pieces = e.sectionPieces(doc)
	default:
		pieces = e.recursivePieces(doc)
	}

	chunks := make([]domain.Chunk, 0, len(pieces))
	for _, p := range pieces {
		content := strings.TrimSpace(p.text)
		if content == "" {
			continue
		}
		if e.cfg.PreserveHeadings && p.heading != "" {
			content = p.heading + "\n\n" + content
		}
		chunks = append(chunks, domain.Chunk{
			ID:            uuid.NewString(),
			Content:       content,
			Position:      len(chunks),
			Heading:       p.heading,
			StartOffset:   p.start,
			EndOffset:     p.end,
			TokenCount:    domain.EstimateTokens(content),
			DocumentTitle: doc.Title,
		})
	}
	return chunks, nil
}

// fixedPieces slides a MaxChunkSize window across the raw content. A window
// that is not at document end is trimmed back to the last sentence
// terminator found after MinChunkSize, then the window advances by its
// length minus Overlap.
func (e *Engine) fixedPieces(content string) []piece {
	var out []piece
	n := len(content)
	start := 0
	for start < n {
		end := start + e.cfg.MaxChunkSize
		if end >= n {
			end = n
		} else if cut := lastSentenceEnd(content[start:end], e.cfg.MinChunkSize); cut > 0 {
			end = start + cut
		}

		out = append(out, piece{text: content[start:end], start: start, end: end})
		if end == n {
			break
		}
		advance := (end - start) - e.cfg.Overlap
		if advance <= 0 {
			advance = end - start
		}
		start += advance
	}
	return out
}

// lastSentenceEnd returns the index just past the last sentence terminator
// at or after minLen, or 0 when none exists.
func lastSentenceEnd(window string, minLen int) int {
	for i := len(window) - 1; i >= minLen; i-- {
		switch window[i] {
		case '.', '!', '?':
			return i + 1
		}
	}
	return 0
}

// sectionPieces emits one chunk per top-level section when it fits, falling
// back to the text splitter for oversized sections. A document without any
// headings is split as plain text.
func (e *Engine) sectionPieces(doc *domain.ParsedDocument) []piece {
	roots := doc.Children(-1)
	if len(roots) == 0 {
		return e.splitText(doc.RawContent, "", 0)
	}

	var out []piece
	for _, idx := range roots {
		sec := doc.Sections[idx]
		if len(sec.Content) <= e.cfg.MaxChunkSize {
			out = append(out, piece{text: sec.Content, heading: sec.Heading, start: sec.Start, end: sec.End})
			continue
		}
		out = append(out, e.splitText(sec.Content, sec.Heading, sec.Start)...)
	}
	return out
}

// recursivePieces operates on level-2 sections: a fitting section becomes
// one chunk, an oversized one is split along its subsections, and a section
// without subsections goes through the text splitter.
func (e *Engine) recursivePieces(doc *domain.ParsedDocument) []piece {
	var level2 []int
	for i := range doc.Sections {
		if doc.Sections[i].Level == 2 {
			level2 = append(level2, i)
		}
	}
	if len(level2) == 0 {
		return e.sectionPieces(doc)
	}

	var out []piece
	for _, idx := range level2 {
		out = append(out, e.splitSection(doc, idx)...)
	}
	return out
}

func (e *Engine) splitSection(doc *domain.ParsedDocument, idx int) []piece {
	sec := doc.Sections[idx]
	if strings.TrimSpace(sec.Content) == "" {
		return nil
	}
	if len(sec.Content) <= e.cfg.MaxChunkSize {
		return []piece{{text: sec.Content, heading: sec.Heading, start: sec.Start, end: sec.End}}
	}

	children := doc.Children(idx)
	if len(children) == 0 {
		return e.splitText(sec.Content, sec.Heading, sec.Start)
	}

	var out []piece
	preamble := doc.RawContent[sec.Start:doc.Sections[children[0]].HeadingStart]
	if strings.TrimSpace(preamble) != "" {
		out = append(out, e.splitText(preamble, sec.Heading, sec.Start)...)
	}
	for _, child := range children {
		out = append(out, e.splitSection(doc, child)...)
	}
	return out
}
