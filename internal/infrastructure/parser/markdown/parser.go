package markdown

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ragcore/ragcore/internal/core/domain"
	"github.com/ragcore/ragcore/internal/core/ports"
)

// Parser turns a markdown file into a ParsedDocument: frontmatter metadata
// plus a flat slice of sections whose hierarchy is encoded through parent
// indexes built with a level-aware stack.
type Parser struct{}

var _ ports.DocumentParser = (*Parser)(nil)

func New() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(_ context.Context, filePath string) (*domain.ParsedDocument, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrNotFound, "read source file", err)
		}
		return nil, fmt.Errorf("parse document %s: %w", filePath, err)
	}

	front, body := splitFrontmatter(string(raw))
	metadata, frontTitle, err := decodeFrontmatter(front)
	if err != nil {
		return nil, fmt.Errorf("parse document %s: %w", filePath, err)
	}

	sections := parseSections(body)

	title := frontTitle
	if title == "" {
		title = firstLevelOneHeading(sections)
	}
	if title == "" {
		title = filePath
	}

	return &domain.ParsedDocument{
		FilePath:   filePath,
		Title:      title,
		Metadata:   metadata,
		Sections:   sections,
		RawContent: body,
	}, nil
}

// splitFrontmatter separates a leading "---" delimited block from the body.
// Offsets in the returned body start at zero.
func splitFrontmatter(s string) (front, body string) {
	if !strings.HasPrefix(s, "---\n") && !strings.HasPrefix(s, "---\r\n") {
		return "", s
	}
	rest := s[strings.Index(s, "\n")+1:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return "", s
	}
	front = rest[:end]
	body = rest[end+len("\n---"):]
	if i := strings.Index(body, "\n"); i >= 0 {
		body = body[i+1:]
	} else {
		body = ""
	}
	return front, body
}

func decodeFrontmatter(front string) (domain.DocumentMetadata, string, error) {
	var meta domain.DocumentMetadata
	if strings.TrimSpace(front) == "" {
		return meta, "", nil
	}

	fields := map[string]any{}
	if err := yaml.Unmarshal([]byte(front), &fields); err != nil {
		return meta, "", fmt.Errorf("decode frontmatter: %w", err)
	}

	title := ""
	for key, value := range fields {
		switch key {
		case "title":
			if s, ok := value.(string); ok {
				title = s
				continue
			}
		case "tags":
			meta.Tags = toStringSlice(value)
			continue
		case "created":
			meta.Created = fmt.Sprintf("%v", value)
			continue
		}
		if meta.Extra == nil {
			meta.Extra = map[string]any{}
		}
		meta.Extra[key] = value
	}
	return meta, title, nil
}

func toStringSlice(value any) []string {
	items, ok := value.([]any)
	if !ok {
		if s, ok := value.(string); ok && s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, fmt.Sprintf("%v", item))
	}
	return out
}

// parseSections walks heading lines in document order, maintaining a stack
// of open sections keyed by heading level: a new heading closes every open
// section of equal or deeper level, then attaches to the stack top as its
// parent. A section's content runs from the end of its heading line to the
// next heading of equal-or-shallower level, so parent content spans its
// subsections.
func parseSections(body string) []domain.Section {
	var sections []domain.Section
	var stack []int
	childCount := map[int]int{}

	closeTo := func(level, at int) {
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if sections[top].Level < level {
				break
			}
			sections[top].End = at
			sections[top].Content = body[sections[top].Start:at]
			stack = stack[:len(stack)-1]
		}
	}

	inFence := false
	offset := 0
	for _, line := range strings.SplitAfter(body, "\n") {
		lineStart := offset
		offset += len(line)

		trimmed := strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(strings.TrimSpace(trimmed), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		level, heading := headingLine(trimmed)
		if level == 0 {
			continue
		}

		closeTo(level, lineStart)

		parent := -1
		if len(stack) > 0 {
			parent = stack[len(stack)-1]
		}
		position := childCount[parent]
		childCount[parent]++

		sections = append(sections, domain.Section{
			Heading:      heading,
			Level:        level,
			HeadingStart: lineStart,
			Start:        offset,
			Parent:       parent,
			Position:     position,
		})
		stack = append(stack, len(sections)-1)
	}

	closeTo(1, len(body))
	return sections
}

// headingLine reports the ATX heading level of a line, or 0 when the line
// is not a heading.
func headingLine(line string) (int, string) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level == len(line) || line[level] != ' ' {
		return 0, ""
	}
	return level, strings.TrimSpace(line[level+1:])
}

func firstLevelOneHeading(sections []domain.Section) string {
	for _, sec := range sections {
		if sec.Level == 1 {
			return sec.Heading
		}
	}
	return ""
}
