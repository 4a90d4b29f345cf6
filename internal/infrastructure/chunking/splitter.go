package chunking

import "strings"

// block is an atomic unit for the text splitter: a paragraph, a sentence,
// or a character window, with absolute source offsets.
type block struct {
	text  string
	start int
	end   int
}

// splitText is the last-resort splitter for content that exceeds
// MaxChunkSize without usable subsections. It tries paragraphs first; a
// paragraph that alone exceeds the cap is split by sentence, and a sentence
// that still exceeds it falls back to fixed character windows.
func (e *Engine) splitText(text, heading string, base int) []piece {
	return e.packBlocks(paragraphBlocks(text, base), heading, "\n\n", 0)
}

// packBlocks accumulates blocks into chunks up to MaxChunkSize, carrying
// the trailing Overlap characters of each emitted chunk into the next so
// consecutive chunks share context.
func (e *Engine) packBlocks(blocks []block, heading, sep string, depth int) []piece {
	var out []piece
	carry := ""
	body := ""
	start, end := 0, 0

	emit := func() {
		if body == "" {
			return
		}
		out = append(out, piece{text: carry + body, heading: heading, start: start, end: end})
		carry = overlapTail(body, e.cfg.Overlap)
		body = ""
	}

	for _, b := range blocks {
		if len(b.text) > e.cfg.MaxChunkSize {
			emit()
			if depth == 0 {
				out = append(out, e.packBlocks(sentenceBlocks(b), heading, " ", 1)...)
			} else {
				out = append(out, e.windowPieces(b, heading)...)
			}
			carry = ""
			continue
		}

		if body != "" && len(carry)+len(body)+len(sep)+len(b.text) > e.cfg.MaxChunkSize {
			emit()
		}
		if body == "" {
			if len(carry)+len(b.text) > e.cfg.MaxChunkSize {
				carry = ""
			}
			if carry != "" {
				carry += sep
			}
			start = b.start
			body = b.text
		} else {
			body += sep + b.text
		}
		end = b.end
	}
	emit()
	return out
}

// windowPieces slices an atomic oversized block into fixed character
// windows with Overlap; the cap is always enforced here.
func (e *Engine) windowPieces(b block, heading string) []piece {
	step := e.cfg.MaxChunkSize - e.cfg.Overlap
	if step <= 0 {
		step = e.cfg.MaxChunkSize
	}

	var out []piece
	for off := 0; off < len(b.text); off += step {
		end := off + e.cfg.MaxChunkSize
		if end > len(b.text) {
			end = len(b.text)
		}
		out = append(out, piece{
			text:    b.text[off:end],
			heading: heading,
			start:   b.start + off,
			end:     b.start + end,
		})
		if end == len(b.text) {
			break
		}
	}
	return out
}

func overlapTail(s string, overlap int) string {
	if overlap <= 0 || len(s) <= overlap {
		return ""
	}
	return s[len(s)-overlap:]
}

// paragraphBlocks groups consecutive non-blank lines into blocks.
func paragraphBlocks(text string, base int) []block {
	var out []block
	offset := 0
	parStart := -1
	parEnd := 0

	flush := func() {
		if parStart < 0 {
			return
		}
		seg := strings.TrimSpace(text[parStart:parEnd])
		if seg != "" {
			out = append(out, block{text: seg, start: base + parStart, end: base + parEnd})
		}
		parStart = -1
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		lineStart := offset
		offset += len(line)
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if parStart < 0 {
			parStart = lineStart
		}
		parEnd = offset
	}
	flush()
	return out
}

// sentenceBlocks splits a block after sentence terminators followed by
// whitespace (or end of block).
func sentenceBlocks(b block) []block {
	var out []block
	start := 0
	add := func(from, to int) {
		seg := strings.TrimSpace(b.text[from:to])
		if seg != "" {
			out = append(out, block{text: seg, start: b.start + from, end: b.start + to})
		}
	}

	for i := 0; i < len(b.text); i++ {
		switch b.text[i] {
		case '.', '!', '?':
			end := i + 1
			if end == len(b.text) || b.text[end] == ' ' || b.text[end] == '\n' {
				add(start, end)
				start = end
			}
		}
	}
	if start < len(b.text) {
		add(start, len(b.text))
	}
	return out
}
