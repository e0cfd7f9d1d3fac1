package loader

import "strings"

// separators are tried in order: paragraph break first, then sentence
// boundaries, then (once the level runs out) a hard character cut. This
// generalises the teacher's single-level, word-boundary-respecting splitter
// (pkg/rag/chunk/chunk.go) into the hierarchy-aware splitter spec.md 4.1
// requires: "paragraph breaks, sentence boundaries, and then characters".
var separators = []string{"\n\n", ". ", "! ", "? ", "\n"}

// splitBody splits body into chunks of at most size runes (best effort: a
// single unsplittable run longer than size is hard-cut), re-including the
// trailing overlap runes of the previous chunk at the head of the next one.
func splitBody(body string, size, overlap int) []string {
	if size <= 0 {
		size = 2800
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 6
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}

	pieces := splitRecursive(body, size, 0)
	return mergeWithOverlap(pieces, size, overlap)
}

func splitRecursive(text string, size, level int) []string {
	if runeLen(text) <= size {
		return []string{text}
	}
	if level >= len(separators) {
		return hardSplit(text, size)
	}

	sep := separators[level]
	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		// This level's separator never occurred; fall through to the next.
		return splitRecursive(text, size, level+1)
	}

	var pieces []string
	for i, part := range parts {
		if i < len(parts)-1 {
			part += sep
		}
		if runeLen(part) > size {
			pieces = append(pieces, splitRecursive(part, size, level+1)...)
		} else if part != "" {
			pieces = append(pieces, part)
		}
	}
	return pieces
}

func hardSplit(text string, size int) []string {
	runes := []rune(text)
	var out []string
	for i := 0; i < len(runes); i += size {
		end := min(i+size, len(runes))
		out = append(out, string(runes[i:end]))
	}
	return out
}

// mergeWithOverlap packs small pieces into chunks as close to size as
// possible, carrying up to the last overlap runes of a finished chunk into
// the head of the next one so context survives the boundary (fewer when the
// full overlap plus the next piece would exceed size).
func mergeWithOverlap(pieces []string, size, overlap int) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		trimmed := strings.TrimSpace(current.String())
		if trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}

	for _, piece := range pieces {
		if current.Len() > 0 && runeLen(current.String())+runeLen(piece) > size {
			flush()
			tail := overlapTail(current.String(), max(0, min(overlap, size-runeLen(piece))))
			current.Reset()
			current.WriteString(tail)
		}
		current.WriteString(piece)
	}
	flush()

	return chunks
}

func overlapTail(s string, overlap int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= overlap {
		return string(runes)
	}
	return string(runes[len(runes)-overlap:])
}

func runeLen(s string) int {
	return len([]rune(s))
}
