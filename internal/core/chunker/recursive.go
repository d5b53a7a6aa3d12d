package chunker

import (
	"strings"
	"unicode/utf8"
)

// Separator priority for recursive splitting: paragraph, line, sentence,
// word. A single word longer than chunk_size is emitted whole.
var recursiveSeparators = []string{"\n\n", "\n", ". ", " "}

// recursive splits text on the separator priority list, producing chunks as
// close to size as possible, each consecutive pair sharing roughly overlap
// characters of trailing context.
func (c *Chunker) recursive(text string, size, overlap int) []string {
	return splitRecursive(text, size, overlap, recursiveSeparators)
}

func splitRecursive(text string, size, overlap int, seps []string) []string {
	if text == "" {
		return nil
	}

	// Find the coarsest separator that actually occurs; fall through to
	// finer ones for oversized fragments.
	sep := ""
	var finer []string
	for i, s := range seps {
		if strings.Contains(text, s) {
			sep = s
			finer = seps[i+1:]
			break
		}
	}
	if sep == "" {
		// No separator left: the text is one atomic unit. Emit it whole
		// even if it exceeds size, trimmed like every merged chunk.
		if unit := strings.TrimSpace(text); unit != "" {
			return []string{unit}
		}
		return nil
	}

	// SplitAfter keeps each separator attached to the fragment before it,
	// so merging with plain concatenation never drops characters.
	splits := strings.SplitAfter(text, sep)

	var chunks []string
	var pending []string
	for _, s := range splits {
		if utf8.RuneCountInString(s) <= size {
			pending = append(pending, s)
			continue
		}
		chunks = append(chunks, mergeSplits(pending, size, overlap)...)
		pending = nil
		chunks = append(chunks, splitRecursive(s, size, overlap, finer)...)
	}
	chunks = append(chunks, mergeSplits(pending, size, overlap)...)
	return chunks
}

// mergeSplits greedily packs fragments into chunks of at most size
// characters, then seeds the next chunk with the trailing fragments whose
// combined length fits the overlap budget.
func mergeSplits(splits []string, size, overlap int) []string {
	var chunks []string
	var current []string
	total := 0

	for _, s := range splits {
		l := utf8.RuneCountInString(s)
		if total+l > size && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				chunks = append(chunks, doc)
			}
			for total > overlap || (total+l > size && total > 0) {
				total -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}
		current = append(current, s)
		total += l
	}

	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		chunks = append(chunks, doc)
	}
	return chunks
}
