// Package chunker splits raw document text into overlapping, sentence-respecting
// segments suitable for embedding and similarity search.
//
// Splitting is a pure function: no side effects, no external state. Splits
// prefer sentence boundaries over hard character cuts, and consecutive chunks
// share an overlap region of up to the configured size so that context is not
// lost at chunk edges.
package chunker

import (
	"regexp"
	"strings"
)

// sentencePattern matches a run of text up to and including its terminating
// punctuation. Text after the last terminator is handled as a trailing sentence.
var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)

// whitespacePattern collapses runs of whitespace (including newlines) so that
// chunk sizes are measured on normalized text.
var whitespacePattern = regexp.MustCompile(`\s+`)

// Split splits text into chunks of at most size characters, preferring
// sentence boundaries. Consecutive chunks share an overlap region of up to
// overlap characters, built from whole trailing sentences of the previous
// chunk.
//
// A single sentence longer than size becomes its own chunk, unsplit. Empty or
// whitespace-only input yields no chunks; input shorter than size yields
// exactly one chunk.
func Split(text string, size, overlap int) []string {
	text = strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
	if text == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}

	sentences := splitSentences(text)

	var chunks []string
	i := 0
	for i < len(sentences) {
		current := sentences[i]
		j := i + 1
		for j < len(sentences) && len(current)+1+len(sentences[j]) <= size {
			current += " " + sentences[j]
			j++
		}
		chunks = append(chunks, current)

		if j >= len(sentences) {
			break
		}

		// Step back over trailing sentences whose combined length fits
		// within the overlap budget. The next chunk restarts from there.
		// next > i+1 guarantees forward progress.
		next := j
		if overlap > 0 {
			budget := overlap
			for next > i+1 {
				prev := sentences[next-1]
				if len(prev) > budget {
					break
				}
				budget -= len(prev) + 1
				next--
			}
		}
		i = next
	}

	return chunks
}

// splitSentences splits normalized text into sentences. Any trailing text
// without terminating punctuation is returned as a final sentence.
func splitSentences(text string) []string {
	matches := sentencePattern.FindAllStringIndex(text, -1)

	var sentences []string
	consumed := 0
	for _, m := range matches {
		if s := strings.TrimSpace(text[m[0]:m[1]]); s != "" {
			sentences = append(sentences, s)
		}
		consumed = m[1]
	}
	if rest := strings.TrimSpace(text[consumed:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}
