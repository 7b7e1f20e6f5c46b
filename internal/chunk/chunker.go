// Package chunk splits normalized document text into overlapping,
// sentence-respecting word windows. Chunks are the unit of retrieval: one
// embedding row and one set of lexical postings per chunk.
package chunk

import (
	"strings"

	rserrors "github.com/ramsok/ramsok/internal/errors"
)

// Chunker produces deterministic chunk sequences from document text.
type Chunker struct {
	chunkSize int // target words per chunk
	overlap   int // words carried over from the previous chunk
}

// New creates a Chunker. chunkSize must be positive and overlap must be
// smaller than chunkSize; config validation enforces this before indexing.
func New(chunkSize, overlap int) *Chunker {
	return &Chunker{chunkSize: chunkSize, overlap: overlap}
}

// Split chunks document text at sentence boundaries. A sentence is never
// broken across chunks unless it alone exceeds the chunk size, in which case
// it is force-split at word boundaries. Each chunk after the first starts
// with the last overlap words of the previous chunk.
//
// Identical input always yields identical chunk boundaries and ordering.
// Returns InvalidInput when the text is empty after normalization.
func (c *Chunker) Split(text string) ([]string, error) {
	normalized := Normalize(text)
	if normalized == "" {
		return nil, rserrors.InvalidInputError("document text is empty after normalization", nil)
	}

	var chunks []string
	var current []string
	carried := 0 // leading words of current that are overlap from the last chunk

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, strings.Join(current, " "))
		if c.overlap > 0 && len(current) > c.overlap {
			current = append([]string(nil), current[len(current)-c.overlap:]...)
		} else if c.overlap > 0 {
			current = append([]string(nil), current...)
		} else {
			current = nil
		}
		carried = len(current)
	}

	for _, sentence := range SplitSentences(normalized) {
		words := strings.Fields(sentence)
		if len(words) == 0 {
			continue
		}

		// Oversized sentence: force-split at word boundaries.
		if len(words) > c.chunkSize {
			for len(words) > 0 {
				room := c.chunkSize - len(current)
				if room <= 0 {
					flush()
					room = c.chunkSize - len(current)
				}
				if room > len(words) {
					room = len(words)
				}
				current = append(current, words[:room]...)
				words = words[room:]
				if len(current) >= c.chunkSize {
					flush()
				}
			}
			continue
		}

		// Flush only when current holds fresh words beyond the carried
		// overlap; otherwise the overlap alone would become a chunk.
		if len(current)+len(words) > c.chunkSize && len(current) > carried {
			flush()
		}
		current = append(current, words...)
	}

	// The tail is emitted only if it grew past the carried overlap.
	if len(current) > carried {
		chunks = append(chunks, strings.Join(current, " "))
	}

	return chunks, nil
}

// Normalize collapses all whitespace runs to single spaces and trims the text.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
