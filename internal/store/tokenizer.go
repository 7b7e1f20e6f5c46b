package store

import (
	"strings"
	"unicode"
)

// Tokenize lowercases text and splits it on every non-letter, non-digit rune.
// It is unicode-aware so that Swedish (and other non-ASCII) text tokenizes
// correctly: "miljökrav för kemiska" -> ["miljökrav", "för", "kemiska"].
// Both indexing and query parsing use this single tokenizer, which is what
// makes lexical statistics deterministic across rebuilds.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, strings.ToLower(f))
	}
	return tokens
}
