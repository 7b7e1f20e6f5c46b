package chunk

import "unicode"

// terminal reports whether r ends a sentence.
func terminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// SplitSentences splits text after runs of terminal punctuation followed by
// whitespace. Abbreviation detection is deliberately out of scope: a false
// split only moves a chunk boundary, it never loses text.
func SplitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)

	start := 0
	i := 0
	for i < len(runes) {
		if terminal(runes[i]) {
			// Consume the full punctuation run ("..", "?!").
			for i+1 < len(runes) && terminal(runes[i+1]) {
				i++
			}
			if i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				sentences = append(sentences, string(runes[start:i+1]))
				i++
				for i < len(runes) && unicode.IsSpace(runes[i]) {
					i++
				}
				start = i
				continue
			}
		}
		i++
	}

	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}

	return sentences
}
