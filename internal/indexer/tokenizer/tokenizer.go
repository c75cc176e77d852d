// Package tokenizer turns raw text into index terms. Documents and queries go
// through the same function so a query term can only ever match a term the
// indexer could have produced.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// minTermLength drops single-character tokens.
const minTermLength = 2

// Tokenize lower-cases text, splits it on non-word characters and drops
// short tokens and stop-words. Word characters are letters, numeric runes
// and '_'.
// Order and repetitions are preserved.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), isSeparator)
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if utf8.RuneCountInString(word) < minTermLength {
			continue
		}
		if IsStopWord(word) {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

// Distinct returns the terms of text with duplicates removed, keeping the
// first occurrence order.
func Distinct(text string) []string {
	terms := Tokenize(text)
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// isSeparator mirrors Python's str-pattern \w: letters, any numeric rune
// and '_'. Combining marks are separators there too.
func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '_'
}
