// Package tokenizer normalizes raw text into index terms.
package tokenizer

import (
	"strings"
	"unicode"
)

// Tokenize lower-cases text, drops every rune that is not a letter, digit or
// whitespace and splits the rest on whitespace. It never returns nil.
func Tokenize(text string) []string {
	cleaned := strings.Map(keepRune, strings.ToLower(text))
	tokens := strings.Fields(cleaned)
	if tokens == nil {
		return []string{}
	}
	return tokens
}

func keepRune(r rune) rune {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
		return r
	}
	return -1
}
