package analyzer

import (
	"strings"
	"unicode"
)

// Tokenizer splits text into lower-cased word tokens with optional stopword removal.
type Tokenizer struct {
	stopwords map[string]struct{}
	minLen    int
}

// NewTokenizer creates a new Tokenizer. With dropStopwords false every word of
// at least two characters is kept.
func NewTokenizer(dropStopwords bool) *Tokenizer {
	t := &Tokenizer{minLen: 2}
	if dropStopwords {
		t.stopwords = defaultStopwords()
	}
	return t
}

// Tokenize returns normalised tokens for hashing and matching.
func (t *Tokenizer) Tokenize(text string) []string {
	words := Words(text)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if len([]rune(word)) < t.minLen {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// Words splits text on anything that is not a letter, digit or underscore.
// Case and punctuation inside words are left alone.
func Words(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
}

// defaultStopwords returns a set of common English stopwords.
func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "we", "our", "they", "their",
		"if", "or", "so", "no", "can", "do", "does", "been", "being",
		"which", "these", "those", "such", "than", "also", "into",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
