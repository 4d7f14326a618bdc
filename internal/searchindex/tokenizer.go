package searchindex

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips combining marks, so "Zürich" and "zurich"
// produce the same token.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// Tokenize splits text into folded word tokens.
// Letters and digits form tokens; everything else separates them.
// Tokens shorter than minLen runes are dropped.
func Tokenize(text string, minLen int) []string {
	words := strings.FieldsFunc(Fold(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) >= minLen {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// FilterStopWords removes stop words from tokens.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	if len(stopWords) == 0 {
		return tokens
	}

	result := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, isStop := stopWords[t]; !isStop {
			result = append(result, t)
		}
	}
	return result
}

// BuildStopWordMap creates a lookup map of folded stop words.
func BuildStopWordMap(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[Fold(w)] = struct{}{}
	}
	return m
}

type tokenizer struct {
	minLen    int
	stopWords map[string]struct{}
}

func newTokenizer(cfg Config) tokenizer {
	minLen := cfg.MinTokenLength
	if minLen < 1 {
		minLen = 1
	}
	return tokenizer{minLen: minLen, stopWords: BuildStopWordMap(cfg.StopWords)}
}

func (t tokenizer) tokens(text string) []string {
	return FilterStopWords(Tokenize(text, t.minLen), t.stopWords)
}
