package processing

import (
	"regexp"
	"sort"
	"strings"
)

// wordSplit matches runs of anything that is not a letter, mark, digit or underscore.
var wordSplit = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_]+`)

// wordRun matches a single token.
var wordRun = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+`)

// TokenSpans returns the byte ranges in text of the tokens Tokenize produces.
func TokenSpans(text string) [][]int {
	return wordRun.FindAllStringIndex(text, -1)
}

// Tokenize splits text into lower-cased word tokens. Empty tokens are dropped.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	parts := wordSplit.Split(text, -1)
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		tokens = append(tokens, strings.ToLower(part))
	}
	return tokens
}

// Unique removes repeated tokens, keeping the first occurrence order.
func Unique(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Sentences splits text on the literal '.' delimiter.
func Sentences(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, ".")
}

// KeywordSet is a case-folded set of keywords matched against tokens exactly.
type KeywordSet map[string]struct{}

// NewKeywordSet case-folds and trims words. Empty words are ignored.
func NewKeywordSet(words ...string) KeywordSet {
	set := make(KeywordSet, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

// Contains reports whether token is a keyword.
func (k KeywordSet) Contains(token string) bool {
	_, ok := k[token]
	return ok
}

// ContainsAny reports whether any token is a keyword.
func (k KeywordSet) ContainsAny(tokens []string) bool {
	for _, t := range tokens {
		if k.Contains(t) {
			return true
		}
	}
	return false
}

// Hits returns the distinct tokens that are keywords, in token order.
func (k KeywordSet) Hits(tokens []string) []string {
	var hits []string
	for _, t := range Unique(tokens) {
		if k.Contains(t) {
			hits = append(hits, t)
		}
	}
	return hits
}

// Words returns the keywords sorted.
func (k KeywordSet) Words() []string {
	out := make([]string, 0, len(k))
	for w := range k {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}
