package processing

import (
	"strings"
	"unicode/utf8"

	"github.com/adrg/strutil/metrics"
)

// Matcher compares a name against tokens with Jaro-Winkler similarity.
// The zero value only accepts exact matches.
type Matcher struct {
	threshold float64
	metric    *metrics.JaroWinkler
	minJaro   float64
}

// NewMatcher builds a matcher accepting scores >= threshold.
func NewMatcher(threshold float64) *Matcher {
	jw := metrics.NewJaroWinkler()
	jw.CaseSensitive = true
	// Winkler adds at most 0.4*(1-jaro), so jaro must reach (t-0.4)/0.6.
	minJaro := (threshold - 0.4) / 0.6
	return &Matcher{threshold: threshold, metric: jw, minJaro: minJaro}
}

// Threshold returns the acceptance threshold.
func (m *Matcher) Threshold() float64 {
	if m == nil {
		return 1
	}
	return m.threshold
}

// Score returns the similarity of a and b in [0,1].
func (m *Matcher) Score(a, b string) float64 {
	if a == b {
		return 1
	}
	if m == nil || m.metric == nil {
		return 0
	}
	return m.metric.Compare(a, b)
}

// Match reports whether a and b are similar enough.
func (m *Matcher) Match(a, b string) bool {
	if a == b {
		return true
	}
	if m == nil || m.metric == nil || m.threshold >= 1 {
		return false
	}
	if m.threshold > 0.4 && !m.reachable(a, b) {
		return false
	}
	return m.metric.Compare(a, b) >= m.threshold
}

// reachable is an upper bound check: jaro can not exceed (2 + short/long) / 3.
func (m *Matcher) reachable(a, b string) bool {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return false
	}
	short, long := la, lb
	if short > long {
		short, long = long, short
	}
	return (2+float64(short)/float64(long))/3 >= m.minJaro
}

// Find returns the token positions where name matches. Names of several words
// are compared against windows of as many consecutive tokens.
func (m *Matcher) Find(name string, tokens []string) []int {
	words := strings.Count(name, " ") + 1
	var positions []int
	for i := 0; i+words <= len(tokens); i++ {
		candidate := tokens[i]
		if words > 1 {
			candidate = strings.Join(tokens[i:i+words], " ")
		}
		if m.Match(name, candidate) {
			positions = append(positions, i)
		}
	}
	return positions
}

// MatchAny reports whether name matches anywhere in tokens.
func (m *Matcher) MatchAny(name string, tokens []string) bool {
	words := strings.Count(name, " ") + 1
	for i := 0; i+words <= len(tokens); i++ {
		candidate := tokens[i]
		if words > 1 {
			candidate = strings.Join(tokens[i:i+words], " ")
		}
		if m.Match(name, candidate) {
			return true
		}
	}
	return false
}

// Match is a one-off comparison of a and b at threshold.
func Match(a, b string, threshold float64) bool {
	return NewMatcher(threshold).Match(a, b)
}
