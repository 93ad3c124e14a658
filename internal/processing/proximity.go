package processing

import "strings"

// Proximity decides whether a city and a keyword co-occur within a sentence.
type Proximity struct {
	MaxDistance int
	// Matcher locates the city among tokens; nil means exact comparison.
	Matcher *Matcher
}

// Near reports whether city appears within MaxDistance positions of a keyword.
// Positions are indexes into the de-duplicated token sequence, except for
// names of several words, which need their words adjacent and so are located
// in the raw sequence.
func (p Proximity) Near(tokens []string, city string, keywords KeywordSet) bool {
	if !strings.Contains(city, " ") {
		tokens = Unique(tokens)
	}
	return Within(p.Matcher.Find(city, tokens), KeywordPositions(tokens, keywords), p.MaxDistance)
}

// KeywordPositions returns the indexes of tokens that are keywords.
func KeywordPositions(tokens []string, keywords KeywordSet) []int {
	var out []int
	for i, t := range tokens {
		if keywords.Contains(t) {
			out = append(out, i)
		}
	}
	return out
}

// Within reports whether some pair of positions is at most maxDistance apart.
func Within(cityPositions, keywordPositions []int, maxDistance int) bool {
	for _, c := range cityPositions {
		for _, k := range keywordPositions {
			d := c - k
			if d < 0 {
				d = -d
			}
			if d <= maxDistance {
				return true
			}
		}
	}
	return false
}

// Near is the stand-alone form of Proximity.Near with exact city comparison.
func Near(tokens []string, city string, keywords KeywordSet, maxDistance int) bool {
	return Proximity{MaxDistance: maxDistance}.Near(tokens, city, keywords)
}
