// Package classifier decides which cities a document is attributed to.
//
// A document goes through a title phase and, when needed, a content phase.
// Title matches attribute a city directly. Content matches require the city
// to appear near a keyword inside one sentence. A document in which no
// keyword is ever found is not relevant and yields no attribution.
package classifier

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/DeafMist/news-city-mapper/internal/document"
	"github.com/DeafMist/news-city-mapper/internal/gazetteer"
	"github.com/DeafMist/news-city-mapper/internal/models"
	"github.com/DeafMist/news-city-mapper/internal/processing"
)

// Policy selects when the content phase runs.
type Policy string

const (
	// PolicyShortCircuit skips the content phase once the title holds a keyword.
	PolicyShortCircuit Policy = "short-circuit"
	// PolicyScanAll always runs the content phase when content parsing is enabled.
	PolicyScanAll Policy = "scan-all"
)

// ParsePolicy validates a policy name.
func ParsePolicy(raw string) (Policy, error) {
	switch p := Policy(raw); p {
	case PolicyShortCircuit, PolicyScanAll:
		return p, nil
	case "":
		return PolicyShortCircuit, nil
	default:
		return "", fmt.Errorf("unknown policy %q (valid: %s, %s)", raw, PolicyShortCircuit, PolicyScanAll)
	}
}

// Options tune the matching policy.
type Options struct {
	TitleThreshold     float64
	ContentThreshold   float64
	ProximityThreshold int
	ParseContent       bool
	// RelaxedLinks accepts matches inside anchors. When false, keyword and
	// city matches inside links are ignored.
	RelaxedLinks bool
	Policy       Policy
}

// DefaultOptions returns the thresholds used by the mapper.
func DefaultOptions() Options {
	return Options{
		TitleThreshold:     0.95,
		ContentThreshold:   0.95,
		ProximityThreshold: 3,
		RelaxedLinks:       true,
		Policy:             PolicyShortCircuit,
	}
}

// ReadFunc returns the text content of a document body.
type ReadFunc func(path string) (string, error)

// Result is the outcome of classifying one document.
type Result struct {
	Relevant     bool
	Attributions []models.Attribution
}

// Classifier is safe for concurrent use; it only reads shared state.
type Classifier struct {
	cities   []gazetteer.City
	keywords processing.KeywordSet
	opts     Options
	title    *processing.Matcher
	content  *processing.Matcher
	near     processing.Proximity
	read     ReadFunc
	log      *slog.Logger
}

// Option customises a Classifier.
type Option func(*Classifier)

// WithReader replaces the memory-mapped body reader.
func WithReader(read ReadFunc) Option {
	return func(c *Classifier) { c.read = read }
}

// WithLogger sets the debug logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Classifier) {
		if log != nil {
			c.log = log
		}
	}
}

// New builds a classifier over the gazetteer and keyword set.
func New(gaz *gazetteer.Gazetteer, keywords processing.KeywordSet, opts Options, options ...Option) *Classifier {
	if opts.Policy == "" {
		opts.Policy = PolicyShortCircuit
	}
	content := processing.NewMatcher(opts.ContentThreshold)
	c := &Classifier{
		cities:   gaz.Cities(),
		keywords: keywords,
		opts:     opts,
		title:    processing.NewMatcher(opts.TitleThreshold),
		content:  content,
		near:     processing.Proximity{MaxDistance: opts.ProximityThreshold, Matcher: content},
		read:     document.Read,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// Classify reads the document body and decides its attributions.
// Only a failure to read the body is reported as an error.
func (c *Classifier) Classify(meta models.DocumentMetadata) (Result, error) {
	raw, err := c.read(meta.FilePath)
	if err != nil {
		return Result{}, err
	}

	set := newAttributionSet()
	keywordFound := c.titlePhase(meta.Title, set)

	if c.opts.ParseContent && (!keywordFound || c.opts.Policy == PolicyScanAll) {
		found, err := c.contentPhase(raw, set)
		if err != nil {
			return Result{}, fmt.Errorf("classify %s: %w", meta.FilePath, err)
		}
		if found {
			keywordFound = true
			if !set.hasCity() && !set.has(models.Unspecified) {
				set.add(models.Unspecified)
			}
		}
	}

	if !keywordFound {
		c.log.Debug("document not relevant", slog.String("file", meta.FilePath))
		return Result{}, nil
	}
	return Result{Relevant: true, Attributions: set.items}, nil
}

func (c *Classifier) titlePhase(title string, set *attributionSet) bool {
	tokens := processing.Tokenize(title)
	if len(tokens) == 0 {
		return false
	}
	uniq := processing.Unique(tokens)

	for _, city := range c.cities {
		candidates := uniq
		if isMultiWord(city.MatchName) {
			candidates = tokens
		}
		if c.title.MatchAny(city.MatchName, candidates) {
			c.log.Debug("city found in title", slog.String("city", city.Key))
			set.add(models.CityAttribution(city.Key))
		}
	}

	if !c.keywords.ContainsAny(uniq) {
		return false
	}
	if !set.hasCity() {
		set.add(models.Unspecified)
	}
	return true
}

func (c *Classifier) contentPhase(raw string, set *attributionSet) (bool, error) {
	body, err := document.Parse(raw)
	if err != nil {
		return false, err
	}

	found := false
	for _, sentence := range body.Sentences() {
		tokens := sentence.Tokens
		hits := c.keywords.Hits(tokens)
		if len(hits) == 0 {
			continue
		}
		found = true

		if !c.opts.RelaxedLinks && allInAnchor(sentence, hits) {
			continue
		}

		uniq := processing.Unique(tokens)
		for _, city := range c.cities {
			if set.has(models.CityAttribution(city.Key)) {
				continue
			}
			if !c.cityInSentence(city.MatchName, sentence, uniq) {
				continue
			}
			if c.near.Near(tokens, city.MatchName, c.keywords) {
				c.log.Debug("city found near keyword", slog.String("city", city.Key))
				set.add(models.CityAttribution(city.Key))
			}
		}
	}
	return found, nil
}

// cityInSentence reports whether name matches the sentence. In strict link
// mode a match only counts when it is not link text.
func (c *Classifier) cityInSentence(name string, sentence document.Sentence, uniq []string) bool {
	if c.opts.RelaxedLinks {
		candidates := uniq
		if isMultiWord(name) {
			candidates = sentence.Tokens
		}
		return c.content.MatchAny(name, candidates)
	}

	words := strings.Count(name, " ") + 1
	for _, pos := range c.content.Find(name, sentence.Tokens) {
		if !sentence.WindowAnchored(pos, words) {
			return true
		}
	}
	return false
}

func allInAnchor(sentence document.Sentence, hits []string) bool {
	for _, h := range hits {
		if !sentence.InAnchor(h) {
			return false
		}
	}
	return true
}

func isMultiWord(name string) bool {
	return strings.Contains(name, " ")
}

// attributionSet keeps attributions unique in insertion order.
type attributionSet struct {
	seen  map[models.Attribution]struct{}
	items []models.Attribution
}

func newAttributionSet() *attributionSet {
	return &attributionSet{seen: make(map[models.Attribution]struct{})}
}

func (s *attributionSet) add(a models.Attribution) {
	if _, ok := s.seen[a]; ok {
		return
	}
	s.seen[a] = struct{}{}
	s.items = append(s.items, a)
}

func (s *attributionSet) has(a models.Attribution) bool {
	_, ok := s.seen[a]
	return ok
}

func (s *attributionSet) hasCity() bool {
	for _, a := range s.items {
		if !a.IsUnspecified() {
			return true
		}
	}
	return false
}
