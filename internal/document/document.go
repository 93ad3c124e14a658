// Package document reads collected document bodies and exposes their visible
// text together with the anchor context needed to discard navigation matches.
package document

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/exp/mmap"
	"golang.org/x/net/html"

	"github.com/DeafMist/news-city-mapper/internal/processing"
)

// ErrRead wraps every failure to read a document body.
var ErrRead = errors.New("read document")

// Read maps the file into memory and returns its content as text.
// Bodies that are not valid UTF-8 are returned as empty content.
func Read(path string) (string, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w %s: %v", ErrRead, path, err)
	}
	defer r.Close()

	buf := make([]byte, r.Len())
	if len(buf) > 0 {
		if _, err := r.ReadAt(buf, 0); err != nil {
			return "", fmt.Errorf("%w %s: %v", ErrRead, path, err)
		}
	}
	if !utf8.Valid(buf) {
		return "", nil
	}
	return string(buf), nil
}

// Body is a parsed document: its visible text and where links sit in it.
type Body struct {
	text    string
	anchors []span
}

// span is a byte range [start, end) of the body text.
type span struct {
	start, end int
}

var skipped = map[string]struct{}{
	"script": {}, "style": {}, "noscript": {}, "template": {}, "head": {},
}

var blocks = map[string]struct{}{
	"p": {}, "div": {}, "br": {}, "hr": {}, "li": {}, "ul": {}, "ol": {}, "tr": {}, "td": {}, "th": {},
	"table": {}, "section": {}, "article": {}, "header": {}, "footer": {}, "nav": {}, "aside": {},
	"blockquote": {}, "pre": {}, "h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
}

// Parse reads raw HTML or plain text. Plain text ends up as the body text.
func Parse(raw string) (*Body, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	var e extractor
	for _, n := range doc.Nodes {
		e.walk(n, false)
	}
	return &Body{text: e.b.String(), anchors: e.anchors}, nil
}

type extractor struct {
	b       strings.Builder
	anchors []span
}

func (e *extractor) walk(n *html.Node, inAnchor bool) {
	switch n.Type {
	case html.TextNode:
		e.b.WriteString(n.Data)
		return
	case html.ElementNode:
		if _, ok := skipped[n.Data]; ok {
			return
		}
	}

	_, block := blocks[n.Data]
	block = block && n.Type == html.ElementNode
	if block {
		e.b.WriteByte(' ')
	}

	anchor := n.Type == html.ElementNode && n.Data == "a" && !inAnchor
	start := e.b.Len()
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		e.walk(c, inAnchor || anchor)
	}
	if anchor && e.b.Len() > start {
		e.anchors = append(e.anchors, span{start: start, end: e.b.Len()})
	}

	if block {
		e.b.WriteByte(' ')
	}
}

// Text returns the visible text of the document.
func (b *Body) Text() string {
	return b.text
}

// AnchorCount returns the number of non-empty links.
func (b *Body) AnchorCount() int {
	return len(b.anchors)
}

// Sentence is one '.'-delimited piece of the body with its tokens.
type Sentence struct {
	Text   string
	Tokens []string
	// anchored[i] is true when Tokens[i] lies inside a link.
	anchored []bool
}

// Sentences splits the body text on the literal '.' delimiter, as
// processing.Sentences does, keeping track of which tokens are link text.
func (b *Body) Sentences() []Sentence {
	if b.text == "" {
		return nil
	}

	var out []Sentence
	start := 0
	for {
		end := strings.IndexByte(b.text[start:], '.')
		if end < 0 {
			out = append(out, b.sentence(start, len(b.text)))
			return out
		}
		out = append(out, b.sentence(start, start+end))
		start += end + 1
	}
}

func (b *Body) sentence(start, end int) Sentence {
	text := b.text[start:end]
	spans := processing.TokenSpans(text)
	s := Sentence{
		Text:     text,
		Tokens:   make([]string, 0, len(spans)),
		anchored: make([]bool, 0, len(spans)),
	}
	for _, sp := range spans {
		s.Tokens = append(s.Tokens, strings.ToLower(text[sp[0]:sp[1]]))
		s.anchored = append(s.anchored, b.inAnchor(start+sp[0], start+sp[1]))
	}
	return s
}

func (b *Body) inAnchor(start, end int) bool {
	for _, a := range b.anchors {
		if start < a.end && a.start < end {
			return true
		}
	}
	return false
}

// Anchored reports whether the token at position i is link text.
func (s Sentence) Anchored(i int) bool {
	return i >= 0 && i < len(s.anchored) && s.anchored[i]
}

// WindowAnchored reports whether the n tokens starting at i are all link text.
func (s Sentence) WindowAnchored(i, n int) bool {
	if n <= 0 {
		return false
	}
	for j := i; j < i+n; j++ {
		if !s.Anchored(j) {
			return false
		}
	}
	return true
}

// InAnchor reports whether word occurs in the sentence and every occurrence
// is link text.
func (s Sentence) InAnchor(word string) bool {
	found := false
	for i, t := range s.Tokens {
		if t != word {
			continue
		}
		if !s.anchored[i] {
			return false
		}
		found = true
	}
	return found
}
