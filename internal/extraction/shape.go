package extraction

import (
	"regexp"
	"strings"
)

// ShapePattern flags one way a reply can look like a structured document.
type ShapePattern struct {
	Name string
	// Regex is matched against the reply head when HeadOnly is set, and
	// against the whole reply otherwise.
	Regex    string
	HeadOnly bool
}

const (
	minShapeLength = 20
	shapeHeadChars = 200
)

// DefaultShapePatterns detects markdown tables and document-title headings.
func DefaultShapePatterns() []ShapePattern {
	return []ShapePattern{
		{Name: "markdown_table", Regex: `\| ?---`},
		{Name: "document_heading", Regex: `^# [\s\S]*(Product Requirements|PRD|Feature|Executive Summary)`, HeadOnly: true},
	}
}

// ShapeDetector recognises replies that read like a document rather than a
// conversational turn.
type ShapeDetector struct {
	patterns []compiledShape
}

type compiledShape struct {
	ShapePattern
	regex *regexp.Regexp
}

// NewShapeDetector compiles patterns, using the defaults when none are given.
// Invalid patterns are skipped.
func NewShapeDetector(patterns ...ShapePattern) *ShapeDetector {
	if len(patterns) == 0 {
		patterns = DefaultShapePatterns()
	}
	d := &ShapeDetector{}
	for _, p := range patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			continue
		}
		d.patterns = append(d.patterns, compiledShape{ShapePattern: p, regex: re})
	}
	return d
}

// Detect returns the name of the first matching pattern. Replies shorter than
// twenty characters never match.
func (d *ShapeDetector) Detect(reply string) (string, bool) {
	text := strings.TrimSpace(reply)
	if len(text) < minShapeLength {
		return "", false
	}
	head := text
	if r := []rune(text); len(r) > shapeHeadChars {
		head = string(r[:shapeHeadChars])
	}
	for _, p := range d.patterns {
		target := text
		if p.HeadOnly {
			target = head
		}
		if p.regex.MatchString(target) {
			return p.Name, true
		}
	}
	return "", false
}

// LooksLikeDocument reports whether any pattern matches.
func (d *ShapeDetector) LooksLikeDocument(reply string) bool {
	_, ok := d.Detect(reply)
	return ok
}
