// Package chunking splits long extracted text into overlapping chunks that
// respect paragraph and sentence boundaries and keep math notation intact.
package chunking

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DocumentChunk is an immutable slice of the source text. Start and End are
// rune offsets; Content is exactly the runes in [Start, End).
type DocumentChunk struct {
	ID          string `json:"chunk_id"`
	Index       int    `json:"index"`
	Content     string `json:"content"`
	Start       int    `json:"start_index"`
	End         int    `json:"end_index"`
	Overlap     int    `json:"overlap_size"`
	WordCount   int    `json:"word_count"`
	CharCount   int    `json:"character_count"`
	HasMath     bool   `json:"has_math"`
	HasChemical bool   `json:"has_chemical"`
	HasSuperSub bool   `json:"has_supersub"`
}

func newChunk(index int, runes []rune, start, end, overlap int) DocumentChunk {
	content := string(runes[start:end])
	return DocumentChunk{
		ID:          fmt.Sprintf("chunk_%d", index),
		Index:       index,
		Content:     content,
		Start:       start,
		End:         end,
		Overlap:     overlap,
		WordCount:   len(strings.Fields(content)),
		CharCount:   utf8.RuneCountInString(content),
		HasMath:     HasMath(content),
		HasChemical: HasChemical(content),
		HasSuperSub: HasSuperSub(content),
	}
}

// Body returns the content without the overlap carried from the previous chunk
func (c DocumentChunk) Body() string {
	if c.Overlap <= 0 {
		return c.Content
	}
	r := []rune(c.Content)
	if c.Overlap >= len(r) {
		return ""
	}
	return string(r[c.Overlap:])
}

var mathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$[^$]+\$`),
	regexp.MustCompile(`\$\$[^$]+\$\$`),
	regexp.MustCompile(`(?i)[a-z0-9\s]*=\s*[a-z0-9\s+\-*/()^]+`),
	regexp.MustCompile(`\\[a-zA-Z]+`),
	regexp.MustCompile(`[∑∫π√∞±≈≠≤≥αβγδθλμσφψω]`),
}

// a formula needs an element with a count, or must be one of the common names
var chemicalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:[A-Z][a-z]?\d*)*[A-Z][a-z]?\d+(?:[A-Z][a-z]?\d*)*\b`),
	regexp.MustCompile(`\b(?:[A-Z][a-z]?\d*)*\((?:[A-Z][a-z]?\d*)+\)\d+`),
	regexp.MustCompile(`\b(?:H2O|CO2|NaCl|CH4|O2|N2|H2SO4|HCl|NaOH)\b|Ca\(OH\)2`),
}

var superSubPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\^[a-zA-Z0-9]+`),
	regexp.MustCompile(`_[a-zA-Z0-9]+`),
	regexp.MustCompile(`[0-9]+\^[0-9]+`),
	regexp.MustCompile(`[a-zA-Z]+_[0-9]+`),
	regexp.MustCompile(`(?i)x²|x³|m²|cm³|kg/m³`),
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// HasMath reports LaTeX spans, commands, equations or math symbols
func HasMath(s string) bool { return matchAny(mathPatterns, s) }

// HasChemical reports chemical formulas
func HasChemical(s string) bool { return matchAny(chemicalPatterns, s) }

// HasSuperSub reports superscript or subscript notation
func HasSuperSub(s string) bool { return matchAny(superSubPatterns, s) }
