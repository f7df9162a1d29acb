// ABOUTME: Match predicate interface and the default substring matcher
// ABOUTME: Produces non-overlapping ascending spans with Unicode-safe offsets

package search

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Span marks one matched byte range within a message's content.
type Span struct {
	Start int
	End   int
}

// Matcher decides whether content matches a query and where. Spans must be
// non-overlapping, ascending, and indexed into the original content. An
// empty result means no match. Implementations swap in alternative match
// semantics without touching filtering, ordering, or highlighting.
type Matcher interface {
	Spans(content, query string) []Span
}

// SubstringMatcher matches the literal query text case-insensitively.
type SubstringMatcher struct{}

// Spans finds every non-overlapping occurrence, scanning left to right.
func (SubstringMatcher) Spans(content, query string) []Span {
	if query == "" {
		return nil
	}

	lowered, offsets := foldCase(content)
	needle := strings.ToLower(query)

	var spans []Span
	from := 0
	for {
		i := strings.Index(lowered[from:], needle)
		if i < 0 {
			break
		}
		start := from + i
		end := start + len(needle)
		spans = append(spans, Span{Start: offsets[start], End: offsets[end]})
		from = end
	}
	return spans
}

// foldCase lowercases s and maps every byte offset of the lowered string
// back to its offset in s. Case folding can change rune widths, so matches
// found in the lowered text need the table to address the original casing.
func foldCase(s string) (string, []int) {
	var b strings.Builder
	b.Grow(len(s))
	offsets := make([]int, 0, len(s)+1)

	for i, r := range s {
		lower := unicode.ToLower(r)
		width := utf8.RuneLen(lower)
		for j := 0; j < width; j++ {
			offsets = append(offsets, i)
		}
		b.WriteRune(lower)
	}
	offsets = append(offsets, len(s))

	return b.String(), offsets
}
