// ABOUTME: Wraps matched spans in markers and truncates highlighted snippets
// ABOUTME: Truncation respects rune boundaries and never splits a marker pair

package search

import (
	"strings"
	"unicode/utf8"
)

// Markers wrapped around each matched range. The original casing of the
// matched text is preserved between them.
const (
	MarkStart = "<mark>"
	MarkEnd   = "</mark>"
)

// Highlight returns content with every span wrapped in MarkStart/MarkEnd.
// Spans must be non-overlapping and ascending, as Matcher produces them.
func Highlight(content string, spans []Span) string {
	if len(spans) == 0 {
		return content
	}

	var b strings.Builder
	b.Grow(len(content) + len(spans)*(len(MarkStart)+len(MarkEnd)))

	prev := 0
	for _, sp := range spans {
		b.WriteString(content[prev:sp.Start])
		b.WriteString(MarkStart)
		b.WriteString(content[sp.Start:sp.End])
		b.WriteString(MarkEnd)
		prev = sp.End
	}
	b.WriteString(content[prev:])

	return b.String()
}

// StripMarkers removes highlight markers, recovering the original content.
func StripMarkers(highlighted string) string {
	s := strings.ReplaceAll(highlighted, MarkStart, "")
	return strings.ReplaceAll(s, MarkEnd, "")
}

// ellipsis terminates truncated snippets.
const ellipsis = "..."

// segment is a run of highlighted output that truncation treats as atomic
// or divisible: marked segments (marker pair plus matched text) never split,
// plain segments cut at any rune boundary.
type segment struct {
	text   string
	marked bool
}

// TruncateHighlighted shortens a highlighted snippet to at most limit bytes
// of highlighted text plus a trailing ellipsis. Cuts land on rune boundaries
// and never inside a marker or between a marker and its matched text. When
// even the first marked range exceeds the limit it is kept whole, so a
// truncated snippet always shows at least one match if the input had one.
func TruncateHighlighted(highlighted string, limit int) string {
	if limit <= 0 || len(highlighted) <= limit {
		return highlighted
	}

	segs := splitSegments(highlighted)

	var b strings.Builder
	used := 0
	for i, seg := range segs {
		if used+len(seg.text) <= limit {
			b.WriteString(seg.text)
			used += len(seg.text)
			continue
		}
		if seg.marked {
			// Keep the first match whole even when oversized.
			if i == 0 && used == 0 {
				b.WriteString(seg.text)
			}
		} else {
			b.WriteString(cutAtRune(seg.text, limit-used))
		}
		break
	}

	out := b.String()
	if out == highlighted {
		return out
	}
	return out + ellipsis
}

// splitSegments parses highlighted text into plain and marked segments.
func splitSegments(highlighted string) []segment {
	var segs []segment
	rest := highlighted
	for {
		i := strings.Index(rest, MarkStart)
		if i < 0 {
			if rest != "" {
				segs = append(segs, segment{text: rest})
			}
			return segs
		}
		if i > 0 {
			segs = append(segs, segment{text: rest[:i]})
		}
		rest = rest[i:]
		j := strings.Index(rest, MarkEnd)
		if j < 0 {
			// Unbalanced marker, treat the remainder as plain text.
			segs = append(segs, segment{text: rest})
			return segs
		}
		end := j + len(MarkEnd)
		segs = append(segs, segment{text: rest[:end], marked: true})
		rest = rest[end:]
	}
}

// cutAtRune truncates s to at most n bytes without splitting a rune.
func cutAtRune(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
