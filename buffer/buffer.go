// Package buffer provides the Excerpt type, the unit of text that flows
// through the Bobcat pipeline. An Excerpt pairs every code point with the
// position it came from in the original source file and with an escape
// flag. Substitutions may grow or shrink the text arbitrarily; positions
// survive them.
package buffer

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/bronger/bobcat/diag"
)

// An Excerpt is an immutable sequence of positioned code points. Escaped
// code points are invisible to pattern matching through EscapedText.
//
// Slices of an Excerpt share the underlying storage; Splice copies.
type Excerpt struct {
	runes []rune
	pos   []diag.Position
	esc   []bool

	// Built on construction. escText has escaped runes replaced by NUL
	// so regular expressions cannot match across them. byteOf maps rune
	// indices to byte offsets in escText (len(runes)+1 entries).
	escText string
	byteOf  []int
}

// LitterDump prints the excerpt as its plain text in structure dumps,
// which would otherwise show nothing of an excerpt at all.
func (e *Excerpt) LitterDump(w io.Writer) {
	fmt.Fprintf(w, "buffer.Excerpt(%q)", e.Text())
}

// A Builder accumulates positioned code points for a new Excerpt.
type Builder struct {
	runes []rune
	pos   []diag.Position
	esc   []bool
}

// Append adds one code point carrying its original position. Escaped code
// points take no part in pattern matching.
func (b *Builder) Append(r rune, pos diag.Position, escaped bool) {
	b.runes = append(b.runes, r)
	b.pos = append(b.pos, pos)
	b.esc = append(b.esc, escaped)
}

// AppendExcerpt adds all code points of e, keeping their positions and
// escape flags.
func (b *Builder) AppendExcerpt(e *Excerpt) {
	b.runes = append(b.runes, e.runes...)
	b.pos = append(b.pos, e.pos...)
	b.esc = append(b.esc, e.esc...)
}

// Len returns the number of code points appended so far.
func (b *Builder) Len() int { return len(b.runes) }

// Build finalizes the accumulated text. The Builder must not be used
// afterwards.
func (b *Builder) Build() *Excerpt {
	e := &Excerpt{runes: b.runes, pos: b.pos, esc: b.esc}
	e.index()
	return e
}

func (e *Excerpt) index() {
	var sb strings.Builder
	e.byteOf = make([]int, len(e.runes)+1)
	for i, r := range e.runes {
		e.byteOf[i] = sb.Len()
		if e.esc[i] {
			sb.WriteRune(0)
		} else {
			sb.WriteRune(r)
		}
	}
	e.byteOf[len(e.runes)] = sb.Len()
	e.escText = sb.String()
}

// Len returns the length in code points.
func (e *Excerpt) Len() int { return len(e.runes) }

// Rune returns the code point at rune index i.
func (e *Excerpt) Rune(i int) rune { return e.runes[i] }

// Escaped reports whether the code point at i is escaped.
func (e *Excerpt) Escaped(i int) bool { return e.esc[i] }

// Position returns the original source position of the code point at i.
// i may equal Len; the result then points just past the last code point.
func (e *Excerpt) Position(i int) diag.Position {
	if len(e.runes) == 0 {
		return diag.Position{}
	}
	if i >= len(e.runes) {
		p := e.pos[len(e.runes)-1]
		p.Column++
		return p
	}
	return e.pos[i]
}

// Text returns the carried text.
func (e *Excerpt) Text() string { return string(e.runes) }

// EscapedText returns the text with every escaped code point replaced by
// NUL. Structural pattern matching runs on this view, so escaped
// characters never trigger markup.
func (e *Excerpt) EscapedText() string { return e.escText }

// Slice returns the sub-excerpt [lo, hi). It shares storage with e.
func (e *Excerpt) Slice(lo, hi int) *Excerpt {
	s := &Excerpt{
		runes:   e.runes[lo:hi],
		pos:     e.pos[lo:hi],
		esc:     e.esc[lo:hi],
		escText: e.escText[e.byteOf[lo]:e.byteOf[hi]],
		byteOf:  make([]int, hi-lo+1),
	}
	for i := range s.byteOf {
		s.byteOf[i] = e.byteOf[lo+i] - e.byteOf[lo]
	}
	return s
}

// Splice returns a copy of e with [lo, hi) replaced by repl.
func (e *Excerpt) Splice(lo, hi int, repl *Excerpt) *Excerpt {
	var b Builder
	b.AppendExcerpt(e.Slice(0, lo))
	b.AppendExcerpt(repl)
	b.AppendExcerpt(e.Slice(hi, e.Len()))
	return b.Build()
}

// HasEscaped reports whether any code point in [lo, hi) is escaped.
func (e *Excerpt) HasEscaped(lo, hi int) bool {
	for i := lo; i < hi; i++ {
		if e.esc[i] {
			return true
		}
	}
	return false
}

// Find runs re on the escaped-text view of [from, to) and returns the
// pair-wise match and group boundaries as rune indices relative to the
// whole excerpt, or nil. Unmatched groups are reported as -1. Patterns
// that must match exactly at from anchor themselves with \A.
func (e *Excerpt) Find(re *regexp.Regexp, from, to int) []int {
	sub := e.escText[e.byteOf[from]:e.byteOf[to]]
	loc := re.FindStringSubmatchIndex(sub)
	if loc == nil {
		return nil
	}
	out := make([]int, len(loc))
	for i, b := range loc {
		if b < 0 {
			out[i] = -1
			continue
		}
		out[i] = e.runeIndex(e.byteOf[from]+b, from)
	}
	return out
}

// Index returns the rune index of the first unescaped occurrence of
// substr in [from, to), or -1.
func (e *Excerpt) Index(substr string, from, to int) int {
	b := strings.Index(e.escText[e.byteOf[from]:e.byteOf[to]], substr)
	if b < 0 {
		return -1
	}
	return e.runeIndex(e.byteOf[from]+b, from)
}

// runeIndex translates a byte offset in escText back to a rune index.
// hint is a rune index at or before the answer.
func (e *Excerpt) runeIndex(off, hint int) int {
	i := hint
	for e.byteOf[i] < off {
		i++
	}
	return i
}
