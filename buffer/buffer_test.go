package buffer

import (
	"regexp"
	"testing"

	"github.com/bronger/bobcat/diag"
)

// mk builds an excerpt from s, escaping the code points at the given rune
// indices. Positions are line 1, columns counted from 0.
func mk(s string, escaped ...int) *Excerpt {
	escAt := map[int]bool{}
	for _, i := range escaped {
		escAt[i] = true
	}
	var b Builder
	for i, r := range []rune(s) {
		b.Append(r, diag.Position{File: "t", Line: 1, Column: i}, escAt[i])
	}
	return b.Build()
}

func TestPositions(t *testing.T) {
	e := mk("abc")
	if got := e.Position(1); got.Column != 1 {
		t.Errorf("Position(1).Column = %d, want 1", got.Column)
	}
	if got := e.Position(3); got.Column != 3 {
		t.Errorf("Position(Len).Column = %d, want 3", got.Column)
	}
	if got := mk("").Position(0); got != (diag.Position{}) {
		t.Errorf("empty excerpt Position(0) = %v, want zero", got)
	}
}

func TestEscapedText(t *testing.T) {
	e := mk("a*b", 1)
	if got := e.Text(); got != "a*b" {
		t.Errorf("Text() = %q, want %q", got, "a*b")
	}
	if got := e.EscapedText(); got != "a\x00b" {
		t.Errorf("EscapedText() = %q, want %q", got, "a\x00b")
	}
}

func TestSlice(t *testing.T) {
	e := mk("héllo", 2)
	s := e.Slice(1, 4)
	if got := s.Text(); got != "éll" {
		t.Errorf("Slice(1, 4).Text() = %q, want %q", got, "éll")
	}
	if !s.Escaped(1) {
		t.Error("escape flag lost in slice")
	}
	if got := s.Position(0).Column; got != 1 {
		t.Errorf("slice Position(0).Column = %d, want 1", got)
	}
	// Matching inside the slice must use rebased byte offsets.
	if got := s.Index("l", 0, s.Len()); got != 2 {
		t.Errorf("Index in slice = %d, want 2", got)
	}
}

func TestSplice(t *testing.T) {
	e := mk("abcd")
	out := e.Splice(1, 3, mk("XYZ"))
	if got := out.Text(); got != "aXYZd" {
		t.Errorf("Splice = %q, want %q", got, "aXYZd")
	}
	if got := out.Position(4).Column; got != 3 {
		t.Errorf("final code point kept Column %d, want 3", got)
	}
}

func TestFind(t *testing.T) {
	e := mk("xx ab yy")
	re := regexp.MustCompile(`(a)(q)?b`)
	m := e.Find(re, 0, e.Len())
	want := []int{3, 5, 3, 4, -1, -1}
	if len(m) != len(want) {
		t.Fatalf("Find returned %v, want %v", m, want)
	}
	for i := range want {
		if m[i] != want[i] {
			t.Fatalf("Find returned %v, want %v", m, want)
		}
	}
}

func TestFindSkipsEscaped(t *testing.T) {
	e := mk("a*b", 1)
	if m := e.Find(regexp.MustCompile(`\*`), 0, e.Len()); m != nil {
		t.Errorf("Find matched an escaped code point: %v", m)
	}
	if got := e.Index("*", 0, e.Len()); got != -1 {
		t.Errorf("Index found an escaped code point at %d", got)
	}
}

func TestFindMultibyte(t *testing.T) {
	e := mk("ä→ö")
	m := e.Find(regexp.MustCompile(`→`), 0, e.Len())
	if m == nil || m[0] != 1 || m[1] != 2 {
		t.Errorf("Find over multibyte text = %v, want [1 2]", m)
	}
}

func TestHasEscaped(t *testing.T) {
	e := mk("abc", 1)
	if !e.HasEscaped(0, 3) {
		t.Error("HasEscaped(0, 3) = false")
	}
	if e.HasEscaped(2, 3) {
		t.Error("HasEscaped(2, 3) = true")
	}
}
