// Package inputmethod loads and applies Bobcat input-method tables. An
// input method is an ordered list of substitution rules that turn ASCII
// digraphs and similar sequences into the Unicode code points an author
// means. PRE rules run over the raw source before parsing; POST rules run
// over the finished text leaves of the document tree.
package inputmethod

import (
	"regexp"
	"strings"
)

// Phase tells when a rule applies.
type Phase int

const (
	Pre  Phase = iota // before structural parsing
	Post              // on text leaves, after reference resolution
)

// A Rule replaces one matched source sequence with exactly one code
// point. Literal rules match their Match text verbatim; regexp rules
// match the pattern, which must not contain capturing groups.
type Rule struct {
	Match       string
	Replacement rune
	Phase       Phase
	Regexp      bool

	re    *regexp.Regexp // anchored; nil for literal rules
	order int
}

// A Table is a complete input method: its own rules appended after all
// inherited ones. Tables are immutable once loaded and safe for
// concurrent use.
type Table struct {
	Name  string
	rules []Rule
}

// Rules returns the table's rules in origin order, inherited rules first.
func (t *Table) Rules() []Rule { return t.rules }

// MatchAt tries every rule of the given phase against the beginning of s
// and returns the winning rule plus the matched text. Longer matches win;
// among equal lengths the rule defined last wins, so a table overrides
// its ancestors. Matches containing a line break never count.
func (t *Table) MatchAt(phase Phase, s string) (*Rule, string) {
	var best *Rule
	bestLen := 0
	for i := range t.rules {
		r := &t.rules[i]
		if r.Phase != phase {
			continue
		}
		var m string
		if r.re != nil {
			m = r.re.FindString(s)
			if m == "" {
				continue
			}
		} else {
			if !strings.HasPrefix(s, r.Match) {
				continue
			}
			m = r.Match
		}
		if strings.ContainsAny(m, "\r\n") {
			continue
		}
		// Rules iterate in origin order, so on equal length the
		// later rule simply replaces the earlier one.
		if len(m) >= bestLen && len(m) > 0 {
			best, bestLen = r, len(m)
		}
	}
	if best == nil {
		return nil, ""
	}
	return best, s[:bestLen]
}
