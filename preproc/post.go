package preproc

import (
	"unicode/utf8"

	"github.com/bronger/bobcat/buffer"
	"github.com/bronger/bobcat/inputmethod"
)

// ApplyPost runs the POST rules of t over a finished text leaf. Each
// match is spliced out of the excerpt in place of one replacement code
// point carrying the position of the first code point it replaces. A
// candidate match that touches an escaped code point is skipped, so
// escaping done in the source survives all the way to the backend. The
// input-method loader guarantees the result is a fixed point of the same
// table.
func ApplyPost(e *buffer.Excerpt, t *inputmethod.Table) *buffer.Excerpt {
	out := e
	for i := 0; i < out.Len(); {
		rule, m := t.MatchAt(inputmethod.Post, out.Slice(i, out.Len()).Text())
		if rule == nil {
			i++
			continue
		}
		n := utf8.RuneCountInString(m)
		if out.HasEscaped(i, i+n) {
			i++
			continue
		}
		var repl buffer.Builder
		repl.Append(rule.Replacement, out.Position(i), false)
		out = out.Splice(i, i+n, repl.Build())
		i++
	}
	return out
}
