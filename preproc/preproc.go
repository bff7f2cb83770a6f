// Package preproc implements the Bobcat preprocessor. It applies the PRE
// rules of an input method to raw source text and resolves all backslash
// escaping, producing a buffer.Excerpt in which every code point still
// knows its original file position and whether it is escaped. It also
// normalizes line endings and removes comment lines.
package preproc

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bronger/bobcat/buffer"
	"github.com/bronger/bobcat/diag"
	"github.com/bronger/bobcat/inputmethod"
)

var (
	commentLine = regexp.MustCompile(`^\.\.([ \t].*)?$`)
	numericEsc  = regexp.MustCompile(`\A(#(\d+)|0x([0-9a-fA-F]+));`)
	numericPre  = regexp.MustCompile(`\A(#\d|0x[0-9a-fA-F])`)
)

// Run preprocesses the decoded source text of the named file with the PRE
// rules of t. On a fatal problem it records a diagnostic and returns nil.
func Run(text, file string, t *inputmethod.Table, diags *diag.List) *buffer.Excerpt {
	src, pos, ok := normalize(text, file, diags)
	if !ok {
		return nil
	}
	stext := string(src)
	boff := make([]int, len(src)+1)
	for i, r := range src {
		boff[i+1] = boff[i] + utf8.RuneLen(r)
	}

	var out buffer.Builder
	deferred := false      // escape waiting for the next substitution
	deferredBroke := false // the deferral already crossed a line break
	inSource := false      // inside a ``` fence

	i := 0
	for i < len(src) {
		atLineStart := i == 0 || src[i-1] == '\n'

		if !inSource && atLineStart {
			end := i
			for end < len(src) && src[end] != '\n' {
				end++
			}
			if commentLine.MatchString(string(src[i:end])) {
				i = end
				if i < len(src) {
					i++ // the line's own newline vanishes too
				}
				continue
			}
		}

		if strings.HasPrefix(stext[boff[i]:], "```") {
			inSource = !inSource
			for k := 0; k < 3; k++ {
				out.Append('`', pos[i+k], false)
			}
			i += 3
			continue
		}
		if inSource {
			if src[i] == '\\' && i+1 < len(src) && src[i+1] == '`' {
				out.Append('`', pos[i], true)
				i += 2
				continue
			}
			out.Append(src[i], pos[i], false)
			i++
			continue
		}

		if src[i] == '\\' {
			i = escape(src, pos, stext, boff, i, &out, &deferred, diags)
			if diags.HasErrors() {
				return nil
			}
			deferredBroke = false
			continue
		}

		if src[i] == '[' && i+1 < len(src) && src[i+1] == '[' {
			out.Append('[', pos[i], true)
			deferred, deferredBroke = false, false
			i += 2
			continue
		}
		if src[i] == ']' && i+1 < len(src) && src[i+1] == ']' {
			out.Append(']', pos[i], true)
			deferred, deferredBroke = false, false
			i += 2
			continue
		}

		if rule, m := t.MatchAt(inputmethod.Pre, stext[boff[i]:]); rule != nil {
			n := utf8.RuneCountInString(m)
			if deferred {
				// A deferred escape keeps the matched text
				// literal, one escaped code point at a time.
				for k := 0; k < n; k++ {
					out.Append(src[i+k], pos[i+k], true)
				}
				deferred, deferredBroke = false, false
			} else {
				out.Append(rule.Replacement, pos[i], false)
			}
			i += n
			continue
		}

		switch c := src[i]; {
		case deferred && (c == ' ' || c == '\t'):
			// dropped while the escape is pending
		case deferred && c == '\n':
			if deferredBroke {
				// A blank line cancels the deferral.
				deferred, deferredBroke = false, false
			} else {
				deferredBroke = true
			}
			out.Append(c, pos[i], false)
		case deferred:
			// The deferral reached a code point that starts no
			// substitution; it is escaped like in \x.
			out.Append(c, pos[i], true)
			deferred, deferredBroke = false, false
		default:
			out.Append(c, pos[i], false)
		}
		i++
	}
	return out.Build()
}

// escape handles a backslash at index i and returns the index to resume
// at. Numeric escapes, double backslashes, and single-character escapes
// are resolved here; a backslash before whitespace arms the deferred
// escape. A pending deferral applies to whatever the backslash produces
// and is spent afterwards, so it never leaks past another backslash.
func escape(src []rune, pos []diag.Position, stext string, boff []int,
	i int, out *buffer.Builder, deferred *bool, diags *diag.List) int {
	if i+1 >= len(src) {
		out.Append('\\', pos[i], false)
		*deferred = false
		return i + 1
	}
	rest := stext[boff[i+1]:]
	if m := numericEsc.FindStringSubmatch(rest); m != nil {
		r, ok := decodeNumeric(m[2], m[3])
		if !ok {
			diags.Errorf(pos[i], "numeric escape %q is not a valid code point", "\\"+m[0])
			return i
		}
		out.Append(r, pos[i], *deferred)
		*deferred = false
		return i + 1 + utf8.RuneCountInString(m[0])
	}
	if numericPre.MatchString(rest) {
		diags.Errorf(pos[i], "unterminated numeric escape")
		return i
	}
	switch next := src[i+1]; next {
	case '\\':
		out.Append('\\', pos[i+1], *deferred)
		*deferred = false
		return i + 2
	case ' ', '\t', '\n':
		*deferred = true
		return i + 1
	default:
		out.Append(next, pos[i+1], true)
		*deferred = false
		return i + 2
	}
}

func decodeNumeric(dec, hex string) (rune, bool) {
	var n int
	s, base := dec, 10
	if s == "" {
		s, base = hex, 16
	}
	for _, c := range s {
		d := int(c - '0')
		if base == 16 {
			switch {
			case c >= 'a' && c <= 'f':
				d = int(c-'a') + 10
			case c >= 'A' && c <= 'F':
				d = int(c-'A') + 10
			}
		}
		n = n*base + d
		if n > utf8.MaxRune {
			return 0, false
		}
	}
	r := rune(n)
	if !utf8.ValidRune(r) || r == 0 {
		return 0, false
	}
	return r, true
}

// normalize decodes text into runes with their original positions. CR LF
// and lone CR become one \n each. A NUL byte is a hard error.
func normalize(text, file string, diags *diag.List) ([]rune, []diag.Position, bool) {
	var src []rune
	var pos []diag.Position
	line, col := 1, 0
	rs := []rune(text)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		p := diag.Position{File: file, Line: line, Column: col}
		switch r {
		case 0:
			diags.Errorf(p, "NUL character in input")
			return nil, nil, false
		case '\r':
			if i+1 < len(rs) && rs[i+1] == '\n' {
				i++
			}
			src = append(src, '\n')
			pos = append(pos, p)
			line, col = line+1, 0
			continue
		case '\n':
			src = append(src, r)
			pos = append(pos, p)
			line, col = line+1, 0
			continue
		}
		src = append(src, r)
		pos = append(pos, p)
		col++
	}
	return src, pos, true
}
