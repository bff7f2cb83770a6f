package parser

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/bronger/bobcat/ast"
	"github.com/bronger/bobcat/buffer"
)

var (
	specialPat = regexp.MustCompile("[_`\\[{<*⁰¹²³⁴⁵⁶⁷⁸⁹]|https?://|mailto:")
	rolePat    = regexp.MustCompile(`^([a-z][a-z0-9-]*):`)
	urlPat     = regexp.MustCompile(`\A(?:https?://|mailto:)[^\s]+`)
	markPat    = regexp.MustCompile(`\A(?:\*\d+|\*{1,2}|[⁰¹²³⁴⁵⁶⁷⁸⁹]+)`)
)

// parseInlines parses the running text of e into inline nodes. All
// structure detection happens on the escaped-text view; escaped
// characters are ordinary text.
func (p *parser) parseInlines(e *buffer.Excerpt) []ast.Inline {
	nodes, _, _ := p.scanInlines(e, 0, 0)
	return nodes
}

// scanInlines scans from rune index `from` until the end of e or an
// unescaped stop character, returning the nodes, the index after the last
// consumed rune, and whether the stop character was found (it is not
// consumed).
func (p *parser) scanInlines(e *buffer.Excerpt, from int, stop rune) ([]ast.Inline, int, bool) {
	var nodes []ast.Inline
	textStart := from
	flush := func(upTo int) {
		if upTo > textStart {
			nodes = append(nodes, &ast.Text{
				Info:    ast.Info{Pos: e.Position(textStart), Lang: p.lang},
				Excerpt: e.Slice(textStart, upTo),
			})
		}
	}
	info := func(i int) ast.Info {
		return ast.Info{Pos: e.Position(i), Lang: p.lang}
	}

	i := from
	for i < e.Len() {
		loc := e.Find(specialPat, i, e.Len())
		if loc == nil {
			break
		}
		s := loc[0]
		r := e.Rune(s)
		if stop != 0 && r == stop {
			flush(s)
			return nodes, s, true
		}
		switch {
		case r == '_':
			flush(s)
			sub, end, found := p.scanInlines(e, s+1, '_')
			if !found {
				p.diags.Warnf(e.Position(s), "emphasis is not terminated")
				nodes = append(nodes, &ast.Emphasize{Info: info(s), Text: sub})
				return nodes, end, false
			}
			nodes = append(nodes, &ast.Emphasize{Info: info(s), Text: sub})
			i = end + 1
			textStart = i

		case r == '`':
			c := e.Index("`", s+1, e.Len())
			if c < 0 {
				p.diags.Warnf(e.Position(s), "backquoted reference is not terminated")
				i = s + 1
				continue
			}
			flush(s)
			nodes = append(nodes, p.backquoted(e, s, c))
			i = c + 1
			textStart = i

		case r == '[':
			c := e.Index("]", s+1, e.Len())
			if c < 0 {
				i = s + 1
				continue
			}
			flush(s)
			inner := e.Slice(s+1, c)
			if strings.HasPrefix(inner.EscapedText(), "@") {
				nodes = append(nodes, &ast.Citation{
					Info: info(s),
					Key:  strings.TrimSpace(inner.Text()[1:]),
				})
			} else {
				text := p.parseInlines(inner)
				nodes = append(nodes, &ast.LinkRef{
					Info:  info(s),
					Label: ast.NormalizeLabel(inner.Text()),
					Text:  text,
				})
			}
			i = c + 1
			textStart = i

		case r == '<':
			c := e.Index(">", s+1, e.Len())
			if c < 0 || hasSpace(e, s+1, c) || c == s+1 {
				i = s + 1
				continue
			}
			flush(s)
			nodes = append(nodes, &ast.AutoLink{Info: info(s), URL: e.Slice(s+1, c).Text()})
			i = c + 1
			textStart = i

		case r == '{':
			c, ok := matchBrace(e, s)
			if !ok {
				p.diags.Warnf(e.Position(s), "formula is not terminated")
				i = s + 1
				continue
			}
			flush(s)
			nodes = append(nodes, &ast.Equation{
				Info:    info(s),
				Formula: p.parseFormula(e.Slice(s+1, c)),
			})
			i = c + 1
			textStart = i

		case r == '*' || isSuperscript(r):
			// A footnote mark hangs directly off the preceding
			// word.
			if s == from || isSpace(e.Rune(s-1)) {
				i = s + 1
				continue
			}
			m := e.Find(markPat, s, e.Len())
			if m == nil {
				i = s + 1
				continue
			}
			flush(s)
			nodes = append(nodes, &ast.FootnoteRef{
				Info: info(s),
				Mark: e.Slice(m[0], m[1]).Text(),
			})
			i = m[1]
			textStart = i

		default: // a URL scheme
			m := e.Find(urlPat, s, e.Len())
			if m == nil {
				i = s + 1
				continue
			}
			end := m[1]
			for end > m[0]+1 && strings.ContainsRune(".,;:!?)", e.Rune(end-1)) {
				end--
			}
			flush(s)
			nodes = append(nodes, &ast.AutoLink{Info: info(s), URL: e.Slice(s, end).Text()})
			i = end
			textStart = i
		}
	}
	flush(e.Len())
	return nodes, e.Len(), false
}

// backquoted interprets the token between two backquotes: a role when it
// starts with “name:”, otherwise a reference whose path components are
// separated by →. Whether a reference means a cross reference or a text
// block inclusion is decided during resolution.
func (p *parser) backquoted(e *buffer.Excerpt, open, close int) ast.Inline {
	token := e.Slice(open+1, close)
	info := ast.Info{Pos: e.Position(open), Lang: p.lang}
	if m := rolePat.FindStringIndex(token.EscapedText()); m != nil {
		// Role names are ASCII, so bytes equal runes here.
		nameEnd := m[1] - 1
		return &ast.Role{
			Info: info,
			Name: token.EscapedText()[:nameEnd],
			Text: p.parseInlines(token.Slice(nameEnd+1, token.Len())),
		}
	}
	var path []string
	start := 0
	for i := 0; i < token.Len(); i++ {
		if token.Rune(i) == '→' && !token.Escaped(i) {
			path = append(path, ast.NormalizeLabel(token.Slice(start, i).Text()))
			start = i + 1
		}
	}
	path = append(path, ast.NormalizeLabel(token.Slice(start, token.Len()).Text()))
	return &ast.CrossRef{Info: info, Path: path}
}

// matchBrace finds the unescaped } closing the { at open, honoring
// nesting and quoted literals.
func matchBrace(e *buffer.Excerpt, open int) (int, bool) {
	depth := 0
	inQuote := false
	for i := open; i < e.Len(); i++ {
		if e.Escaped(i) {
			continue
		}
		switch e.Rune(i) {
		case '"':
			inQuote = !inQuote
		case '{':
			if !inQuote {
				depth++
			}
		case '}':
			if !inQuote {
				depth--
				if depth == 0 {
					return i, true
				}
			}
		}
	}
	return 0, false
}

func isSuperscript(r rune) bool {
	return strings.ContainsRune("⁰¹²³⁴⁵⁶⁷⁸⁹", r)
}

func isSpace(r rune) bool { return unicode.IsSpace(r) }

func hasSpace(e *buffer.Excerpt, lo, hi int) bool {
	for i := lo; i < hi; i++ {
		if isSpace(e.Rune(i)) {
			return true
		}
	}
	return false
}
