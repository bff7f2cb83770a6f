// Package parser turns preprocessed Bobcat source into the document tree.
// It works on a buffer.Excerpt, so every pattern match runs on the
// escaped-text view and escaped characters can never trigger markup.
//
// The parser makes a single forward pass. Blocks are separated by blank
// lines; the block kind is decided by the block's first line, with two
// exceptions: a later underline line turns the block into a heading, and
// “::end” lines terminate the innermost environment.
package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bronger/bobcat/ast"
	"github.com/bronger/bobcat/buffer"
	"github.com/bronger/bobcat/diag"
)

type parser struct {
	src   *buffer.Excerpt
	lines []line
	cur   int
	diags *diag.List
	doc   *ast.Document
	lang  string

	// lastList is the most recent list at the current block level, the
	// target of “+ ” continuation blocks.
	lastList *ast.List
}

// A line is a rune range of src, newline excluded, plus the escaped-text
// view it is matched against.
type line struct {
	lo, hi int
	esc    string
}

var (
	underlinePat = regexp.MustCompile(`^={4,}[ \t]*$`)
	numberPat    = regexp.MustCompile(`^[ \t]*((?:(?:\d+|#)\.)*(?:\d+|#))(\.|[ \t])[ \t]*`)
	floatPat     = regexp.MustCompile(`^(/{4,})[ \t]*$`)
	gridTopPat   = regexp.MustCompile(`^\+(-+\+)+[ \t]*$`)
	simplePat    = regexp.MustCompile(`^=+([ \t]+=+)+[ \t]*$`)
	listPat      = regexp.MustCompile(`^([-#]+)[ \t]+`)
	defItemPat   = regexp.MustCompile(`^:([^:]+):[ \t]+`)
	contPat      = regexp.MustCompile(`^\+[ \t]+`)
	footDefPat   = regexp.MustCompile(`^(\*\d+|\*{1,2}|[⁰¹²³⁴⁵⁶⁷⁸⁹]+)\)[ \t]+`)
	linkDefPat   = regexp.MustCompile(`^\[([^\[\]]+)\]:[ \t]+(\S+)[ \t]*$`)
	endPat       = regexp.MustCompile(`^::end[ \t]+([\pL][\pL\d_-]*)[ \t]*$`)
	directivePat = regexp.MustCompile(`^([\pL][\pL\d_-]*)::(?:[ \t]+(.*))?$`)
	paramPat     = regexp.MustCompile(`^([a-z][a-z0-9_-]*):[ \t]+(.*)$`)
)

// Parse builds the document tree for a preprocessed source excerpt.
// Problems are reported to diags; the tree is nil if any of them was
// fatal.
func Parse(src *buffer.Excerpt, version string, diags *diag.List) *ast.Document {
	p := &parser{src: src, diags: diags}
	p.splitLines()
	p.doc = &ast.Document{
		Info:      ast.Info{Pos: src.Position(0)},
		Version:   version,
		Meta:      map[string]string{},
		Languages: map[string]bool{},
		Bib:       map[string]*ast.BibEntry{},
	}
	p.doc.Blocks = p.parseBlocks(-1, nil)
	if diags.HasErrors() {
		return nil
	}
	return p.doc
}

func (p *parser) splitLines() {
	lo := 0
	for i := 0; i <= p.src.Len(); i++ {
		if i == p.src.Len() || p.src.Rune(i) == '\n' {
			if i > lo || i < p.src.Len() {
				p.lines = append(p.lines, line{lo, i, p.src.Slice(lo, i).EscapedText()})
			}
			lo = i + 1
		}
	}
}

func (p *parser) blank(i int) bool {
	return strings.Trim(p.lines[i].esc, " \t") == ""
}

// lineText returns the escaped-text view of line i with trailing blanks
// removed. All block dispatch happens on this string.
func (p *parser) lineText(i int) string {
	return strings.TrimRight(p.lines[i].esc, " \t")
}

// runeAt converts a byte offset within line i's escaped text to a rune
// index into the source excerpt.
func (p *parser) runeAt(i, byteOff int) int {
	return p.lines[i].lo + utf8.RuneCountInString(p.lines[i].esc[:byteOff])
}

func (p *parser) pos(i int) diag.Position { return p.src.Position(p.lines[i].lo) }

func (p *parser) info(runeIdx int) ast.Info {
	return ast.Info{Pos: p.src.Position(runeIdx), Lang: p.lang}
}

func (p *parser) lineInfo(i int) ast.Info { return p.info(p.lines[i].lo) }

type stopFunc func(lineIdx int) bool

// parseBlocks consumes blocks until a heading of depth ≤ parentDepth, a
// stop line, or the end of input.
func (p *parser) parseBlocks(parentDepth int, stop stopFunc) []ast.Block {
	var blocks []ast.Block
	for p.cur < len(p.lines) {
		if p.blank(p.cur) {
			p.cur++
			continue
		}
		if stop != nil && stop(p.cur) {
			break
		}
		if u, ok := p.underlineAt(p.cur); ok {
			depth, number, ok := p.headingNumber(p.cur)
			if !ok {
				p.diags.Warnf(p.pos(p.cur), "heading has no section number; nesting it one level down")
				depth = parentDepth + 1
			}
			if depth <= parentDepth {
				break
			}
			blocks = append(blocks, p.parseSection(u, depth, parentDepth, number, stop))
			p.lastList = nil
			continue
		}
		before := p.cur
		blocks = append(blocks, p.parseBlock(stop)...)
		if p.cur == before {
			p.cur++ // never loop on an unconsumed line
		}
	}
	return blocks
}

// underlineAt looks for the “====” underline that makes the block
// starting at line i a heading, and returns the underline's index.
func (p *parser) underlineAt(i int) (int, bool) {
	if underlinePat.MatchString(p.lineText(i)) {
		return 0, false // a block cannot start with its own underline
	}
	for j := i + 1; j < len(p.lines) && !p.blank(j); j++ {
		if underlinePat.MatchString(p.lineText(j)) {
			return j, true
		}
	}
	return 0, false
}

func (p *parser) headingNumber(i int) (depth int, number string, ok bool) {
	m := numberPat.FindStringSubmatch(p.lines[i].esc)
	if m == nil {
		return 0, "", false
	}
	return strings.Count(m[1], "."), m[1], true
}

func (p *parser) parseSection(underline, depth, parentDepth int, number string, stop stopFunc) *ast.Section {
	first := p.cur
	if depth > parentDepth+1 {
		p.diags.Warnf(p.pos(first), "section %q skips a nesting level", number)
	}
	titleLo := p.lines[first].lo
	if m := numberPat.FindStringIndex(p.lines[first].esc); m != nil {
		titleLo = p.runeAt(first, m[1])
	}
	titleHi := p.lines[underline-1].hi
	title := p.parseInlines(p.src.Slice(titleLo, titleHi))
	s := &ast.Section{
		Info:   p.lineInfo(first),
		Number: number,
		Depth:  depth,
		Title:  title,
		Label:  ast.NormalizeLabel(ast.Flatten(title)),
	}
	p.cur = underline + 1
	s.Blocks = p.parseBlocks(depth, stop)
	return s
}

// parseBlock dispatches on the first line of the block at p.cur. It may
// return several blocks (lists split on kind changes) or none (metadata
// directives).
func (p *parser) parseBlock(stop stopFunc) []ast.Block {
	lt := p.lineText(p.cur)
	isList := listPat.MatchString(lt) || defItemPat.MatchString(lt)
	isCont := !isList && contPat.MatchString(lt)
	if !isList && !isCont {
		p.lastList = nil
	}
	switch {
	case floatPat.MatchString(lt):
		return p.parseFloat()
	case gridTopPat.MatchString(lt):
		return p.parseGridTable()
	case strings.HasPrefix(lt, "{|"):
		return p.parseWikiTable()
	case simplePat.MatchString(lt):
		return p.parseSimpleTable()
	case isList:
		return p.parseList()
	case isCont:
		return p.parseContinuation(stop)
	case footDefPat.MatchString(lt):
		return p.parseFootnoteDef()
	case linkDefPat.MatchString(lt):
		return p.parseLinkDef()
	case endPat.MatchString(lt):
		name := endPat.FindStringSubmatch(lt)[1]
		p.diags.Warnf(p.pos(p.cur), "excess ::end %s", name)
		p.cur++
		return nil
	case directivePat.MatchString(lt):
		return p.parseDirective()
	case strings.HasPrefix(lt, "```"):
		return p.parseSourceExcerpt()
	case strings.HasPrefix(lt, "{"):
		if b := p.parseDisplayedEquation(stop); b != nil {
			return b
		}
		return p.parseParagraph(stop)
	default:
		return p.parseParagraph(stop)
	}
}

// blockEnd returns the first line index after p.cur that no longer
// belongs to the running block: a blank line, a stop line, or an
// environment terminator.
func (p *parser) blockEnd(stop stopFunc) int {
	j := p.cur
	for j < len(p.lines) && !p.blank(j) {
		if j > p.cur {
			if stop != nil && stop(j) {
				break
			}
			if endPat.MatchString(p.lineText(j)) {
				break
			}
		}
		j++
	}
	return j
}

func (p *parser) parseParagraph(stop stopFunc) []ast.Block {
	first := p.cur
	end := p.blockEnd(stop)
	para := &ast.Paragraph{
		Info: p.lineInfo(first),
		Text: p.parseInlines(p.src.Slice(p.lines[first].lo, p.lines[end-1].hi)),
	}
	p.cur = end
	return []ast.Block{para}
}

// parseDisplayedEquation recognizes a block that consists of one
// brace-delimited formula and nothing else. Anything else falls back to
// paragraph parsing.
func (p *parser) parseDisplayedEquation(stop stopFunc) []ast.Block {
	first := p.cur
	end := p.blockEnd(stop)
	lo, hi := p.lines[first].lo, p.lines[end-1].hi
	cl, ok := matchBrace(p.src, lo)
	if !ok || cl != hi-1 {
		return nil
	}
	eq := &ast.Equation{
		Info:    p.lineInfo(first),
		Display: true,
		Formula: p.parseFormula(p.src.Slice(lo+1, cl)),
	}
	p.cur = end
	return []ast.Block{eq}
}

func (p *parser) parseSourceExcerpt() []ast.Block {
	first := p.cur
	lang := strings.TrimSpace(strings.TrimPrefix(p.lineText(first), "```"))
	end := -1
	for j := first + 1; j < len(p.lines); j++ {
		if p.lineText(j) == "```" {
			end = j
			break
		}
	}
	if end < 0 {
		p.diags.Warnf(p.pos(first), "source excerpt is not terminated")
		end = len(p.lines)
	}
	codeLo := p.lines[first].hi + 1
	if codeLo > p.src.Len() {
		codeLo = p.src.Len()
	}
	codeHi := codeLo
	if end > first+1 {
		codeHi = p.lines[end-1].hi + 1
		if codeHi > p.src.Len() {
			codeHi = p.src.Len()
		}
	}
	se := &ast.SourceExcerpt{
		Info:     p.lineInfo(first),
		Language: lang,
		Code:     p.src.Slice(codeLo, codeHi),
	}
	if end < len(p.lines) {
		p.cur = end + 1
	} else {
		p.cur = end
	}
	return []ast.Block{se}
}

func (p *parser) parseFootnoteDef() []ast.Block {
	first := p.cur
	m := footDefPat.FindStringSubmatchIndex(p.lines[first].esc)
	mark := p.lines[first].esc[m[2]:m[3]]
	end := p.blockEnd(nil)
	// Further definitions inside the same block start their own notes.
	for j := first + 1; j < end; j++ {
		if footDefPat.MatchString(p.lines[j].esc) {
			end = j
			break
		}
	}
	contentLo := p.runeAt(first, m[1])
	def := &ast.FootnoteDef{
		Info: p.lineInfo(first),
		Mark: mark,
		Blocks: []ast.Block{&ast.Paragraph{
			Info: p.info(contentLo),
			Text: p.parseInlines(p.src.Slice(contentLo, p.lines[end-1].hi)),
		}},
	}
	p.cur = end
	return []ast.Block{def}
}

func (p *parser) parseLinkDef() []ast.Block {
	first := p.cur
	m := linkDefPat.FindStringSubmatch(p.lineText(first))
	def := &ast.LinkDef{
		Info:  p.lineInfo(first),
		Label: ast.NormalizeLabel(m[1]),
		URL:   m[2],
	}
	p.cur = first + 1
	return []ast.Block{def}
}

// parseParams interprets a “key: value, key: value” argument list, or
// returns nil if arg has a different shape.
func parseParams(arg string) map[string]string {
	params := map[string]string{}
	for _, item := range strings.Split(arg, ",") {
		m := paramPat.FindStringSubmatch(strings.TrimSpace(item))
		if m == nil {
			return nil
		}
		params[m[1]] = strings.TrimSpace(m[2])
	}
	return params
}
