package parser

import (
	"regexp"
	"strings"

	"github.com/bronger/bobcat/ast"
)

// captionPat matches a float caption line: the numbering token, an
// optional backquoted explicit label, “::”, and the caption text.
var captionPat = regexp.MustCompile("^([\\pL][\\pL\\d-]*)(?:[ \t]+`([^`]+)`)?::[ \t]*(.*)$")

// parseFloat reads a float fenced by lines of slashes. Fences with more
// slashes than the opening one delimit nested subfigures; the closing
// fence has at most as many slashes as the opening one.
func (p *parser) parseFloat() []ast.Block {
	first := p.cur
	fence := len(floatPat.FindStringSubmatch(p.lineText(first))[1])
	f := &ast.Float{Info: p.lineInfo(first), Params: map[string]string{}}
	p.cur = first + 1

	// The caption line must come first if there is one.
	if p.cur < len(p.lines) {
		if m := captionPat.FindStringSubmatchIndex(p.lines[p.cur].esc); m != nil {
			esc := p.lines[p.cur].esc
			f.Kind = strings.ToLower(esc[m[2]:m[3]])
			if m[4] >= 0 {
				f.Label = ast.NormalizeLabel(esc[m[4]:m[5]])
			}
			capLo := p.runeAt(p.cur, m[6])
			capHi := p.runeAt(p.cur, m[7])
			f.Caption = p.parseInlines(p.src.Slice(capLo, capHi))
			if f.Label == "" {
				f.Label = ast.NormalizeLabel(ast.Flatten(f.Caption))
			}
			p.cur++
		}
	}

	for p.cur < len(p.lines) {
		if p.blank(p.cur) {
			p.cur++
			continue
		}
		lt := p.lineText(p.cur)
		if m := floatPat.FindStringSubmatch(lt); m != nil {
			inner := len(m[1])
			if inner == fence {
				p.cur++
				return []ast.Block{f}
			}
			if inner < fence {
				// Closes an outer float, which consumes the line.
				return []ast.Block{f}
			}
			f.Blocks = append(f.Blocks, p.parseFloat()...)
			continue
		}
		if m := paramPat.FindStringSubmatch(lt); m != nil {
			f.Params[m[1]] = m[2]
			p.cur++
			continue
		}
		atFence := func(i int) bool { return floatPat.MatchString(p.lineText(i)) }
		f.Blocks = append(f.Blocks, p.parseBlock(atFence)...)
	}
	p.diags.Errorf(p.pos(first), "float is not closed by a fence of %d slashes", fence)
	return []ast.Block{f}
}
