package parser

import (
	"regexp"
	"strings"

	"github.com/bronger/bobcat/ast"
)

var bibEntryPat = regexp.MustCompile(`^@(\S+)[ \t]*(.*)$`)

// Directive names the parser consumes itself. Everything else reaches the
// backend as a Directive or Environment node, or becomes a text block.
var builtinMeta = map[string]bool{
	"title":  true,
	"author": true,
	"date":   true,
}

func (p *parser) parseDirective() []ast.Block {
	first := p.cur
	m := directivePat.FindStringSubmatch(p.lineText(first))
	name := strings.ToLower(m[1])
	arg := strings.TrimSpace(m[2])

	end, conflict := p.findEnd(name, first)
	if conflict >= 0 {
		p.diags.Errorf(p.pos(conflict), "environment %q opened again before ::end %s", name, name)
		p.cur = conflict + 1
		return nil
	}
	if end >= 0 {
		return p.parseEnvironment(name, arg, first, end)
	}

	switch {
	case builtinMeta[name]:
		if _, dup := p.doc.Meta[name]; dup {
			p.diags.Warnf(p.pos(first), "duplicate %s:: ignored", name)
		} else {
			p.doc.Meta[name] = arg
		}
		p.cur = first + 1
		return nil
	case name == "language":
		p.lang = strings.ToLower(arg)
		if p.lang != "" {
			p.doc.Languages[p.lang] = true
			if _, dup := p.doc.Meta["language"]; !dup {
				p.doc.Meta["language"] = p.lang
			}
		}
		p.cur = first + 1
		return nil
	case name == "nocite":
		for _, key := range strings.Split(arg, ",") {
			if key = strings.TrimSpace(key); key != "" {
				p.doc.NoCite = append(p.doc.NoCite, key)
			}
		}
		p.cur = first + 1
		return nil
	case name == "insertion":
		if arg == "" {
			p.diags.Errorf(p.pos(first), "insertion:: needs a target")
			p.cur = first + 1
			return nil
		}
		p.cur = first + 1
		return []ast.Block{&ast.Insertion{Info: p.lineInfo(first), Target: arg}}
	}

	// An unknown name without ::end defines a text block; with no
	// content at all it is passed through to the backend.
	endOfBlock := p.blockEnd(nil)
	if arg == "" && endOfBlock == first+1 {
		p.cur = first + 1
		return []ast.Block{&ast.Directive{
			Info:   p.lineInfo(first),
			Name:   name,
			Params: parseParams(arg),
		}}
	}
	contentLo := p.runeAt(first, len(m[0])-len(m[2]))
	if arg == "" {
		contentLo = p.lines[first+1].lo
	}
	def := &ast.TextBlockDef{
		Info: p.lineInfo(first),
		Name: name,
		Blocks: []ast.Block{&ast.Paragraph{
			Info: p.info(contentLo),
			Text: p.parseInlines(p.src.Slice(contentLo, p.lines[endOfBlock-1].hi)),
		}},
	}
	p.cur = endOfBlock
	return []ast.Block{def}
}

// findEnd scans forward for the “::end name” that would make the
// directive at line first an environment. It reports the end line, or -1,
// and the line of an illegal same-name reopening, or -1.
func (p *parser) findEnd(name string, first int) (end, conflict int) {
	reopen := -1
	for j := first + 1; j < len(p.lines); j++ {
		lt := p.lineText(j)
		if m := endPat.FindStringSubmatch(lt); m != nil && strings.ToLower(m[1]) == name {
			if reopen >= 0 {
				// Only an environment can nest illegally; a
				// reopening without any ::end is two plain
				// directives and no concern of ours.
				return -1, reopen
			}
			return j, -1
		}
		if m := directivePat.FindStringSubmatch(lt); m != nil && strings.ToLower(m[1]) == name && reopen < 0 {
			reopen = j
		}
	}
	return -1, -1
}

func (p *parser) parseEnvironment(name, arg string, first, end int) []ast.Block {
	info := p.lineInfo(first)
	p.cur = first + 1
	switch name {
	case "ignore":
		p.cur = end + 1
		return nil
	case "bibliography":
		p.parseBibliography(first, end)
		p.cur = end + 1
		return []ast.Block{&ast.Environment{Info: info, Name: name}}
	}
	env := &ast.Environment{
		Info:   info,
		Name:   name,
		Arg:    arg,
		Params: parseParams(arg),
	}
	env.Blocks = p.parseBlocks(-1, func(i int) bool { return i >= end })
	p.cur = end + 1
	return []ast.Block{env}
}

// parseBibliography reads the entries between the bibliography directive
// and its ::end line into the document's citation table. Entries start at
// “@key” lines and may span blank lines.
func (p *parser) parseBibliography(first, end int) {
	entryStart, key := -1, ""
	flush := func(until int) {
		if entryStart < 0 {
			return
		}
		lo := p.runeAt(entryStart, len("@"+key))
		hi := p.lines[until-1].hi
		entry := &ast.BibEntry{
			Info:   p.lineInfo(entryStart),
			Key:    key,
			Text:   p.parseInlines(p.src.Slice(lo, hi)),
			Source: ast.NormalizeLabel(p.src.Slice(lo, hi).Text()),
		}
		if prev, ok := p.doc.Bib[key]; ok {
			if prev.Source != entry.Source {
				p.diags.Errorf(entry.Pos, "conflicting definitions for bibliography entry %q", key)
			}
			return
		}
		p.doc.Bib[key] = entry
	}
	for j := first + 1; j < end; j++ {
		if m := bibEntryPat.FindStringSubmatch(p.lineText(j)); m != nil {
			flush(j)
			entryStart, key = j, m[1]
		}
	}
	if entryStart >= 0 {
		flush(end)
	} else if first+1 < end {
		p.diags.Warnf(p.pos(first), "bibliography without @key entries")
	}
}

// parseContinuation attaches a “+ ” block to the last list item.
func (p *parser) parseContinuation(stop stopFunc) []ast.Block {
	first := p.cur
	if p.lastList == nil || len(p.lastList.Items) == 0 {
		p.diags.Warnf(p.pos(first), "continuation block without a preceding list")
		return p.parseParagraph(stop)
	}
	end := p.blockEnd(stop)
	m := contPat.FindStringIndex(p.lines[first].esc)
	lo := p.runeAt(first, m[1])
	item := p.lastList.Items[len(p.lastList.Items)-1]
	item.Blocks = append(item.Blocks, &ast.Paragraph{
		Info: p.info(lo),
		Text: p.parseInlines(p.src.Slice(lo, p.lines[end-1].hi)),
	})
	p.cur = end
	return nil
}
