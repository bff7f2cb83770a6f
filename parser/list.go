package parser

import (
	"github.com/bronger/bobcat/ast"
)

// parseList reads one block of list items. The marker path (“- ”, “-- ”,
// “-# ”, …) encodes nesting and kind; “:term: text” starts a definition
// item. Lines without a marker continue the running item. A list block
// directly after another list block of the same kind extends it, so blank
// lines may separate items.
func (p *parser) parseList() []ast.Block {
	first := p.cur
	end := p.blockEnd(nil)

	type rawItem struct {
		line      int
		stop      int // last line of the item, exclusive
		depth     int
		kind      ast.ListKind
		termLo    int // rune bounds of a definition term, or -1
		termHi    int
		contentLo int
	}
	var items []rawItem
	for j := first; j < end; j++ {
		esc := p.lines[j].esc
		if m := listPat.FindStringSubmatchIndex(esc); m != nil {
			markers := esc[m[2]:m[3]]
			kind := ast.Bullet
			if markers[len(markers)-1] == '#' {
				kind = ast.Enum
			}
			items = append(items, rawItem{
				line: j, stop: j + 1,
				depth: len(markers), kind: kind,
				termLo: -1, contentLo: p.runeAt(j, m[1]),
			})
			continue
		}
		if m := defItemPat.FindStringSubmatchIndex(esc); m != nil {
			items = append(items, rawItem{
				line: j, stop: j + 1,
				depth: 1, kind: ast.Definition,
				termLo: p.runeAt(j, m[2]), termHi: p.runeAt(j, m[3]),
				contentLo: p.runeAt(j, m[1]),
			})
			continue
		}
		if len(items) == 0 {
			break
		}
		items[len(items)-1].stop = j + 1
	}
	if len(items) == 0 {
		return p.parseParagraph(nil)
	}

	var result []ast.Block
	var stack []*ast.List

	// A list block directly following a compatible list continues it.
	if p.lastList != nil && items[0].depth == 1 && p.lastList.Kind == items[0].kind {
		stack = append(stack, p.lastList)
	}

	for _, it := range items {
		info := p.lineInfo(it.line)
		if it.depth > len(stack)+1 {
			p.diags.Warnf(info.Pos, "list item skips a nesting level")
			it.depth = len(stack) + 1
		}
		for len(stack) > it.depth {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == it.depth && stack[it.depth-1].Kind != it.kind {
			stack = stack[:it.depth-1]
		}
		if len(stack) < it.depth {
			nl := &ast.List{Info: info, Kind: it.kind}
			if len(stack) == 0 {
				result = append(result, nl)
			} else {
				parent := stack[len(stack)-1]
				if len(parent.Items) == 0 {
					parent.Items = append(parent.Items, &ast.ListItem{Info: info})
				}
				host := parent.Items[len(parent.Items)-1]
				host.Blocks = append(host.Blocks, nl)
			}
			stack = append(stack, nl)
		}
		item := &ast.ListItem{Info: info}
		if it.termLo >= 0 {
			item.Term = p.parseInlines(p.src.Slice(it.termLo, it.termHi))
		}
		content := p.src.Slice(it.contentLo, p.lines[it.stop-1].hi)
		if content.Len() > 0 {
			item.Blocks = append(item.Blocks, &ast.Paragraph{
				Info: p.info(it.contentLo),
				Text: p.parseInlines(content),
			})
		}
		list := stack[it.depth-1]
		list.Items = append(list.Items, item)
	}

	p.cur = end
	if len(result) > 0 {
		// Only lists are appended to result.
		p.lastList = result[len(result)-1].(*ast.List)
	}
	return result
}
