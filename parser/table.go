package parser

import (
	"strings"

	"github.com/bronger/bobcat/ast"
	"github.com/bronger/bobcat/buffer"
)

// span is a rune range within the source excerpt.
type span struct{ lo, hi int }

// trimSeg shrinks a range by unescaped spaces and tabs on both sides.
func (p *parser) trimSeg(s span) span {
	for s.lo < s.hi {
		r := p.src.Rune(s.lo)
		if (r == ' ' || r == '\t') && !p.src.Escaped(s.lo) {
			s.lo++
			continue
		}
		break
	}
	for s.hi > s.lo {
		r := p.src.Rune(s.hi - 1)
		if (r == ' ' || r == '\t') && !p.src.Escaped(s.hi-1) {
			s.hi--
			continue
		}
		break
	}
	return s
}

// cellContent joins the given ranges with newlines and parses them as the
// inline content of one cell. Blank cells yield no blocks.
func (p *parser) cellContent(segs []span) []ast.Block {
	var b buffer.Builder
	for _, s := range segs {
		s = p.trimSeg(s)
		if s.lo >= s.hi {
			continue
		}
		if b.Len() > 0 {
			b.Append('\n', p.src.Position(s.lo), false)
		}
		b.AppendExcerpt(p.src.Slice(s.lo, s.hi))
	}
	if b.Len() == 0 {
		return nil
	}
	e := b.Build()
	return []ast.Block{&ast.Paragraph{
		Info: ast.Info{Pos: e.Position(0), Lang: p.lang},
		Text: p.parseInlines(e),
	}}
}

// lineSeg returns the rune range of visual columns [c0, c1) of line i,
// clipped to the line's real length.
func (p *parser) lineSeg(i, c0, c1 int) span {
	l := p.lines[i]
	n := l.hi - l.lo
	if c0 > n {
		c0 = n
	}
	if c1 > n {
		c1 = n
	}
	return span{l.lo + c0, l.lo + c1}
}

// --- grid tables -----------------------------------------------------

// parseGridTable reads a table drawn with +, -, | and =. Spans are
// expressed by leaving separators out: a missing | merges two columns, a
// missing - segment merges two rows. The resulting cell grid must tile
// the table exactly.
func (p *parser) parseGridTable() []ast.Block {
	first := p.cur
	end := p.blockEnd(nil)
	p.cur = end
	nl := end - first
	rows := make([][]rune, nl)
	for i := 0; i < nl; i++ {
		rows[i] = []rune(p.lines[first+i].esc)
	}
	at := func(i, c int) rune {
		if c >= len(rows[i]) {
			return ' '
		}
		return rows[i][c]
	}

	t := &ast.Table{Info: p.lineInfo(first), Model: ast.Grid}
	fail := func(format string, args ...interface{}) []ast.Block {
		p.diags.Errorf(p.pos(first), format, args...)
		return []ast.Block{t}
	}

	// Column boundaries come from the top border, row boundaries from
	// every line that starts with '+'.
	var cb []int
	for c, r := range rows[0] {
		if r == '+' {
			cb = append(cb, c)
		}
	}
	if len(cb) < 2 {
		return fail("grid table has no columns")
	}
	var rb []int
	headerBorder := -1
	for i := 0; i < nl; i++ {
		if at(i, 0) == '+' {
			if strings.ContainsRune(string(rows[i]), '=') {
				if headerBorder < 0 {
					headerBorder = len(rb)
				}
			}
			rb = append(rb, i)
		} else if at(i, 0) != '|' {
			return fail("grid table line %d has a broken left border", i+1)
		}
	}
	if len(rb) < 2 || rb[0] != 0 || rb[len(rb)-1] != nl-1 {
		return fail("grid table does not end with a border line")
	}
	R, C := len(rb)-1, len(cb)-1

	// vsep[i][j]: the '|' at column boundary j is intact throughout band
	// i. hsep[i][j]: the border segment over column j on border line i is
	// drawn.
	vsep := make([][]bool, R)
	for i := 0; i < R; i++ {
		vsep[i] = make([]bool, C+1)
		for j := 0; j <= C; j++ {
			ok := true
			for tl := rb[i] + 1; tl < rb[i+1]; tl++ {
				if r := at(tl, cb[j]); r != '|' && r != '+' {
					ok = false
					break
				}
			}
			vsep[i][j] = ok
		}
		if !vsep[i][0] || !vsep[i][C] {
			return fail("grid table has a broken outer border")
		}
	}
	hsep := make([][]bool, R+1)
	for i := 0; i <= R; i++ {
		hsep[i] = make([]bool, C)
		for j := 0; j < C; j++ {
			ok := true
			for c := cb[j] + 1; c < cb[j+1]; c++ {
				if r := at(rb[i], c); r != '-' && r != '=' {
					ok = false
					break
				}
			}
			hsep[i][j] = ok
		}
	}
	for j := 0; j < C; j++ {
		if !hsep[0][j] || !hsep[R][j] {
			return fail("grid table has a broken outer border")
		}
	}

	if headerBorder > 0 {
		t.HeaderRows = headerBorder
	}
	t.Cells = make([][]*ast.Cell, R)
	for i := range t.Cells {
		t.Cells[i] = make([]*ast.Cell, C)
	}
	covered := make([][]bool, R)
	for i := range covered {
		covered[i] = make([]bool, C)
	}

	for i := 0; i < R; i++ {
		for j := 0; j < C; j++ {
			if covered[i][j] {
				continue
			}
			cs := 1
			for j+cs < C && !vsep[i][j+cs] {
				cs++
			}
			rs := 1
			for i+rs < R && !hsep[i+rs][j] {
				rs++
			}
			// The span must be a clean rectangle: closed on the
			// outside, open on the inside.
			for y := 0; y < rs; y++ {
				if !vsep[i+y][j] || !vsep[i+y][j+cs] {
					return fail("grid table cells overlap")
				}
				for x := 1; x < cs; x++ {
					if vsep[i+y][j+x] {
						return fail("grid table cells overlap")
					}
				}
			}
			for x := 0; x < cs; x++ {
				if !hsep[i][j+x] || !hsep[i+rs][j+x] {
					return fail("grid table cells overlap")
				}
				for y := 1; y < rs; y++ {
					if hsep[i+y][j+x] {
						return fail("grid table cells overlap")
					}
				}
			}
			var segs []span
			for tl := rb[i] + 1; tl < rb[i+rs]; tl++ {
				segs = append(segs, p.lineSeg(first+tl, cb[j]+1, cb[j+cs]))
			}
			cell := &ast.Cell{
				Info:    p.lineInfo(first + rb[i] + 1),
				Header:  headerBorder > 0 && i < headerBorder,
				RowSpan: rs,
				ColSpan: cs,
				Blocks:  p.cellContent(segs),
			}
			t.Cells[i][j] = cell
			for y := 0; y < rs; y++ {
				for x := 0; x < cs; x++ {
					covered[i+y][j+x] = true
				}
			}
		}
	}
	return []ast.Block{t}
}

// --- simple tables ---------------------------------------------------

// parseSimpleTable reads a table whose columns are declared by rulers of
// equals signs. A line whose first column is blank continues the previous
// row; text reaching across a column gap spans columns. The first column
// must never be empty or spanning.
func (p *parser) parseSimpleTable() []ast.Block {
	first := p.cur
	end := p.blockEnd(nil)
	p.cur = end

	t := &ast.Table{Info: p.lineInfo(first), Model: ast.Simple}
	ruler := p.lines[first].esc
	type colRange struct{ c0, c1 int } // '=' run, visual columns
	var cols []colRange
	inRun := false
	for c, r := range []rune(ruler) {
		switch {
		case r == '=' && !inRun:
			cols = append(cols, colRange{c, c + 1})
			inRun = true
		case r == '=':
			cols[len(cols)-1].c1 = c + 1
		default:
			inRun = false
		}
	}
	C := len(cols)
	// The text region of column j reaches to the start of column j+1.
	regionEnd := func(j int) int {
		if j+1 < C {
			return cols[j+1].c0
		}
		return 1 << 30
	}

	var rulers []int
	for i := first; i < end; i++ {
		if simplePat.MatchString(p.lineText(i)) {
			rulers = append(rulers, i)
		}
	}
	if len(rulers) < 2 || rulers[len(rulers)-1] != end-1 {
		p.diags.Errorf(p.pos(first), "simple table does not end with a ruler")
		return []ast.Block{t}
	}
	headerEnd := -1
	if len(rulers) > 2 {
		headerEnd = rulers[1]
	}

	type rawRow struct {
		segs   [][]span // per column
		spans  []int
		header bool
	}
	var rows []rawRow
	isRuler := func(i int) bool {
		for _, r := range rulers {
			if r == i {
				return true
			}
		}
		return false
	}
	for i := first + 1; i < end-1; i++ {
		if isRuler(i) {
			continue
		}
		esc := []rune(p.lines[i].esc)
		cellAt := func(c0, c1 int) string {
			if c0 >= len(esc) {
				return ""
			}
			if c1 > len(esc) {
				c1 = len(esc)
			}
			return strings.Trim(string(esc[c0:c1]), " \t")
		}
		firstCol := cellAt(cols[0].c0, regionEnd(0))
		newRow := firstCol != ""
		if newRow {
			row := rawRow{segs: make([][]span, C), spans: make([]int, C), header: headerEnd >= 0 && i < headerEnd}
			for j := 0; j < C; j++ {
				row.spans[j] = 1
			}
			rows = append(rows, row)
		}
		if len(rows) == 0 {
			p.diags.Errorf(p.pos(i), "simple table row starts with an empty first column")
			return []ast.Block{t}
		}
		row := &rows[len(rows)-1]
		for j := 0; j < C; j++ {
			// Text in the gap before the next column merges the
			// two columns.
			for j+row.spans[j] < C {
				gap := cellAt(cols[j+row.spans[j]-1].c1, cols[j+row.spans[j]].c0)
				if gap == "" {
					break
				}
				if j == 0 {
					p.diags.Errorf(p.pos(i), "first column of a simple table must not span")
					return []ast.Block{t}
				}
				row.spans[j]++
			}
			row.segs[j] = append(row.segs[j], p.lineSeg(i, cols[j].c0, regionEnd(j+row.spans[j]-1)))
			j += row.spans[j] - 1
		}
	}

	for _, row := range rows {
		cells := make([]*ast.Cell, C)
		for j := 0; j < C; {
			cells[j] = &ast.Cell{
				Info:    t.Info,
				Header:  row.header,
				RowSpan: 1,
				ColSpan: row.spans[j],
				Blocks:  p.cellContent(row.segs[j]),
			}
			j += row.spans[j]
		}
		t.Cells = append(t.Cells, cells)
		if row.header {
			t.HeaderRows = len(t.Cells)
		}
	}
	return []ast.Block{t}
}

// --- wiki tables -----------------------------------------------------

// parseWikiTable reads a table between “{|” and “|}”. “|-” separates
// rows, “|” and “!” open plain and header cells, doubled separators put
// several cells on one line.
func (p *parser) parseWikiTable() []ast.Block {
	first := p.cur
	t := &ast.Table{Info: p.lineInfo(first), Model: ast.Wiki}
	var row []*ast.Cell
	flush := func() {
		if len(row) > 0 {
			t.Cells = append(t.Cells, row)
			row = nil
		}
	}
	closed := false
	i := first + 1
	for ; i < len(p.lines); i++ {
		lt := p.lineText(i)
		if lt == "|}" {
			closed = true
			i++
			break
		}
		switch {
		case strings.HasPrefix(lt, "|-"):
			flush()
		case strings.HasPrefix(lt, "|") || strings.HasPrefix(lt, "!"):
			header := lt[0] == '!'
			sep := "||"
			if header {
				sep = "!!"
			}
			esc := p.lines[i].esc
			off := 1
			for off <= len(esc) {
				next := strings.Index(esc[off:], sep)
				hi := len(esc)
				if next >= 0 {
					hi = off + next
				}
				seg := p.trimSeg(span{p.runeAt(i, off), p.runeAt(i, hi)})
				row = append(row, &ast.Cell{
					Info:    p.lineInfo(i),
					Header:  header,
					RowSpan: 1,
					ColSpan: 1,
					Blocks:  p.cellContent([]span{seg}),
				})
				if next < 0 {
					break
				}
				off = hi + len(sep)
			}
		default:
			// Continuation of the previous cell.
			if len(row) == 0 {
				p.diags.Warnf(p.pos(i), "stray text in a wiki table")
				continue
			}
			last := row[len(row)-1]
			seg := p.trimSeg(span{p.lines[i].lo, p.lines[i].hi})
			last.Blocks = append(last.Blocks, p.cellContent([]span{seg})...)
		}
	}
	flush()
	if !closed {
		p.diags.Errorf(p.pos(first), "wiki table is not closed with |}")
	}
	p.cur = i
	// Leading header cells count as header rows.
	for _, r := range t.Cells {
		allHeader := true
		for _, c := range r {
			if !c.Header {
				allHeader = false
				break
			}
		}
		if !allHeader {
			break
		}
		t.HeaderRows++
	}
	return []ast.Block{t}
}
