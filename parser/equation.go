package parser

import (
	"strings"
	"unicode"

	"github.com/bronger/bobcat/ast"
	"github.com/bronger/bobcat/buffer"
)

// The formula micro-grammar, inside { and }:
//
//	item     = literal | matrix | root | quantity | symbol .
//	literal  = `"` text `"` .
//	matrix   = "(" seq { "," seq } { ";" seq { "," seq } } ")" .
//	root     = [ digits ] "√" item .
//	quantity = number unit .
//	fraction = seq "//" seq .
//
// Sub- and superscripts attach to any item with _ and ^ and run until
// whitespace or the next script marker.

func (p *parser) parseFormula(e *buffer.Excerpt) []ast.Formula {
	seq, i := p.formulaSeq(e, 0, "")
	if i < e.Len() {
		p.diags.Warnf(e.Position(i), "unexpected %q in formula", string(e.Rune(i)))
	}
	return seq
}

func (p *parser) formulaSeq(e *buffer.Excerpt, from int, stops string) ([]ast.Formula, int) {
	var items []ast.Formula
	i := from
	for i < e.Len() {
		r := e.Rune(i)
		if unicode.IsSpace(r) {
			i++
			continue
		}
		if !e.Escaped(i) && strings.ContainsRune(stops, r) {
			return items, i
		}
		if !e.Escaped(i) && r == '/' && i+1 < e.Len() && e.Rune(i+1) == '/' && !e.Escaped(i+1) {
			den, j := p.formulaSeq(e, i+2, stops)
			frac := &ast.Fraction{
				Info: ast.Info{Pos: e.Position(i), Lang: p.lang},
				Num:  items,
				Den:  den,
			}
			return []ast.Formula{frac}, j
		}
		var item ast.Formula
		item, i = p.formulaItem(e, i, stops)
		if item != nil {
			items = append(items, item)
		}
	}
	return items, i
}

func (p *parser) formulaItem(e *buffer.Excerpt, i int, stops string) (ast.Formula, int) {
	info := func(i int) ast.Info { return ast.Info{Pos: e.Position(i), Lang: p.lang} }
	start := i
	var base ast.Formula
	switch r := e.Rune(i); {
	case r == '"' && !e.Escaped(i):
		j := i + 1
		for j < e.Len() && (e.Rune(j) != '"' || e.Escaped(j)) {
			j++
		}
		if j == e.Len() {
			p.diags.Warnf(e.Position(i), "unterminated literal in formula")
		}
		base = &ast.Literal{Info: info(start), Text: e.Slice(i+1, j).Text()}
		if j < e.Len() {
			j++
		}
		i = j
	case r == '(' && !e.Escaped(i):
		base, i = p.matrix(e, i)
	case r == '√' && !e.Escaped(i):
		var rad ast.Formula
		rad, i = p.formulaItem(e, i+1, stops)
		root := &ast.Root{Info: info(start)}
		if rad != nil {
			root.Radicand = []ast.Formula{rad}
		}
		base = root
	case unicode.IsDigit(r):
		base, i = p.numberOrQuantity(e, i, stops)
	default:
		j := p.symbolEnd(e, i, stops)
		if j == i {
			// A stray script or structural rune; skip it.
			return nil, i + 1
		}
		base = &ast.Symbol{Info: info(start), Text: e.Slice(i, j).Text()}
		i = j
	}
	return p.scripts(e, base, i, stops)
}

// scripts attaches any directly following _ and ^ groups to base.
func (p *parser) scripts(e *buffer.Excerpt, base ast.Formula, i int, stops string) (ast.Formula, int) {
	var sc *ast.Script
	for i < e.Len() && !e.Escaped(i) && (e.Rune(i) == '_' || e.Rune(i) == '^') {
		marker := e.Rune(i)
		j := i + 1
		for j < e.Len() {
			r := e.Rune(j)
			if unicode.IsSpace(r) {
				break
			}
			if !e.Escaped(j) && (r == '_' || r == '^' || strings.ContainsRune(stops, r)) {
				break
			}
			j++
		}
		content, _ := p.formulaSeq(e.Slice(i+1, j), 0, "")
		if sc == nil {
			sc = &ast.Script{Info: ast.Info{Pos: e.Position(i), Lang: p.lang}, Base: base}
			base = sc
		}
		if marker == '_' {
			sc.Sub = append(sc.Sub, content...)
		} else {
			sc.Sup = append(sc.Sup, content...)
		}
		i = j
	}
	return base, i
}

// matrix parses a parenthesized group. Commas separate elements, semicola
// separate rows; a plain group comes out as a one-by-one matrix.
func (p *parser) matrix(e *buffer.Excerpt, open int) (ast.Formula, int) {
	m := &ast.Matrix{Info: ast.Info{Pos: e.Position(open), Lang: p.lang}}
	var row [][]ast.Formula
	i := open + 1
	for {
		seq, j := p.formulaSeq(e, i, ",;)")
		row = append(row, seq)
		if j >= e.Len() {
			p.diags.Warnf(e.Position(open), "unterminated parenthesis in formula")
			m.Rows = append(m.Rows, row)
			return m, j
		}
		i = j + 1
		switch e.Rune(j) {
		case ',':
		case ';':
			m.Rows = append(m.Rows, row)
			row = nil
		case ')':
			m.Rows = append(m.Rows, row)
			return m, i
		}
	}
}

// numberOrQuantity reads a number and, when a unit expression follows it,
// a physical quantity. A digit string directly before √ is the degree of
// the root instead.
func (p *parser) numberOrQuantity(e *buffer.Excerpt, i int, stops string) (ast.Formula, int) {
	info := ast.Info{Pos: e.Position(i), Lang: p.lang}
	j := i
	for j < e.Len() && (unicode.IsDigit(e.Rune(j)) || e.Rune(j) == '.') {
		j++
	}
	value := e.Slice(i, j).Text()
	value = strings.TrimSuffix(value, ".")
	j = i + len([]rune(value))

	if j < e.Len() && e.Rune(j) == '√' && !e.Escaped(j) {
		rad, k := p.formulaItem(e, j+1, stops)
		root := &ast.Root{Info: info, Degree: []ast.Formula{&ast.Symbol{Info: info, Text: value}}}
		if rad != nil {
			root.Radicand = []ast.Formula{rad}
		}
		return root, k
	}

	// One space may separate value and unit.
	k := j
	if k < e.Len() && e.Rune(k) == ' ' {
		k++
	}
	if u := p.unitEnd(e, k, stops); u > k {
		return &ast.Quantity{Info: info, Value: value, Unit: e.Slice(k, u).Text()}, u
	}
	return &ast.Symbol{Info: info, Text: value}, j
}

func (p *parser) unitEnd(e *buffer.Excerpt, i int, stops string) int {
	j := i
	for j < e.Len() {
		r := e.Rune(j)
		if unicode.IsLetter(r) || r == '%' || r == '°' {
			j++
			continue
		}
		if r == '/' && j > i && j+1 < e.Len() && unicode.IsLetter(e.Rune(j+1)) &&
			!(j+1 < e.Len() && e.Rune(j+1) == '/') {
			j++
			continue
		}
		break
	}
	// The unit must end the word.
	if j > i && (j == e.Len() || unicode.IsSpace(e.Rune(j)) ||
		(!e.Escaped(j) && strings.ContainsRune(stops+"_^)", e.Rune(j)))) {
		return j
	}
	return i
}

// symbolEnd finds the end of a plain symbol run.
func (p *parser) symbolEnd(e *buffer.Excerpt, i int, stops string) int {
	j := i
	for j < e.Len() {
		r := e.Rune(j)
		if unicode.IsSpace(r) {
			break
		}
		if !e.Escaped(j) {
			if strings.ContainsRune(stops, r) || strings.ContainsRune("\"(_^√", r) {
				break
			}
			if r == '/' && j+1 < e.Len() && e.Rune(j+1) == '/' {
				break
			}
			if r == ')' || r == ',' || r == ';' {
				break
			}
		}
		j++
	}
	return j
}
