package ast

// Formula is a node of the equation micro-grammar.
//
//go:generate sumgen Formula = *Symbol | *Literal | *Script | *Fraction | *Root | *Matrix | *Quantity
type Formula interface {
	formula()
}

// Symbol is a run of formula text set in the usual math style: variable
// names, operators, digits.
type Symbol struct {
	Info
	Text string
}

// Literal is quoted text inside a formula, set upright and verbatim.
type Literal struct {
	Info
	Text string
}

// Script attaches subscripts and superscripts to a base.
type Script struct {
	Info
	Base Formula
	Sub  []Formula
	Sup  []Formula
}

// Fraction is numerator // denominator.
type Fraction struct {
	Info
	Num []Formula
	Den []Formula
}

// Root is √ with an optional degree.
type Root struct {
	Info
	Degree   []Formula
	Radicand []Formula
}

// Matrix holds rows of element groups, written “(a, b; c, d)”. A single
// row is a vector.
type Matrix struct {
	Info
	Rows [][][]Formula
}

// Quantity is a physical quantity: a number directly followed by a unit,
// such as “4.2 m/s”.
type Quantity struct {
	Info
	Value string
	Unit  string
}

func (*Symbol) formula()   {}
func (*Literal) formula()  {}
func (*Script) formula()   {}
func (*Fraction) formula() {}
func (*Root) formula()     {}
func (*Matrix) formula()   {}
func (*Quantity) formula() {}
