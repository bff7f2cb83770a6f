// Package ast declares the document tree that the Bobcat front end hands
// to output backends. The nodes are plain data; all behavior lives in the
// parser, the resolver, and the backends.
package ast

import (
	"strings"

	"github.com/bronger/bobcat/buffer"
	"github.com/bronger/bobcat/diag"
)

//go:generate sumgen Node = Block | Inline | *Document | *ListItem | *Cell | *BibEntry
type Node interface {
	node()
}

// A Block is a node that occupies whole lines: a section, a paragraph, a
// table and so on.
type Block interface {
	Node
	block()
}

// An Inline is a node that lives inside running text.
type Inline interface {
	Node
	inline()
}

// Info carries what every node records: where it started in the original
// source and the document language (RFC 4646, lowercase) active at its
// creation.
type Info struct {
	Pos  diag.Position
	Lang string
}

func (i Info) Position() diag.Position { return i.Pos }
func (i Info) Language() string        { return i.Lang }

// Document is the root of the tree.
type Document struct {
	Info
	Version string            // Bobcat language version of the source
	Meta    map[string]string // title, author, date, …
	Blocks  []Block

	// Filled during parsing and resolution.
	Languages map[string]bool      // every language used in the document
	Bib       map[string]*BibEntry // citation key → entry
	NoCite    []string             // keys cited without a text reference
}

// Section is a numbered heading together with everything up to the next
// heading of the same or a shallower depth.
type Section struct {
	Info
	Number string // the number group as written, e.g. "1.2." or "#.#."
	Depth  int    // dots in the number group
	Title  []Inline
	Label  string // normalized title text, or an explicit label
	Blocks []Block
}

type Paragraph struct {
	Info
	Text []Inline
}

// Text is the leaf every piece of running text ends up in. The excerpt
// keeps per-code-point positions and escape flags, which the POST pass
// and position-aware backends rely on.
type Text struct {
	Info
	Excerpt *buffer.Excerpt
}

// Content returns the plain text of the leaf.
func (t *Text) Content() string { return t.Excerpt.Text() }

type Emphasize struct {
	Info
	Text []Inline
}

type ListKind int

const (
	Bullet ListKind = iota
	Enum
	Definition
)

type List struct {
	Info
	Kind  ListKind
	Items []*ListItem
}

type ListItem struct {
	Info
	Term   []Inline // definition lists only
	Blocks []Block
}

type TableModel int

const (
	Grid TableModel = iota
	Simple
	Wiki
)

// Table is a rectangular cell grid. Cells[r][c] is nil where a spanning
// neighbour covers the slot; the parser guarantees the grid has no gaps
// and no overlaps.
type Table struct {
	Info
	Model      TableModel
	HeaderRows int
	Cells      [][]*Cell
}

type Cell struct {
	Info
	Header  bool
	RowSpan int // at least 1
	ColSpan int // at least 1
	Blocks  []Block
}

// Float is a figure, table or similar element that the typesetter may
// move. Subfigures nest as further floats among the blocks.
type Float struct {
	Info
	Kind    string // the numbering token of the caption line
	Label   string
	Caption []Inline
	Params  map[string]string
	Blocks  []Block
}

// Directive is a single-block “name:: argument” instruction that needs no
// body. Built-in names are handled by the parser itself; the rest is
// passed through for the backend.
type Directive struct {
	Info
	Name   string
	Arg    string
	Params map[string]string
}

// Environment is a directive with a body, closed by “::end name”.
type Environment struct {
	Info
	Name   string
	Arg    string
	Params map[string]string
	Blocks []Block
}

// Equation is a formula, displayed on its own when Display is set or
// woven into text otherwise.
type Equation struct {
	Info
	Display bool
	Formula []Formula
}

// SourceExcerpt is verbatim source code fenced by backquotes.
type SourceExcerpt struct {
	Info
	Language string
	Code     *buffer.Excerpt
}

// Role is a named inline extension applied to a piece of text.
type Role struct {
	Info
	Name string
	Text []Inline
}

// CrossRef points at a labeled element elsewhere in the document. Path
// holds the components of the reference as written; Target is filled by
// the resolver.
type CrossRef struct {
	Info
	Path   []string
	Target Node
}

// TextBlockDef defines a reusable named block of content.
type TextBlockDef struct {
	Info
	Name   string
	Blocks []Block
}

// TextBlockRef marks the inclusion of a text block; the resolver grafts
// the definition's content here.
type TextBlockRef struct {
	Info
	Name   string
	Blocks []Block
}

type FootnoteDef struct {
	Info
	Mark   string
	Blocks []Block
}

type FootnoteRef struct {
	Info
	Mark string
	Def  *FootnoteDef // filled by the resolver
}

// LinkDef is a delayed-weblink definition block, “[label]: url”.
type LinkDef struct {
	Info
	Label string // normalized
	URL   string
}

// LinkRef is the in-text side of a delayed weblink, “[label]”.
type LinkRef struct {
	Info
	Label string // normalized
	Text  []Inline
	URL   string // filled by the resolver
}

// AutoLink is a URL or mail address written directly in the text.
type AutoLink struct {
	Info
	URL string
}

type BibEntry struct {
	Info
	Key  string
	Text []Inline
	// Source is the entry's raw text, used to tell identical duplicate
	// definitions from conflicting ones.
	Source string
}

type Citation struct {
	Info
	Key   string
	Entry *BibEntry // filled by the resolver
}

// Insertion includes another Bobcat document. The loaded blocks are
// grafted by the pipeline; a failed load leaves an ErrorNode instead.
type Insertion struct {
	Info
	Target string
	Blocks []Block
}

// ErrorNode is a placeholder kept in the tree where content could not be
// produced, so backends can render a visible marker.
type ErrorNode struct {
	Info
	Message string
}

func (*Document) node()      {}
func (*Section) node()       {}
func (*Paragraph) node()     {}
func (*Text) node()          {}
func (*Emphasize) node()     {}
func (*List) node()          {}
func (*ListItem) node()      {}
func (*Table) node()         {}
func (*Cell) node()          {}
func (*Float) node()         {}
func (*Directive) node()     {}
func (*Environment) node()   {}
func (*Equation) node()      {}
func (*SourceExcerpt) node() {}
func (*Role) node()          {}
func (*CrossRef) node()      {}
func (*TextBlockDef) node()  {}
func (*TextBlockRef) node()  {}
func (*FootnoteDef) node()   {}
func (*FootnoteRef) node()   {}
func (*LinkDef) node()       {}
func (*LinkRef) node()       {}
func (*AutoLink) node()      {}
func (*BibEntry) node()      {}
func (*Citation) node()      {}
func (*Insertion) node()     {}
func (*ErrorNode) node()     {}

func (*Section) block()       {}
func (*Paragraph) block()     {}
func (*List) block()          {}
func (*Table) block()         {}
func (*Float) block()         {}
func (*Directive) block()     {}
func (*Environment) block()   {}
func (*Equation) block()      {}
func (*SourceExcerpt) block() {}
func (*TextBlockDef) block()  {}
func (*FootnoteDef) block()   {}
func (*LinkDef) block()       {}
func (*Insertion) block()     {}
func (*ErrorNode) block()     {}

func (*Text) inline()         {}
func (*Emphasize) inline()    {}
func (*Equation) inline()     {}
func (*Role) inline()         {}
func (*CrossRef) inline()     {}
func (*TextBlockRef) inline() {}
func (*FootnoteRef) inline()  {}
func (*LinkRef) inline()      {}
func (*AutoLink) inline()     {}
func (*Citation) inline()     {}

// NormalizeLabel turns arbitrary label text into its canonical form:
// whitespace runs collapse to one space, surrounding whitespace goes, and
// the result is cut off after 80 code points.
func NormalizeLabel(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > 80 {
		r = r[:80]
	}
	return string(r)
}

// Flatten returns the plain text of a run of inline nodes. It is what
// implicit labels and link labels are made of.
func Flatten(nodes []Inline) string {
	var sb strings.Builder
	for _, n := range nodes {
		switch t := n.(type) {
		case *Text:
			sb.WriteString(t.Content())
		case *Emphasize:
			sb.WriteString(Flatten(t.Text))
		case *Role:
			sb.WriteString(Flatten(t.Text))
		case *LinkRef:
			sb.WriteString(Flatten(t.Text))
		}
	}
	return sb.String()
}
