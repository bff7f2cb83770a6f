package ast

// A Visitor is called for every node during Walk. Returning false stops
// the descent below the node it was called for.
type Visitor func(Node) bool

// Walk traverses the tree under n in document order. Footnote and text
// block definitions are entered where they are defined; resolved
// references are not followed, so a Walk visits every node exactly once.
func Walk(n Node, f Visitor) {
	if n == nil || !f(n) {
		return
	}
	switch t := n.(type) {
	case *Document:
		walkBlocks(t.Blocks, f)
	case *Section:
		walkInlines(t.Title, f)
		walkBlocks(t.Blocks, f)
	case *Paragraph:
		walkInlines(t.Text, f)
	case *Emphasize:
		walkInlines(t.Text, f)
	case *Role:
		walkInlines(t.Text, f)
	case *LinkRef:
		walkInlines(t.Text, f)
	case *List:
		for _, it := range t.Items {
			Walk(it, f)
		}
	case *ListItem:
		walkInlines(t.Term, f)
		walkBlocks(t.Blocks, f)
	case *Table:
		for _, row := range t.Cells {
			for _, c := range row {
				if c != nil {
					Walk(c, f)
				}
			}
		}
	case *Cell:
		walkBlocks(t.Blocks, f)
	case *Float:
		walkInlines(t.Caption, f)
		walkBlocks(t.Blocks, f)
	case *Environment:
		walkBlocks(t.Blocks, f)
	case *TextBlockDef:
		walkBlocks(t.Blocks, f)
	case *FootnoteDef:
		walkBlocks(t.Blocks, f)
	case *Insertion:
		walkBlocks(t.Blocks, f)
	case *BibEntry:
		walkInlines(t.Text, f)
	}
}

func walkBlocks(blocks []Block, f Visitor) {
	for _, b := range blocks {
		Walk(b, f)
	}
}

func walkInlines(nodes []Inline, f Visitor) {
	for _, n := range nodes {
		Walk(n, f)
	}
}
