// Package html renders a resolved Bobcat document tree as an HTML
// fragment. Text is escaped on output; the structure of the fragment
// follows the tree directly:
//
//	Section        <section><h1>…<h6>
//	Paragraph      <p></p>
//	List           <ul></ul>, <ol></ol>, <dl></dl>
//	Table          <table></table> with rowspan/colspan
//	Float          <figure></figure>
//	Equation       <span class="equation"> or <div class="equation">
//	SourceExcerpt  <pre><code></code></pre>
//	Footnote       <sup><a></a></sup> and <aside class="footnote">
package html

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/bronger/bobcat/ast"
)

type syncWriter struct {
	m sync.Mutex
	w io.Writer
}

func (s *syncWriter) Write(p []byte) (n int, err error) {
	s.m.Lock()
	defer s.m.Unlock()
	n, err = s.w.Write(p)
	return
}

type stickyCountWriter struct {
	n   int64
	err error
	w   io.Writer
}

func (c *stickyCountWriter) Write(p []byte) (n int, err error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err = c.w.Write(p)
	c.err = err
	c.n += int64(n)
	return
}

// Generator is a non-reusable HTML output generator for a document tree.
type Generator struct {
	// Stdout and Stderr specify the generator's standard output and
	// standard error. HTML output is written to standard out.
	//
	// If Stdout == Stderr, at most one goroutine at a time will call
	// Write.
	Stdout   io.Writer
	Stderr   io.Writer
	ctx      context.Context
	doc      *ast.Document
	waitdone chan error

	fnIDs map[*ast.FootnoteDef]int

	m     sync.Mutex
	pipes []io.Closer
}

// Gen returns a generator that converts doc into HTML output. Only the
// document is set in the returned structure.
func Gen(doc *ast.Document) *Generator {
	return &Generator{ctx: context.TODO(), doc: doc, fnIDs: map[*ast.FootnoteDef]int{}}
}

// GenContext is like Gen but includes a context, which halts HTML
// generation between top-level blocks.
func GenContext(ctx context.Context, doc *ast.Document) *Generator {
	if ctx == nil {
		panic("nil context")
	}
	return &Generator{ctx: ctx, doc: doc, fnIDs: map[*ast.FootnoteDef]int{}}
}

// Render implements gen.Backend.
func (g *Generator) Render(doc *ast.Document, w io.Writer) error {
	ng := GenContext(g.ctx, doc)
	ng.Stdout = w
	ng.Stderr = g.Stderr
	return ng.Run()
}

// Start starts the generator but does not wait for it to complete.
func (g *Generator) Start() error {
	if g.Stdout == nil {
		g.Stdout = io.Discard
	}
	if g.Stderr == nil {
		g.Stderr = io.Discard
	}
	if g.Stdout == g.Stderr {
		g.Stdout = &syncWriter{w: g.Stdout}
		g.Stderr = g.Stdout
	}
	g.waitdone = make(chan error)
	go func() {
		err := g.gen()
		for _, p := range g.pipes {
			p.Close()
		}
		g.m.Lock()
		g.pipes = nil
		g.m.Unlock()
		g.waitdone <- err
	}()
	return nil
}

// Wait waits for the generator to complete and finish copying to Stdout
// and Stderr. It is an error to call Wait before Start has been called.
func (g *Generator) Wait() error {
	if g.waitdone == nil {
		return fmt.Errorf("not started")
	}
	g.m.Lock()
	if g.pipes != nil {
		g.m.Unlock()
		return fmt.Errorf("all reads from the pipe have not completed")
	}
	g.m.Unlock()
	err := <-g.waitdone
	close(g.waitdone)
	return err
}

// Run starts the generator and waits for it to complete.
func (g *Generator) Run() error {
	if err := g.Start(); err != nil {
		return err
	}
	return g.Wait()
}

// StdoutPipe returns a pipe connected to the generator's standard output.
//
// It is invalid to call Wait until all reads from the pipe have
// completed, and for the same reason to call Run when using StdoutPipe.
func (g *Generator) StdoutPipe() (io.Reader, error) {
	if g.Stdout != nil {
		return nil, fmt.Errorf("Stdout already set")
	}
	pr, pw := io.Pipe()
	g.Stdout = pw
	g.pipes = append(g.pipes, pw)
	return pr, nil
}

// StderrPipe returns a pipe connected to the generator's standard error.
func (g *Generator) StderrPipe() (io.Reader, error) {
	if g.Stderr != nil {
		return nil, fmt.Errorf("Stderr already set")
	}
	pr, pw := io.Pipe()
	g.Stderr = pw
	g.pipes = append(g.pipes, pw)
	return pr, nil
}

// Output runs the generator and returns its standard output.
func (g *Generator) Output() ([]byte, error) {
	if g.Stdout != nil {
		return nil, fmt.Errorf("Stdout already set")
	}
	var stdout bytes.Buffer
	g.Stdout = &stdout
	err := g.Run()
	return stdout.Bytes(), err
}

// CombinedOutput runs the generator and returns its combined standard
// output and standard error.
func (g *Generator) CombinedOutput() ([]byte, error) {
	if g.Stdout != nil {
		return nil, fmt.Errorf("Stdout already set")
	}
	if g.Stderr != nil {
		return nil, fmt.Errorf("Stderr already set")
	}
	var b bytes.Buffer
	g.Stdout = &b
	g.Stderr = &b
	err := g.Run()
	return b.Bytes(), err
}

func (g *Generator) gen() error {
	cw := &stickyCountWriter{0, nil, g.Stdout}
	g.meta(cw)
	for _, b := range g.doc.Blocks {
		select {
		case <-g.ctx.Done():
			return cw.err
		default:
			g.block(b, cw)
		}
	}
	return cw.err
}

func (g *Generator) meta(w io.Writer) {
	if t, ok := g.doc.Meta["title"]; ok {
		fmt.Fprintf(w, "<h1 class=\"title\">%s</h1>", html.EscapeString(t))
	}
	if a, ok := g.doc.Meta["author"]; ok {
		fmt.Fprintf(w, "<p class=\"author\">%s</p>", html.EscapeString(a))
	}
	if d, ok := g.doc.Meta["date"]; ok {
		fmt.Fprintf(w, "<p class=\"date\">%s</p>", html.EscapeString(d))
	}
}

// anchorID turns a label into something usable as an HTML id.
func anchorID(label string) string {
	return strings.ReplaceAll(label, " ", "-")
}

func (g *Generator) blocks(blocks []ast.Block, w io.Writer) {
	for _, b := range blocks {
		g.block(b, w)
	}
}

func (g *Generator) block(b ast.Block, w io.Writer) {
	switch t := b.(type) {
	case *ast.Section:
		tag := "h" + strconv.Itoa(t.Depth+1)
		if t.Depth+1 > 6 {
			tag = "p"
		}
		fmt.Fprintf(w, "<section id=%q><%s>", anchorID(t.Label), tag)
		g.inlines(t.Title, w)
		fmt.Fprintf(w, "</%s>", tag)
		g.blocks(t.Blocks, w)
		io.WriteString(w, "</section>")
	case *ast.Paragraph:
		if len(t.Text) == 0 {
			return
		}
		io.WriteString(w, "<p>")
		g.inlines(t.Text, w)
		io.WriteString(w, "</p>")
	case *ast.List:
		g.list(t, w)
	case *ast.Table:
		g.table(t, w)
	case *ast.Float:
		fmt.Fprintf(w, "<figure id=%q class=%q>", anchorID(t.Label), t.Kind)
		g.blocks(t.Blocks, w)
		if len(t.Caption) > 0 {
			io.WriteString(w, "<figcaption>")
			g.inlines(t.Caption, w)
			io.WriteString(w, "</figcaption>")
		}
		io.WriteString(w, "</figure>")
	case *ast.Directive:
		fmt.Fprintf(w, "<!-- %s: %s -->", html.EscapeString(t.Name), html.EscapeString(t.Arg))
	case *ast.Environment:
		if t.Name == "bibliography" {
			g.bibliography(w)
			return
		}
		fmt.Fprintf(w, "<div class=%q>", t.Name)
		g.blocks(t.Blocks, w)
		io.WriteString(w, "</div>")
	case *ast.Equation:
		io.WriteString(w, "<div class=\"equation\">")
		g.formulas(t.Formula, w)
		io.WriteString(w, "</div>")
	case *ast.SourceExcerpt:
		if t.Language != "" {
			fmt.Fprintf(w, "<pre><code class=%q>", "language-"+t.Language)
		} else {
			io.WriteString(w, "<pre><code>")
		}
		io.WriteString(w, html.EscapeString(t.Code.Text()))
		io.WriteString(w, "</code></pre>")
	case *ast.FootnoteDef:
		fmt.Fprintf(w, "<aside class=\"footnote\" id=\"fn-%d\">", g.footnoteID(t))
		g.blocks(t.Blocks, w)
		io.WriteString(w, "</aside>")
	case *ast.Insertion:
		g.blocks(t.Blocks, w)
	case *ast.ErrorNode:
		fmt.Fprintf(w, "<p class=\"error\">%s</p>", html.EscapeString(t.Message))
	case *ast.TextBlockDef, *ast.LinkDef:
		// Definitions produce no output of their own.
	}
}

func (g *Generator) list(l *ast.List, w io.Writer) {
	switch l.Kind {
	case ast.Enum:
		io.WriteString(w, "<ol>")
		defer io.WriteString(w, "</ol>")
	case ast.Definition:
		io.WriteString(w, "<dl>")
		defer io.WriteString(w, "</dl>")
	default:
		io.WriteString(w, "<ul>")
		defer io.WriteString(w, "</ul>")
	}
	for _, it := range l.Items {
		if l.Kind == ast.Definition {
			io.WriteString(w, "<dt>")
			g.inlines(it.Term, w)
			io.WriteString(w, "</dt><dd>")
			g.blocks(it.Blocks, w)
			io.WriteString(w, "</dd>")
			continue
		}
		io.WriteString(w, "<li>")
		g.blocks(it.Blocks, w)
		io.WriteString(w, "</li>")
	}
}

func (g *Generator) table(t *ast.Table, w io.Writer) {
	io.WriteString(w, "<table>")
	for r, row := range t.Cells {
		io.WriteString(w, "<tr>")
		for _, c := range row {
			if c == nil {
				continue
			}
			tag := "td"
			if c.Header || r < t.HeaderRows {
				tag = "th"
			}
			io.WriteString(w, "<"+tag)
			if c.ColSpan > 1 {
				fmt.Fprintf(w, " colspan=\"%d\"", c.ColSpan)
			}
			if c.RowSpan > 1 {
				fmt.Fprintf(w, " rowspan=\"%d\"", c.RowSpan)
			}
			io.WriteString(w, ">")
			g.blocks(c.Blocks, w)
			io.WriteString(w, "</"+tag+">")
		}
		io.WriteString(w, "</tr>")
	}
	io.WriteString(w, "</table>")
}

func (g *Generator) bibliography(w io.Writer) {
	keys := make([]string, 0, len(g.doc.Bib))
	for k := range g.doc.Bib {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	io.WriteString(w, "<dl class=\"bibliography\">")
	for _, k := range keys {
		entry := g.doc.Bib[k]
		fmt.Fprintf(w, "<dt id=\"bib-%s\">%s</dt><dd>", anchorID(k), html.EscapeString(k))
		g.inlines(entry.Text, w)
		io.WriteString(w, "</dd>")
	}
	io.WriteString(w, "</dl>")
}

func (g *Generator) footnoteID(def *ast.FootnoteDef) int {
	id, ok := g.fnIDs[def]
	if !ok {
		id = len(g.fnIDs) + 1
		g.fnIDs[def] = id
	}
	return id
}

func (g *Generator) inlines(nodes []ast.Inline, w io.Writer) {
	for _, n := range nodes {
		g.inline(n, w)
	}
}

func (g *Generator) inline(n ast.Inline, w io.Writer) {
	switch t := n.(type) {
	case *ast.Text:
		io.WriteString(w, html.EscapeString(t.Content()))
	case *ast.Emphasize:
		io.WriteString(w, "<em>")
		g.inlines(t.Text, w)
		io.WriteString(w, "</em>")
	case *ast.Role:
		fmt.Fprintf(w, "<span class=%q>", "role-"+t.Name)
		g.inlines(t.Text, w)
		io.WriteString(w, "</span>")
	case *ast.Equation:
		io.WriteString(w, "<span class=\"equation\">")
		g.formulas(t.Formula, w)
		io.WriteString(w, "</span>")
	case *ast.CrossRef:
		label := targetLabel(t.Target)
		fmt.Fprintf(w, "<a href=\"#%s\">", anchorID(label))
		io.WriteString(w, html.EscapeString(t.Path[len(t.Path)-1]))
		io.WriteString(w, "</a>")
	case *ast.TextBlockRef:
		g.blocks(t.Blocks, w)
	case *ast.FootnoteRef:
		if t.Def != nil {
			fmt.Fprintf(w, "<sup><a href=\"#fn-%d\">%s</a></sup>",
				g.footnoteID(t.Def), html.EscapeString(t.Mark))
		}
	case *ast.LinkRef:
		fmt.Fprintf(w, "<a href=%q>", t.URL)
		g.inlines(t.Text, w)
		io.WriteString(w, "</a>")
	case *ast.AutoLink:
		href := t.URL
		if strings.Contains(href, "@") && !strings.Contains(href, "://") &&
			!strings.HasPrefix(href, "mailto:") {
			href = "mailto:" + href
		}
		fmt.Fprintf(w, "<a href=%q>%s</a>", href, html.EscapeString(t.URL))
	case *ast.Citation:
		fmt.Fprintf(w, "<a href=\"#bib-%s\">[%s]</a>", anchorID(t.Key), html.EscapeString(t.Key))
	}
}

func targetLabel(n ast.Node) string {
	switch t := n.(type) {
	case *ast.Section:
		return t.Label
	case *ast.Float:
		return t.Label
	case *ast.Environment:
		return ast.NormalizeLabel(t.Arg)
	}
	return ""
}

// --- formulas -----------------------------------------------------------

func (g *Generator) formulas(fs []ast.Formula, w io.Writer) {
	for i, f := range fs {
		if i > 0 {
			io.WriteString(w, " ")
		}
		g.formula(f, w)
	}
}

func (g *Generator) formula(f ast.Formula, w io.Writer) {
	switch t := f.(type) {
	case *ast.Symbol:
		fmt.Fprintf(w, "<i>%s</i>", html.EscapeString(t.Text))
	case *ast.Literal:
		io.WriteString(w, html.EscapeString(t.Text))
	case *ast.Script:
		g.formula(t.Base, w)
		if len(t.Sub) > 0 {
			io.WriteString(w, "<sub>")
			g.formulas(t.Sub, w)
			io.WriteString(w, "</sub>")
		}
		if len(t.Sup) > 0 {
			io.WriteString(w, "<sup>")
			g.formulas(t.Sup, w)
			io.WriteString(w, "</sup>")
		}
	case *ast.Fraction:
		io.WriteString(w, "<span class=\"fraction\"><span class=\"num\">")
		g.formulas(t.Num, w)
		io.WriteString(w, "</span>&frasl;<span class=\"den\">")
		g.formulas(t.Den, w)
		io.WriteString(w, "</span></span>")
	case *ast.Root:
		if len(t.Degree) > 0 {
			io.WriteString(w, "<sup>")
			g.formulas(t.Degree, w)
			io.WriteString(w, "</sup>")
		}
		io.WriteString(w, "√(")
		g.formulas(t.Radicand, w)
		io.WriteString(w, ")")
	case *ast.Matrix:
		io.WriteString(w, "(")
		for r, row := range t.Rows {
			if r > 0 {
				io.WriteString(w, "; ")
			}
			for c, el := range row {
				if c > 0 {
					io.WriteString(w, ", ")
				}
				g.formulas(el, w)
			}
		}
		io.WriteString(w, ")")
	case *ast.Quantity:
		fmt.Fprintf(w, "%s&nbsp;%s", html.EscapeString(t.Value), html.EscapeString(t.Unit))
	}
}
