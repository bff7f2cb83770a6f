// Package bobcat is the front end of the Bobcat lightweight markup
// language. It turns source text into an abstract document tree, running
// header detection, input-method preprocessing, parsing, reference
// resolution and the POST substitution pass in order.
package bobcat

import (
	"os"
	"path/filepath"

	"github.com/bronger/bobcat/ast"
	"github.com/bronger/bobcat/charset"
	"github.com/bronger/bobcat/diag"
	"github.com/bronger/bobcat/header"
	"github.com/bronger/bobcat/inputmethod"
	"github.com/bronger/bobcat/parser"
	"github.com/bronger/bobcat/preproc"
	"github.com/bronger/bobcat/resolver"
)

// A Loader fetches the raw bytes of a document named by an insertion::
// directive.
type Loader interface {
	Load(name string) ([]byte, error)
}

// DirLoader loads inserted documents relative to a directory.
type DirLoader string

func (d DirLoader) Load(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(string(d), name))
}

// Options configures a parse run. The zero value uses the built-in
// input methods only and refuses insertions.
type Options struct {
	// InputMethods resolves .bim files by name. The built-in methods
	// are always available as a fallback.
	InputMethods inputmethod.Resolver

	// Loader fetches documents named by insertion:: directives. When it
	// is nil, every insertion fails with a warning.
	Loader Loader
}

func (o Options) resolver() inputmethod.Resolver {
	if o.InputMethods == nil {
		return inputmethod.Builtin
	}
	return inputmethod.Chain(o.InputMethods, inputmethod.Builtin)
}

// ParseBytes decodes src according to its coding header and parses it.
// See ParseDocument.
func ParseBytes(src []byte, file string, opts Options) (*ast.Document, []diag.Diagnostic, error) {
	diags := &diag.List{}
	text, err := charset.DecodeFile(src)
	if err != nil {
		diags.Errorf(diag.Position{File: file, Line: 1}, "%s", err)
		return nil, diags.All(), diags.Err()
	}
	return parseDocument(text, file, opts, diags)
}

// ParseDocument parses Bobcat source text into a document tree. The
// returned diagnostics hold every warning and error of the run; the tree
// is nil exactly when one of them was fatal, and err summarizes the fatal
// ones then.
func ParseDocument(text, file string, opts Options) (*ast.Document, []diag.Diagnostic, error) {
	diags := &diag.List{}
	return parseDocument(text, file, opts, diags)
}

func parseDocument(text, file string, opts Options, diags *diag.List) (*ast.Document, []diag.Diagnostic, error) {
	visited := map[string]bool{file: true}
	doc := parseOne(text, file, opts, diags, visited)
	if doc != nil {
		resolver.Resolve(doc, diags)
	}
	if diags.HasErrors() {
		return nil, diags.All(), diags.Err()
	}
	return doc, diags.All(), nil
}

// parseOne runs the per-file stages: header, input method, preprocessing,
// parsing, the POST pass and insertion grafting. Resolution runs once,
// over the finished tree.
func parseOne(text, file string, opts Options, diags *diag.List, visited map[string]bool) *ast.Document {
	info, err := header.Detect(text)
	if err != nil {
		diags.Errorf(diag.Position{File: file, Line: 1}, "%s", err)
		return nil
	}
	if !info.HasVersionLine {
		diags.Warnf(diag.Position{File: file, Line: 1}, "no Bobcat version line; assuming version 1.0")
	}
	table, err := inputmethod.Load(info.InputMethod, opts.resolver())
	if err != nil {
		diags.Errorf(diag.Position{File: file, Line: 1}, "input method %q: %s", info.InputMethod, err)
		return nil
	}
	src := preproc.Run(text, file, table, diags)
	if src == nil {
		return nil
	}
	doc := parser.Parse(src, info.Version, diags)
	if doc == nil {
		return nil
	}
	applyPost(doc, table)
	graftInsertions(doc, opts, diags, visited)
	return doc
}

func applyPost(doc *ast.Document, table *inputmethod.Table) {
	post := func(n ast.Node) bool {
		if t, ok := n.(*ast.Text); ok {
			t.Excerpt = preproc.ApplyPost(t.Excerpt, table)
		}
		return true
	}
	ast.Walk(doc, post)
	// Bibliography entries hang off the document, not the block tree.
	for _, entry := range doc.Bib {
		ast.Walk(entry, post)
	}
}

// graftInsertions loads and parses every inserted document and splices
// its blocks into the tree. An insertion that cannot be satisfied leaves
// an ErrorNode, so backends can mark the spot.
func graftInsertions(doc *ast.Document, opts Options, diags *diag.List, visited map[string]bool) {
	ast.Walk(doc, func(n ast.Node) bool {
		ins, ok := n.(*ast.Insertion)
		if !ok {
			return true
		}
		fail := func(format string, args ...any) {
			diags.Warnf(ins.Pos, format, args...)
			ins.Blocks = []ast.Block{&ast.ErrorNode{Info: ins.Info, Message: "insertion of " + ins.Target + " failed"}}
		}
		switch {
		case visited[ins.Target]:
			diags.Errorf(ins.Pos, "insertion cycle through %q", ins.Target)
		case opts.Loader == nil:
			fail("cannot insert %q: no document loader configured", ins.Target)
		default:
			raw, err := opts.Loader.Load(ins.Target)
			if err != nil {
				fail("cannot insert %q: %s", ins.Target, err)
				break
			}
			text, err := charset.DecodeFile(raw)
			if err != nil {
				fail("cannot insert %q: %s", ins.Target, err)
				break
			}
			visited[ins.Target] = true
			sub := parseOne(text, ins.Target, opts, diags, visited)
			delete(visited, ins.Target)
			if sub == nil {
				break
			}
			ins.Blocks = sub.Blocks
			for lang := range sub.Languages {
				doc.Languages[lang] = true
			}
			mergeBib(doc, sub, diags)
		}
		return false
	})
}

func mergeBib(doc, sub *ast.Document, diags *diag.List) {
	for key, entry := range sub.Bib {
		if prev, ok := doc.Bib[key]; ok {
			if prev.Source != entry.Source {
				diags.Errorf(entry.Pos, "conflicting definitions of bibliography entry %q", key)
			}
			continue
		}
		doc.Bib[key] = entry
	}
	doc.NoCite = append(doc.NoCite, sub.NoCite...)
}
