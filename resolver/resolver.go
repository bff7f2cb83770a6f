// Package resolver binds every deferred reference of a parsed document:
// cross references, text block inclusions, footnotes, delayed weblinks
// and citations. It runs after the whole tree exists, because Bobcat lets
// definitions follow their uses.
package resolver

import (
	"regexp"
	"sort"
	"strings"

	"github.com/bronger/bobcat/ast"
	"github.com/bronger/bobcat/diag"
)

type resolver struct {
	doc   *ast.Document
	diags *diag.List

	textblocks map[string]*ast.TextBlockDef
	expanding  []string
	expanded   map[string]bool

	// The label namespace: every registered target with its full path
	// of enclosing section labels.
	targets []target

	secPath []string

	// Ordered streams collected in document order.
	ord        int
	linkDefs   []*linkDef
	linkRefs   []*linkRef
	footEvents []footEvent
	crossRefs  []*crossRef
}

type target struct {
	path []string
	node ast.Node
}

type linkDef struct {
	ord  int
	def  *ast.LinkDef
	used bool
}

type linkRef struct {
	ord int
	ref *ast.LinkRef
}

// footEvent is a footnote reference, definition, or section boundary in
// document order.
type footEvent struct {
	ref     *ast.FootnoteRef
	def     *ast.FootnoteDef
	section bool
	pos     diag.Position
}

type crossRef struct {
	ref     *ast.CrossRef
	secPath []string
}

// Resolve binds all references in doc, reporting failures to diags. The
// tree is modified in place.
func Resolve(doc *ast.Document, diags *diag.List) {
	r := &resolver{
		doc:        doc,
		diags:      diags,
		textblocks: map[string]*ast.TextBlockDef{},
		expanded:   map[string]bool{},
	}
	r.collectTextBlocks(doc.Blocks)
	r.expandBlocks(doc.Blocks)
	if diags.HasErrors() {
		return
	}
	r.collect(doc.Blocks)
	r.bindFootnotes()
	r.bindLinks()
	r.bindCrossRefs()
	r.bindCitations()
}

// --- text block inclusion ---------------------------------------------

func (r *resolver) collectTextBlocks(blocks []ast.Block) {
	for _, b := range blocks {
		if def, ok := b.(*ast.TextBlockDef); ok {
			if _, dup := r.textblocks[def.Name]; dup {
				r.diags.Warnf(def.Pos, "text block %q defined again; keeping the first definition", def.Name)
				continue
			}
			r.textblocks[def.Name] = def
		}
		for _, child := range childBlocks(b) {
			r.collectTextBlocks(child.blocks)
		}
	}
}

// expandBlocks rewrites single-component cross references that name a
// text block into inclusions of that block's content. Inclusion may nest;
// a cycle among text blocks is a hard error.
func (r *resolver) expandBlocks(blocks []ast.Block) {
	for _, b := range blocks {
		for _, child := range childBlocks(b) {
			r.expandBlocks(child.blocks)
		}
		for _, run := range inlineRuns(b) {
			r.expandInlines(run)
		}
	}
}

func (r *resolver) expandInlines(run *[]ast.Inline) {
	for i, n := range *run {
		switch t := n.(type) {
		case *ast.Emphasize:
			r.expandInlines(&t.Text)
		case *ast.Role:
			r.expandInlines(&t.Text)
		case *ast.LinkRef:
			r.expandInlines(&t.Text)
		case *ast.CrossRef:
			if len(t.Path) != 1 {
				continue
			}
			def, ok := r.textblocks[t.Path[0]]
			if !ok {
				continue
			}
			if !r.expandDef(def) {
				continue
			}
			(*run)[i] = &ast.TextBlockRef{Info: t.Info, Name: def.Name, Blocks: def.Blocks}
		}
	}
}

// expandDef resolves inclusions inside a definition once, and reports
// whether the definition is usable (false while it is part of a cycle).
func (r *resolver) expandDef(def *ast.TextBlockDef) bool {
	for i, name := range r.expanding {
		if name == def.Name {
			cycle := append(append([]string{}, r.expanding[i:]...), def.Name)
			r.diags.Errorf(def.Pos, "text block inclusion cycle %s", strings.Join(cycle, " → "))
			return false
		}
	}
	if r.expanded[def.Name] {
		return true
	}
	r.expanding = append(r.expanding, def.Name)
	r.expandBlocks(def.Blocks)
	r.expanding = r.expanding[:len(r.expanding)-1]
	r.expanded[def.Name] = true
	return true
}

// --- collection ---------------------------------------------------------

func (r *resolver) register(label string, node ast.Node) {
	if label == "" {
		return
	}
	path := append(append([]string{}, r.secPath...), label)
	r.targets = append(r.targets, target{path, node})
}

func (r *resolver) collect(blocks []ast.Block) {
	for _, b := range blocks {
		r.ord++
		switch t := b.(type) {
		case *ast.Section:
			r.footEvents = append(r.footEvents, footEvent{section: true, pos: t.Pos})
			r.register(t.Label, t)
			r.secPath = append(r.secPath, t.Label)
			r.collectInlines(t.Title)
			r.collect(t.Blocks)
			r.secPath = r.secPath[:len(r.secPath)-1]
			continue
		case *ast.Float:
			r.register(t.Label, t)
		case *ast.Environment:
			if t.Arg != "" {
				r.register(ast.NormalizeLabel(t.Arg), t)
			}
		case *ast.FootnoteDef:
			r.footEvents = append(r.footEvents, footEvent{def: t, pos: t.Pos})
		case *ast.LinkDef:
			r.linkDefs = append(r.linkDefs, &linkDef{ord: r.ord, def: t})
		}
		for _, child := range childBlocks(b) {
			r.collect(child.blocks)
		}
		for _, run := range inlineRuns(b) {
			r.collectInlines(*run)
		}
	}
}

func (r *resolver) collectInlines(nodes []ast.Inline) {
	for _, n := range nodes {
		r.ord++
		switch t := n.(type) {
		case *ast.Emphasize:
			r.collectInlines(t.Text)
		case *ast.Role:
			r.collectInlines(t.Text)
		case *ast.LinkRef:
			r.collectInlines(t.Text)
			r.linkRefs = append(r.linkRefs, &linkRef{ord: r.ord, ref: t})
		case *ast.FootnoteRef:
			r.footEvents = append(r.footEvents, footEvent{ref: t, pos: t.Pos})
		case *ast.CrossRef:
			sec := append([]string{}, r.secPath...)
			r.crossRefs = append(r.crossRefs, &crossRef{ref: t, secPath: sec})
			// A text block reference's content is resolved at its
			// definition site, so TextBlockRef is not descended
			// into here.
		}
	}
}

// --- binding ------------------------------------------------------------

// bindFootnotes replays the footnote events of each section. References
// wait for the next definition with the same mark; definitions serve the
// oldest waiting reference. Sections never share footnotes.
func (r *resolver) bindFootnotes() {
	waiting := map[string][]*ast.FootnoteRef{}
	flush := func() {
		for mark, refs := range waiting {
			for _, ref := range refs {
				r.diags.Errorf(ref.Pos, "no definition for footnote mark %q in this section", mark)
			}
		}
		waiting = map[string][]*ast.FootnoteRef{}
	}
	for _, ev := range r.footEvents {
		switch {
		case ev.section:
			flush()
		case ev.ref != nil:
			waiting[ev.ref.Mark] = append(waiting[ev.ref.Mark], ev.ref)
		case ev.def != nil:
			q := waiting[ev.def.Mark]
			if len(q) == 0 {
				r.diags.Warnf(ev.pos, "footnote definition %q has no reference", ev.def.Mark)
				continue
			}
			q[0].Def = ev.def
			waiting[ev.def.Mark] = q[1:]
		}
	}
	flush()
}

// bindLinks serves each delayed weblink from the nearest following unused
// definition, falling back to the nearest preceding one, which may be
// shared.
func (r *resolver) bindLinks() {
	for _, ref := range r.linkRefs {
		var chosen *linkDef
		for _, d := range r.linkDefs {
			if d.def.Label != ref.ref.Label {
				continue
			}
			if d.ord > ref.ord && !d.used {
				chosen = d
				break
			}
		}
		if chosen != nil {
			chosen.used = true
		} else {
			for _, d := range r.linkDefs {
				if d.def.Label == ref.ref.Label && d.ord < ref.ord {
					chosen = d // keep the last preceding one
				}
			}
		}
		if chosen == nil {
			r.diags.Errorf(ref.ref.Pos, "no definition for link %q", ref.ref.Label)
			continue
		}
		ref.ref.URL = chosen.def.URL
	}
}

func (r *resolver) bindCrossRefs() {
	for _, cr := range r.crossRefs {
		var hits []target
		for _, t := range r.targets {
			if matchPath(cr.ref.Path, t.path) {
				hits = append(hits, t)
			}
		}
		if len(hits) > 1 {
			// Prefer targets inside the referencing section.
			var near []target
			for _, t := range hits {
				if hasPrefix(t.path, cr.secPath) {
					near = append(near, t)
				}
			}
			if len(near) > 0 {
				hits = near
			}
		}
		switch len(hits) {
		case 0:
			r.diags.Errorf(cr.ref.Pos, "label %q not found", strings.Join(cr.ref.Path, " → "))
		case 1:
			cr.ref.Target = hits[0].node
		default:
			r.diags.Errorf(cr.ref.Pos, "label %q is ambiguous", strings.Join(cr.ref.Path, " → "))
		}
	}
}

func (r *resolver) bindCitations() {
	bind := func(n ast.Node) bool {
		if c, ok := n.(*ast.Citation); ok {
			entry, ok := r.doc.Bib[c.Key]
			if !ok {
				r.diags.Errorf(c.Pos, "no bibliography entry for citation %q", c.Key)
				return true
			}
			c.Entry = entry
		}
		return true
	}
	ast.Walk(r.doc, bind)
	// Bibliography entries may cite each other; they hang off the
	// document, not the block tree. Key order keeps diagnostics
	// reproducible.
	keys := make([]string, 0, len(r.doc.Bib))
	for key := range r.doc.Bib {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		ast.Walk(r.doc.Bib[key], bind)
	}
	for _, key := range r.doc.NoCite {
		if _, ok := r.doc.Bib[key]; !ok {
			r.diags.Warnf(r.doc.Pos, "nocite:: names unknown bibliography entry %q", key)
		}
	}
}

// matchPath reports whether the written reference path selects the
// target path: components must appear in order, the last ones must
// coincide, and … inside a component matches any run of characters.
func matchPath(ref, path []string) bool {
	if len(ref) == 0 || len(path) == 0 {
		return false
	}
	if !matchComponent(ref[len(ref)-1], path[len(path)-1]) {
		return false
	}
	ref = ref[:len(ref)-1]
	path = path[:len(path)-1]
	i := 0
	for _, comp := range ref {
		found := false
		for ; i < len(path); i++ {
			if matchComponent(comp, path[i]) {
				found = true
				i++
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func matchComponent(pattern, label string) bool {
	if !strings.Contains(pattern, "…") {
		return pattern == label
	}
	parts := strings.Split(pattern, "…")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	re, err := regexp.Compile("^" + strings.Join(parts, ".+") + "$")
	if err != nil {
		return false
	}
	return re.MatchString(label)
}

func hasPrefix(path, prefix []string) bool {
	if len(path) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if path[i] != p {
			return false
		}
	}
	return true
}

// --- traversal helpers ----------------------------------------------------

type blockChild struct{ blocks []ast.Block }

// childBlocks lists the block slices nested in b, definitions included.
func childBlocks(b ast.Block) []blockChild {
	switch t := b.(type) {
	case *ast.Section:
		return []blockChild{{t.Blocks}}
	case *ast.List:
		var out []blockChild
		for _, it := range t.Items {
			out = append(out, blockChild{it.Blocks})
		}
		return out
	case *ast.Table:
		var out []blockChild
		for _, row := range t.Cells {
			for _, c := range row {
				if c != nil {
					out = append(out, blockChild{c.Blocks})
				}
			}
		}
		return out
	case *ast.Float:
		return []blockChild{{t.Blocks}}
	case *ast.Environment:
		return []blockChild{{t.Blocks}}
	case *ast.TextBlockDef:
		return []blockChild{{t.Blocks}}
	case *ast.FootnoteDef:
		return []blockChild{{t.Blocks}}
	case *ast.Insertion:
		return []blockChild{{t.Blocks}}
	}
	return nil
}

// inlineRuns lists pointers to the inline slices of b, so callers may
// rewrite elements in place.
func inlineRuns(b ast.Block) []*[]ast.Inline {
	switch t := b.(type) {
	case *ast.Section:
		return []*[]ast.Inline{&t.Title}
	case *ast.Paragraph:
		return []*[]ast.Inline{&t.Text}
	case *ast.Float:
		return []*[]ast.Inline{&t.Caption}
	case *ast.List:
		var out []*[]ast.Inline
		for _, it := range t.Items {
			if it.Term != nil {
				out = append(out, &it.Term)
			}
		}
		return out
	}
	return nil
}
