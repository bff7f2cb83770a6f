package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bronger/bobcat/ast"
	"github.com/bronger/bobcat/diag"
	"github.com/bronger/bobcat/inputmethod"
	"github.com/bronger/bobcat/parser"
	"github.com/bronger/bobcat/preproc"
)

// resolveSource parses src and resolves the resulting tree. The document
// is nil when a fatal diagnostic occurred.
func resolveSource(t *testing.T, src string) (*ast.Document, *diag.List) {
	t.Helper()
	tab, err := inputmethod.Load("minimal", inputmethod.Builtin)
	require.NoError(t, err)
	diags := &diag.List{}
	e := preproc.Run(src, "t.bob", tab, diags)
	require.NotNil(t, e, "preprocessing failed: %v", diags.Err())
	doc := parser.Parse(e, "1.0", diags)
	require.NotNil(t, doc, "parse failed: %v", diags.Err())
	Resolve(doc, diags)
	if diags.HasErrors() {
		return nil, diags
	}
	return doc, diags
}

func footnoteRefs(doc *ast.Document) []*ast.FootnoteRef {
	var refs []*ast.FootnoteRef
	ast.Walk(doc, func(n ast.Node) bool {
		if r, ok := n.(*ast.FootnoteRef); ok {
			refs = append(refs, r)
		}
		return true
	})
	return refs
}

func footnoteDefs(doc *ast.Document) []*ast.FootnoteDef {
	var defs []*ast.FootnoteDef
	ast.Walk(doc, func(n ast.Node) bool {
		if d, ok := n.(*ast.FootnoteDef); ok {
			defs = append(defs, d)
		}
		return true
	})
	return defs
}

func TestFootnoteBindingOrder(t *testing.T) {
	doc, _ := resolveSource(t, "Alpha* beta* gamma.\n\n*) First.\n*) Second.")
	require.NotNil(t, doc)
	refs := footnoteRefs(doc)
	defs := footnoteDefs(doc)
	require.Len(t, refs, 2)
	require.Len(t, defs, 2)
	assert.Same(t, defs[0], refs[0].Def)
	assert.Same(t, defs[1], refs[1].Def)
}

func TestFootnoteMissingDefinition(t *testing.T) {
	doc, diags := resolveSource(t, "A word* without a note.")
	assert.Nil(t, doc)
	assert.ErrorContains(t, diags.Err(), "no definition for footnote")
}

func TestFootnoteUnusedDefinition(t *testing.T) {
	doc, diags := resolveSource(t, "No marks here.\n\n*) An orphan.")
	require.NotNil(t, doc)
	found := false
	for _, d := range diags.All() {
		if d.Severity == diag.Warning && d.Message == `footnote definition "*" has no reference` {
			found = true
		}
	}
	assert.True(t, found, "missing warning; got %v", diags.All())
}

func TestFootnotesDoNotCrossSections(t *testing.T) {
	doc, diags := resolveSource(t, "A word* here.\n\n1. Later\n======\n\n*) Too late.")
	assert.Nil(t, doc)
	assert.ErrorContains(t, diags.Err(), "in this section")
}

func TestLinkFollowingDefinitionsInOrder(t *testing.T) {
	doc, _ := resolveSource(t, "See [a] and [a] again.\n\n[a]: http://one\n\n[a]: http://two")
	require.NotNil(t, doc)
	var refs []*ast.LinkRef
	ast.Walk(doc, func(n ast.Node) bool {
		if r, ok := n.(*ast.LinkRef); ok {
			refs = append(refs, r)
		}
		return true
	})
	require.Len(t, refs, 2)
	assert.Equal(t, "http://one", refs[0].URL)
	assert.Equal(t, "http://two", refs[1].URL)
}

func TestLinkPrecedingDefinitionShared(t *testing.T) {
	doc, _ := resolveSource(t, "[a]: http://one\n\nSee [a] and [a] again.")
	require.NotNil(t, doc)
	var refs []*ast.LinkRef
	ast.Walk(doc, func(n ast.Node) bool {
		if r, ok := n.(*ast.LinkRef); ok {
			refs = append(refs, r)
		}
		return true
	})
	require.Len(t, refs, 2)
	assert.Equal(t, "http://one", refs[0].URL)
	assert.Equal(t, "http://one", refs[1].URL)
}

func TestLinkUndefined(t *testing.T) {
	doc, diags := resolveSource(t, "See [missing].")
	assert.Nil(t, doc)
	assert.ErrorContains(t, diags.Err(), "no definition for link")
}

func TestTextBlockInclusion(t *testing.T) {
	doc, _ := resolveSource(t, "note:: Remember the gnu.\n\nSee `note` for details.")
	require.NotNil(t, doc)
	var refs []*ast.TextBlockRef
	para := doc.Blocks[1].(*ast.Paragraph)
	for _, n := range para.Text {
		if r, ok := n.(*ast.TextBlockRef); ok {
			refs = append(refs, r)
		}
	}
	require.Len(t, refs, 1)
	assert.Equal(t, "note", refs[0].Name)
	require.NotEmpty(t, refs[0].Blocks)
	inner := refs[0].Blocks[0].(*ast.Paragraph)
	assert.Equal(t, "Remember the gnu.", ast.Flatten(inner.Text))
}

func TestTextBlockCycle(t *testing.T) {
	doc, diags := resolveSource(t, "a:: uses `b` inside.\n\nb:: uses `a` inside.\n\nSee `a`.")
	assert.Nil(t, doc)
	// The diagnostic names every label on the cycle.
	assert.ErrorContains(t, diags.Err(), "inclusion cycle b → a → b")
}

func TestTextBlockSelfInclusion(t *testing.T) {
	doc, diags := resolveSource(t, "a:: uses `a` inside.\n\nSee `a`.")
	assert.Nil(t, doc)
	assert.ErrorContains(t, diags.Err(), "inclusion cycle a → a")
}

func TestTextBlockInsideSection(t *testing.T) {
	doc, _ := resolveSource(t, "note:: Remember the gnu.\n\n1. Alpha\n======\n\nSee `note` here.")
	require.NotNil(t, doc)
	sec := doc.Blocks[1].(*ast.Section)
	para := sec.Blocks[0].(*ast.Paragraph)
	var ref *ast.TextBlockRef
	for _, n := range para.Text {
		if r, ok := n.(*ast.TextBlockRef); ok {
			ref = r
		}
	}
	require.NotNil(t, ref)
	assert.Equal(t, "note", ref.Name)
}

func TestCrossRefToSection(t *testing.T) {
	doc, _ := resolveSource(t, "1. Alpha\n======\n\nText.\n\n2. Beta\n======\n\nSee `Alpha` above.")
	require.NotNil(t, doc)
	beta := doc.Blocks[1].(*ast.Section)
	para := beta.Blocks[0].(*ast.Paragraph)
	var ref *ast.CrossRef
	for _, n := range para.Text {
		if r, ok := n.(*ast.CrossRef); ok {
			ref = r
		}
	}
	require.NotNil(t, ref)
	alpha := doc.Blocks[0].(*ast.Section)
	assert.Same(t, alpha, ref.Target)
}

func TestCrossRefInSectionTitle(t *testing.T) {
	src := `1. Alpha
======

////
figure ` + "`pic`" + `:: One
////

2. More on ` + "`pic`" + `
======

Text.
`
	doc, _ := resolveSource(t, src)
	require.NotNil(t, doc)
	alpha := doc.Blocks[0].(*ast.Section)
	wantFloat := alpha.Blocks[0].(*ast.Float)
	beta := doc.Blocks[1].(*ast.Section)
	var ref *ast.CrossRef
	for _, n := range beta.Title {
		if r, ok := n.(*ast.CrossRef); ok {
			ref = r
		}
	}
	require.NotNil(t, ref, "no cross reference in the section title")
	assert.Same(t, wantFloat, ref.Target)
}

func TestCrossRefInSectionTitleUnknown(t *testing.T) {
	doc, diags := resolveSource(t, "1. See `nowhere`\n======\n\nText.")
	assert.Nil(t, doc)
	assert.ErrorContains(t, diags.Err(), "not found")
}

func TestCrossRefUnknown(t *testing.T) {
	doc, diags := resolveSource(t, "See `nowhere`.")
	assert.Nil(t, doc)
	assert.ErrorContains(t, diags.Err(), "not found")
}

func TestCrossRefPrefersSameSection(t *testing.T) {
	src := `1. Alpha
======

////
figure ` + "`pic`" + `:: One
////

See ` + "`pic`" + `.

2. Beta
======

////
figure ` + "`pic`" + `:: Two
////
`
	doc, _ := resolveSource(t, src)
	require.NotNil(t, doc)
	alpha := doc.Blocks[0].(*ast.Section)
	wantFloat := alpha.Blocks[0].(*ast.Float)
	para := alpha.Blocks[1].(*ast.Paragraph)
	var ref *ast.CrossRef
	for _, n := range para.Text {
		if r, ok := n.(*ast.CrossRef); ok {
			ref = r
		}
	}
	require.NotNil(t, ref)
	assert.Same(t, wantFloat, ref.Target)
}

func TestCrossRefAmbiguous(t *testing.T) {
	src := `1. Alpha
======

////
figure ` + "`pic`" + `:: One
////

2. Beta
======

////
figure ` + "`pic`" + `:: Two
////

3. Gamma
======

See ` + "`pic`" + `.
`
	doc, diags := resolveSource(t, src)
	assert.Nil(t, doc)
	assert.ErrorContains(t, diags.Err(), "ambiguous")
}

func TestCrossRefPath(t *testing.T) {
	src := `1. Alpha
======

////
figure ` + "`pic`" + `:: One
////

2. Beta
======

////
figure ` + "`pic`" + `:: Two
////

3. Gamma
======

See ` + "`Beta → pic`" + `.
`
	doc, _ := resolveSource(t, src)
	require.NotNil(t, doc)
	beta := doc.Blocks[1].(*ast.Section)
	wantFloat := beta.Blocks[0].(*ast.Float)
	var ref *ast.CrossRef
	ast.Walk(doc, func(n ast.Node) bool {
		if r, ok := n.(*ast.CrossRef); ok {
			ref = r
		}
		return true
	})
	require.NotNil(t, ref)
	assert.Same(t, wantFloat, ref.Target)
}

func TestCrossRefWildcard(t *testing.T) {
	doc, _ := resolveSource(t, "1. Introduction\n======\n\nText.\n\n2. Beta\n======\n\nSee `Intro…`.")
	require.NotNil(t, doc)
	var ref *ast.CrossRef
	ast.Walk(doc, func(n ast.Node) bool {
		if r, ok := n.(*ast.CrossRef); ok {
			ref = r
		}
		return true
	})
	require.NotNil(t, ref)
	assert.Same(t, doc.Blocks[0], ref.Target)
}

func TestCitations(t *testing.T) {
	doc, _ := resolveSource(t, "As shown in [@knuth].\n\nbibliography::\n\n@knuth Donald E. Knuth.\n\n::end bibliography")
	require.NotNil(t, doc)
	var c *ast.Citation
	ast.Walk(doc, func(n ast.Node) bool {
		if cit, ok := n.(*ast.Citation); ok {
			c = cit
		}
		return true
	})
	require.NotNil(t, c)
	require.NotNil(t, c.Entry)
	assert.Equal(t, "knuth", c.Entry.Key)
}

func TestCitationInsideBibliographyEntry(t *testing.T) {
	src := "As [@a] shows.\n\nbibliography::\n\n@a First, extending [@b].\n\n@b Second.\n\n::end bibliography"
	doc, _ := resolveSource(t, src)
	require.NotNil(t, doc)
	var c *ast.Citation
	ast.Walk(doc.Bib["a"], func(n ast.Node) bool {
		if cit, ok := n.(*ast.Citation); ok {
			c = cit
		}
		return true
	})
	require.NotNil(t, c, "no citation in the entry text")
	require.NotNil(t, c.Entry)
	assert.Equal(t, "b", c.Entry.Key)
}

func TestCitationUnknownKey(t *testing.T) {
	doc, diags := resolveSource(t, "As shown in [@nobody].")
	assert.Nil(t, doc)
	assert.ErrorContains(t, diags.Err(), "no bibliography entry")
}

func TestNoCiteUnknownKey(t *testing.T) {
	doc, diags := resolveSource(t, "nocite:: ghost\n\nText.")
	require.NotNil(t, doc)
	found := false
	for _, d := range diags.All() {
		if d.Severity == diag.Warning {
			found = true
		}
	}
	assert.True(t, found, "missing warning; got %v", diags.All())
}
