package bobcat_test

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	bobcat "github.com/bronger/bobcat"
	"github.com/bronger/bobcat/ast"
	"github.com/bronger/bobcat/diag"
)

type mapLoader map[string]string

func (m mapLoader) Load(name string) ([]byte, error) {
	s, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("no document %q", name)
	}
	return []byte(s), nil
}

func hasWarning(diags []diag.Diagnostic, substr string) bool {
	for _, d := range diags {
		if d.Severity == diag.Warning && strings.Contains(d.Message, substr) {
			return true
		}
	}
	return false
}

func TestParseDocument(t *testing.T) {
	doc, diags, err := bobcat.ParseDocument("Hello there.", "t.bob", bobcat.Options{})
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Len(t, doc.Blocks, 1)
	para := doc.Blocks[0].(*ast.Paragraph)
	assert.Equal(t, "Hello there.", ast.Flatten(para.Text))
	assert.True(t, hasWarning(diags, "no Bobcat version line"))
}

func TestVersionLine(t *testing.T) {
	doc, diags, err := bobcat.ParseDocument(".. Bobcat 1.0\n\nText.", "t.bob", bobcat.Options{})
	require.NoError(t, err)
	assert.Equal(t, "1.0", doc.Version)
	assert.Empty(t, diags)
}

func TestPostSubstitution(t *testing.T) {
	doc, _, err := bobcat.ParseDocument(".. Bobcat 1.0\n\nIt's here.", "t.bob", bobcat.Options{})
	require.NoError(t, err)
	para := doc.Blocks[0].(*ast.Paragraph)
	assert.Equal(t, "It’s here.", ast.Flatten(para.Text))
}

func TestParseBytesCodingHeader(t *testing.T) {
	src := append([]byte(".. -*- coding: latin-1 -*-\n.. Bobcat 1.0\n\nK"), 0xE4, 's', 'e', '.')
	doc, _, err := bobcat.ParseBytes(src, "t.bob", bobcat.Options{})
	require.NoError(t, err)
	para := doc.Blocks[0].(*ast.Paragraph)
	assert.Equal(t, "Käse.", ast.Flatten(para.Text))
}

func TestInsertion(t *testing.T) {
	opts := bobcat.Options{Loader: mapLoader{
		"part.bob": ".. Bobcat 1.0\n\nInserted text.",
	}}
	doc, diags, err := bobcat.ParseDocument(
		".. Bobcat 1.0\n\nIntro.\n\ninsertion:: part.bob\n\nOutro.", "t.bob", opts)
	require.NoError(t, err)
	assert.Empty(t, diags)
	require.Len(t, doc.Blocks, 3)
	ins := doc.Blocks[1].(*ast.Insertion)
	require.Len(t, ins.Blocks, 1)
	para := ins.Blocks[0].(*ast.Paragraph)
	assert.Equal(t, "Inserted text.", ast.Flatten(para.Text))
}

func TestInsertionWithoutLoader(t *testing.T) {
	doc, diags, err := bobcat.ParseDocument(
		".. Bobcat 1.0\n\ninsertion:: part.bob", "t.bob", bobcat.Options{})
	require.NoError(t, err)
	assert.True(t, hasWarning(diags, "no document loader"))
	ins := doc.Blocks[0].(*ast.Insertion)
	require.Len(t, ins.Blocks, 1)
	node := ins.Blocks[0].(*ast.ErrorNode)
	assert.Equal(t, "insertion of part.bob failed", node.Message)
}

func TestInsertionLoadFailure(t *testing.T) {
	opts := bobcat.Options{Loader: mapLoader{}}
	doc, diags, err := bobcat.ParseDocument(
		".. Bobcat 1.0\n\ninsertion:: gone.bob", "t.bob", opts)
	require.NoError(t, err)
	assert.True(t, hasWarning(diags, "cannot insert"))
	ins := doc.Blocks[0].(*ast.Insertion)
	_, isError := ins.Blocks[0].(*ast.ErrorNode)
	assert.True(t, isError)
}

func TestInsertionCycle(t *testing.T) {
	opts := bobcat.Options{Loader: mapLoader{
		"a.bob": ".. Bobcat 1.0\n\ninsertion:: a.bob",
	}}
	doc, _, err := bobcat.ParseDocument(
		".. Bobcat 1.0\n\ninsertion:: a.bob", "a.bob", opts)
	assert.Nil(t, doc)
	assert.ErrorContains(t, err, "insertion cycle")
}

func TestInsertionMergesBibliography(t *testing.T) {
	opts := bobcat.Options{Loader: mapLoader{
		"bib.bob": ".. Bobcat 1.0\n\nbibliography::\n\n@knuth Donald Knuth.\n\n::end bibliography",
	}}
	doc, _, err := bobcat.ParseDocument(
		".. Bobcat 1.0\n\nAs in [@knuth].\n\ninsertion:: bib.bob", "t.bob", opts)
	require.NoError(t, err)
	require.Contains(t, doc.Bib, "knuth")
	var c *ast.Citation
	ast.Walk(doc, func(n ast.Node) bool {
		if cit, ok := n.(*ast.Citation); ok {
			c = cit
		}
		return true
	})
	require.NotNil(t, c)
	assert.Same(t, doc.Bib["knuth"], c.Entry)
}

func TestConflictingBibliographyEntries(t *testing.T) {
	opts := bobcat.Options{Loader: mapLoader{
		"bib.bob": ".. Bobcat 1.0\n\nbibliography::\n\n@k Two.\n\n::end bibliography",
	}}
	doc, _, err := bobcat.ParseDocument(
		".. Bobcat 1.0\n\nbibliography::\n\n@k One.\n\n::end bibliography\n\ninsertion:: bib.bob",
		"t.bob", opts)
	assert.Nil(t, doc)
	assert.ErrorContains(t, err, "conflicting definitions")
}

// TestCorpus parses the multi-file documents under testdata. Each txtar
// archive holds a main.bob and the files it inserts.
func TestCorpus(t *testing.T) {
	archives, err := filepath.Glob("testdata/*.txtar")
	require.NoError(t, err)
	require.NotEmpty(t, archives)
	for _, path := range archives {
		t.Run(filepath.Base(path), func(t *testing.T) {
			arch, err := txtar.ParseFile(path)
			require.NoError(t, err)
			loader := mapLoader{}
			for _, f := range arch.Files {
				loader[f.Name] = string(f.Data)
			}
			main, ok := loader["main.bob"]
			require.True(t, ok, "archive has no main.bob")
			doc, diags, err := bobcat.ParseDocument(main, "main.bob", bobcat.Options{Loader: loader})
			require.NoError(t, err)
			require.NotNil(t, doc)
			assert.Empty(t, diags)
		})
	}
}

func TestInsertionIsPreprocessed(t *testing.T) {
	opts := bobcat.Options{Loader: mapLoader{
		"part.bob": ".. Bobcat 1.0\n\nb --> c",
	}}
	doc, _, err := bobcat.ParseDocument(
		".. Bobcat 1.0\n\na --> b\n\ninsertion:: part.bob", "t.bob", opts)
	require.NoError(t, err)
	host := doc.Blocks[0].(*ast.Paragraph)
	assert.Equal(t, "a → b", ast.Flatten(host.Text))
	ins := doc.Blocks[1].(*ast.Insertion)
	part := ins.Blocks[0].(*ast.Paragraph)
	assert.Equal(t, "b → c", ast.Flatten(part.Text))
}
