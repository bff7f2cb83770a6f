package gen_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/bronger/bobcat/ast"
	"github.com/bronger/bobcat/gen"
)

// literalBackend writes a fixed string, ignoring the document.
type literalBackend string

func (b literalBackend) Render(doc *ast.Document, w io.Writer) error {
	_, err := io.WriteString(w, string(b))
	return err
}

func TestFilterPipesOutput(t *testing.T) {
	var buf bytes.Buffer
	f := gen.Filter{Command: "cat"}
	if err := f.Run(literalBackend("<p>hi</p>"), &ast.Document{}, &buf); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "<p>hi</p>" {
		t.Errorf("filtered output = %q, want %q", got, "<p>hi</p>")
	}
}

func TestFilterQuotedArguments(t *testing.T) {
	var buf bytes.Buffer
	f := gen.Filter{Command: `sed 's/hi/ho/'`}
	if err := f.Run(literalBackend("hi there"), &ast.Document{}, &buf); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "ho there" {
		t.Errorf("filtered output = %q, want %q", got, "ho there")
	}
}

func TestFilterBadCommand(t *testing.T) {
	f := gen.Filter{Command: "'unterminated"}
	if err := f.Run(literalBackend("x"), &ast.Document{}, io.Discard); err == nil {
		t.Error("malformed command accepted")
	}
}

func TestFilterEmptyCommand(t *testing.T) {
	f := gen.Filter{Command: "   "}
	err := f.Run(literalBackend("x"), &ast.Document{}, io.Discard)
	if err == nil {
		t.Fatal("empty command accepted")
	}
	if !strings.Contains(err.Error(), "no command") {
		t.Errorf("error = %q", err)
	}
}
