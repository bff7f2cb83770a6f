// Package gen is the common surface of the Bobcat output backends.
package gen

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	sq "github.com/kballard/go-shellquote"
	"github.com/bronger/bobcat/ast"
)

// A Backend renders a resolved document tree to w.
type Backend interface {
	Render(doc *ast.Document, w io.Writer) error
}

// Filter pipes a backend's output through an external command before it
// reaches the final writer. The command line is split according to the
// Bourne shell's word-splitting rules.
type Filter struct {
	Ctx     context.Context
	Command string
	Stderr  io.Writer
}

// Run renders doc with b and feeds the result through the filter's
// command, writing the command's standard output to w. It returns the
// first error of the renderer or the command.
func (f *Filter) Run(b Backend, doc *ast.Document, w io.Writer) error {
	words, err := sq.Split(f.Command)
	if err != nil {
		return err
	}
	if len(words) == 0 {
		return fmt.Errorf("no command in filter %q", f.Command)
	}
	var cmd *exec.Cmd
	if f.Ctx == nil {
		cmd = exec.Command(words[0], words[1:]...)
	} else {
		cmd = exec.CommandContext(f.Ctx, words[0], words[1:]...)
	}
	pr, pw := io.Pipe()
	cmd.Stdin = pr
	cmd.Stdout = w
	if f.Stderr != nil {
		cmd.Stderr = f.Stderr
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	renderErr := b.Render(doc, pw)
	pw.CloseWithError(renderErr)
	if err := cmd.Wait(); err != nil {
		return err
	}
	return renderErr
}
