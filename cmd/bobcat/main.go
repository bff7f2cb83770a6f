// Command bobcat parses Bobcat documents and renders them.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"

	"github.com/bronger/bobcat"
	"github.com/bronger/bobcat/ast"
	"github.com/bronger/bobcat/diag"
	"github.com/bronger/bobcat/gen"
	"github.com/bronger/bobcat/gen/html"
	"github.com/bronger/bobcat/inputmethod"
)

var (
	inputMethodPath []string
	output          string
	filterCmd       string
)

var rootCmd = &cobra.Command{
	Use:           "bobcat",
	Short:         "bobcat turns Bobcat markup into an abstract document tree and renders it",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var htmlCmd = &cobra.Command{
	Use:   "html file",
	Short: "render a document as an HTML fragment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := parse(args[0])
		if err != nil {
			return err
		}
		out, closeOut, err := openOutput()
		if err != nil {
			return err
		}
		defer closeOut()
		g := html.Gen(doc)
		g.Stderr = os.Stderr
		if filterCmd != "" {
			f := &gen.Filter{Command: filterCmd, Stderr: os.Stderr}
			return f.Run(g, doc, out)
		}
		g.Stdout = out
		return g.Run()
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree file",
	Short: "dump the document tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := parse(args[0])
		if err != nil {
			return err
		}
		out, closeOut, err := openOutput()
		if err != nil {
			return err
		}
		defer closeOut()
		_, err = io.WriteString(out, litter.Sdump(doc)+"\n")
		return err
	},
}

func main() {
	rootCmd.PersistentFlags().StringArrayVarP(&inputMethodPath, "input-method-path", "I", nil,
		"directory searched for .bim files; may be repeated")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "",
		"write output to this file instead of standard output")
	htmlCmd.Flags().StringVar(&filterCmd, "filter", "",
		"pipe the rendered output through this command")
	rootCmd.AddCommand(htmlCmd, treeCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "bobcat:", err)
		os.Exit(1)
	}
}

func parse(path string) (*ast.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	resolvers := []inputmethod.Resolver{inputmethod.Dir(filepath.Dir(path))}
	for _, dir := range inputMethodPath {
		resolvers = append(resolvers, inputmethod.Dir(dir))
	}
	opts := bobcat.Options{
		InputMethods: inputmethod.Chain(resolvers...),
		Loader:       bobcat.DirLoader(filepath.Dir(path)),
	}
	doc, diags, err := bobcat.ParseBytes(raw, path, opts)
	printDiags(diags)
	if err != nil {
		return nil, fmt.Errorf("%s cannot be processed", path)
	}
	return doc, nil
}

func printDiags(diags []diag.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintln(os.Stderr, d.Error())
	}
}

func openOutput() (io.Writer, func(), error) {
	if output == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(output)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}
