// Package diag defines the diagnostics that the Bobcat pipeline collects
// while turning source text into a document tree. Every diagnostic points
// into the original input file, no matter how many substitutions happened
// in between.
package diag

import (
	"fmt"
	"strings"
)

// Severity distinguishes problems that abort the current pipeline stage
// from those that merely deserve the author's attention.
type Severity int

const (
	// Warning marks input that is processed anyway, possibly with an
	// assumed default.
	Warning Severity = iota
	// Error marks input that cannot be processed. Errors abort the
	// pipeline stage that found them.
	Error
)

func (s Severity) String() string {
	if s == Warning {
		return "warning"
	}
	return "error"
}

// Position is a location in an original source file. Line is 1-based,
// Column is 0-based, both counted in code points.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("file %q, line %d, column %d", p.File, p.Line, p.Column)
}

// A Diagnostic is a single finding, tied to the position in the original
// source where it was detected.
type Diagnostic struct {
	Severity Severity
	Pos      Position
	Message  string
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s", d.Pos, d.Severity, d.Message)
}

// A List accumulates diagnostics during one pipeline run. The zero value
// is ready to use. A List is not safe for concurrent use; each document
// run owns its own.
type List struct {
	all []Diagnostic
}

// Errorf records a fatal diagnostic at pos.
func (l *List) Errorf(pos Position, format string, args ...interface{}) {
	l.all = append(l.all, Diagnostic{Error, pos, fmt.Sprintf(format, args...)})
}

// Warnf records a warning at pos.
func (l *List) Warnf(pos Position, format string, args ...interface{}) {
	l.all = append(l.all, Diagnostic{Warning, pos, fmt.Sprintf(format, args...)})
}

// All returns every recorded diagnostic in the order of recording.
func (l *List) All() []Diagnostic { return l.all }

// HasErrors reports whether any fatal diagnostic was recorded.
func (l *List) HasErrors() bool {
	for _, d := range l.all {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Err joins all fatal diagnostics into a single error, or returns nil if
// none were recorded.
func (l *List) Err() error {
	var msgs []string
	for _, d := range l.all {
		if d.Severity == Error {
			msgs = append(msgs, d.Error())
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(msgs, "\n"))
}
