package inputmethod

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bronger/bobcat/charset"
	"github.com/bronger/bobcat/header"
)

// A Resolver maps an input-method name to the raw bytes of its .bim file.
type Resolver interface {
	Open(name string) ([]byte, error)
}

// Dir resolves input methods against <dir>/<name>.bim.
type Dir string

func (d Dir) Open(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(string(d), name+".bim"))
}

//go:embed minimal.bim
var builtinFS embed.FS

type builtin struct{}

func (builtin) Open(name string) ([]byte, error) {
	return builtinFS.ReadFile(name + ".bim")
}

// Builtin resolves the input methods compiled into the program. Currently
// that is only "minimal".
var Builtin Resolver = builtin{}

// Chain tries each resolver in turn and returns the first hit.
func Chain(rs ...Resolver) Resolver { return chain(rs) }

type chain []Resolver

func (c chain) Open(name string) ([]byte, error) {
	var lastErr error
	for _, r := range c {
		b, err := r.Open(name)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("input method %q not found", name)
	}
	return nil, lastErr
}

// Structural code points of the Bobcat surface syntax. A POST rule must
// never produce one of these, or a finished text leaf could suddenly mean
// markup again.
const reserved = "\\`_[]{}<>|#-+:=/*@"

var numericRepl = regexp.MustCompile(`^\\(#(\d+)|0x([0-9a-fA-F]+));$`)

// Load reads the named input methods through r, following
// parental-input-method inheritance. Several names may be given,
// separated by commas; their rules concatenate in the listed order.
// Inherited rules come first, so later rules win ties.
func Load(names string, r Resolver) (*Table, error) {
	t := &Table{Name: strings.ToLower(strings.TrimSpace(names))}
	for _, name := range splitNames(t.Name) {
		if err := load(t, name, r, map[string]bool{}); err != nil {
			return nil, err
		}
	}
	t.dedup()
	for i := range t.rules {
		t.rules[i].order = i
	}
	if err := t.checkPostIdempotence(); err != nil {
		return nil, err
	}
	return t, nil
}

func load(t *Table, name string, r Resolver, seen map[string]bool) error {
	if seen[name] {
		return fmt.Errorf("input method %q inherits from itself", name)
	}
	seen[name] = true
	raw, err := r.Open(name)
	if err != nil {
		return fmt.Errorf("input method %q: %v", name, err)
	}
	text, err := charset.DecodeFile(raw)
	if err != nil {
		return fmt.Errorf("input method %q: %v", name, err)
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return fmt.Errorf("input method %q: truncated file", name)
	}
	vars, ok, err := header.ParseLocalVariables(lines[0])
	if !ok || err != nil {
		return fmt.Errorf("input method %q: missing local-variables line", name)
	}
	if got := vars["input-method-name"]; got != name {
		return fmt.Errorf("input method %q: file declares name %q", name, got)
	}
	if strings.TrimRight(lines[1], " \t\r") != ".. Bobcat input method" {
		return fmt.Errorf("input method %q: second line is not the input-method marker", name)
	}
	for _, parent := range splitNames(vars["parental-input-method"]) {
		if err := load(t, parent, r, seen); err != nil {
			return err
		}
	}
	for i, line := range lines[2:] {
		rule, ok, err := parseRule(line)
		if err != nil {
			return fmt.Errorf("input method %q, line %d: %v", name, i+3, err)
		}
		if ok {
			t.rules = append(t.rules, rule)
		}
	}
	return nil
}

func splitNames(s string) []string {
	var names []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

var commentLine = regexp.MustCompile(`^\.\.([ \t].*)?$`)

func parseRule(line string) (Rule, bool, error) {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || commentLine.MatchString(line) {
		return Rule{}, false, nil
	}
	fields := strings.Split(line, "\t")
	var nonEmpty []string
	for _, f := range fields {
		if f != "" {
			nonEmpty = append(nonEmpty, f)
		}
	}
	if len(nonEmpty) < 2 {
		return Rule{}, false, fmt.Errorf("expected match and replacement separated by tabs")
	}
	match, repl := nonEmpty[0], nonEmpty[1]

	rule := Rule{Phase: Pre}
	if strings.HasPrefix(match, "POST::") {
		rule.Phase = Post
		match = match[len("POST::"):]
	}
	if strings.HasPrefix(match, "REGEX::") {
		rule.Regexp = true
		match = match[len("REGEX::"):]
	}
	if match == "" {
		return Rule{}, false, fmt.Errorf("empty match")
	}
	rule.Match = match
	if rule.Regexp {
		re, err := regexp.Compile(`\A(?:` + match + `)`)
		if err != nil {
			return Rule{}, false, fmt.Errorf("bad pattern %q: %v", match, err)
		}
		if re.NumSubexp() > 0 {
			return Rule{}, false, fmt.Errorf("pattern %q contains capturing groups", match)
		}
		rule.re = re
	}

	r, err := parseReplacement(repl)
	if err != nil {
		return Rule{}, false, err
	}
	rule.Replacement = r
	if rule.Phase == Post && strings.ContainsRune(reserved, r) {
		return Rule{}, false, fmt.Errorf("POST replacement %q is a structural character", string(r))
	}
	return rule, true, nil
}

func parseReplacement(s string) (rune, error) {
	if m := numericRepl.FindStringSubmatch(s); m != nil {
		var n int64
		var err error
		if m[2] != "" {
			n, err = strconv.ParseInt(m[2], 10, 32)
		} else {
			n, err = strconv.ParseInt(m[3], 16, 32)
		}
		if err != nil || !utf8.ValidRune(rune(n)) {
			return 0, fmt.Errorf("invalid code point in replacement %q", s)
		}
		return rune(n), nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("replacement %q is not exactly one code point", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// dedup keeps only the last rule per phase and match text, mirroring how
// an overriding table shadows its ancestors.
func (t *Table) dedup() {
	type key struct {
		phase Phase
		match string
	}
	last := make(map[key]int)
	for i, r := range t.rules {
		last[key{r.Phase, r.Match}] = i
	}
	out := t.rules[:0]
	for i, r := range t.rules {
		if last[key{r.Phase, r.Match}] == i {
			out = append(out, r)
		}
	}
	t.rules = out
}

// checkPostIdempotence rejects tables whose POST output could feed a POST
// rule again. Applying POST twice must be a no-op.
func (t *Table) checkPostIdempotence() error {
	for _, r := range t.rules {
		if r.Phase != Post {
			continue
		}
		if hit, _ := t.MatchAt(Post, string(r.Replacement)); hit != nil {
			return fmt.Errorf("input method %q: POST replacement %q matches rule %q",
				t.Name, string(r.Replacement), hit.Match)
		}
	}
	return nil
}
